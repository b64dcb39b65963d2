package playback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/karkuvel/pesu/pkg/audio"
	"github.com/karkuvel/pesu/pkg/audio/playback"
)

// fakeDevice is a Device with a manually advanced clock. Buffers never play
// on their own; tests complete them by calling their done callbacks.
type fakeDevice struct {
	mu    sync.Mutex
	now   time.Duration
	plays []*fakePlay
}

type fakePlay struct {
	buf     audio.Buffer
	at      time.Duration
	done    func()
	stopped bool
	mu      sync.Mutex
}

func (p *fakePlay) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakePlay) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (d *fakeDevice) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

func (d *fakeDevice) advance(by time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now += by
}

func (d *fakeDevice) Play(buf audio.Buffer, at time.Duration, done func()) (playback.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &fakePlay{buf: buf, at: at, done: done}
	d.plays = append(d.plays, p)
	return p, nil
}

func (d *fakeDevice) play(i int) *fakePlay {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays[i]
}

func (d *fakeDevice) playCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.plays)
}

// buf returns a buffer of the given duration at the playback rate.
func buf(d time.Duration) audio.Buffer {
	n := int(d * audio.PlaybackRate / time.Second)
	return audio.Buffer{Samples: make([]float32, n), SampleRate: audio.PlaybackRate}
}

func TestEnqueue_BackToBack(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	for i := 0; i < 3; i++ {
		if err := s.Enqueue(buf(100 * time.Millisecond)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	if dev.playCount() != 3 {
		t.Fatalf("plays = %d; want 3", dev.playCount())
	}
	wants := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}
	for i, want := range wants {
		if got := dev.play(i).at; got != want {
			t.Errorf("play %d start = %v; want %v", i, got, want)
		}
	}
}

func TestEnqueue_SnapsToDeviceNow(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	// Cursor is behind the device clock: playback drained and time moved on.
	dev.advance(500 * time.Millisecond)

	if err := s.Enqueue(buf(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got, want := dev.play(0).at, 500*time.Millisecond; got != want {
		t.Errorf("start = %v; want %v", got, want)
	}

	// The next buffer chains off the new cursor, not the clock.
	if err := s.Enqueue(buf(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got, want := dev.play(1).at, 600*time.Millisecond; got != want {
		t.Errorf("second start = %v; want %v", got, want)
	}
}

func TestEnqueue_EmptyBufferIsNoOp(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	if err := s.Enqueue(audio.Buffer{SampleRate: audio.PlaybackRate}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if dev.playCount() != 0 {
		t.Errorf("plays = %d; want 0", dev.playCount())
	}
	if s.Playing() {
		t.Error("Playing() = true; want false")
	}
}

func TestPlaying_TracksActiveSet(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	if s.Playing() {
		t.Fatal("Playing() = true before any enqueue")
	}

	s.Enqueue(buf(50 * time.Millisecond))
	s.Enqueue(buf(50 * time.Millisecond))
	if !s.Playing() {
		t.Fatal("Playing() = false with two active buffers")
	}

	dev.play(0).done()
	if !s.Playing() {
		t.Fatal("Playing() = false with one buffer remaining")
	}

	dev.play(1).done()
	if s.Playing() {
		t.Fatal("Playing() = true after all buffers finished")
	}
}

func TestOnIdle_FiresWhenLastBufferFinishes(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	var mu sync.Mutex
	idles := 0
	s.OnIdle(func() {
		mu.Lock()
		idles++
		mu.Unlock()
	})

	s.Enqueue(buf(50 * time.Millisecond))
	s.Enqueue(buf(50 * time.Millisecond))

	dev.play(0).done()
	mu.Lock()
	if idles != 0 {
		mu.Unlock()
		t.Fatal("idle fired before last buffer finished")
	}
	mu.Unlock()

	dev.play(1).done()
	mu.Lock()
	defer mu.Unlock()
	if idles != 1 {
		t.Fatalf("idle count = %d; want 1", idles)
	}
}

func TestInterrupt_StopsAllAndRewindsCursor(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	s.Enqueue(buf(100 * time.Millisecond))
	s.Enqueue(buf(100 * time.Millisecond))

	s.Interrupt()

	for i := 0; i < 2; i++ {
		if !dev.play(i).wasStopped() {
			t.Errorf("play %d not stopped by Interrupt", i)
		}
	}
	if s.Playing() {
		t.Error("Playing() = true after Interrupt")
	}

	// Cursor rewound: the next response starts at the device's current
	// position (still zero on the fake clock), not after the dead air the
	// interrupted buffers would have occupied.
	if err := s.Enqueue(buf(100 * time.Millisecond)); err != nil {
		t.Fatalf("Enqueue after Interrupt: %v", err)
	}
	if got := dev.play(2).at; got != 0 {
		t.Errorf("post-interrupt start = %v; want 0", got)
	}
}

func TestInterrupt_Idempotent(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	var mu sync.Mutex
	idles := 0
	s.OnIdle(func() {
		mu.Lock()
		idles++
		mu.Unlock()
	})

	s.Enqueue(buf(100 * time.Millisecond))

	s.Interrupt()
	s.Interrupt()
	s.Interrupt()

	mu.Lock()
	defer mu.Unlock()
	if idles != 1 {
		t.Fatalf("idle count = %d; want 1 (only the first interrupt cleared anything)", idles)
	}
}

func TestInterrupt_LateDoneIsIgnored(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	var mu sync.Mutex
	idles := 0
	s.OnIdle(func() {
		mu.Lock()
		idles++
		mu.Unlock()
	})

	s.Enqueue(buf(100 * time.Millisecond))
	s.Interrupt()

	// A done callback racing with the interrupt must not fire idle again.
	dev.play(0).done()

	mu.Lock()
	defer mu.Unlock()
	if idles != 1 {
		t.Fatalf("idle count = %d; want 1", idles)
	}
}

func TestShutdown_RejectsFurtherEnqueues(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	s.Enqueue(buf(100 * time.Millisecond))
	s.Shutdown()

	if !dev.play(0).wasStopped() {
		t.Error("active buffer not stopped by Shutdown")
	}
	if err := s.Enqueue(buf(100 * time.Millisecond)); err == nil {
		t.Error("Enqueue after Shutdown succeeded; want error")
	}
	if s.Playing() {
		t.Error("Playing() = true after Shutdown")
	}

	// Shutdown is idempotent.
	s.Shutdown()
}

func TestEnqueue_ConcurrentStartsAreMonotonic(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := playback.NewScheduler(dev)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				_ = s.Enqueue(buf(10 * time.Millisecond))
			}
		}()
	}
	wg.Wait()

	if dev.playCount() != 128 {
		t.Fatalf("plays = %d; want 128", dev.playCount())
	}
	// Start times must never decrease, regardless of interleaving.
	prev := time.Duration(-1)
	starts := make([]time.Duration, 0, 128)
	for i := 0; i < 128; i++ {
		starts = append(starts, dev.play(i).at)
	}
	for i, at := range starts {
		if at < prev {
			t.Fatalf("start %d = %v is before previous %v", i, at, prev)
		}
		prev = at
	}
}
