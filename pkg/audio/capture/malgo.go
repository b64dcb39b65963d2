package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/karkuvel/pesu/pkg/audio"
)

// Compile-time assertion that MalgoSource satisfies Source.
var _ Source = (*MalgoSource)(nil)

// MalgoSource captures microphone audio through miniaudio (16 kHz, mono,
// float32). Chunks arrive on the Samples channel in device-period sizes; the
// Tap handles windowing.
type MalgoSource struct {
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	samples chan []float32

	mu     sync.Mutex
	closed bool
}

// NewMalgoSource opens the default capture device and starts recording.
func NewMalgoSource() (*MalgoSource, error) {
	ctxCfg := malgo.ContextConfig{}
	ctxCfg.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, ctxCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}

	s := &MalgoSource{
		ctx:     mctx,
		samples: make(chan []float32, 32),
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = audio.CaptureRate
	devCfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			s.push(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, devCfg, callbacks)
	if err != nil {
		s.teardownContext()
		return nil, fmt.Errorf("capture: init microphone: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		s.teardownContext()
		return nil, fmt.Errorf("capture: start microphone: %w", err)
	}

	return s, nil
}

// Samples returns the microphone sample stream.
func (s *MalgoSource) Samples() <-chan []float32 {
	return s.samples
}

// push converts a device-callback byte buffer (f32le) to samples and queues
// it. Runs on the miniaudio realtime thread: it must never block, so a full
// queue drops the chunk.
func (s *MalgoSource) push(input []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	n := len(input) / 4
	if n == 0 {
		return
	}
	chunk := make([]float32, n)
	for i := range chunk {
		chunk[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}

	select {
	case s.samples <- chunk:
	default:
		slog.Debug("capture: sample queue full, dropping chunk", "samples", n)
	}
}

// Close stops and releases the capture device. Safe to call more than once.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	if stopErr := s.device.Stop(); stopErr != nil {
		err = fmt.Errorf("capture: stop microphone: %w", stopErr)
	}
	s.device.Uninit()
	s.teardownContext()
	close(s.samples)
	return err
}

func (s *MalgoSource) teardownContext() {
	if uninitErr := s.ctx.Uninit(); uninitErr != nil {
		slog.Warn("capture: audio context uninit failed", "err", uninitErr)
	}
	s.ctx.Free()
}
