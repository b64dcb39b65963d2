// Command pesu is an interactive voice companion. It captures microphone
// audio, streams it to a live speech model, and plays the model's replies
// through the speakers, with a small HTTP endpoint for health and metrics.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/karkuvel/pesu/internal/config"
	"github.com/karkuvel/pesu/internal/health"
	"github.com/karkuvel/pesu/internal/observe"
	"github.com/karkuvel/pesu/internal/persona"
	"github.com/karkuvel/pesu/internal/session"
	"github.com/karkuvel/pesu/pkg/audio/capture"
	"github.com/karkuvel/pesu/pkg/audio/playback"
	"github.com/karkuvel/pesu/pkg/s2s/gemini"
)

// errQuit signals a user-requested exit through the errgroup so the status
// server shuts down too.
var errQuit = errors.New("quit requested")

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "pesu.yaml", "path to the YAML configuration file")
	language := flag.String("language", "", "override the configured reply language")
	mode := flag.String("mode", "", "override the configured companion mode (mama or love)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "pesu: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "pesu: %v\n", err)
		}
		return 1
	}
	if *language != "" {
		cfg.Session.Language = persona.Language(*language)
	}
	if *mode != "" {
		cfg.Session.Mode = persona.Mode(*mode)
	}
	if cfg.Session.Language == "" {
		cfg.Session.Language = persona.LangEnglish
	}
	if cfg.Session.Mode == "" {
		cfg.Session.Mode = persona.ModeMama
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("pesu starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "pesu"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Session controller ────────────────────────────────────────────────────
	var provOpts []gemini.Option
	if cfg.Provider.Model != "" {
		provOpts = append(provOpts, gemini.WithModel(cfg.Provider.Model))
	}
	if cfg.Provider.BaseURL != "" {
		provOpts = append(provOpts, gemini.WithBaseURL(cfg.Provider.BaseURL))
	}
	provider := gemini.New(cfg.Provider.APIKey, provOpts...)

	ctrl := session.NewController(
		provider,
		func() (capture.Source, error) { return capture.NewMalgoSource() },
		func() (playback.Device, error) { return playback.NewOtoDevice() },
		session.WithMetrics(metrics),
	)
	defer ctrl.Stop()

	printStartupSummary(cfg)

	// ── Status server and command loop ────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		h := health.New(
			func() any { return ctrl.Status() },
			health.Checker{Name: "provider", Check: func(context.Context) error {
				if cfg.Provider.APIKey == "" {
					return errors.New("api key missing")
				}
				return nil
			}},
		)
		mux := http.NewServeMux()
		h.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		srv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("status server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return commandLoop(gctx, ctrl, cfg.Session.Language, cfg.Session.Mode)
	})

	slog.Info("ready — type 'help' for commands, Ctrl+C to quit")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errQuit) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Command loop ──────────────────────────────────────────────────────────────

// commandLoop reads interactive commands from stdin until EOF, a quit
// command, or context cancellation. Stdin reads cannot be interrupted, so the
// scanner runs in its own goroutine and the loop selects on both channels.
func commandLoop(ctx context.Context, ctrl *session.Controller, defaultLang persona.Language, defaultMode persona.Mode) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// Stdin closed (e.g. running under a supervisor); keep the
				// process alive for the status server.
				<-ctx.Done()
				return ctx.Err()
			}
			if quit := dispatch(ctx, ctrl, line, defaultLang, defaultMode); quit {
				return errQuit
			}
		}
	}
}

// dispatch executes one command line. Returns true on quit.
func dispatch(ctx context.Context, ctrl *session.Controller, line string, defaultLang persona.Language, defaultMode persona.Mode) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "start":
		lang, mode := defaultLang, defaultMode
		if len(fields) > 1 {
			lang = persona.Language(fields[1])
		}
		if len(fields) > 2 {
			mode = persona.Mode(fields[2])
		}
		if err := ctrl.Start(ctx, lang, mode); err != nil {
			fmt.Printf("could not start: %v\n", err)
		} else {
			fmt.Printf("conversation started (%s, %s) — speak into the microphone\n", lang, mode)
		}

	case "stop":
		ctrl.Stop()
		fmt.Println("conversation stopped")

	case "status":
		st := ctrl.Status()
		fmt.Printf("state: %s  connected: %t  talking: %t", st.State, st.Connected, st.Talking)
		if st.Err != "" {
			fmt.Printf("  last error: %s", st.Err)
		}
		fmt.Println()

	case "quit", "exit":
		return true

	case "help":
		fmt.Println("commands:")
		fmt.Println("  start [language] [mode]  begin a conversation (defaults from config)")
		fmt.Println("  stop                     end the conversation")
		fmt.Println("  status                   show the conversation state")
		fmt.Println("  quit                     exit")
		fmt.Printf("languages: %v\n", persona.Languages)
		fmt.Printf("modes: %v\n", persona.Modes)

	default:
		fmt.Printf("unknown command %q — type 'help'\n", fields[0])
	}
	return false
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          pesu — startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Model", orDefault(cfg.Provider.Model, "(default)"))
	printField("Language", string(cfg.Session.Language))
	printField("Mode", string(cfg.Session.Mode))
	printField("API key", maskKey(cfg.Provider.APIKey))
	if cfg.Server.ListenAddr != "" {
		printField("Listen addr", cfg.Server.ListenAddr)
	} else {
		printField("Listen addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// maskKey shows only the last four characters of the API key.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return "****"
	default:
		return "…" + key[len(key)-4:]
	}
}
