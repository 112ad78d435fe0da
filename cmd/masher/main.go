package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

type config struct {
	backend      string
	devicePath   string
	gamelinkAddr string
	pressMS      float64
	releaseMS    float64
	pollMS       float64
	hotkey       string
	listDevices  bool
	ui           bool
	logLevel     slog.Level
}

type lineSinkWriter struct {
	sink  func(line string)
	mu    sync.Mutex
	lines bytes.Buffer
}

func (w *lineSinkWriter) Write(p []byte) (int, error) {
	if w.sink == nil {
		return len(p), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx == -1 {
			_, _ = w.lines.Write(p)
			break
		}
		_, _ = w.lines.Write(p[:idx])
		line := strings.TrimSpace(w.lines.String())
		w.lines.Reset()
		if line != "" {
			w.sink(line)
		}
		p = p[idx+1:]
	}
	return total, nil
}

func newSlogLogger(level slog.Level, sink func(line string)) *slog.Logger {
	out := io.Writer(os.Stderr)
	if sink != nil {
		out = io.MultiWriter(os.Stderr, &lineSinkWriter{sink: sink})
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (expected debug|info|warning|error)", value)
	}
}

func parseConfig(args []string) (config, error) {
	cfg := config{}
	flags := flag.NewFlagSet("masher", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var backendRaw string
	var logLevelRaw string
	var cliMode bool

	flags.StringVar(&backendRaw, "backend", "auto", "Input backend. Linux: auto|evdev|sdl. Windows: auto|sdl.")
	flags.StringVar(&cfg.devicePath, "device", "", "Input event device path to read, e.g. /dev/input/event4. Auto-detected if omitted (evdev backend only).")
	flags.StringVar(&cfg.gamelinkAddr, "gamelink", "127.0.0.1:9563", "Address of the game-side mod publishing textbox state.")
	flags.Float64Var(&cfg.pressMS, "press-ms", 50.0, "How long each mash press stays down in ms.")
	flags.Float64Var(&cfg.releaseMS, "release-ms", 50.0, "How long each mash release lasts in ms.")
	flags.Float64Var(&cfg.pollMS, "poll-ms", 16.0, "Sampling cadence for hold and textbox state in ms.")
	flags.StringVar(&cfg.hotkey, "hotkey", "", "Global keyboard shortcut to suspend/resume mashing, e.g. Mod4-F8 (X11 only).")
	flags.BoolVar(&cfg.listDevices, "list-devices", false, "Print available input devices and exit.")
	flags.BoolVar(&cfg.ui, "ui", true, "Start desktop GUI (Fyne) by default. Use --ui=false or --cli for terminal mode.")
	flags.BoolVar(&cliMode, "cli", false, "Force terminal mode (disables GUI).")
	flags.StringVar(&logLevelRaw, "log-level", "info", "Log verbosity (default: info). Allowed: debug, info, warning, error.")

	if err := flags.Parse(args); err != nil {
		return cfg, err
	}
	if flags.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	if cfg.pressMS <= 0 {
		return cfg, fmt.Errorf("--press-ms must be > 0")
	}
	if cfg.releaseMS <= 0 {
		return cfg, fmt.Errorf("--release-ms must be > 0")
	}
	if cfg.pollMS <= 0 {
		return cfg, fmt.Errorf("--poll-ms must be > 0")
	}
	if cliMode {
		cfg.ui = false
	}

	parsedLevel, err := parseLogLevel(logLevelRaw)
	if err != nil {
		return cfg, err
	}
	backendChoice, err := parseBackendChoice(backendRaw)
	if err != nil {
		return cfg, err
	}

	cfg.backend = backendChoice
	cfg.logLevel = parsedLevel
	return cfg, nil
}

func (c config) pressDuration() time.Duration {
	return time.Duration(c.pressMS * float64(time.Millisecond))
}

func (c config) releaseDuration() time.Duration {
	return time.Duration(c.releaseMS * float64(time.Millisecond))
}

func (c config) pollInterval() time.Duration {
	return time.Duration(c.pollMS * float64(time.Millisecond))
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if cfg.listDevices {
		if err := listInputDevices(cfg.backend); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	if cfg.ui {
		if err := runUI(cfg); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	logger := newSlogLogger(cfg.logLevel, nil)
	rt, err := startMasherFromConfig(cfg, logger)
	if err != nil {
		if isPermissionError(err) {
			fmt.Fprintln(stderr, permissionDeniedHint())
			return 1
		}
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer rt.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		return 0
	case err := <-rt.engine.Failures():
		fmt.Fprintln(stderr, err)
		return 1
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}
