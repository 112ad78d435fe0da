package main

import (
	"fmt"
	"log/slog"
	"time"

	"masher/internal/adapters/gamelink"
	"masher/internal/core/automasher"
)

// inputSource is what the platform layer must provide for reading the
// physical controller.
type inputSource interface {
	automasher.InputSource
	Close()
}

// actionPad is the virtual controller output. SetButtons rebinds which
// codes the three actions emit when the mapping changes.
type actionPad interface {
	automasher.Pad
	SetButtons(buttons [3]automasher.Button) error
}

// hotkeyListener is the optional global suspend/resume shortcut.
type hotkeyListener interface {
	Stop()
}

type masherRuntime struct {
	cfg      config
	logger   *slog.Logger
	source   inputSource
	textbox  *gamelink.Source
	pad      actionPad
	engine   *automasher.Engine
	session  *automasher.Session
	hotkey   hotkeyListener
	settings *settingsStore
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// startMasherFromConfig wires the platform input, the game link, the
// virtual pad and the engine together and starts the mash loop. The
// returned runtime must be stopped with Stop.
func startMasherFromConfig(cfg config, logger *slog.Logger) (*masherRuntime, error) {
	settings := newSettingsStore(logger)
	saved := settings.load()
	mapping := saved.mapping(logger)

	// Saved values apply where the command line left the defaults.
	if cfg.backend == "auto" && saved.Backend != "" {
		cfg.backend = saved.Backend
	}
	if cfg.pressMS == 50.0 && saved.PressMS > 0 {
		cfg.pressMS = saved.PressMS
	}
	if cfg.releaseMS == 50.0 && saved.ReleaseMS > 0 {
		cfg.releaseMS = saved.ReleaseMS
	}

	source, err := openPlatformSource(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening input source: %w", err)
	}

	textbox, err := gamelink.Open(cfg.gamelinkAddr, slogAdapter{logger: logger})
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("connecting game link: %w", err)
	}

	pad, err := openPlatformPad(mapping, logger)
	if err != nil {
		source.Close()
		textbox.Close()
		return nil, fmt.Errorf("creating virtual pad: %w", err)
	}

	engine, err := automasher.NewEngine(automasher.EngineConfig{
		PressDuration:   cfg.pressDuration(),
		ReleaseDuration: cfg.releaseDuration(),
		PollInterval:    cfg.pollInterval(),
	}, mapping, source, textbox, pad, slogAdapter{logger: logger})
	if err != nil {
		_ = pad.Close()
		source.Close()
		textbox.Close()
		return nil, err
	}

	session, err := automasher.NewSession(engine, source, slogAdapter{logger: logger})
	if err != nil {
		_ = pad.Close()
		source.Close()
		textbox.Close()
		return nil, err
	}
	if mapping.Complete() {
		// Seed the session so restarts start mash-ready. The change
		// callback is not installed yet, so this does not rewrite the
		// settings file with what was just read from it.
		if err := session.SetMapping(mapping); err != nil {
			logger.Warn("restoring saved mapping", "error", err)
		}
	}
	session.OnMappingChange(func(m automasher.Mapping) {
		if err := pad.SetButtons(m.Buttons()); err != nil {
			logger.Warn("rebinding virtual pad", "error", err)
		}
		current := settings.load()
		current.Backend = cfg.backend
		settings.save(current.withMapping(m))
	})

	rt := &masherRuntime{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		textbox:  textbox,
		pad:      pad,
		engine:   engine,
		session:  session,
		settings: settings,
	}

	if cfg.hotkey != "" {
		hotkey, err := listenPlatformHotkey(cfg.hotkey, func() {
			suspended := !engine.Suspended()
			engine.SetSuspended(suspended)
			logger.Info("hotkey toggled", "suspended", suspended)
		}, logger)
		if err != nil {
			logger.Warn("hotkey unavailable", "combo", cfg.hotkey, "error", err)
		} else {
			rt.hotkey = hotkey
		}
	}

	engine.Start()
	logger.Info("masher running",
		"press", cfg.pressDuration(),
		"release", cfg.releaseDuration(),
		"poll", cfg.pollInterval(),
		"mapping_complete", mapping.Complete(),
	)
	return rt, nil
}

// applyDutyCycle changes the mash timing live and persists it.
func (rt *masherRuntime) applyDutyCycle(pressMS, releaseMS float64) error {
	press := time.Duration(pressMS * float64(time.Millisecond))
	release := time.Duration(releaseMS * float64(time.Millisecond))
	if err := rt.engine.SetDutyCycle(press, release); err != nil {
		return err
	}

	saved := rt.settings.load()
	saved.PressMS = pressMS
	saved.ReleaseMS = releaseMS
	saved.Backend = rt.cfg.backend
	rt.settings.save(saved)
	return nil
}

// Stop tears the runtime down in dependency order: the engine first so
// it releases and closes the pad, then the inputs.
func (rt *masherRuntime) Stop() {
	if rt.hotkey != nil {
		rt.hotkey.Stop()
	}
	rt.session.CancelCapture()
	rt.engine.Stop()
	rt.source.Close()
	rt.textbox.Close()
}
