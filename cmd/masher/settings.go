package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"masher/internal/core/automasher"
)

// savedSettings is the on-disk shape of ~/.config/masher/settings.json.
// Button names use the canonical names from automasher.ParseButton so
// the file stays readable and survives hand edits.
type savedSettings struct {
	NailButton string  `json:"nail_button,omitempty"`
	JumpButton string  `json:"jump_button,omitempty"`
	HealButton string  `json:"heal_button,omitempty"`
	Backend    string  `json:"backend,omitempty"`
	PressMS    float64 `json:"press_ms,omitempty"`
	ReleaseMS  float64 `json:"release_ms,omitempty"`
}

func (s savedSettings) mapping(logger *slog.Logger) automasher.Mapping {
	names := map[automasher.Action]string{
		automasher.ActionNail: s.NailButton,
		automasher.ActionJump: s.JumpButton,
		automasher.ActionHeal: s.HealButton,
	}

	var buttons [3]automasher.Button
	for i, action := range automasher.Actions() {
		name := names[action]
		if name == "" {
			return automasher.Mapping{}
		}
		button, err := automasher.ParseButton(name)
		if err != nil {
			logger.Warn("ignoring saved mapping", "action", action.String(), "button", name, "error", err)
			return automasher.Mapping{}
		}
		buttons[i] = button
	}

	mapping, err := automasher.NewMapping(buttons[0], buttons[1], buttons[2])
	if err != nil {
		logger.Warn("ignoring saved mapping", "error", err)
		return automasher.Mapping{}
	}
	return mapping
}

func (s savedSettings) withMapping(m automasher.Mapping) savedSettings {
	if nail, ok := m.ButtonFor(automasher.ActionNail); ok {
		s.NailButton = nail.String()
	}
	if jump, ok := m.ButtonFor(automasher.ActionJump); ok {
		s.JumpButton = jump.String()
	}
	if heal, ok := m.ButtonFor(automasher.ActionHeal); ok {
		s.HealButton = heal.String()
	}
	return s
}

type settingsStore struct {
	path   string
	logger *slog.Logger
}

func newSettingsStore(logger *slog.Logger) *settingsStore {
	dir, err := os.UserConfigDir()
	if err != nil {
		logger.Warn("no user config dir, settings will not persist", "error", err)
		return &settingsStore{logger: logger}
	}
	return &settingsStore{
		path:   filepath.Join(dir, "masher", "settings.json"),
		logger: logger,
	}
}

func (s *settingsStore) load() savedSettings {
	var saved savedSettings
	if s.path == "" {
		return saved
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading settings", "path", s.path, "error", err)
		}
		return saved
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		s.logger.Warn("parsing settings", "path", s.path, "error", err)
		return savedSettings{}
	}
	return saved
}

// save writes the settings atomically so a crash mid-write cannot
// corrupt the previous file.
func (s *settingsStore) save(saved savedSettings) {
	if s.path == "" {
		return
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		s.logger.Warn("encoding settings", "error", err)
		return
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("creating settings dir", "path", s.path, "error", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("writing settings", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("saving settings", "path", s.path, "error", err)
	}
}
