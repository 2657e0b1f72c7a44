// Package config loads and persists the addon's JSON settings file using
// an atomic write-temp-then-rename pattern.
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ServerSettings describes the addon's own HTTP listener.
type ServerSettings struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	PublicBaseURL string `json:"publicBaseUrl"`
}

// ProviderSettings is one subtitle provider's enable flag and credentials.
type ProviderSettings struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// GeminiSettings configures the Translation Engine's LLM backend.
type GeminiSettings struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// TranslationCacheSettings holds the settings.json values for the permanent
// TRANSLATION partition. No component reads them: permanent entries are
// always written with no TTL.
type TranslationCacheSettings struct {
	Enabled    bool `json:"enabled"`
	DurationHr int  `json:"durationHours"`
	Persistent bool `json:"persistent"`
}

// BypassCacheConfig holds the settings.json values for the user-scoped
// BYPASS partition. No component reads them: bypass mode is switched by
// Settings.BypassCache, and bypass entries always get a 12-hour TTL.
type BypassCacheConfig struct {
	Enabled    bool `json:"enabled"`
	DurationHr int  `json:"durationHours"`
}

// LogConfig configures lumberjack-backed log file rotation.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// Settings is the addon's entire persisted configuration.
type Settings struct {
	Server ServerSettings `json:"server"`

	SourceLanguages []string `json:"sourceLanguages"`
	TargetLanguages []string `json:"targetLanguages"`

	SubtitleProviders map[string]ProviderSettings `json:"subtitleProviders"`
	SubtitleProviderTimeoutSec int                `json:"subtitleProviderTimeoutSeconds"`

	Gemini GeminiSettings `json:"gemini"`

	TranslationCache TranslationCacheSettings `json:"translationCache"`
	BypassCache      bool                     `json:"bypassCache"`
	BypassCacheConfig BypassCacheConfig       `json:"bypassCacheConfig"`

	MinSubtitleSizeBytes            int  `json:"minSubtitleSizeBytes"`
	EnableSeasonPacks               bool `json:"enableSeasonPacks"`
	ExcludeHearingImpairedSubtitles bool `json:"excludeHearingImpairedSubtitles"`

	EnableSyncAction      bool `json:"enableSyncAction"`
	EnableTranslateAction bool `json:"enableTranslateAction"`

	CacheDirectory string `json:"cacheDirectory"`

	Log LogConfig `json:"log"`

	// ConfigHash is the stored user identity for bypass/partial cache
	// scoping. The HTTP handlers do not read it: they take the user hash
	// from each request's __configHash query parameter.
	ConfigHash string `json:"__configHash,omitempty"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7070, PublicBaseURL: "http://localhost:7070"},
		SourceLanguages: []string{"eng"},
		TargetLanguages: []string{},
		SubtitleProviders: map[string]ProviderSettings{
			"opensubtitles": {Enabled: true},
			"subdl":         {Enabled: false},
			"subsource":     {Enabled: false},
		},
		SubtitleProviderTimeoutSec: 12,
		Gemini:                     GeminiSettings{Model: "gemini-2.0-flash"},
		TranslationCache:           TranslationCacheSettings{Enabled: true, DurationHr: 0, Persistent: true},
		BypassCache:                false,
		BypassCacheConfig:          BypassCacheConfig{Enabled: false, DurationHr: 12},
		MinSubtitleSizeBytes:       200,
		EnableSeasonPacks:          true,
		EnableSyncAction:           true,
		EnableTranslateAction:      true,
		CacheDirectory:             "cache/subtitles",
		Log: LogConfig{
			File:       "cache/logs/subaddon.log",
			Level:      "info",
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists Settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk, creating it with defaults on first
// run.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	if s.SubtitleProviders == nil {
		s.SubtitleProviders = DefaultSettings().SubtitleProviders
	}
	return s, nil
}

// Save writes settings to disk atomically (temp file + rename).
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
