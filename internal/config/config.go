// Package config handles daemon configuration file management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration
type Config struct {
	// ServerURL is the base URL of the remote music server
	ServerURL string `json:"serverUrl"`

	// CacheDir is where to store local data (catalog cache, etc.)
	CacheDir string `json:"cacheDir"`

	// Audio settings
	Audio AudioConfig `json:"audio"`

	// Behavior settings
	Behavior BehaviorConfig `json:"behavior"`
}

// AudioConfig contains audio-related settings
type AudioConfig struct {
	// SampleRate for audio output (default: 44100)
	SampleRate int `json:"sampleRate"`

	// DefaultVolume level 0.0 - 1.0 (default: 0.8)
	DefaultVolume float64 `json:"defaultVolume"`

	// NormalizationEnabled applies per-track loudness gain when available
	NormalizationEnabled bool `json:"normalizationEnabled"`

	// TargetLUFS is the loudness reference (-14 Spotify, -16 Apple, -23 broadcast)
	TargetLUFS float64 `json:"targetLufs"`

	// LimiterEnabled engages the brick-wall limiter stage
	LimiterEnabled bool `json:"limiterEnabled"`

	// LimiterCeilingDB is the limiter threshold (-1, -2 or -3 dBTP)
	LimiterCeilingDB float64 `json:"limiterCeilingDb"`
}

// BehaviorConfig contains behavior-related settings
type BehaviorConfig struct {
	// ResumeOnStart - rehydrate remote player state and resume position on start
	ResumeOnStart bool `json:"resumeOnStart"`

	// SnapshotIntervalSec - how often the player state is snapshotted to the
	// server (0 disables periodic snapshots)
	SnapshotIntervalSec int `json:"snapshotIntervalSec"`

	// LyricPrefetchCount - how many upcoming queue entries to prefetch lyrics for
	LyricPrefetchCount int `json:"lyricPrefetchCount"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "http://127.0.0.1:8000",
		Audio: AudioConfig{
			SampleRate:           44100,
			DefaultVolume:        0.8,
			NormalizationEnabled: true,
			TargetLUFS:           -14.0,
			LimiterEnabled:       true,
			LimiterCeilingDB:     -1.0,
		},
		Behavior: BehaviorConfig{
			ResumeOnStart:       true,
			SnapshotIntervalSec: 30,
			LyricPrefetchCount:  3,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config file exists
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		// Create default config
		m.config = DefaultConfig()
		if err := m.Save(); err != nil {
			return err
		}
		m.applyEnvOverrides()
		return nil
	}

	// Read existing config
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	// Parse JSON
	config := DefaultConfig() // Start with defaults
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = config
	m.applyEnvOverrides()
	return nil
}

// applyEnvOverrides lets environment variables (possibly loaded from a .env
// file at startup) override the on-disk configuration.
func (m *Manager) applyEnvOverrides() {
	if v := os.Getenv("PLAYERD_SERVER_URL"); v != "" {
		m.config.ServerURL = v
	}
	if v := os.Getenv("PLAYERD_CACHE_DIR"); v != "" {
		m.config.CacheDir = v
	}
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update updates the configuration and saves it
func (m *Manager) Update(config *Config) error {
	m.config = config
	return m.Save()
}
