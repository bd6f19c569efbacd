package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for mactime.
type Config struct {
	Input      InputConfig      `toml:"input"`
	Time       TimeConfig       `toml:"time"`
	Output     OutputConfig     `toml:"output"`
	Encryption EncryptionConfig `toml:"encryption"`
	Vault      VaultConfig      `toml:"vault"`
	Log        LogConfig        `toml:"log"`
}

// InputConfig describes where the bodyfile comes from.
type InputConfig struct {
	Path   string `toml:"path"`   // "-" reads stdin
	Strict bool   `toml:"strict"` // abort on the first malformed line
}

// TimeConfig names the zones timestamps are interpreted in and rendered in.
type TimeConfig struct {
	From string `toml:"from"` // zone the bodyfile's wall clock was recorded in
	To   string `toml:"to"`   // zone the timeline is rendered in
}

// OutputConfig selects the timeline format and destination.
type OutputConfig struct {
	Format             string `toml:"format"` // "txt", "csv", "json" or "sqlite"
	Path               string `toml:"path"`   // empty or "-" writes stdout
	KeepNameCollisions bool   `toml:"keep_name_collisions"`
}

// EncryptionConfig holds paths to the age key pair used to protect output.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	Enabled        bool   `toml:"enabled"`
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for the vault that finished timelines
// are uploaded to. The Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "", "memory", "s3" or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// Enabled reports whether a vault is configured at all.
func (v VaultConfig) Enabled() bool {
	return v.Type != ""
}

// LogConfig controls diagnostics. Diagnostics never go to the timeline.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn" (default) or "error"
	Dir   string `toml:"dir"`   // when set, also log to <dir>/mactime.log
}

// NewConfig returns the defaults, with key paths under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		Input: InputConfig{Path: "-"},
		Time:  TimeConfig{From: "UTC", To: "UTC"},
		Output: OutputConfig{
			Format: "txt",
			Path:   "-",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "mactime.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "mactime.key"),
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader on top of defaults.
func (m *Manager) Read(r io.Reader, defaults *Config) (*Config, error) {
	cfg := *defaults
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path on top of defaults. A missing file
// yields the defaults.
func ReadFromFile(path string, defaults *Config) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := *defaults
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f, defaults)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
