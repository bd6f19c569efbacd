package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables read by GetDefaults and LoadEnvFile.
const (
	EnvConfigPath = "MACTIME_CONFIG_PATH"
	EnvHome       = "MACTIME_HOME"
	EnvFile       = "MACTIME_ENV_FILE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - MACTIME_CONFIG_PATH: config file location (default: ~/.config/mactime.toml)
//   - MACTIME_HOME: base directory for keys and logs (default: ~/.local/share/mactime)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// LoadEnvFile loads variables from the file named by MACTIME_ENV_FILE, if
// any. Variables already set in the environment are left alone.
func LoadEnvFile() error {
	path := os.Getenv(EnvFile)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "mactime.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "mactime"), nil
}
