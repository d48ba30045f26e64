package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Default listen addresses.
const (
	DefaultHTTPAddr = ":8080"
	DefaultGRPCAddr = ":9090"
)

// DefaultConfigPath returns the default path for DLRSHIM config directory.
func DefaultConfigPath() string {
	return defaultConfigPath(runtime.GOOS)
}

func defaultConfigPath(goos string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "dlrshim", "config")
	}

	switch goos {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "dlrshim")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "dlrshim")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "dlrshim")
		}
		return filepath.Join(home, ".config", "dlrshim")
	}
}

// DefaultModelsPath returns the default path for DLRSHIM models directory.
func DefaultModelsPath() string {
	return defaultModelsPath(runtime.GOOS)
}

func defaultModelsPath(goos string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "dlrshim", "models")
	}

	switch goos {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "dlrshim", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "dlrshim", "models")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "dlrshim", "models")
		}
		return filepath.Join(home, ".cache", "dlrshim", "models")
	}
}
