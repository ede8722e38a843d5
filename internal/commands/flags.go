package commands

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/core/runlog"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands. It
	// is parsed but not validated.
	Config *config.Config

	// ConfigErr is set when the config file could not be read or parsed
	ConfigErr error

	// RunStore persists one entry per run invocation
	RunStore runlog.Store
}

// LoadedConfig returns the parsed config, or the error that kept it from
// loading.
func (f *Flags) LoadedConfig() (*config.Config, error) {
	if f.ConfigErr != nil {
		return nil, f.ConfigErr
	}
	if f.Config == nil {
		return nil, errors.New("configuration not loaded")
	}
	return f.Config, nil
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "boatpub", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "boatpub")
}
