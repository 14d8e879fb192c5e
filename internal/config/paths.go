// Package config loads and saves sitemon settings and resolves its file
// locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appDir         = "sitemon"
	configFileName = "config.yml"
	logFileName    = "sitemon.log"
)

// Paths holds every file location sitemon uses.
type Paths struct {
	ConfigFile string
	DataDir    string
	StatusFile string
	LogFile    string
}

// ResolvePaths returns the XDG locations for the given home directory.
// Under sudo, home should be the invoking user's home so that every
// invocation shares the same files.
func ResolvePaths(home string) (Paths, error) {
	if home != "" && os.Getenv("HOME") != home {
		if err := os.Setenv("HOME", home); err != nil {
			return Paths{}, err
		}
		xdg.Reload()
	}

	configFile, err := xdg.ConfigFile(filepath.Join(appDir, configFileName))
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve config path: %w", err)
	}

	dataDir, err := xdg.DataFile(appDir)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve data path: %w", err)
	}

	return PathsIn(filepath.Dir(configFile), dataDir), nil
}

// PathsIn lays out the files under explicit directories (for testing).
func PathsIn(configDir, dataDir string) Paths {
	return Paths{
		ConfigFile: filepath.Join(configDir, configFileName),
		DataDir:    dataDir,
		StatusFile: filepath.Join(dataDir, "status.json"),
		LogFile:    filepath.Join(dataDir, "log", logFileName),
	}
}
