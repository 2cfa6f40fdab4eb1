package log

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "carechat"

func getDefaultDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Logs", appName), nil
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appName, "logs"), nil
		}
	}

	// Linux: $XDG_STATE_HOME/carechat/logs, else the user config dir.
	if state := os.Getenv("XDG_STATE_HOME"); state != "" && runtime.GOOS == "linux" {
		return filepath.Join(state, appName, "logs"), nil
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, appName, "logs"), nil
}
