// Package sqlitepath resolves the recall SQLite database location from
// flags, environment variables and conventional on-disk locations.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("RECALL_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("RECALL_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find recall SQLite database; pass --sqlite")
}

func sqliteCandidates() []string {
	candidates := []string{
		"recall.db",
		"recall.sqlite",
		filepath.Join(".recall", "recall.db"),
		filepath.Join(".recall", "recall.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".recall", "recall.db"),
			filepath.Join(home, ".recall", "recall.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "recall", "recall.db"),
			filepath.Join(xdgHome, "recall", "recall.sqlite"),
		}, candidates...)
	}

	return candidates
}
