// Package sqlitepath locates the dragon SQLite database.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bochendong/dragon-continue/pkg/dotdir"
)

// ResolveSQLitePath returns the database path to open. An explicit override
// wins, then DRAGON_SQLITE, then the first existing candidate file. When
// nothing exists yet the path inside the resolved .dragon/ directory is
// returned so the database is created there.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("DRAGON_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates(configDir) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return dotdir.NewManager().File(configDir, dotdir.DatabaseFile)
}

func sqliteCandidates(configDir string) []string {
	var candidates []string
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, dotdir.DatabaseFile))
	}

	candidates = append(candidates,
		dotdir.DatabaseFile,
		filepath.Join(".dragon", dotdir.DatabaseFile),
	)

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".dragon", dotdir.DatabaseFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "dragon", dotdir.DatabaseFile))
	}

	return candidates
}
