// Package dotdir resolves the .dragon/ directory that holds config.toml,
// credentials.toml and the default SQLite database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".dragon"

	// HomeEnv names a dragon directory explicitly, ahead of ./.dragon.
	HomeEnv = "DRAGON_HOME"

	// DatabaseFile is the default SQLite file name inside the directory.
	DatabaseFile = "dragon.db"
)

// Source records which rule picked the directory.
type Source string

const (
	SourceOverride Source = "flag"
	SourceEnv      Source = "env"
	SourceLocal    Source = "local"
	SourceHome     Source = "home"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to the dragon directory, creating it when
// missing. See Locate for the precedence.
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, _, err := m.Locate(overrideDir)
	return dir, err
}

// Locate resolves and creates the dragon directory and reports where it came
// from:
//  1. overrideDir (--config-dir)
//  2. $DRAGON_HOME
//  3. ./.dragon when it already exists
//  4. ~/.dragon
func (m *Manager) Locate(overrideDir string) (string, Source, error) {
	dir, src, err := m.candidate(overrideDir)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating dragon directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	return abs, src, nil
}

func (m *Manager) candidate(overrideDir string) (string, Source, error) {
	if overrideDir != "" {
		return overrideDir, SourceOverride, nil
	}
	if env := os.Getenv(HomeEnv); env != "" {
		return env, SourceEnv, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("getting current directory: %w", err)
	}
	local := filepath.Join(cwd, dirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, SourceLocal, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), SourceHome, nil
}

// File returns the absolute path of name inside the resolved directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
