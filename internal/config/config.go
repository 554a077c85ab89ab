// Package config persists the CLI's per-user settings: where the
// Factorio install and user directory live, and the set of mods (and
// version requirements) the user has asked to track. It also knows the
// conventional search paths for a Steam install when nothing has been
// configured yet.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/mods"
)

// Config is the CLI's persisted state: install/user directory overrides
// (empty means "search for it") and the mods the user wants tracked.
type Config struct {
	path string

	InstallDirectory string
	UserDirectory    string
	Mods             map[mods.Name]*semver.Constraints
}

// storedConfig is the on-disk JSON shape, versioned the way the config
// file itself is versioned, so a future format change can add a V2
// without breaking existing files.
type storedConfig struct {
	Version          string            `json:"version"`
	InstallDirectory string            `json:"install_directory,omitempty"`
	UserDirectory    string            `json:"user_directory,omitempty"`
	Mods             map[string]string `json:"mods,omitempty"`
}

// DefaultPath returns the conventional location of the config file
// under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not derive path to config directory: %w", err)
	}
	return filepath.Join(dir, "fac", "config.json"), nil
}

// Load reads the config file at path, or returns an empty Config if it
// doesn't exist yet. A zero path uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{path: path, Mods: map[mods.Name]*semver.Constraints{}}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("could not read config file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var stored storedConfig
	if err := json.NewDecoder(f).Decode(&stored); err != nil {
		return nil, fmt.Errorf("could not parse JSON file %s: %w", path, err)
	}

	cfg.InstallDirectory = stored.InstallDirectory
	cfg.UserDirectory = stored.UserDirectory
	for name, req := range stored.Mods {
		constraints, err := semver.NewConstraint(req)
		if err != nil {
			return nil, fmt.Errorf("parsing requirement %q for mod %q: %w", req, name, err)
		}
		cfg.Mods[mods.Name(name)] = constraints
	}

	return cfg, nil
}

// Save writes cfg back to its path, creating the parent directory if
// necessary.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", filepath.Dir(c.path), err)
	}

	stored := storedConfig{
		Version:          "v1",
		InstallDirectory: c.InstallDirectory,
		UserDirectory:    c.UserDirectory,
		Mods:             make(map[string]string, len(c.Mods)),
	}
	names := make([]string, 0, len(c.Mods))
	for name := range c.Mods {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		req := "*"
		if constraint := c.Mods[mods.Name(name)]; constraint != nil {
			req = constraint.String()
		}
		stored.Mods[name] = req
	}

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("could not create config file %s: %w", c.path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stored); err != nil {
		return fmt.Errorf("could not write to config file %s: %w", c.path, err)
	}
	return nil
}

// installSearchPaths lists the conventional Steam install locations
// checked, in order, when InstallDirectory hasn't been configured.
func installSearchPaths() []string {
	var paths []string

	if runtime.GOOS == "windows" {
		for _, env := range []string{"ProgramW6432", "ProgramFiles"} {
			if v := os.Getenv(env); v != "" {
				paths = append(paths, filepath.Join(v, "Steam", "steamapps", "common", "Factorio"))
			}
		}
		return paths
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".steam", "steam", "steamapps", "common", "Factorio"))
	}
	if dataHome, err := userDataDir(); err == nil {
		paths = append(paths, filepath.Join(dataHome, "Steam", "steamapps", "common", "Factorio"))
	}
	return paths
}

// userSearchPaths lists the conventional Factorio user directory
// locations checked when UserDirectory hasn't been configured.
func userSearchPaths() []string {
	if runtime.GOOS == "windows" {
		if dataDir, err := os.UserConfigDir(); err == nil {
			return []string{filepath.Join(dataDir, "Factorio")}
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		return []string{filepath.Join(home, ".factorio")}
	}
	return nil
}

// userDataDir approximates XDG_DATA_HOME for the non-Windows Steam
// search path: $XDG_DATA_HOME, falling back to ~/.local/share.
func userDataDir() (string, error) {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// ResolveInstallDirectory returns InstallDirectory if set, otherwise the
// first search path containing a data/base/info.json.
func (c *Config) ResolveInstallDirectory() (string, error) {
	if c.InstallDirectory != "" {
		return c.InstallDirectory, nil
	}
	for _, path := range installSearchPaths() {
		if _, err := os.Stat(filepath.Join(path, "data", "base", "info.json")); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("could not find a Factorio install; pass --install-directory or configure one")
}

// ResolveUserDirectory returns UserDirectory if set, otherwise the first
// search path containing both mods/mod-list.json and player-data.json.
func (c *Config) ResolveUserDirectory() (string, error) {
	if c.UserDirectory != "" {
		return c.UserDirectory, nil
	}
	for _, path := range userSearchPaths() {
		modList := filepath.Join(path, "mods", "mod-list.json")
		playerData := filepath.Join(path, "player-data.json")
		if _, err := os.Stat(modList); err != nil {
			continue
		}
		if _, err := os.Stat(playerData); err != nil {
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("could not find a Factorio user directory; pass --user-directory or configure one")
}
