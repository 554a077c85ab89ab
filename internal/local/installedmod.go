package local

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/mods"
)

// PackagingKind distinguishes a mod shipped as a zip archive from one
// unpacked into its own directory (the layout a mod's source checkout,
// or a manual developer install, normally takes).
type PackagingKind int

const (
	PackagingZipped PackagingKind = iota
	PackagingUnpacked
)

// InstalledMod is one mod found on disk in the mods directory, along
// with the info.json metadata packed inside it.
type InstalledMod struct {
	Info      mods.ReleaseInfo
	Packaging PackagingKind
	Path      string
}

type wireModInfo struct {
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	Version         string   `json:"version"`
	FactorioVersion string   `json:"factorio_version"`
	Dependencies    []string `json:"dependencies"`
}

func parseWireModInfo(raw []byte) (mods.ReleaseInfo, error) {
	var w wireModInfo
	if err := json.Unmarshal(raw, &w); err != nil {
		return mods.ReleaseInfo{}, fmt.Errorf("decoding info.json: %w", err)
	}

	version, err := mods.ParseVersion(w.Version)
	if err != nil {
		return mods.ReleaseInfo{}, fmt.Errorf("parsing version %q: %w", w.Version, err)
	}

	factorioVersion := w.FactorioVersion
	if factorioVersion == "" {
		// Mods published before info.json carried a
		// factorio_version field default to the 0.12 branch.
		factorioVersion = "0.12"
	}

	deps := make([]mods.Dependency, 0, len(w.Dependencies))
	for _, depStr := range w.Dependencies {
		dep, err := mods.ParseDependency(depStr)
		if err != nil {
			continue
		}
		deps = append(deps, dep)
	}

	return mods.ReleaseInfo{
		Name:            mods.Name(w.Name),
		Title:           w.Title,
		Version:         version,
		FactorioVersion: factorioVersion,
		Dependencies:    deps,
	}, nil
}

// readZippedMod opens path as a zip archive, finds its single top-level
// directory, and parses that directory's info.json.
func readZippedMod(path string) (InstalledMod, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return InstalledMod{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	if len(r.File) == 0 {
		return InstalledMod{}, fmt.Errorf("%s is an empty archive", path)
	}

	toplevel := strings.SplitN(r.File[0].Name, "/", 2)[0]
	infoPath := toplevel + "/info.json"

	for _, f := range r.File {
		if f.Name != infoPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return InstalledMod{}, fmt.Errorf("opening %s in %s: %w", infoPath, path, err)
		}
		defer func() { _ = rc.Close() }()

		raw := make([]byte, f.UncompressedSize64)
		if _, err := io.ReadFull(rc, raw); err != nil {
			return InstalledMod{}, fmt.Errorf("reading %s in %s: %w", infoPath, path, err)
		}

		info, err := parseWireModInfo(raw)
		if err != nil {
			return InstalledMod{}, fmt.Errorf("%s in %s: %w", infoPath, path, err)
		}
		return InstalledMod{Info: info, Packaging: PackagingZipped, Path: path}, nil
	}

	return InstalledMod{}, fmt.Errorf("%s has no top-level info.json", path)
}

// readUnpackedMod reads dir/info.json for a mod laid out as a plain
// directory rather than a zip.
func readUnpackedMod(dir string) (InstalledMod, error) {
	infoPath := filepath.Join(dir, "info.json")
	raw, err := os.ReadFile(infoPath)
	if err != nil {
		return InstalledMod{}, fmt.Errorf("reading %s: %w", infoPath, err)
	}
	info, err := parseWireModInfo(raw)
	if err != nil {
		return InstalledMod{}, fmt.Errorf("%s: %w", infoPath, err)
	}
	return InstalledMod{Info: info, Packaging: PackagingUnpacked, Path: dir}, nil
}

// InstalledMods enumerates every mod found directly under the mods
// directory: zip archives, and subdirectories carrying their own
// info.json. Entries that can't be parsed are skipped rather than
// failing the whole scan, since one corrupt mod shouldn't hide the
// rest.
func (inst *Installation) InstalledMods() ([]InstalledMod, error) {
	entries, err := os.ReadDir(inst.modsDirectory)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", inst.modsDirectory, err)
	}

	var out []InstalledMod
	for _, e := range entries {
		path := filepath.Join(inst.modsDirectory, e.Name())

		if e.IsDir() {
			m, err := readUnpackedMod(path)
			if err != nil {
				continue
			}
			out = append(out, m)
			continue
		}

		if !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		m, err := readZippedMod(path)
		if err != nil {
			continue
		}
		out = append(out, m)
	}

	return out, nil
}

// InstalledVersions indexes InstalledMods by name, collecting every
// installed version (normally there is exactly one, but enable/disable
// needs to detect and refuse the ambiguous case).
func (inst *Installation) InstalledVersions() (map[mods.Name][]*semver.Version, error) {
	installed, err := inst.InstalledMods()
	if err != nil {
		return nil, err
	}
	out := make(map[mods.Name][]*semver.Version, len(installed))
	for _, m := range installed {
		out[m.Info.Name] = append(out[m.Info.Name], m.Info.Version)
	}
	return out, nil
}
