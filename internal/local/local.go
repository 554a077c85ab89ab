// Package local inspects a Factorio game install and its user
// directory: the running game version, the set of locally installed
// mods (packaged or unpacked), mod-list.json enablement state, and the
// service account credentials saved in player-data.json.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"factorio-mods-cli/internal/mods"
)

// Installation is a located, validated pair of a Factorio install
// directory and user directory.
type Installation struct {
	GameVersion string

	modsDirectory      string
	modListPath        string
	playerDataJSONPath string
}

type baseInfo struct {
	Version string `json:"version"`
}

// New validates installDirectory and userDirectory and determines the
// installed game's version from data/base/info.json.
func New(installDirectory, userDirectory string) (*Installation, error) {
	baseInfoPath := filepath.Join(installDirectory, "data", "base", "info.json")
	raw, err := os.ReadFile(baseInfoPath)
	if err != nil {
		return nil, &ErrInstallDirectoryNotFound{Path: installDirectory}
	}

	var info baseInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", baseInfoPath, err)
	}

	modsDirectory := filepath.Join(userDirectory, "mods")
	modListPath := filepath.Join(modsDirectory, "mod-list.json")
	playerDataJSONPath := filepath.Join(userDirectory, "player-data.json")

	if _, err := os.Stat(modListPath); err != nil {
		return nil, &ErrUserDirectoryNotFound{Path: userDirectory}
	}
	if _, err := os.Stat(playerDataJSONPath); err != nil {
		return nil, &ErrUserDirectoryNotFound{Path: userDirectory}
	}

	return &Installation{
		GameVersion:        info.Version,
		modsDirectory:      modsDirectory,
		modListPath:        modListPath,
		playerDataJSONPath: playerDataJSONPath,
	}, nil
}

// ModsDirectory returns the directory release archives are downloaded
// into and scanned out of.
func (inst *Installation) ModsDirectory() string { return inst.modsDirectory }

// CacheDirectory is the same directory InstalledMods scans: Factorio
// has no directory dedicated purely to caching, so the mods directory
// doubles as one.
func (inst *Installation) CacheDirectory() string { return inst.modsDirectory }

// boolOrString decodes a JSON value that is either a bool or a string
// holding "true"/"false", the same leniency mod-list.json's own
// "enabled" field requires.
type boolOrString bool

func (b *boolOrString) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		*b = boolOrString(asBool)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("enabled value is neither a bool nor a string: %s", data)
	}
	switch asString {
	case "true":
		*b = true
	case "false":
		*b = false
	default:
		return fmt.Errorf("enabled string value must be \"true\" or \"false\", got %q", asString)
	}
	return nil
}

type modListEntry struct {
	Name    string       `json:"name"`
	Enabled boolOrString `json:"enabled"`
}

type modList struct {
	Mods []modListEntry `json:"mods"`
}

func (inst *Installation) loadModList() (modList, error) {
	raw, err := os.ReadFile(inst.modListPath)
	if err != nil {
		return modList{}, fmt.Errorf("reading %s: %w", inst.modListPath, err)
	}
	var list modList
	if err := json.Unmarshal(raw, &list); err != nil {
		return modList{}, fmt.Errorf("parsing %s: %w", inst.modListPath, err)
	}
	return list, nil
}

// ModsStatus returns a map of locally-tracked mod name to its enabled
// state, as recorded in mod-list.json.
func (inst *Installation) ModsStatus() (map[mods.Name]bool, error) {
	list, err := inst.loadModList()
	if err != nil {
		return nil, err
	}
	out := make(map[mods.Name]bool, len(list.Mods))
	for _, m := range list.Mods {
		out[mods.Name(m.Name)] = bool(m.Enabled)
	}
	return out, nil
}

// SetEnabled marks every named mod as enabled or disabled in
// mod-list.json, leaving every other tracked mod's status untouched.
func (inst *Installation) SetEnabled(names []mods.Name, enabled bool) error {
	list, err := inst.loadModList()
	if err != nil {
		return err
	}

	status := make(map[mods.Name]bool, len(list.Mods))
	for _, m := range list.Mods {
		status[mods.Name(m.Name)] = bool(m.Enabled)
	}
	for _, name := range names {
		status[name] = enabled
	}

	sorted := make([]mods.Name, 0, len(status))
	for name := range status {
		sorted = append(sorted, name)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := modList{Mods: make([]modListEntry, 0, len(sorted))}
	for _, name := range sorted {
		out.Mods = append(out.Mods, modListEntry{Name: string(name), Enabled: boolOrString(status[name])})
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding mod-list.json: %w", err)
	}
	if err := os.WriteFile(inst.modListPath, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", inst.modListPath, err)
	}
	return nil
}

type playerData struct {
	ServiceUsername string `json:"service-username"`
	ServiceToken    string `json:"service-token"`
}

// UserCredentials reads the service account saved in player-data.json.
// Returns *ErrIncompleteUserCredentials if no usable account is saved.
func (inst *Installation) UserCredentials() (mods.UserCredentials, error) {
	raw, err := os.ReadFile(inst.playerDataJSONPath)
	if err != nil {
		return mods.UserCredentials{}, fmt.Errorf("reading %s: %w", inst.playerDataJSONPath, err)
	}

	var data playerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return mods.UserCredentials{}, fmt.Errorf("parsing %s: %w", inst.playerDataJSONPath, err)
	}

	if data.ServiceUsername == "" {
		return mods.UserCredentials{}, &ErrIncompleteUserCredentials{}
	}
	if data.ServiceToken == "" {
		username := data.ServiceUsername
		return mods.UserCredentials{}, &ErrIncompleteUserCredentials{ExistingUsername: &username}
	}

	return mods.UserCredentials{Username: data.ServiceUsername, Token: data.ServiceToken}, nil
}

// SaveUserCredentials writes creds into player-data.json, preserving
// every other key already in the file (player-data.json carries a great
// deal of state besides the service account, none of which this package
// understands or should discard).
func (inst *Installation) SaveUserCredentials(creds mods.UserCredentials) error {
	raw, err := os.ReadFile(inst.playerDataJSONPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inst.playerDataJSONPath, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", inst.playerDataJSONPath, err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}

	usernameJSON, err := json.Marshal(creds.Username)
	if err != nil {
		return err
	}
	tokenJSON, err := json.Marshal(creds.Token)
	if err != nil {
		return err
	}
	doc["service-username"] = usernameJSON
	doc["service-token"] = tokenJSON

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", inst.playerDataJSONPath, err)
	}
	if err := os.WriteFile(inst.playerDataJSONPath, out, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", inst.playerDataJSONPath, err)
	}
	return nil
}
