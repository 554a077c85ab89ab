// Package mods holds the data model shared by the registry client, the
// resolver, the solver, and the local install inspector: mod names,
// versions, version requirements, dependency edges, and the wire-ish
// records describing a mod and one of its releases.
package mods

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Name identifies a mod on the portal and in a local install. It is a
// plain string rather than a validated newtype: the portal itself is
// permissive about what it accepts as a name.
type Name string

// DependencyKind classifies how a dependency constrains solving.
type DependencyKind int

const (
	// DependencyRequired means the named mod must be present and must
	// satisfy Requirement.
	DependencyRequired DependencyKind = iota
	// DependencyOptional means the named mod, if present, must satisfy
	// Requirement, but its absence is not an error.
	DependencyOptional
	// DependencyHiddenOptional is DependencyOptional plus "does not
	// affect load order" (the "(?)" prefix); solving treats it the same
	// as DependencyOptional.
	DependencyHiddenOptional
	// DependencyIncompatible means the named mod must NOT be present,
	// or if present must NOT satisfy Requirement.
	DependencyIncompatible
)

// Dependency is one edge of a mod's declared dependency list, as found
// in a release's info.json "dependencies" array.
type Dependency struct {
	Name       Name
	Kind       DependencyKind
	Requirement *semver.Constraints // nil means "any version"
}

// String renders the dependency back roughly in info.json form, used in
// error messages and the "show" output.
func (d Dependency) String() string {
	prefix := ""
	switch d.Kind {
	case DependencyOptional:
		prefix = "? "
	case DependencyHiddenOptional:
		prefix = "(?) "
	case DependencyIncompatible:
		prefix = "! "
	}
	if d.Requirement == nil {
		return fmt.Sprintf("%s%s", prefix, d.Name)
	}
	return fmt.Sprintf("%s%s %s", prefix, d.Name, d.Requirement.String())
}

// ReleaseInfo is the subset of a release's packaged info.json consulted
// by the solver and the resolver: enough to decide whether a release is
// eligible and what it in turn requires.
type ReleaseInfo struct {
	Name            Name
	Title           string
	Version         *semver.Version
	FactorioVersion string
	Dependencies    []Dependency
}

// Release is one versioned, downloadable artifact of a mod, as returned
// by the portal's "full" mod endpoint.
type Release struct {
	Version     *semver.Version
	DownloadURL string
	FileName    string
	FileSize    uint64
	Sha1        string
	Info        ReleaseInfo
}

// Mod is a mod record as returned by the portal's "get" endpoint: full
// metadata plus every release ever published.
type Mod struct {
	Name        Name
	Owner       []string
	Title       string
	Summary     string
	Description string
	Homepage    string
	LicenseName string
	GameVersions []string
	Tags        []string
	Releases    []Release
	Deprecated  bool
}

// LatestFor returns the newest release in m whose FactorioVersion
// matches gameVersion under the legacy 0.18/1.x equivalence, or nil if
// none does.
func (m Mod) LatestFor(gameVersion string) *Release {
	var latest *Release
	for i := range m.Releases {
		rel := &m.Releases[i]
		if !FactorioVersionMatch(gameVersion, rel.Info.FactorioVersion) {
			continue
		}
		if latest == nil || rel.Version.GreaterThan(latest.Version) {
			latest = rel
		}
	}
	return latest
}

// UserCredentials is a factorio.com service account, as persisted in
// player-data.json and accepted by the registry client's query-string
// authentication.
type UserCredentials struct {
	Username string
	Token    string
}

// Installable is the minimal surface the solver needs from a candidate
// package: identity, version, and the dependency edges that constrain
// which other candidates can be selected alongside it.
type Installable interface {
	PackageName() Name
	PackageVersion() *semver.Version
	PackageDependencies() []Dependency
}

// ReleaseInstallable adapts a Release (plus its owning mod name) to the
// solver's Installable interface.
type ReleaseInstallable struct {
	Mod     Name
	Release Release
}

func (r ReleaseInstallable) PackageName() Name                   { return r.Mod }
func (r ReleaseInstallable) PackageVersion() *semver.Version      { return r.Release.Version }
func (r ReleaseInstallable) PackageDependencies() []Dependency    { return r.Release.Info.Dependencies }

// Requirements is the set of user-declared top-level requirements: the
// mods the user wants installed, each with an optional version
// constraint. A nil Constraints value means "any version".
type Requirements map[Name]*semver.Constraints
