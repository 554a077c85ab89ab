package mods

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NormalizeVersion fixes up a version string the way the Mod Portal's
// own data occasionally needs it fixed: each dot-separated component
// has its leading and trailing zero runs stripped, except that the
// first component keeps a single leading zero if it had one (Factorio's
// "0.x" versions stay "0.x", they don't collapse to "x"). Applying it
// twice gives the same result as applying it once.
func NormalizeVersion(s string) string {
	parts := strings.Split(s, ".")
	out := make([]string, len(parts))
	for i, part := range parts {
		var trimmed string
		if i == 0 && len(part) > 0 && part[0] == '0' {
			trimmed = "0" + strings.Trim(part, "0")
		} else {
			trimmed = strings.Trim(part, "0")
		}
		if trimmed == "" {
			trimmed = "0"
		}
		out[i] = trimmed
	}
	return strings.Join(out, ".")
}

// ParseVersion normalizes and parses a release version string.
func ParseVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(NormalizeVersion(s))
	if err != nil {
		return nil, fmt.Errorf("parsing version %q: %w", s, err)
	}
	return v, nil
}

// dependencyRe mirrors the Mod Portal's info.json dependency string
// grammar: an optional kind prefix, a mod name, and an optional
// comparison operator plus version.
var dependencyRe = regexp.MustCompile(`^(?:(?P<prefix>[~!?]|\(\?\)) )?(?P<name>[\w -]+?)(?: (?P<op>>=|<=|>|<|=) (?P<ver>\d+\.\d+\.\d+))?$`)

// ParseDependency parses one entry of a release's info.json
// "dependencies" array.
func ParseDependency(s string) (Dependency, error) {
	s = strings.TrimSpace(s)
	match := dependencyRe.FindStringSubmatch(s)
	if match == nil {
		return Dependency{}, fmt.Errorf("malformed dependency string %q", s)
	}

	groups := make(map[string]string, len(match))
	for i, name := range dependencyRe.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		groups[name] = match[i]
	}

	dep := Dependency{Name: Name(strings.TrimSpace(groups["name"]))}
	switch groups["prefix"] {
	case "!":
		dep.Kind = DependencyIncompatible
	case "?":
		dep.Kind = DependencyOptional
	case "(?)":
		dep.Kind = DependencyHiddenOptional
	case "~", "":
		dep.Kind = DependencyRequired
	}

	if groups["op"] != "" && groups["ver"] != "" {
		constraintStr := groups["op"] + " " + groups["ver"]
		constraint, err := semver.NewConstraint(constraintStr)
		if err != nil {
			return Dependency{}, fmt.Errorf("parsing dependency constraint %q: %w", constraintStr, err)
		}
		dep.Requirement = constraint
	}

	return dep, nil
}

// factorioVersionRe extracts major.minor(.patch) from a loosely
// formatted version string such as a Factorio binary's --version output
// or a release's factorio_version field.
var factorioVersionRe = regexp.MustCompile(`(?P<major>\d+)\.(?P<minor>\d+)(?:\.(?P<patch>\d+))?`)

// FactorioVersionMatch decides whether a release declaring
// factorioVersion is compatible with an installed game reporting
// installed, honoring the legacy rule that Factorio 1.x treats mods
// declaring the old "0.18" branch as compatible.
func FactorioVersionMatch(installed, factorioVersion string) bool {
	modMatch := factorioVersionRe.FindStringSubmatch(factorioVersion)
	instMatch := factorioVersionRe.FindStringSubmatch(installed)
	if modMatch == nil || instMatch == nil {
		return false
	}

	if strings.HasPrefix(installed, "1.") && strings.HasPrefix(factorioVersion, "0.18") {
		return true
	}

	if len(modMatch) > 3 && modMatch[3] != "" && len(instMatch) > 3 {
		return factorioVersion == installed
	}

	return modMatch[1] == instMatch[1] && modMatch[2] == instMatch[2]
}

// builtInMods are shipped with the game itself and are never resolved
// against, or installed from, the Mod Portal.
var builtInMods = map[Name]bool{
	"base":           true,
	"core":           true,
	"space-age":      true,
	"quality":        true,
	"elevated-rails": true,
}

// IsBuiltIn reports whether name is one of the mods bundled with the
// Factorio distribution rather than published on the portal.
func IsBuiltIn(name Name) bool {
	return builtInMods[name]
}
