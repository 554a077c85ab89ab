package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/mods"
)

// requirementRe mirrors the original CLI's REQUIREMENT_REGEX: a mod
// name, optionally followed by "@" and a semver constraint string.
var requirementRe = regexp.MustCompile(`^([\w -]+)(?:@(.+))?$`)

// parseRequirementToken parses one "name[@requirement]" CLI argument,
// as accepted by "install" (e.g. "bobinserters", "bobinserters@^1.2.0").
// A bare name means "any version".
func parseRequirementToken(token string) (mods.Name, *semver.Constraints, error) {
	match := requirementRe.FindStringSubmatch(strings.TrimSpace(token))
	if match == nil {
		return "", nil, fmt.Errorf("malformed requirement %q, expected NAME or NAME@REQUIREMENT", token)
	}

	name := mods.Name(match[1])
	if match[2] == "" {
		return name, nil, nil
	}

	constraint, err := semver.NewConstraint(match[2])
	if err != nil {
		return "", nil, fmt.Errorf("malformed version requirement %q for %s: %w", match[2], name, err)
	}
	return name, constraint, nil
}
