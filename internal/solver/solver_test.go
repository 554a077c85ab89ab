package solver

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/mods"
)

type testPkg struct {
	name    mods.Name
	version *semver.Version
	deps    []mods.Dependency
}

func (p testPkg) PackageName() mods.Name                { return p.name }
func (p testPkg) PackageVersion() *semver.Version        { return p.version }
func (p testPkg) PackageDependencies() []mods.Dependency { return p.deps }

func ver(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	if err != nil {
		t.Fatalf("semver.NewVersion(%q): %v", s, err)
	}
	return v
}

func constraint(t *testing.T, s string) *semver.Constraints {
	t.Helper()
	c, err := semver.NewConstraint(s)
	if err != nil {
		t.Fatalf("semver.NewConstraint(%q): %v", s, err)
	}
	return c
}

func TestSolvePicksHighestSatisfyingRequiredDependency(t *testing.T) {
	candidates := []testPkg{
		{name: "library", version: ver(t, "0.9.0")},
		{name: "library", version: ver(t, "1.0.0")},
		{name: "mod", version: ver(t, "1.0.0"), deps: []mods.Dependency{
			{Name: "library", Kind: mods.DependencyRequired, Requirement: constraint(t, ">=1.0.0")},
		}},
	}

	solution, err := Solve(candidates, mods.Requirements{"mod": nil})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	lib, ok := solution["library"]
	if !ok {
		t.Fatal("expected library in solution")
	}
	if !lib.version.Equal(ver(t, "1.0.0")) {
		t.Errorf("library version = %s, want 1.0.0", lib.version)
	}
	if _, ok := solution["mod"]; !ok {
		t.Error("expected mod in solution")
	}
}

func TestSolveNoPackagesMeetRequirements(t *testing.T) {
	candidates := []testPkg{
		{name: "library", version: ver(t, "1.0.0")},
	}

	_, err := Solve(candidates, mods.Requirements{"nonexistent": nil})
	var target *ErrNoPackagesMeetRequirements
	if !errors.As(err, &target) {
		t.Fatalf("expected ErrNoPackagesMeetRequirements, got %v", err)
	}
}

func TestSolveExcludesVersionExcludedByIncompatibleDependency(t *testing.T) {
	candidates := []testPkg{
		{name: "b", version: ver(t, "1.0.0")},
		{name: "b", version: ver(t, "2.0.0")},
		{name: "a", version: ver(t, "1.0.0"), deps: []mods.Dependency{
			{Name: "b", Kind: mods.DependencyRequired, Requirement: constraint(t, "<2.0.0")},
			{Name: "b", Kind: mods.DependencyIncompatible, Requirement: constraint(t, ">=2.0.0")},
		}},
	}

	solution, err := Solve(candidates, mods.Requirements{"a": nil})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	b, ok := solution["b"]
	if !ok {
		t.Fatal("expected b in solution")
	}
	if !b.version.Equal(ver(t, "1.0.0")) {
		t.Errorf("b version = %s, want 1.0.0 (2.0.0 is incompatible with a)", b.version)
	}
}

func TestSolveOptionalDependencyOnlyAcceptsMatchingVersion(t *testing.T) {
	candidates := []testPkg{
		{name: "c", version: ver(t, "0.5.0")},
		{name: "c", version: ver(t, "1.5.0")},
		{name: "a", version: ver(t, "1.0.0"), deps: []mods.Dependency{
			{Name: "c", Kind: mods.DependencyOptional, Requirement: constraint(t, ">=1.0.0")},
		}},
	}

	solution, err := Solve(candidates, mods.Requirements{"a": nil})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if c, ok := solution["c"]; ok && !c.version.Equal(ver(t, "1.5.0")) {
		t.Errorf("c version = %s, want 1.5.0 if present at all", c.version)
	}
}

func TestSolveSameNameCandidatesConflict(t *testing.T) {
	candidates := []testPkg{
		{name: "mod", version: ver(t, "1.0.0")},
		{name: "mod", version: ver(t, "2.0.0")},
	}

	solution, err := Solve(candidates, mods.Requirements{"mod": nil})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(solution) != 1 {
		t.Fatalf("expected exactly one version of mod selected, got %d", len(solution))
	}
	if !solution["mod"].version.Equal(ver(t, "2.0.0")) {
		t.Errorf("mod version = %s, want 2.0.0 (highest satisfying version)", solution["mod"].version)
	}
}

func TestSolveBothRequiresAndConflicts(t *testing.T) {
	candidates := []testPkg{
		{name: "b", version: ver(t, "1.0.0")},
		{name: "a", version: ver(t, "1.0.0"), deps: []mods.Dependency{
			{Name: "b", Kind: mods.DependencyRequired, Requirement: nil},
			{Name: "b", Kind: mods.DependencyIncompatible, Requirement: nil},
		}},
	}

	_, err := Solve(candidates, mods.Requirements{"a": nil})
	var target *ErrBothRequiresAndConflicts
	if !errors.As(err, &target) {
		t.Fatalf("expected ErrBothRequiresAndConflicts, got %v", err)
	}
}
