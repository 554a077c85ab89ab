// Package solver computes a set of mutually compatible mod releases
// satisfying a set of user-declared requirements. It models candidates
// and their declared dependencies as a small directed graph, prunes
// candidates that can never appear in a valid solution, then picks the
// best surviving combination by exhaustive enumeration.
package solver

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/mods"
)

// ErrBothRequiresAndConflicts is returned when a candidate's declared
// dependencies simultaneously require and conflict with the same other
// candidate, which makes the input data itself contradictory.
type ErrBothRequiresAndConflicts struct {
	Package        mods.Name
	PackageVersion *semver.Version
	Dep            mods.Name
	DepVersion     *semver.Version
}

func (e *ErrBothRequiresAndConflicts) Error() string {
	return fmt.Sprintf("%s %s both requires and conflicts with %s %s", e.Package, e.PackageVersion, e.Dep, e.DepVersion)
}

// ErrNoPackagesMeetRequirements is returned when a name the caller
// required has no surviving candidate at all.
type ErrNoPackagesMeetRequirements struct {
	Name mods.Name
}

func (e *ErrNoPackagesMeetRequirements) Error() string {
	return fmt.Sprintf("no packages found for %s that meet the specified requirements", e.Name)
}

type relation int

const (
	relRequires relation = iota
	relConflicts
)

type neighborKey struct {
	incoming bool
	rel      relation
	j        int
}

// dependencySatisfiedBy reports whether dep is upheld given that the
// named package is (or isn't) present at version, independent of the
// other packages in the solution.
func dependencySatisfiedBy(dep mods.Dependency, present bool, version *semver.Version) bool {
	if dep.Kind == mods.DependencyIncompatible {
		if !present {
			return true
		}
		return !(dep.Requirement == nil || dep.Requirement.Check(version))
	}

	if !present {
		return dep.Kind != mods.DependencyRequired
	}
	return dep.Requirement == nil || dep.Requirement.Check(version)
}

// Solve finds the best combination of candidates that satisfies reqs
// and every candidate's own declared dependencies. It returns a nil map
// and nil error when no combination of the surviving candidates is
// valid; an empty candidate pool with no requirements yields an empty,
// non-nil map.
func Solve[T mods.Installable](candidates []T, reqs mods.Requirements) (map[mods.Name]T, error) {
	n := len(candidates)
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}

	requiresOut := make([][]int, n)
	requiresIn := make([][]int, n)
	conflictsOut := make([][]int, n)
	conflictsIn := make([][]int, n)

	for i := 0; i < n; i++ {
		p1 := candidates[i]
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			p2 := candidates[j]

			if p1.PackageName() == p2.PackageName() {
				conflictsOut[i] = append(conflictsOut[i], j)
				conflictsIn[j] = append(conflictsIn[j], i)
				continue
			}

			requires, conflicts := false, false
			var triggeringDep mods.Dependency
			for _, dep := range p1.PackageDependencies() {
				if dep.Name != p2.PackageName() {
					continue
				}
				ok := dependencySatisfiedBy(dep, true, p2.PackageVersion())
				switch dep.Kind {
				case mods.DependencyRequired:
					if ok {
						requires = true
						triggeringDep = dep
					}
				case mods.DependencyOptional, mods.DependencyHiddenOptional, mods.DependencyIncompatible:
					if !ok {
						conflicts = true
						triggeringDep = dep
					}
				}
			}

			if requires && conflicts {
				return nil, &ErrBothRequiresAndConflicts{
					Package:        p1.PackageName(),
					PackageVersion: p1.PackageVersion(),
					Dep:            triggeringDep.Name,
					DepVersion:     p2.PackageVersion(),
				}
			}
			if requires {
				requiresOut[i] = append(requiresOut[i], j)
				requiresIn[j] = append(requiresIn[j], i)
			} else if conflicts {
				conflictsOut[i] = append(conflictsOut[i], j)
				conflictsIn[j] = append(conflictsIn[j], i)
			}
		}
	}

	names := make([]mods.Name, n)
	for i, c := range candidates {
		names[i] = c.PackageName()
	}

	neighborSet := func(i int) map[neighborKey]bool {
		set := map[neighborKey]bool{}
		add := func(indices []int, incoming bool, rel relation) {
			for _, j := range indices {
				if alive[j] && names[j] != names[i] {
					set[neighborKey{incoming: incoming, rel: rel, j: j}] = true
				}
			}
		}
		add(requiresIn[i], true, relRequires)
		add(requiresOut[i], false, relRequires)
		add(conflictsIn[i], true, relConflicts)
		add(conflictsOut[i], false, relConflicts)
		return set
	}
	setsEqual := func(a, b map[neighborKey]bool) bool {
		if len(a) != len(b) {
			return false
		}
		for k := range a {
			if !b[k] {
				return false
			}
		}
		return true
	}

	for {
		byName := map[mods.Name][]int{}
		for i := 0; i < n; i++ {
			if alive[i] {
				byName[names[i]] = append(byName[names[i]], i)
			}
		}

		for name := range reqs {
			if len(byName[name]) == 0 {
				return nil, &ErrNoPackagesMeetRequirements{Name: name}
			}
		}

		toRemove := map[int]bool{}

		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			pkg := candidates[i]

			var keep bool
			if req, required := reqs[pkg.PackageName()]; required {
				keep = req == nil || req.Check(pkg.PackageVersion())
			} else {
				for _, src := range requiresIn[i] {
					if alive[src] {
						keep = true
						break
					}
				}
			}

			if keep {
				for _, dep := range pkg.PackageDependencies() {
					if dep.Kind != mods.DependencyRequired {
						continue
					}
					satisfied := false
					for _, j := range byName[dep.Name] {
						if dependencySatisfiedBy(dep, true, candidates[j].PackageVersion()) {
							satisfied = true
							break
						}
					}
					if !satisfied {
						keep = false
						break
					}
				}
			}

			if !keep {
				toRemove[i] = true
			}
		}

		if len(toRemove) == 0 {
			for _, indices := range byName {
				for _, i1 := range indices {
					n1 := neighborSet(i1)
					for _, i2 := range indices {
						if i2 <= i1 {
							continue
						}
						n2 := neighborSet(i2)
						if setsEqual(n1, n2) {
							if candidates[i1].PackageVersion().LessThan(candidates[i2].PackageVersion()) {
								toRemove[i1] = true
							} else {
								toRemove[i2] = true
							}
						}
					}
				}
			}
		}

		if len(toRemove) == 0 {
			for name := range reqs {
				var common map[int]bool
				for _, i := range byName[name] {
					conflicts := map[int]bool{}
					for _, j := range conflictsOut[i] {
						if alive[j] {
							conflicts[j] = true
						}
					}
					if common == nil {
						common = conflicts
					} else {
						for k := range common {
							if !conflicts[k] {
								delete(common, k)
							}
						}
					}
				}
				for k := range common {
					toRemove[k] = true
				}
			}
		}

		if len(toRemove) == 0 {
			break
		}
		for i := range toRemove {
			alive[i] = false
		}
	}

	byName := map[mods.Name][]int{}
	for i := 0; i < n; i++ {
		if alive[i] {
			byName[candidates[i].PackageName()] = append(byName[candidates[i].PackageName()], i)
		}
	}

	var sortedNames []mods.Name
	for name := range byName {
		sortedNames = append(sortedNames, name)
	}
	sort.Slice(sortedNames, func(a, b int) bool { return sortedNames[a] < sortedNames[b] })

	const none = -1
	possibilities := make([][]int, len(sortedNames))
	for idx, name := range sortedNames {
		opts := append([]int{}, byName[name]...)
		if _, required := reqs[name]; !required {
			opts = append([]int{none}, opts...)
		}
		possibilities[idx] = opts
	}

	if len(possibilities) == 0 {
		return map[mods.Name]T{}, nil
	}

	compare := func(a, b map[mods.Name]T) int {
		for _, name := range sortedNames {
			pa, oka := a[name]
			pb, okb := b[name]
			if !oka || !okb {
				continue
			}
			if c := pa.PackageVersion().Compare(pb.PackageVersion()); c != 0 {
				return c
			}
		}
		return len(b) - len(a)
	}

	state := make([]int, len(possibilities))
	var best map[mods.Name]T
	first := true

	for {
		if first {
			first = false
		} else if !advance(state, possibilities) {
			break
		}

		solution := map[mods.Name]T{}
		for idx, name := range sortedNames {
			choice := possibilities[idx][state[idx]]
			if choice != none {
				solution[name] = candidates[choice]
			}
		}

		if isValid(solution) && (best == nil || compare(solution, best) > 0) {
			best = solution
		}
	}

	return best, nil
}

func isValid[T mods.Installable](solution map[mods.Name]T) bool {
	for _, pkg := range solution {
		for _, dep := range pkg.PackageDependencies() {
			other, present := solution[dep.Name]
			var version *semver.Version
			if present {
				version = other.PackageVersion()
			}
			if !dependencySatisfiedBy(dep, present, version) {
				return false
			}
		}
	}
	return true
}

// advance steps state to the next combination across possibilities,
// the index-0-fastest odometer the original implementation used.
// It returns false once every combination has been visited.
func advance(state []int, possibilities [][]int) bool {
	for i := 0; i < len(state); i++ {
		state[i]++
		if state[i] < len(possibilities[i]) {
			return true
		}
		state[i] = 0
	}
	return false
}
