// Package resolve drives the fan-out/fan-in metadata fetch that turns
// a set of user-declared requirements into the candidate pool the
// solver chooses from: it fetches each required mod's metadata from
// the portal, takes each eligible release's dependency list from the
// authoritative info.json packed inside the release's own archive (read
// without downloading the whole file), and follows required dependencies breadth-first
// until no new mod names appear.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"factorio-mods-cli/internal/mods"
	"factorio-mods-cli/internal/rangedzip"
	"factorio-mods-cli/internal/registry"
	"factorio-mods-cli/internal/solver"
	"factorio-mods-cli/internal/zipscan"
)

// concurrentFetches bounds how many mods are fetched from the portal
// at once, the same limit the teacher applies to its own metadata
// hydration pass.
const concurrentFetches = 10

const baseName mods.Name = "base"

// Resolver fetches mod metadata and authoritative info.json content
// needed to compute an installable solution.
type Resolver struct {
	Client      *registry.Client
	Credentials mods.UserCredentials
	GameVersion string
}

// New builds a Resolver bound to one portal client, credential set,
// and running game version.
func New(client *registry.Client, creds mods.UserCredentials, gameVersion string) *Resolver {
	return &Resolver{Client: client, Credentials: creds, GameVersion: gameVersion}
}

// candidate adapts both a real release and the synthetic "base"
// package (standing in for the running game's own version) to
// mods.Installable so both can be solved over uniformly.
type candidate struct {
	name    mods.Name
	version *semver.Version
	deps    []mods.Dependency
	release *mods.Release // nil for the synthetic base candidate
}

func (c candidate) PackageName() mods.Name                { return c.name }
func (c candidate) PackageVersion() *semver.Version        { return c.version }
func (c candidate) PackageDependencies() []mods.Dependency { return c.deps }

// Resolve fetches metadata for every name in reqs, and transitively for
// every mod any candidate release requires, then returns the best
// mutually compatible combination. The returned map never contains
// "base". reqs is not modified.
func (r *Resolver) Resolve(ctx context.Context, reqs mods.Requirements) (map[mods.Name]mods.Release, error) {
	baseVersion, err := mods.ParseVersion(r.GameVersion)
	if err != nil {
		return nil, fmt.Errorf("parsing game version %q: %w", r.GameVersion, err)
	}
	baseConstraint, err := semver.NewConstraint("=" + baseVersion.String())
	if err != nil {
		return nil, fmt.Errorf("building base version constraint: %w", err)
	}

	solverReqs := mods.Requirements{baseName: baseConstraint}
	for name, req := range reqs {
		if name == baseName {
			continue
		}
		solverReqs[name] = req
	}

	candidatesByName := map[mods.Name][]candidate{
		baseName: {{name: baseName, version: baseVersion}},
	}

	seen := map[mods.Name]bool{baseName: true}
	var frontier []mods.Name
	for name := range solverReqs {
		if name == baseName {
			continue
		}
		seen[name] = true
		frontier = append(frontier, name)
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	for len(frontier) > 0 {
		type fetchResult struct {
			name  mods.Name
			cands []candidate
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(concurrentFetches)

		var mu sync.Mutex
		results := make([]fetchResult, 0, len(frontier))

		for _, name := range frontier {
			eg.Go(func() error {
				cands, err := r.fetchModCandidates(egCtx, name)
				if err != nil {
					return fmt.Errorf("fetching %s: %w", name, err)
				}
				mu.Lock()
				results = append(results, fetchResult{name: name, cands: cands})
				mu.Unlock()
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return nil, err
		}

		nextSet := map[mods.Name]bool{}
		for _, res := range results {
			candidatesByName[res.name] = res.cands
			for _, c := range res.cands {
				for _, dep := range c.deps {
					if dep.Kind != mods.DependencyRequired || dep.Name == baseName || mods.IsBuiltIn(dep.Name) {
						continue
					}
					if !seen[dep.Name] {
						seen[dep.Name] = true
						nextSet[dep.Name] = true
					}
				}
			}
		}

		frontier = frontier[:0]
		for name := range nextSet {
			frontier = append(frontier, name)
		}
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })
	}

	var all []candidate
	for _, cands := range candidatesByName {
		all = append(all, cands...)
	}

	solution, err := solver.Solve(all, solverReqs)
	if err != nil {
		return nil, err
	}
	if solution == nil {
		return nil, errors.New("no solution found satisfying the given requirements")
	}

	out := make(map[mods.Name]mods.Release, len(solution))
	for name, c := range solution {
		if name == baseName || c.release == nil {
			continue
		}
		out[name] = *c.release
	}
	return out, nil
}

// fetchModCandidates retrieves mod metadata from the portal and, for
// every release matching the running game version, builds a candidate
// whose dependencies come from the release archive's own info.json
// rather than from the portal's reported list.
func (r *Resolver) fetchModCandidates(ctx context.Context, name mods.Name) ([]candidate, error) {
	mod, err := r.Client.Get(ctx, name)
	if err != nil {
		var rerr *registry.Error
		if errors.As(err, &rerr) && rerr.Kind == registry.KindNotFound {
			return nil, nil
		}
		return nil, err
	}

	var out []candidate
	for i := range mod.Releases {
		release := mod.Releases[i]
		if !mods.FactorioVersionMatch(r.GameVersion, release.Info.FactorioVersion) {
			continue
		}

		info, err := r.fetchAuthoritativeInfo(ctx, release)
		if err != nil {
			return nil, fmt.Errorf("reading info.json for %s %s: %w", name, release.Version, err)
		}

		out = append(out, candidate{
			name:    name,
			version: release.Version,
			deps:    info.Dependencies,
			release: &release,
		})
	}
	return out, nil
}

// fetchAuthoritativeInfo reads release's packaged info.json through a
// ranged HTTP reader, touching only the central directory and the
// info.json entry rather than the whole archive.
func (r *Resolver) fetchAuthoritativeInfo(ctx context.Context, release mods.Release) (mods.ReleaseInfo, error) {
	size, err := r.Client.GetFileSize(ctx, release, r.Credentials)
	if err != nil {
		return mods.ReleaseInfo{}, err
	}

	reader, err := rangedzip.NewReader(ctx, r.Client.ReleaseFetcher(release, r.Credentials), size)
	if err != nil {
		return mods.ReleaseInfo{}, err
	}

	raw, err := zipscan.FindInfoJSON(reader)
	if err != nil {
		return mods.ReleaseInfo{}, err
	}

	return parseInfoJSON(raw)
}

type wireInfoJSON struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Title           string   `json:"title"`
	FactorioVersion string   `json:"factorio_version"`
	Dependencies    []string `json:"dependencies"`
}

func parseInfoJSON(raw []byte) (mods.ReleaseInfo, error) {
	var w wireInfoJSON
	if err := json.Unmarshal(raw, &w); err != nil {
		return mods.ReleaseInfo{}, fmt.Errorf("decoding info.json: %w", err)
	}

	version, err := mods.ParseVersion(w.Version)
	if err != nil {
		return mods.ReleaseInfo{}, fmt.Errorf("parsing version %q: %w", w.Version, err)
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
		FactorioVersion: w.FactorioVersion,
		Dependencies:    deps,
	}, nil
}
