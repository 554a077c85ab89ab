package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
)

// depGraph is the locally-installed dependency adjacency, built once
// per enable/disable invocation: requires maps a mod to the mods it
// depends on, requiredBy is its transpose.
type depGraph struct {
	requires   map[mods.Name][]mods.Name
	requiredBy map[mods.Name][]mods.Name
}

// buildDepGraph indexes installed's required dependency edges, failing
// if any name is installed more than once (enable/disable can't know
// which copy to act on) or if a required dependency isn't installed at
// all.
func buildDepGraph(installed []local.InstalledMod) (depGraph, error) {
	byName := make(map[mods.Name]local.InstalledMod, len(installed))
	for _, m := range installed {
		if _, dup := byName[m.Info.Name]; dup {
			return depGraph{}, fmt.Errorf("%s is installed more than once", m.Info.Name)
		}
		byName[m.Info.Name] = m
	}

	g := depGraph{requires: map[mods.Name][]mods.Name{}, requiredBy: map[mods.Name][]mods.Name{}}
	for _, m := range installed {
		for _, dep := range m.Info.Dependencies {
			if dep.Kind != mods.DependencyRequired || dep.Name == "base" || mods.IsBuiltIn(dep.Name) {
				continue
			}
			if _, ok := byName[dep.Name]; !ok {
				return depGraph{}, fmt.Errorf("%s requires %s, which is not installed", m.Info.Name, dep.Name)
			}
			g.requires[m.Info.Name] = append(g.requires[m.Info.Name], dep.Name)
			g.requiredBy[dep.Name] = append(g.requiredBy[dep.Name], m.Info.Name)
		}
	}
	return g, nil
}

// closure walks edges breadth-first from every name in roots and
// returns every name reached (including the roots).
func closure(edges map[mods.Name][]mods.Name, roots []mods.Name) []mods.Name {
	seen := map[mods.Name]bool{}
	queue := append([]mods.Name{}, roots...)
	for _, r := range roots {
		seen[r] = true
	}
	var out []mods.Name
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		out = append(out, name)
		for _, next := range edges[name] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out
}

func setEnabledWithClosure(cmd *cobra.Command, args []string, enabled bool) error {
	_, inst, err := loadConfigAndInstallation()
	if err != nil {
		return err
	}
	installed, err := inst.InstalledMods()
	if err != nil {
		return err
	}
	g, err := buildDepGraph(installed)
	if err != nil {
		return err
	}

	roots := make([]mods.Name, len(args))
	for i, a := range args {
		roots[i] = mods.Name(a)
	}

	var names []mods.Name
	if enabled {
		names = closure(g.requires, roots)
	} else {
		names = closure(g.requiredBy, roots)
	}

	if err := inst.SetEnabled(names, enabled); err != nil {
		return err
	}

	verb := "Enabled"
	if !enabled {
		verb = "Disabled"
	}
	pterm.Success.Printf("%s: %v\n", verb, names)
	return nil
}

var enableCmd = &cobra.Command{
	Use:   "enable NAME...",
	Short: "Enable mods, and everything they require",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabledWithClosure(cmd, args, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable NAME...",
	Short: "Disable mods, and everything that depends on them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabledWithClosure(cmd, args, false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}
