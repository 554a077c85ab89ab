package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"factorio-mods-cli/internal/mods"
)

var showCmd = &cobra.Command{
	Use:   "show NAME...",
	Short: "Print full Mod Portal metadata for one or more mods",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := buildRegistryClient()
		if err != nil {
			return err
		}

		var firstErr error
		for _, name := range args {
			m, err := client.Get(ctx, mods.Name(name))
			if err != nil {
				pterm.Error.Printf("%s: %v\n", name, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			printMod(m)
		}
		return firstErr
	},
}

func printMod(m mods.Mod) {
	pterm.DefaultSection.Println(fmt.Sprintf("%s (%s)", m.Title, m.Name))
	pterm.Printf("Author(s):  %s\n", joinOrNone(m.Owner))
	pterm.Printf("Homepage:   %s\n", m.Homepage)
	pterm.Printf("License:    %s\n", m.LicenseName)
	pterm.Printf("Tags:       %s\n", joinOrNone(m.Tags))
	if m.Deprecated {
		pterm.Warning.Println("This mod is deprecated.")
	}
	pterm.Println()
	pterm.Println(m.Summary)
	if m.Description != "" {
		pterm.Println()
		pterm.Println(m.Description)
	}
	pterm.Println()
	pterm.Println("Releases:")
	for _, r := range m.Releases {
		pterm.Printf("    %s (factorio %s)\n", r.Version, r.Info.FactorioVersion)
		for _, dep := range r.Info.Dependencies {
			pterm.Printf("        %s\n", dep.String())
		}
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	out := items[0]
	for _, item := range items[1:] {
		out += ", " + item
	}
	return out
}

func init() {
	rootCmd.AddCommand(showCmd)
}
