package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"factorio-mods-cli/internal/apply"
	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
	"factorio-mods-cli/internal/registry"
	"factorio-mods-cli/internal/resolve"
)

// reconcile fetches metadata for reqs, solves for a mutually compatible
// set of releases, prints the resulting plan, and (after confirmation)
// applies it to inst's mods directory. It returns nil on success (including
// when the plan is empty or the user declines), so the caller can persist
// reqs back to config only after a successful run.
func reconcile(ctx context.Context, inst *local.Installation, client *registry.Client, creds mods.UserCredentials, reqs mods.Requirements) error {
	spinner, _ := pterm.DefaultSpinner.Start("Fetching metadata and resolving dependencies...")
	resolver := resolve.New(client, creds, inst.GameVersion)
	solution, err := resolver.Resolve(ctx, reqs)
	if err != nil {
		spinner.Fail("Could not resolve a satisfying set of mods")
		return fmt.Errorf("resolving requirements: %w", err)
	}
	spinner.Success("Dependencies resolved")

	installed, err := inst.InstalledMods()
	if err != nil {
		return fmt.Errorf("reading installed mods: %w", err)
	}

	diff := apply.Compute(solution, installed)
	apply.Print(diff)
	if diff.Empty() {
		return nil
	}

	proceed, err := confirm("Proceed?")
	if err != nil {
		return err
	}
	if !proceed {
		pterm.Info.Println("Aborted, no changes made.")
		return nil
	}

	if err := apply.Execute(ctx, inst, client, creds, diff); err != nil {
		return fmt.Errorf("applying changes: %w", err)
	}
	pterm.Success.Println("Done.")
	return nil
}
