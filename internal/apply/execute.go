package apply

import (
	"context"
	"crypto/sha1" // #nosec G401 - SHA-1 is mandated by the Mod Portal API's release checksum.
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
	"factorio-mods-cli/internal/registry"
)

// Print renders diff the way the teacher's own update flow prints a
// planned set of changes: upgrades first, then removals, then new
// installs.
func Print(diff Diff) {
	if len(diff.ToUpgrade) > 0 {
		pterm.Println()
		pterm.Println("The following mods will be upgraded:")
		for _, u := range diff.ToUpgrade {
			pterm.Printf("    %s %s -> %s\n", u.Name, u.From, u.To)
		}
	}

	if len(diff.ToUninstall) > 0 {
		pterm.Println()
		pterm.Println("The following mods will be removed:")
		for _, im := range diff.ToUninstall {
			pterm.Printf("    %s %s\n", im.Info.Name, im.Info.Version)
		}
	}

	if len(diff.ToInstall) > 0 {
		pterm.Println()
		pterm.Println("The following mods will be installed:")
		for _, r := range diff.ToInstall {
			pterm.Printf("    %s %s\n", r.Name, r.Release.Version)
		}
	}

	pterm.Println()
	if diff.Empty() {
		pterm.Info.Println("Nothing to do.")
	}
}

// Execute removes every InstalledMod in diff.ToUninstall and downloads
// every release in diff.ToInstall into inst's mods directory,
// downloads running concurrently and unbounded, mirroring the
// original's FuturesUnordered::try_for_each_concurrent(None, ...).
func Execute(ctx context.Context, inst *local.Installation, client *registry.Client, creds mods.UserCredentials, diff Diff) error {
	modsDirectory := inst.ModsDirectory()
	if err := os.MkdirAll(modsDirectory, 0o755); err != nil {
		return fmt.Errorf("creating mods directory %s: %w", modsDirectory, err)
	}
	modsDirectoryCanonical, err := filepath.EvalSymlinks(modsDirectory)
	if err != nil {
		return fmt.Errorf("canonicalizing %s: %w", modsDirectory, err)
	}

	for _, im := range diff.ToUninstall {
		switch im.Packaging {
		case local.PackagingZipped:
			pterm.Info.Printf("Removing %s %s ... removing file %s\n", im.Info.Name, im.Info.Version, im.Path)
			if err := os.Remove(im.Path); err != nil {
				return fmt.Errorf("removing %s: %w", im.Path, err)
			}
		case local.PackagingUnpacked:
			pterm.Info.Printf("Removing %s %s ... removing directory %s\n", im.Info.Name, im.Info.Version, im.Path)
			if err := os.RemoveAll(im.Path); err != nil {
				return fmt.Errorf("removing %s: %w", im.Path, err)
			}
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, nr := range diff.ToInstall {
		nr := nr
		eg.Go(func() error {
			return downloadRelease(egCtx, client, creds, modsDirectory, modsDirectoryCanonical, nr)
		})
	}
	return eg.Wait()
}

// downloadRelease streams release's packaged zip to a ".new"-suffixed
// staging file in modsDirectory, verifies its SHA-1 against the
// portal's reported hash, then atomically renames it into place.
func downloadRelease(ctx context.Context, client *registry.Client, creds mods.UserCredentials, modsDirectory, modsDirectoryCanonical string, nr NamedRelease) error {
	release := nr.Release

	fileName := filepath.Base(filepath.Clean(release.FileName))
	target := filepath.Join(modsDirectory, fileName)
	stagingTarget := target + ".new"

	stagingParent, err := filepath.Abs(filepath.Dir(stagingTarget))
	if err != nil {
		return fmt.Errorf("resolving %s: %w", stagingTarget, err)
	}
	stagingParentResolved := stagingParent
	if resolved, err := filepath.EvalSymlinks(stagingParent); err == nil {
		stagingParentResolved = resolved
	}
	if stagingParentResolved != modsDirectoryCanonical {
		return fmt.Errorf("filename %q is malformed", release.FileName)
	}

	pterm.Info.Printf("Installing %s %s ... downloading to %s\n", nr.Name, release.Version, stagingTarget)

	body, err := client.Download(ctx, release, creds, "")
	if err != nil {
		return fmt.Errorf("downloading %s %s: %w", nr.Name, release.Version, err)
	}
	defer func() { _ = body.Close() }()

	out, err := os.OpenFile(stagingTarget, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s for writing: %w", stagingTarget, err)
	}

	hasher := sha1.New() // #nosec G401
	if _, err := io.Copy(out, io.TeeReader(body, hasher)); err != nil {
		_ = out.Close()
		_ = os.Remove(stagingTarget)
		return fmt.Errorf("writing %s: %w", stagingTarget, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(stagingTarget)
		return fmt.Errorf("flushing %s: %w", stagingTarget, err)
	}

	if release.Sha1 != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); got != release.Sha1 {
			_ = os.Remove(stagingTarget)
			return fmt.Errorf("sha1 mismatch for %s %s: got %s, want %s", nr.Name, release.Version, got, release.Sha1)
		}
	}

	pterm.Info.Printf("Installing %s %s ... renaming %s to %s\n", nr.Name, release.Version, stagingTarget, target)
	if err := os.Rename(stagingTarget, target); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", stagingTarget, target, err)
	}

	pterm.Success.Printf("Installed %s %s\n", nr.Name, release.Version)
	return nil
}
