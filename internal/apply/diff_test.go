package apply

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	if err != nil {
		t.Fatalf("semver.NewVersion(%q): %v", s, err)
	}
	return v
}

func TestComputeInstallsNewMod(t *testing.T) {
	solution := map[mods.Name]mods.Release{
		"boblibrary": {Version: mustVersion(t, "1.0.0"), Info: mods.ReleaseInfo{Name: "boblibrary", Version: mustVersion(t, "1.0.0")}},
	}

	diff := Compute(solution, nil)

	if len(diff.ToInstall) != 1 || diff.ToInstall[0].Name != "boblibrary" {
		t.Fatalf("expected boblibrary to be installed, got %+v", diff.ToInstall)
	}
	if len(diff.ToUninstall) != 0 {
		t.Errorf("expected nothing to uninstall, got %+v", diff.ToUninstall)
	}
}

func TestComputeLeavesAlreadyInstalledMatchingVersionAlone(t *testing.T) {
	solution := map[mods.Name]mods.Release{
		"boblibrary": {Version: mustVersion(t, "1.0.0"), Info: mods.ReleaseInfo{Name: "boblibrary", Version: mustVersion(t, "1.0.0")}},
	}
	installed := []local.InstalledMod{
		{Info: mods.ReleaseInfo{Name: "boblibrary", Version: mustVersion(t, "1.0.0")}, Path: "/mods/boblibrary_1.0.0.zip"},
	}

	diff := Compute(solution, installed)

	if !diff.Empty() {
		t.Errorf("expected no changes, got %+v", diff)
	}
}

func TestComputeUpgradesMismatchedVersion(t *testing.T) {
	solution := map[mods.Name]mods.Release{
		"boblibrary": {Version: mustVersion(t, "2.0.0"), Info: mods.ReleaseInfo{Name: "boblibrary", Version: mustVersion(t, "2.0.0")}},
	}
	installed := []local.InstalledMod{
		{Info: mods.ReleaseInfo{Name: "boblibrary", Version: mustVersion(t, "1.0.0")}, Path: "/mods/boblibrary_1.0.0.zip"},
	}

	diff := Compute(solution, installed)

	if len(diff.ToUninstall) != 1 || diff.ToUninstall[0].Info.Version.String() != "1.0.0" {
		t.Fatalf("expected old version to be uninstalled, got %+v", diff.ToUninstall)
	}
	if len(diff.ToInstall) != 1 || diff.ToInstall[0].Release.Version.String() != "2.0.0" {
		t.Fatalf("expected new version to be installed, got %+v", diff.ToInstall)
	}
	if len(diff.ToUpgrade) != 1 || diff.ToUpgrade[0].From.String() != "1.0.0" || diff.ToUpgrade[0].To.String() != "2.0.0" {
		t.Fatalf("expected an upgrade entry 1.0.0 -> 2.0.0, got %+v", diff.ToUpgrade)
	}
}

func TestComputeRemovesModNotInSolution(t *testing.T) {
	installed := []local.InstalledMod{
		{Info: mods.ReleaseInfo{Name: "oldmod", Version: mustVersion(t, "1.0.0")}, Path: "/mods/oldmod_1.0.0.zip"},
	}

	diff := Compute(nil, installed)

	if len(diff.ToUninstall) != 1 || diff.ToUninstall[0].Info.Name != "oldmod" {
		t.Fatalf("expected oldmod to be uninstalled, got %+v", diff.ToUninstall)
	}
	if len(diff.ToInstall) != 0 {
		t.Errorf("expected nothing to install, got %+v", diff.ToInstall)
	}
}
