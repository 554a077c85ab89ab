// Package apply computes the difference between a solved set of
// releases and what's actually installed, then executes it: removing
// stale installs and downloading new or upgraded ones into the mods
// directory.
package apply

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
)

// NamedRelease pairs a release with the mod name it belongs to, since
// mods.Release on its own doesn't carry one.
type NamedRelease struct {
	Name    mods.Name
	Release mods.Release
}

// Upgrade describes an installed mod whose solved release differs from
// what's on disk, purely for presentation: both the removal (in
// ToUninstall) and the install (in ToInstall) still happen
// independently.
type Upgrade struct {
	Name     mods.Name
	From, To *semver.Version
}

// Diff is the set of filesystem changes needed to bring the mods
// directory in line with a solved set of releases.
type Diff struct {
	ToUninstall []local.InstalledMod
	ToInstall   []NamedRelease
	ToUpgrade   []Upgrade
}

// Empty reports whether applying the diff would be a no-op.
func (d Diff) Empty() bool {
	return len(d.ToUninstall) == 0 && len(d.ToInstall) == 0
}

// Compute decides, for every locally installed mod, whether it should
// be removed (not in solution, or superseded by a different version),
// and for every solved release, whether it needs to be downloaded (not
// already installed at that exact version).
func Compute(solution map[mods.Name]mods.Release, installed []local.InstalledMod) Diff {
	byName := make(map[mods.Name][]local.InstalledMod, len(installed))
	for _, m := range installed {
		byName[m.Info.Name] = append(byName[m.Info.Name], m)
	}

	remaining := make(map[mods.Name]mods.Release, len(solution))
	for name, release := range solution {
		remaining[name] = release
	}

	var toUninstall []local.InstalledMod
	toInstall := make(map[mods.Name]mods.Release)

	names := make([]mods.Name, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		installedMods := byName[name]

		release, wanted := remaining[name]
		if !wanted {
			toUninstall = append(toUninstall, installedMods...)
			continue
		}
		delete(remaining, name)

		alreadyInstalled := false
		for _, im := range installedMods {
			if release.Version.Equal(im.Info.Version) {
				alreadyInstalled = true
			} else {
				toUninstall = append(toUninstall, im)
			}
		}
		if !alreadyInstalled {
			toInstall[name] = release
		}
	}

	for name, release := range remaining {
		toInstall[name] = release
	}

	var upgrades []Upgrade
	for _, im := range toUninstall {
		if release, ok := toInstall[im.Info.Name]; ok {
			upgrades = append(upgrades, Upgrade{Name: im.Info.Name, From: im.Info.Version, To: release.Version})
		}
	}
	sort.Slice(upgrades, func(i, j int) bool {
		if upgrades[i].Name != upgrades[j].Name {
			return upgrades[i].Name < upgrades[j].Name
		}
		return upgrades[i].From.LessThan(upgrades[j].From)
	})

	sort.Slice(toUninstall, func(i, j int) bool {
		if toUninstall[i].Info.Name != toUninstall[j].Info.Name {
			return toUninstall[i].Info.Name < toUninstall[j].Info.Name
		}
		return toUninstall[i].Info.Version.LessThan(toUninstall[j].Info.Version)
	})

	installList := make([]NamedRelease, 0, len(toInstall))
	for name, release := range toInstall {
		installList = append(installList, NamedRelease{Name: name, Release: release})
	}
	sort.Slice(installList, func(i, j int) bool {
		if installList[i].Name != installList[j].Name {
			return installList[i].Name < installList[j].Name
		}
		return installList[i].Release.Version.LessThan(installList[j].Release.Version)
	})

	return Diff{ToUninstall: toUninstall, ToInstall: installList, ToUpgrade: upgrades}
}
