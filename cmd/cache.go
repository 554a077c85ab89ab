package cmd

import (
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the downloaded release archives",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every entry found in the cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, inst, err := loadConfigAndInstallation()
		if err != nil {
			return err
		}

		installed, err := inst.InstalledMods()
		if err != nil {
			return err
		}
		sort.Slice(installed, func(i, j int) bool { return installed[i].Info.Name < installed[j].Info.Name })

		if len(installed) == 0 {
			pterm.Info.Println("Cache is empty.")
			return nil
		}
		for _, m := range installed {
			pterm.Printf("%s %s (%s)\n", m.Info.Name, m.Info.Version, m.Path)
		}
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove everything in the cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, inst, err := loadConfigAndInstallation()
		if err != nil {
			return err
		}

		dir := inst.CacheDirectory()
		proceed, err := confirm("Remove everything in " + dir + "?")
		if err != nil {
			return err
		}
		if !proceed {
			pterm.Info.Println("Aborted, no changes made.")
			return nil
		}

		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		pterm.Success.Printf("Removed %s\n", dir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	rootCmd.AddCommand(cacheCmd)
}
