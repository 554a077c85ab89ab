package cmd

import (
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the currently installed mods",
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
		status, err := inst.ModsStatus()
		if err != nil {
			return err
		}

		sort.Slice(installed, func(i, j int) bool {
			return installed[i].Info.Name < installed[j].Info.Name
		})

		table := pterm.TableData{{"Name", "Version", "Enabled"}}
		for _, m := range installed {
			enabled := "true"
			if !status[m.Info.Name] {
				enabled = "false"
			}
			table = append(table, []string{string(m.Info.Name), m.Info.Version.String(), enabled})
		}

		if len(installed) == 0 {
			pterm.Info.Println("No mods installed.")
			return nil
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
