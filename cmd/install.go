package cmd

import (
	"github.com/spf13/cobra"

	"factorio-mods-cli/internal/mods"
)

var installCmd = &cobra.Command{
	Use:   "install NAME[@REQUIREMENT]...",
	Short: "Add mods to the tracked set and install/upgrade everything needed to satisfy it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := buildCredentialedEnv(ctx)
		if err != nil {
			return err
		}

		for _, token := range args {
			name, constraint, err := parseRequirementToken(token)
			if err != nil {
				return err
			}
			env.cfg.Mods[name] = constraint
		}

		if err := reconcile(ctx, env.inst, env.client, env.creds, mods.Requirements(env.cfg.Mods)); err != nil {
			return err
		}
		return env.cfg.Save()
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
