package cmd

import (
	"github.com/spf13/cobra"

	"factorio-mods-cli/internal/mods"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Re-resolve every tracked mod and apply any upgrades found",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := buildCredentialedEnv(ctx)
		if err != nil {
			return err
		}

		return reconcile(ctx, env.inst, env.client, env.creds, mods.Requirements(env.cfg.Mods))
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
