package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"factorio-mods-cli/internal/mods"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall NAME...",
	Short: "Remove mods from the tracked set and uninstall whatever only they needed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := buildCredentialedEnv(ctx)
		if err != nil {
			return err
		}

		for _, token := range args {
			name := mods.Name(token)
			if _, tracked := env.cfg.Mods[name]; !tracked {
				return fmt.Errorf("%s is not a tracked mod", name)
			}
			delete(env.cfg.Mods, name)
		}

		if err := reconcile(ctx, env.inst, env.client, env.creds, mods.Requirements(env.cfg.Mods)); err != nil {
			return err
		}
		return env.cfg.Save()
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
