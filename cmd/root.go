// Package cmd implements the CLI subcommand tree: argument parsing,
// terminal presentation, and wiring between the persisted config, the
// local install inspector, the registry client, and the
// resolve/solver/apply pipeline. None of the reconciliation logic
// itself lives here; this package only drives it.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"factorio-mods-cli/internal/config"
	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
	"factorio-mods-cli/internal/registry"
)

var (
	flagInstallDirectory string
	flagUserDirectory    string
	flagConfigPath       string
	flagYes              bool
	flagNo               bool
)

var rootCmd = &cobra.Command{
	Use:   "fac",
	Short: "Manages mods for a Factorio installation against the Mod Portal",
	Long:  `fac reconciles a declared set of mod requirements with what's actually installed, fetching metadata from the Factorio Mod Portal and applying the resulting diff.`,
}

// Execute initializes output styling and runs the command tree.
func Execute() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagInstallDirectory, "install-directory", "i", "", "path to the Factorio install directory (overrides the saved/searched one)")
	rootCmd.PersistentFlags().StringVarP(&flagUserDirectory, "user-directory", "u", "", "path to the Factorio user directory (overrides the saved/searched one)")
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "path to the config file (defaults to the conventional per-user location)")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "assume \"yes\" to every confirmation prompt")
	rootCmd.PersistentFlags().BoolVarP(&flagNo, "no", "n", false, "assume \"no\" to every confirmation prompt (refuse rather than apply)")
}

// promptOverride translates the --yes/--no flags into the tri-state
// EnsureUserCredentials/confirm expects: nil means "ask the terminal".
func promptOverride() *bool {
	switch {
	case flagYes:
		v := true
		return &v
	case flagNo:
		v := false
		return &v
	default:
		return nil
	}
}

// loadConfigAndInstallation loads the persisted config and resolves it,
// together with any --install-directory/--user-directory overrides,
// into a validated local.Installation.
func loadConfigAndInstallation() (*config.Config, *local.Installation, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if flagInstallDirectory != "" {
		cfg.InstallDirectory = flagInstallDirectory
	}
	if flagUserDirectory != "" {
		cfg.UserDirectory = flagUserDirectory
	}

	installDir, err := cfg.ResolveInstallDirectory()
	if err != nil {
		return nil, nil, err
	}
	userDir, err := cfg.ResolveUserDirectory()
	if err != nil {
		return nil, nil, err
	}

	inst, err := local.New(installDir, userDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, inst, nil
}

// buildRegistryClient constructs the HTTP client used by every
// subcommand that talks to the Mod Portal.
func buildRegistryClient() (*registry.Client, error) {
	return registry.NewClient(nil)
}

// credentialedEnv is the common environment subcommands that need to
// authenticate (install, uninstall, update) build before doing
// any work.
type credentialedEnv struct {
	cfg    *config.Config
	inst   *local.Installation
	client *registry.Client
	creds  mods.UserCredentials
}

func buildCredentialedEnv(ctx context.Context) (*credentialedEnv, error) {
	cfg, inst, err := loadConfigAndInstallation()
	if err != nil {
		return nil, err
	}
	client, err := buildRegistryClient()
	if err != nil {
		return nil, err
	}
	creds, err := config.EnsureUserCredentials(ctx, inst, client, promptOverride())
	if err != nil {
		return nil, err
	}
	return &credentialedEnv{cfg: cfg, inst: inst, client: client, creds: creds}, nil
}

// confirm asks the user to proceed, honoring --yes/--no. A nil override
// prompts on stdin, defaulting to "no" on an empty answer.
func confirm(question string) (bool, error) {
	switch {
	case flagYes:
		return true, nil
	case flagNo:
		return false, nil
	}

	pterm.Printf("%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil && answer == "" {
		return false, nil
	}
	switch answer {
	case "y", "Y", "yes", "Yes":
		return true, nil
	default:
		return false, nil
	}
}
