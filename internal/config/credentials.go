package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"factorio-mods-cli/internal/local"
	"factorio-mods-cli/internal/mods"
	"factorio-mods-cli/internal/registry"
)

// ErrPromptDeclined is returned when credentials are missing and
// interactive prompting was overridden off (--yes/--no) rather than
// left to ask the terminal.
var ErrPromptDeclined = errors.New("exiting because credential prompting was declined")

// EnsureUserCredentials returns inst's saved credentials if complete,
// otherwise prompts on stdin for a username and password and exchanges
// them with client for a token, saving the result back to inst. A non-nil
// promptOverride skips the prompt entirely: true means behave as if the
// user answered "yes, proceed anyway" (still fails, since there's
// nothing to proceed with), false means refuse outright.
func EnsureUserCredentials(ctx context.Context, inst *local.Installation, client *registry.Client, promptOverride *bool) (mods.UserCredentials, error) {
	creds, err := inst.UserCredentials()
	if err == nil {
		return creds, nil
	}

	var incomplete *local.ErrIncompleteUserCredentials
	if !errors.As(err, &incomplete) {
		return mods.UserCredentials{}, fmt.Errorf("could not read user credentials: %w", err)
	}

	existingUsername := ""
	if incomplete.ExistingUsername != nil {
		existingUsername = *incomplete.ExistingUsername
	}

	reader := bufio.NewReader(os.Stdin)

	for {
		pterm.Println("You need a Factorio account to download mods.")
		pterm.Println("Please provide your username and password to authenticate yourself.")

		if promptOverride != nil {
			return mods.UserCredentials{}, ErrPromptDeclined
		}

		prompt := "Username: "
		if existingUsername != "" {
			prompt = fmt.Sprintf("Username [%s]: ", existingUsername)
		}
		username, err := promptLine(reader, prompt)
		if err != nil {
			return mods.UserCredentials{}, fmt.Errorf("could not read username: %w", err)
		}
		if username == "" {
			if existingUsername == "" {
				continue
			}
			username = existingUsername
		}

		password, err := promptPassword("Password (not shown): ")
		if err != nil {
			return mods.UserCredentials{}, fmt.Errorf("could not read password: %w", err)
		}

		creds, err := client.Login(ctx, username, password)
		if err == nil {
			pterm.Success.Println("Logged in successfully.")
			if err := inst.SaveUserCredentials(creds); err != nil {
				return mods.UserCredentials{}, fmt.Errorf("could not save player-data.json: %w", err)
			}
			return creds, nil
		}

		var rerr *registry.Error
		if errors.As(err, &rerr) && rerr.Kind == registry.KindLoginFailure {
			pterm.Error.Printf("Authentication error: %s\n", rerr.Msg)
			existingUsername = username
			continue
		}
		return mods.UserCredentials{}, fmt.Errorf("authentication error: %w", err)
	}
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	pterm.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	pterm.Print(prompt)
	defer pterm.Println()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
