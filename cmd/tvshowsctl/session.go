package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tvshows/authclient/session"
)

const passwordEnv = "TVSHOWS_PASSWORD"

func newLoginCommand(a *app) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and store the session",
		Long: "Sign in and store the session. The password is read from " + passwordEnv +
			" or, with --password-stdin, from the first line of standard input.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			s, err := client.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			a.printf("signed in as %s (%s)\n", s.Identity, s.Role)
			return nil
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from standard input")
	return cmd
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		pw := os.Getenv(passwordEnv)
		if pw == "" {
			return "", fmt.Errorf("set %s or pass --password-stdin", passwordEnv)
		}
		return pw, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printf("signed out\n")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			s, ok := client.Session()
			if !ok {
				a.printf("not signed in\n")
				return nil
			}
			printSession(a, s)
			limit, err := client.WatchlistLimit()
			if err != nil {
				return err
			}
			if limit > 0 {
				a.printf("watchlist:  up to %d shows\n", limit)
			} else {
				a.printf("watchlist:  unlimited\n")
			}
			return nil
		},
	}
}

func newRefreshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh credential for a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			s, err := client.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			a.printf("refreshed session for %s (%s)\n", s.Identity, s.Role)
			return nil
		},
	}
}

func newUpgradeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade a FREE membership to PREMIUM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			s, err := client.UpgradeMembership(cmd.Context())
			if err != nil {
				return err
			}
			a.printf("membership upgraded; now %s\n", s.Role)
			return nil
		},
	}
}

func printSession(a *app, s session.Session) {
	a.printf("username:   %s\n", s.Identity)
	a.printf("role:       %s\n", s.Role)
	a.printf("membership: %s\n", s.EffectiveMembership())
	if s.Email != "" {
		a.printf("email:      %s\n", s.Email)
	}
}
