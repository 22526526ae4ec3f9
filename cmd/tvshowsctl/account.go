package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	authclient "github.com/tvshows/authclient"
)

func newCanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can <capability>",
		Short: "Report whether the signed-in tier holds a capability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := client.Can(args[0])
			if err != nil {
				return err
			}
			if ok {
				a.printf("yes\n")
			} else {
				a.printf("no\n")
			}
			return nil
		},
	}
}

func newUsersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List accounts (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			users, err := client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tROLE\tMEMBERSHIP\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.Role, u.Membership, u.Email)
			}
			return tw.Flush()
		},
	}
}

func newPromoteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant the ADMIN role to an account (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			u, err := client.Promote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printUser(a, u)
			return nil
		},
	}
}

func printUser(a *app, u authclient.User) {
	a.printf("%s is now %s (%s)\n", u.Username, u.Role, u.Membership)
}
