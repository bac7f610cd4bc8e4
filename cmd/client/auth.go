package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atinyakov/devtrack/internal/models"
)

func printIdentity(w io.Writer, verb string, id models.Identity) {
	fmt.Fprintf(w, "%s %s <%s> (%s, id %d)\n", verb, id.Username, id.Email, id.Role, id.ID)
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Example: `  devtrack login -e admin@devtrack.com -p admin123
  devtrack login            # prompts for email and password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if err := p.fill(&email, "Email"); err != nil {
				return err
			}
			if err := p.fill(&password, "Password"); err != nil {
				return err
			}
			id, err := c.store.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), "Logged in as", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var email, username, password, role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			for _, f := range []struct {
				dst   *string
				label string
			}{
				{&email, "Email"},
				{&username, "Username"},
				{&password, "Password"},
			} {
				if err := p.fill(f.dst, f.label); err != nil {
					return err
				}
			}
			r := models.Role(strings.ToLower(role))
			if r != "" && !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			id, err := c.store.Register(cmd.Context(), email, username, password, r)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), "Registered", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&username, "username", "u", "", "display name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&role, "role", "", "admin, manager, developer or tester (default developer)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			c.store.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := c.store.Identity()
			if id == nil {
				return errNotLoggedIn
			}
			printIdentity(cmd.OutOrStdout(), "Logged in as", *id)
			return nil
		},
	}
}
