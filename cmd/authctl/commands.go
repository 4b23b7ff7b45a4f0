package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/phrazzld/taskhub-auth/internal/api"
	"github.com/phrazzld/taskhub-auth/internal/client"
	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/spf13/cobra"
)

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var req api.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an identity and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			req.Password, err = newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr()).read("Password: ")
			if err != nil {
				return err
			}

			c, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			identity, err := c.Register(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			printIdentity(cmd.OutOrStdout(), "Registered", identity)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr()).read("Password: ")
			if err != nil {
				return err
			}

			c, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			identity, err := c.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return describe(err)
			}
			printIdentity(cmd.OutOrStdout(), "Signed in as", identity)
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity, refreshing the session if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			identity, err := c.Me(cmd.Context())
			if err != nil {
				return describe(err)
			}
			printIdentity(cmd.OutOrStdout(), "Signed in as", identity)
			return nil
		},
	}
}

func newPasswdCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password and sign out every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secrets := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr())
			current, err := secrets.read("Current password: ")
			if err != nil {
				return err
			}
			next, err := secrets.read("New password: ")
			if err != nil {
				return err
			}

			c, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.ChangePassword(cmd.Context(), current, next); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed. All sessions were signed out; sign in again.")
			return nil
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Logout(cmd.Context()); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newLogoutAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all",
		Short: "Revoke every session of the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.LogoutAll(cmd.Context())
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %d session(s).\n", n)
			return nil
		},
	}
}

func printIdentity(w io.Writer, label string, identity domain.PublicIdentity) {
	if identity.DisplayName != "" {
		fmt.Fprintf(w, "%s %s <%s> (%s)\n", label, identity.Username, identity.Email, identity.DisplayName)
		return
	}
	fmt.Fprintf(w, "%s %s <%s>\n", label, identity.Username, identity.Email)
}

// describe turns client errors into messages for a terminal.
func describe(err error) error {
	switch {
	case errors.Is(err, client.ErrNotSignedIn):
		return errors.New("not signed in; run 'authctl login' first")
	case errors.Is(err, client.ErrRefreshFailed):
		return errors.New("session expired; run 'authctl login' again")
	}

	var se *client.StatusError
	if errors.As(err, &se) {
		if se.TraceID != "" {
			return fmt.Errorf("%s (trace %s)", se.Message, se.TraceID)
		}
		return errors.New(se.Message)
	}
	return err
}
