package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phrazzld/taskhub-auth/internal/client"
	"github.com/phrazzld/taskhub-auth/internal/config"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080/api"

type rootOptions struct {
	server    string
	tokenFile string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Manage a TaskHub session from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr(config.EnvPrefix+"_SERVER", defaultServer),
		"base URL of the auth API")
	cmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", envOr(config.EnvPrefix+"_TOKEN_FILE", defaultTokenFile()),
		"file the session is stored in")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log refreshes and requests to stderr")

	cmd.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newWhoamiCmd(opts),
		newPasswdCmd(opts),
		newLogoutCmd(opts),
		newLogoutAllCmd(opts),
	)
	return cmd
}

// newClient builds a client over the session file. The caller must Close it.
func (o *rootOptions) newClient(cmd *cobra.Command) (*client.Client, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	c, err := client.New(cmd.Context(), o.server, client.NewFileTokenStore(o.tokenFile), client.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", o.tokenFile, err)
	}
	return c, nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskhub", "session.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
