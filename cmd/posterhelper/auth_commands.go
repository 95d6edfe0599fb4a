package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"posterhelper/internal/logging"
	"posterhelper/internal/services/plex"
)

const linkTimeout = 5 * time.Minute

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Plex account link",
	}

	authCmd.AddCommand(newAuthLinkCommand(ctx))
	authCmd.AddCommand(newAuthStatusCommand(ctx))
	authCmd.AddCommand(newAuthUnlinkCommand(ctx))

	return authCmd
}

func authenticator(ctx *commandContext) (*plex.Authenticator, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return plex.NewAuthenticator(cfg.AuthStatePath())
}

func newAuthLinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Connect posterhelper to Plex using the device link flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger(cmd)
			if err != nil {
				return err
			}
			auth, err := authenticator(ctx)
			if err != nil {
				return err
			}

			pin, err := auth.RequestPin(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open the following URL to authorize posterhelper with Plex:")
			fmt.Fprintf(out, "\n    %s\n\n", auth.LinkURL(pin))
			fmt.Fprintf(out, "If Plex asks for a PIN, enter: %s\n\n", pin.Code)
			fmt.Fprintln(out, "Waiting for authorization... (Ctrl+C to abort)")

			timeout := linkTimeout
			if !pin.ExpiresAt.IsZero() {
				if remaining := time.Until(pin.ExpiresAt); remaining > 0 && remaining < timeout {
					timeout = remaining
				}
			}
			if _, err := auth.WaitForAuthorization(cmd.Context(), pin, timeout); err != nil {
				if errors.Is(err, plex.ErrLinkTimeout) {
					return errors.New("link code expired; run 'posterhelper auth link' again")
				}
				return err
			}
			fmt.Fprintln(out, "Plex linked successfully.")

			if cfg.Plex.URL != "" {
				return nil
			}
			discoverCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			server, err := auth.DiscoverServer(discoverCtx)
			if err != nil {
				logging.WarnWithContext(logger, "plex server discovery failed", "plex_discovery",
					logging.Error(err),
					logging.String(logging.FieldImpact, "plex.url must be set in config.toml"),
					logging.String(logging.FieldErrorHint, "set plex.url to the server address, e.g. http://localhost:32400"),
				)
				return nil
			}
			fmt.Fprintf(out, "Using Plex server %s\n", server)
			return nil
		},
	}
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the Plex link state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			auth, err := authenticator(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			switch {
			case cfg.Plex.Token != "":
				fmt.Fprintln(out, renderStatusLine("token", statusOK, "from config or PLEX_TOKEN", colorize))
			case auth.Token() != "":
				fmt.Fprintln(out, renderStatusLine("token", statusOK, "linked via plex.tv", colorize))
			default:
				fmt.Fprintln(out, renderStatusLine("token", statusWarn, "missing; run 'posterhelper auth link'", colorize))
			}
			server := cfg.Plex.URL
			if server == "" {
				server = auth.ServerURL()
			}
			if server == "" {
				fmt.Fprintln(out, renderStatusLine("server", statusWarn, "not configured", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("server", statusOK, server, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("client id", statusInfo, auth.ClientIdentifier(), colorize))
			return nil
		},
	}
}

func newAuthUnlinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink",
		Short: "Forget the linked Plex token",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := authenticator(ctx)
			if err != nil {
				return err
			}
			if err := auth.Unlink(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Plex link removed.")
			return nil
		},
	}
}
