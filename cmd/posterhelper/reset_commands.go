package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"posterhelper/internal/reset"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore default artwork on items changed by posterhelper",
	}

	resetCmd.AddCommand(newResetItemCommand(ctx))
	resetCmd.AddCommand(newResetAllCommand(ctx))

	return resetCmd
}

func resetEngine(cmd *cobra.Command, ctx *commandContext) (*reset.Engine, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger(cmd)
	if err != nil {
		return nil, err
	}
	client, err := ctx.plexClient(logger)
	if err != nil {
		return nil, err
	}
	return reset.New(client, cfg.Libraries, logger), nil
}

func newResetItemCommand(ctx *commandContext) *cobra.Command {
	var library string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "item <title>",
		Short: "Reset one movie, show or collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := resetEngine(cmd, ctx)
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				items, err := engine.Find(cmd.Context(), args[0], library)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					return fmt.Errorf("no library item titled %q", args[0])
				}
				out := cmd.OutOrStdout()
				var errs []error
				for _, item := range items {
					n, err := engine.Reset(cmd.Context(), item, recursive)
					switch {
					case err != nil:
						errs = append(errs, err)
						fmt.Fprintln(out, renderStatusLine(item.Library, statusError, fmt.Sprintf("%s: %v", item.Title, err), shouldColorize(out)))
					case n == 0:
						fmt.Fprintln(out, renderStatusLine(item.Library, statusInfo, item.Title+": nothing to reset", shouldColorize(out)))
					default:
						fmt.Fprintln(out, renderStatusLine(item.Library, statusOK, fmt.Sprintf("%s: reset %d items", item.Title, n), shouldColorize(out)))
					}
				}
				return errors.Join(errs...)
			})
		},
	}

	cmd.Flags().StringVarP(&library, "library", "l", "", "Only search this library")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Also reset seasons and episodes below the item")
	return cmd
}

func newResetAllCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Reset every item tagged by posterhelper",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := resetEngine(cmd, ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !confirm {
				tagged, listErrs := engine.Tagged(cmd.Context())
				fmt.Fprintf(out, "%d tagged items would be reset; rerun with --yes to proceed\n", len(tagged))
				return errors.Join(itemErrors(listErrs)...)
			}
			return ctx.withLock(func() error {
				report, err := engine.ResetAll(cmd.Context())
				fmt.Fprintf(out, "Scanned %d tagged items, reset %d\n", report.Scanned, report.Reset)
				for _, itemErr := range report.Errors {
					fmt.Fprintln(out, renderStatusLine(itemErr.Library, statusError, itemErr.Error(), shouldColorize(out)))
				}
				if err != nil {
					return err
				}
				if len(report.Errors) > 0 {
					return fmt.Errorf("%d items could not be reset", len(report.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Reset without the dry-run preview")
	return cmd
}

func itemErrors(errs []reset.ItemError) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		out = append(out, err)
	}
	return out
}
