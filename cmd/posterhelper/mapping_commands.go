package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"posterhelper/internal/mappings"
)

func newMappingCommand(ctx *commandContext) *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage source title to library title overrides",
	}

	mappingCmd.AddCommand(newMappingListCommand(ctx))
	mappingCmd.AddCommand(newMappingSetCommand(ctx))
	mappingCmd.AddCommand(newMappingRemoveCommand(ctx))

	return mappingCmd
}

func withMappings(cmd *cobra.Command, ctx *commandContext, fn func(*mappings.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := mappings.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newMappingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List title mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMappings(cmd, ctx, func(store *mappings.Store) error {
				list, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No title mappings")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, m := range list {
					rows = append(rows, []string{m.SourceTitle, m.LibraryTitle, string(m.Origin), formatTimestamp(m.UpdatedAt)})
				}
				fmt.Fprintln(out, renderTable([]string{"Source title", "Library title", "Origin", "Updated"}, rows, nil))
				return nil
			})
		},
	}
}

func newMappingSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <source title> <library title>",
		Short: "Match a source title to a library title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMappings(cmd, ctx, func(store *mappings.Store) error {
				if err := store.Set(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mapped %q -> %q\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newMappingRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source title>",
		Short: "Remove a title mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMappings(cmd, ctx, func(store *mappings.Store) error {
				removed, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no mapping for %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed mapping for %q\n", args[0])
				return nil
			})
		},
	}
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}
