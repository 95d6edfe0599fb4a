package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"posterhelper/internal/poster"
)

type labelCounts struct {
	total    int
	posterDB int
	mediux   int
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count library items carrying posterhelper artwork",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := resetEngine(cmd, ctx)
			if err != nil {
				return err
			}
			tagged, listErrs := engine.Tagged(cmd.Context())

			byLibrary := make(map[string]labelCounts)
			var total labelCounts
			for _, item := range tagged {
				c := byLibrary[item.Library]
				c.add(item)
				byLibrary[item.Library] = c
				total.add(item)
			}

			rows := make([][]string, 0, len(byLibrary)+1)
			for _, library := range slices.Sorted(maps.Keys(byLibrary)) {
				rows = append(rows, byLibrary[library].row(library))
			}
			rows = append(rows, total.row("total"))

			out := cmd.OutOrStdout()
			headers := []string{"Library", "Items", poster.SourcePosterDB.DisplayName(), poster.SourceMediUX.DisplayName()}
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
			for _, itemErr := range listErrs {
				fmt.Fprintln(out, renderStatusLine(itemErr.Library, statusWarn, itemErr.Err.Error(), shouldColorize(out)))
			}
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			if len(listErrs) > 0 {
				return errors.New("some libraries could not be listed")
			}
			return nil
		},
	}
}

func (c *labelCounts) add(item poster.LibraryItem) {
	c.total++
	if item.HasLabel(poster.SourceLabel(poster.SourcePosterDB)) {
		c.posterDB++
	}
	if item.HasLabel(poster.SourceLabel(poster.SourceMediUX)) {
		c.mediux++
	}
}

func (c labelCounts) row(name string) []string {
	return []string{name, strconv.Itoa(c.total), strconv.Itoa(c.posterDB), strconv.Itoa(c.mediux)}
}
