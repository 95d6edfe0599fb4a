package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"posterhelper/internal/bulkfile"
	"posterhelper/internal/scrape"
)

func newBulkCommand(ctx *commandContext) *cobra.Command {
	var workers int

	bulkCmd := &cobra.Command{
		Use:   "bulk [file]",
		Short: "Apply artwork from every url in a bulk import file",
		Long: "Reads one url per line from the named bulk file (default: the first entry of paths.bulk_files).\n" +
			"Blank lines and lines starting with # or // are ignored. Relative names resolve under paths.data_dir.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := cfg.BulkFilePath(firstArg(args))
			if err != nil {
				return err
			}
			urls, err := bulkfile.ParseFile(path)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no urls in %s", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processing %d urls from %s\n", len(urls), path)
			return runBatch(cmd, ctx, urls, workers)
		},
	}
	bulkCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of urls processed at once (overrides upload.worker_count)")

	bulkCmd.AddCommand(newBulkListCommand(ctx))
	bulkCmd.AddCommand(newBulkAddCommand(ctx))
	bulkCmd.AddCommand(newBulkRemoveCommand(ctx))

	return bulkCmd
}

func newBulkListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [file]",
		Short: "List configured bulk files, or the urls of one file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				path, err := cfg.BulkFilePath(args[0])
				if err != nil {
					return err
				}
				urls, err := bulkfile.ParseFile(path)
				if err != nil {
					return err
				}
				if len(urls) == 0 {
					fmt.Fprintf(out, "%s has no urls\n", path)
					return nil
				}
				for _, url := range urls {
					fmt.Fprintln(out, url)
				}
				return nil
			}

			rows := make([][]string, 0, len(cfg.Paths.BulkFiles))
			for _, name := range cfg.Paths.BulkFiles {
				path, err := cfg.BulkFilePath(name)
				if err != nil {
					return err
				}
				count := "missing"
				urls, err := bulkfile.ParseFile(path)
				switch {
				case err == nil:
					count = strconv.Itoa(len(urls))
				case !errors.Is(err, os.ErrNotExist):
					count = "unreadable"
				}
				rows = append(rows, []string{name, path, count})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Path", "URLs"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}

func newBulkAddCommand(ctx *commandContext) *cobra.Command {
	var fileName string

	cmd := &cobra.Command{
		Use:   "add <url>...",
		Short: "Append urls to a bulk file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			router := scrape.DefaultRouter()
			for _, url := range args {
				if _, err := router.Route(url); err != nil {
					return err
				}
			}
			path, err := cfg.BulkFilePath(fileName)
			if err != nil {
				return err
			}
			if err := bulkfile.Append(path, args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d urls to %s\n", len(args), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileName, "file", "f", "", "Bulk file to append to (default: first paths.bulk_files entry)")
	return cmd
}

func newBulkRemoveCommand(ctx *commandContext) *cobra.Command {
	var fileName string

	cmd := &cobra.Command{
		Use:   "remove <url>...",
		Short: "Remove urls from a bulk file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := cfg.BulkFilePath(fileName)
			if err != nil {
				return err
			}
			urls, err := bulkfile.ParseFile(path)
			if err != nil {
				return err
			}
			drop := make(map[string]struct{}, len(args))
			for _, url := range args {
				drop[strings.TrimSpace(url)] = struct{}{}
			}
			kept := urls[:0]
			for _, url := range urls {
				if _, ok := drop[url]; !ok {
					kept = append(kept, url)
				}
			}
			removed := len(urls) - len(kept)
			if removed == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No matching urls in %s\n", path)
				return nil
			}
			if err := bulkfile.Write(path, kept); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d urls from %s\n", removed, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileName, "file", "f", "", "Bulk file to edit (default: first paths.bulk_files entry)")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
