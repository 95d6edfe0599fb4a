package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"posterhelper/internal/applier"
	"posterhelper/internal/batch"
	"posterhelper/internal/logging"
	"posterhelper/internal/mappings"
	"posterhelper/internal/matcher"
	"posterhelper/internal/preflight"
	"posterhelper/internal/scrape"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "run <url>...",
		Short: "Apply artwork from ThePosterDB or MediUX urls",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, args, workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of urls processed at once (overrides upload.worker_count)")
	return cmd
}

// runBatch checks the server, takes the run lock and processes urls until
// every url reached a terminal state. The first interrupt cancels the job
// cooperatively; a second one terminates the process.
func runBatch(cmd *cobra.Command, cc *commandContext, urls []string, workers int) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cc.ensureLogger(cmd)
	if err != nil {
		return err
	}
	client, err := cc.plexClient(logger)
	if err != nil {
		return err
	}
	if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg, client)); err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.Upload.WorkerCount
	}

	return cc.withLock(func() error {
		store, err := mappings.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		orchestrator, err := batch.New(batch.Options{
			Workers:   workers,
			Filters:   cfg.Filters(),
			Router:    scrape.DefaultRouter(),
			NewLoader: batch.FetcherFactory(cfg, logger),
			Matcher:   matcher.New(client, matcher.OptionsFromConfig(cfg, store, logger)),
			Applier:   applier.New(client, applier.OptionsFromConfig(cfg, logger)),
			Observer:  newProgressPrinter(out, len(urls)),
			Logger:    logger,
			Retries:   cfg.Upload.Retries,
		})
		if err != nil {
			return err
		}

		job := orchestrator.Run(cmd.Context(), urls)
		stopSignals := cancelOnInterrupt(job, cmd.ErrOrStderr())
		summary := job.Wait()
		stopSignals()

		printSummary(out, summary, shouldColorize(out))
		logger.Info("session finished",
			logging.String("job_id", summary.JobID),
			logging.String("state", string(summary.State)),
			logging.Duration("duration", summary.Duration()),
		)

		if summary.State == batch.JobCancelled {
			return context.Canceled
		}
		if failed := summary.Stats.URLs[batch.URLError]; failed > 0 {
			return fmt.Errorf("%d of %d urls failed", failed, len(urls))
		}
		return nil
	})
}

func cancelOnInterrupt(job *batch.Job, errOut io.Writer) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	stopped := make(chan struct{})
	go func() {
		select {
		case <-signals:
			signal.Stop(signals)
			fmt.Fprintln(errOut, "Cancelling: waiting for urls in progress to finish (interrupt again to abort)")
			job.Cancel()
		case <-stopped:
		}
	}()
	return func() {
		signal.Stop(signals)
		close(stopped)
	}
}

func printSummary(out io.Writer, summary batch.Summary, colorize bool) {
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Summary", colorize) {
		fmt.Fprintln(out, line)
	}
	stats := summary.Stats
	fmt.Fprintf(out, "Job %s %s in %s\n", summary.JobID, summary.State, summary.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "URLs: %d done, %d failed, %d cancelled\n",
		stats.URLs[batch.URLDone], stats.URLs[batch.URLError], stats.URLs[batch.URLCancelled])
	fmt.Fprintf(out, "Records: %d\n", stats.Totals.Total())

	headers := []string{"Group", "Applied", "Not found", "Failed", "Skipped"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}
	row := func(name string, c batch.Counts) []string {
		return []string{name, strconv.Itoa(c.Applied), strconv.Itoa(c.NotFound), strconv.Itoa(c.Failed), strconv.Itoa(c.Skipped)}
	}

	var rows [][]string
	for _, source := range slices.Sorted(maps.Keys(stats.BySource)) {
		rows = append(rows, row("source: "+source.DisplayName(), stats.BySource[source]))
	}
	for _, library := range slices.Sorted(maps.Keys(stats.ByLibrary)) {
		rows = append(rows, row("library: "+library, stats.ByLibrary[library]))
	}
	rows = append(rows, row("total", stats.Totals))
	fmt.Fprintln(out, renderTable(headers, rows, aligns))

	var failures []string
	for _, r := range summary.Results {
		switch {
		case r.State == batch.URLError && r.Err != nil:
			failures = append(failures, fmt.Sprintf("  %s: %v", r.URL, r.Err))
		case r.State == batch.URLDone:
			if c := r.Counts(); c.Failed > 0 {
				failures = append(failures, fmt.Sprintf("  %s: %d of %d records failed", r.URL, c.Failed, c.Total()))
			}
		}
	}
	if len(failures) > 0 {
		fmt.Fprintln(out, "Failures:")
		fmt.Fprintln(out, strings.Join(failures, "\n"))
	}
}
