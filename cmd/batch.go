package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/UnknownOlympus/coordtrans/internal/service"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "batch geo|regeo <file>",
		Short:     "Process a .csv or .xlsx file and write the results to an xlsx workbook",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"geo", "regeo"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			application, err := bootstrap(os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := processWithProgress(ctx, application.batch, kind, filepath.Base(args[1]), data, os.Stderr)
			if err != nil {
				return err
			}

			if output == "" {
				output = report.Filename
			}
			if err = os.WriteFile(output, report.File, 0o600); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d rows processed, %d failed, written to %s\n",
				report.Total, report.Failed, output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output workbook (default processed_<mode>.xlsx)")

	return cmd
}

func parseKind(mode string) (models.QueryKind, error) {
	switch mode {
	case "geo":
		return models.KindGeocode, nil
	case "regeo":
		return models.KindReverseGeocode, nil
	default:
		return 0, fmt.Errorf("unknown mode %q, use geo or regeo", mode)
	}
}

// processWithProgress runs the batch and renders its progress events as a bar when out is a terminal.
func processWithProgress(
	ctx context.Context,
	batch *service.BatchService,
	kind models.QueryKind,
	filename string,
	data []byte,
	out *os.File,
) (*service.Report, error) {
	if !isatty.IsTerminal(out.Fd()) {
		return batch.Process(ctx, kind, filename, data, nil)
	}

	progress := make(chan service.Progress, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		renderProgress(progress, out)
	}()

	report, err := batch.Process(ctx, kind, filename, data, progress)
	close(progress)
	<-done

	return report, err
}

func renderProgress(progress <-chan service.Progress, out io.Writer) {
	var bar *progressbar.ProgressBar
	seen := 0

	for event := range progress {
		if bar == nil {
			bar = progressbar.NewOptions(event.Total,
				progressbar.OptionSetDescription("Processing rows"),
				progressbar.OptionSetWriter(out),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		// Events may be dropped, so jump to the highest count seen.
		if event.Done > seen {
			seen = event.Done
			_ = bar.Set(seen)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
}
