package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacefiler/spacefiler/internal/events"
	"github.com/spacefiler/spacefiler/internal/metrics"
	"github.com/spacefiler/spacefiler/internal/models"
	"github.com/spacefiler/spacefiler/internal/progress"
	"github.com/spacefiler/spacefiler/internal/watcher"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var onConflict string

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files into the current folder",
		Long: `Upload local files into the current folder (or the space root).

Every file is checked against the destination first. Files that do not exist
there are uploaded right away; the others wait, in the order given, for a
decision: replace the existing file, keep both, or skip.

Examples:
  spacefiler upload report.txt photo.png
  spacefiler upload *.csv --on-conflict replace`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := parseConflictPolicy(onConflict)
			if err != nil {
				return err
			}

			files := make([]models.File, 0, len(args))
			for _, path := range args {
				f, err := models.NewLocalFile(path)
				if err != nil {
					return fmt.Errorf("cannot upload %s: %w", path, err)
				}
				files = append(files, f)
			}

			ctx := GetContext()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ui := progress.NewUploadUI()
			uiCtx, stopUI := context.WithCancel(ctx)
			uiDone := make(chan struct{})
			uploads := a.svc.EventBus().Subscribe(events.EventUploadsChanged)
			go func() {
				defer close(uiDone)
				ui.Run(uiCtx, uploads)
			}()

			waiting, dropErr := a.svc.UploadFiles(ctx, files)
			if waiting > 0 {
				GetLogger().Debug().Int("conflicts", waiting).Msg("Waiting for conflict decisions")
			}
			where := a.svc.Navigator().Path().String()
			resolveErr := resolveConflicts(ctx, a.svc.Conflicts(), policy, bufio.NewReader(os.Stdin), ui.Writer(), where, ui)

			// Snapshots still queued on the bus are older than the tracker's.
			stopUI()
			<-uiDone
			ui.Apply(a.svc.Tracker().Snapshot())
			ui.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d file(s) uploaded to %s\n", ui.Finished(), len(files), where)
			return errors.Join(dropErr, resolveErr)
		},
	}

	cmd.Flags().StringVar(&onConflict, "on-conflict", "ask", "What to do with existing files: ask, replace, keep or skip")
	return cmd
}

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var onConflict string

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload files as they appear in a local directory",
		Long: `Watch a local directory and upload new files into the current folder.
Files created close together are handled as one batch.

Existing files are never overwritten unless --on-conflict says so.
When [metrics] addr is set in the config, Prometheus metrics are served
on that address while watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := parseConflictPolicy(onConflict)
			if err != nil {
				return err
			}
			if policy == DecisionAsk {
				return fmt.Errorf("--on-conflict must be replace, keep or skip while watching")
			}

			ctx := GetContext()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			logger := GetLogger()
			if a.cfg.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, a.cfg.MetricsAddr, logger); err != nil {
						logger.Error().Err(err).Msg("Metrics server stopped")
					}
				}()
			}

			where := a.svc.Navigator().Path().String()
			drop := func(ctx context.Context, files []models.File) (int, error) {
				waiting, err := a.svc.UploadFiles(ctx, files)
				if rerr := resolveConflicts(ctx, a.svc.Conflicts(), policy, nil, os.Stderr, where, nil); rerr != nil {
					err = errors.Join(err, rerr)
				}
				return waiting, err
			}

			w, err := watcher.New(args[0], drop, logger)
			if err != nil {
				return fmt.Errorf("cannot watch %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, uploading into %s (Ctrl+C to stop)\n", w.Dir(), where)
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&onConflict, "on-conflict", "skip", "What to do with existing files: replace, keep or skip")
	return cmd
}
