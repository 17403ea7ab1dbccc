package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cuttracker/client"
)

type watchFlags struct {
	server   string
	username string
	jobID    int64
	toggle   []string
}

func newWatchCmd() *cobra.Command {
	f := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a job's cutting progress from a running server",
		Example: strings.TrimSpace(`
  CUTTRACKER_PASSWORD=... cuttracker watch --server http://localhost:8080 --user operator1 --job 3
  cuttracker watch --job 3 --toggle material:12:0 --toggle recut:4:1`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&f.username, "user", "", "username (password from CUTTRACKER_PASSWORD)")
	cmd.Flags().Int64Var(&f.jobID, "job", 0, "job id to follow")
	cmd.Flags().StringArrayVar(&f.toggle, "toggle", nil, "advance a sheet once, as kind:id:index, then keep watching")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, f *watchFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys := make([]client.Key, 0, len(f.toggle))
	for _, raw := range f.toggle {
		key, err := parseKey(raw)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	api, err := client.NewAPI(f.server, 15*time.Second)
	if err != nil {
		return err
	}
	if err := api.Login(ctx, f.username, os.Getenv("CUTTRACKER_PASSWORD")); err != nil {
		return err
	}

	rec := client.NewReconciler(api, f.jobID, client.ReconcilerOptions{
		OnChange: func(d client.JobDetail) {
			p := d.Progress
			fmt.Fprintf(out, "%s  %s (%s): %d/%d sheets cut, %d skipped, recuts %d/%d\n",
				time.Now().Format("15:04:05"), d.Job.Name, d.Job.Status, p.CompletedSheets, p.TotalSheets, p.SkippedSheets, p.RecutCompleted, p.RecutSheets)
		},
		OnError: func(k client.Key, err error) {
			fmt.Fprintf(out, "update %s failed: %v\n", k, err)
		},
	})
	if err := rec.Refresh(ctx); err != nil {
		return fmt.Errorf("load job %d: %w", f.jobID, err)
	}
	for _, key := range keys {
		if next, err := rec.Activate(ctx, key); err == nil {
			fmt.Fprintf(out, "%s -> %s\n", key, next)
		}
	}

	err = client.NewWatcher(api, rec, client.WatcherOptions{}).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// parseKey reads kind:id:index, e.g. material:12:0.
func parseKey(raw string) (client.Key, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return client.Key{}, fmt.Errorf("toggle %q: want kind:id:index", raw)
	}
	kind := client.Kind(strings.ToLower(parts[0]))
	if kind != client.KindMaterial && kind != client.KindRecut {
		return client.Key{}, fmt.Errorf("toggle %q: kind must be material or recut", raw)
	}
	var id int64
	var index int
	if _, err := fmt.Sscan(parts[1], &id); err != nil || id <= 0 {
		return client.Key{}, fmt.Errorf("toggle %q: bad id", raw)
	}
	if _, err := fmt.Sscan(parts[2], &index); err != nil {
		return client.Key{}, fmt.Errorf("toggle %q: bad index", raw)
	}
	return client.Key{Kind: kind, EntityID: id, Index: index}, nil
}
