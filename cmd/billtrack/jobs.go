package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/billtrack/billtrack/jobs"
)

// jobsCLI wraps manual management helpers for Asynq jobs.
type jobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func newJobsCLI(opts asynq.RedisClientOpt) *jobsCLI {
	return &jobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

func (c *jobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// queueStats summarises the current queue state.
type queueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

func (c *jobsCLI) inspect() ([]queueStats, error) {
	known, err := c.inspector.Queues()
	if err != nil {
		return nil, err
	}
	var out []queueStats
	for _, name := range []string{jobs.QueueNotifications, jobs.QueueDefault} {
		stats := queueStats{Queue: name}
		if slices.Contains(known, name) {
			info, err := c.inspector.GetQueueInfo(name)
			if err != nil {
				return nil, err
			}
			stats.Pending, stats.Active, stats.Scheduled = info.Pending, info.Active, info.Scheduled
			stats.Retry, stats.Archived = info.Retry, info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

func (c *jobsCLI) cleanup(ctx context.Context, retention time.Duration) (*asynq.TaskInfo, error) {
	task, err := jobs.NewIdempotencyCleanupTask(retention)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

func withJobsCLI(fn func(*cobra.Command, *jobsCLI) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		cli := newJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer cli.Close()
		return fn(cmd, cli)
	}
}

func jobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: withJobsCLI(func(cmd *cobra.Command, cli *jobsCLI) error {
			stats, err := cli.inspect()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
			}
			return tw.Flush()
		}),
	})
	var retention time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Enqueue a prune of delivered notification keys",
		Args:  cobra.NoArgs,
		RunE: withJobsCLI(func(cmd *cobra.Command, cli *jobsCLI) error {
			info, err := cli.cleanup(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.ID, info.Type)
			return nil
		}),
	}
	cleanup.Flags().DurationVar(&retention, "retention", 30*24*time.Hour, "keep keys newer than this")
	cmd.AddCommand(cleanup)
	return cmd
}
