package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run background jobs once",
	}
	cmd.AddCommand(
		newJobsRunCmd(configPath),
		newJobsResetQuotaCmd(configPath),
	)
	return cmd
}

// withApp loads config, wires the app and runs fn with it
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newJobsRunCmd(configPath *string) *cobra.Command {
	var scheduleFirst bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Schedule maintenance jobs and process the pending queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if scheduleFirst {
					if _, err := a.batch.Schedule(ctx); err != nil {
						return err
					}
				}
				results, err := a.batch.Process(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.JobID, r.Type, r.Status, r.Error)
					} else {
						fmt.Fprintf(out, "%s\t%s\t%s\n", r.JobID, r.Type, r.Status)
					}
				}
				fmt.Fprintf(out, "processed %d jobs\n", len(results))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&scheduleFirst, "schedule", true, "enqueue the maintenance jobs before processing")
	return cmd
}

func newJobsResetQuotaCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-quota",
		Short: "Reset every user's daily search count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				n, err := a.batch.ResetDailySearchCounts(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset daily search count for %d users\n", n)
				return nil
			})
		},
	}
}
