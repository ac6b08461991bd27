package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"IncidentRadar/internal/app"
	"IncidentRadar/internal/config"
	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/usecase"
)

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "incidentradar",
		Short:         "Collect and deduplicate AI security incidents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	withApp := func(cmd *cobra.Command, fn func(*app.Application) error) error {
		application, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()
		return fn(application)
	}

	root.AddCommand(
		newRunCmd(withApp),
		newScheduledCmd(withApp),
		newPromoteCmd(withApp),
		newServeCmd(withApp),
	)
	return root
}

type appRunner func(cmd *cobra.Command, fn func(*app.Application) error) error

func newRunCmd(withApp appRunner) *cobra.Command {
	var (
		sourceNames []string
		maxEvents   int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pass over the selected sources",
		Long: `Fetches every requested source, filters and deduplicates the items,
and stores new incidents. Without --sources all enabled sources run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, err := domain.ParseSources(sourceNames)
			if err != nil {
				return err
			}
			if maxEvents < 0 {
				return fmt.Errorf("--max-events must not be negative")
			}
			return withApp(cmd, func(a *app.Application) error {
				result, err := a.Run(cmd.Context(), usecase.RunOptions{Sources: selected, MaxEvents: maxEvents})
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().StringSliceVar(&sourceNames, "sources", nil, "comma separated sources (hn,nvd,rss,ghsa,cisa_kev,euvd)")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "lower the per-run event cap")
	return cmd
}

func newScheduledCmd(withApp appRunner) *cobra.Command {
	var at, cron string
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "Run the source batch owned by the current (or given) schedule slot",
		Long: `Runs the batch an external scheduler would trigger. With --cron the
per-source expression ("0 * * * *" for nvd, "10 * * * *" for ghsa, ...)
selects exactly one source instead of a 30-minute slot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tick := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				tick = parsed
			}
			return withApp(cmd, func(a *app.Application) error {
				var (
					result domain.RunResult
					err    error
				)
				if cron != "" {
					result, err = a.RunCron(cmd.Context(), cron)
				} else {
					result, err = a.RunScheduled(cmd.Context(), tick)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "tick time in RFC3339 (defaults to now)")
	cmd.Flags().StringVar(&cron, "cron", "", "per-source cron expression, e.g. \"20 * * * *\"")
	cmd.MarkFlagsMutuallyExclusive("at", "cron")
	return cmd
}

func newPromoteCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <event-id>",
		Short: "Create a manual draft for a stored event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("event id must be a positive integer: %q", args[0])
			}
			return withApp(cmd, func(a *app.Application) error {
				result, err := a.Promote(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
}

func newServeCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduler and the admin HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
