package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jotnar/internal/ingestion"
	"jotnar/internal/tools/tracker"
	"jotnar/internal/workqueue"
)

// trackerSearcher adapts tracker.Client's JQL search onto the narrow
// ingestion.TicketSearcher contract, translating the tracker's own
// RateLimitedError into ingestion's so Sweep's backoff loop doesn't need to
// know which tool family produced it.
type trackerSearcher struct {
	client *tracker.Client
	jql    string
}

func (s trackerSearcher) SearchCandidates(ctx context.Context, pageSize, offset int) ([]ingestion.Candidate, int, error) {
	issues, total, err := s.client.SearchCandidates(ctx, s.jql, pageSize, offset)
	if err != nil {
		if rle, ok := err.(*tracker.RateLimitedError); ok {
			return nil, 0, &ingestion.RateLimitedError{RetryAfter: rle.RetryAfter}
		}
		return nil, 0, err
	}

	candidates := make([]ingestion.Candidate, len(issues))
	for i, issue := range issues {
		candidates[i] = ingestion.Candidate{
			Key:         issue.Key,
			FixVersions: issue.FixVersions,
			Labels:      issue.Labels,
		}
	}
	return candidates, total, nil
}

func newIngestCmd() *cobra.Command {
	var once bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Sweep the issue tracker for new candidate tickets and enqueue them for triage",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetryLogger()
			store, err := workqueue.NewStore(workqueue.Config{
				Type:             viper.GetString("queue.backend"),
				ConnectionString: viper.GetString("queue.dsn"),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			searcher := trackerSearcher{
				client: tracker.NewClient(
					viper.GetString("tracker.base_url"),
					viper.GetString("tracker.username"),
					viper.GetString("tracker.api_token"),
				),
				jql: viper.GetString("ingestion.jql"),
			}

			cfg := ingestion.Config{
				PageSize:        viper.GetInt("ingestion.page_size"),
				RateLimitPeriod: time.Duration(viper.GetInt("ingestion.rate_limit_ms")) * time.Millisecond,
				MaxBackoff:      time.Duration(viper.GetInt("ingestion.max_backoff_seconds")) * time.Second,
			}

			ctx := cmd.Context()
			runSweep := func() error {
				n, err := ingestion.Sweep(ctx, searcher, store, cfg)
				if err != nil {
					logger.Error("ingestion sweep failed", "err", err)
					return err
				}
				logger.Info("ingestion sweep complete", "enqueued", n)
				return nil
			}

			if once {
				return runSweep()
			}

			startMetricsServerBestEffort(logger)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := runSweep(); err != nil {
					logger.Warn("sweep iteration failed, will retry next tick", "err", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit instead of looping")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "time between sweeps in looping mode")
	return cmd
}
