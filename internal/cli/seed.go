package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/config"
	"psych-assessment-service/internal/infra/memory"
)

// NewSeedCmd loads the demo assessments into the configured database.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo assessments into Postgres or SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" && cfg.SQLite.Path == "" {
				return fmt.Errorf("seed needs postgres.url or sqlite.path; the in-memory store is seeded on start")
			}
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()
			n, err := seedFixtures(cmd.Context(), st.assessments, time.Now(), cfg.Fixtures.Seed)
			if err != nil {
				return err
			}
			log.Printf("seeded %d assessments", n)
			return nil
		},
	}
}

// seedFixtures inserts the demo catalogue. Each fixture carries its own
// submission key, so running the seed twice does not duplicate rows.
func seedFixtures(ctx context.Context, repo app.AssessmentRepository, now time.Time, seed int64) (int, error) {
	recs := memory.FixtureRecords(now, seed)
	for _, rec := range recs {
		rec.ID = 0
		rec.SubmissionKey = "fixture-" + rec.Slug
		if _, err := repo.Create(ctx, rec); err != nil {
			return 0, fmt.Errorf("seed %q: %w", rec.Title, err)
		}
	}
	return len(recs), nil
}
