package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"psych-assessment-service/internal/app"
	"psych-assessment-service/internal/config"
	"psych-assessment-service/internal/infra/memory"
	"psych-assessment-service/internal/infra/postgres"
	rediscache "psych-assessment-service/internal/infra/redis"
	"psych-assessment-service/internal/infra/sqlite"
	transport "psych-assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment admin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the persistence selected by configuration.
type stores struct {
	assessments app.AssessmentRepository
	examinees   app.ExamineeRepository
	loader      memory.RecordLoader
	close       func()
}

// openStores picks Postgres, then SQLite, then the seeded in-memory store.
func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg, false); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		loader := postgres.NewRecordLoader(pool)
		db := postgres.OpenBun(cfg.Postgres.URL)
		store := postgres.NewStore(db, loader)
		log.Printf("using postgres store")
		return &stores{
			assessments: store,
			examinees:   store,
			loader:      loader,
			close: func() {
				pool.Close()
				db.Close()
			},
		}, nil
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		log.Printf("using sqlite store at %s", cfg.SQLite.Path)
		return &stores{
			assessments: store,
			examinees:   store,
			loader:      store,
			close:       func() { store.Close() },
		}, nil
	default:
		store := memory.SeededAssessmentStore(time.Now(), cfg.Fixtures.Seed)
		log.Printf("using in-memory store with demo assessments")
		return &stores{
			assessments: store,
			examinees:   memory.NewExamineeStore(),
			loader:      store,
			close:       func() {},
		}, nil
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	cacheTTL := config.TTLDuration(cfg.Detail.CacheTTL, 10*time.Minute)
	draftTTL := config.TTLDuration(cfg.Drafts.TTL, 24*time.Hour)

	var records app.RecordCache
	var drafts app.DraftRepository
	if redisClient != nil {
		records = rediscache.NewRecordCache(redisClient, st.loader, cacheTTL)
		drafts = rediscache.NewDraftStore(redisClient, draftTTL)
	} else {
		records = memory.NewRecordCache(st.loader, cacheTTL)
		local := memory.NewDraftStore(draftTTL)
		go sweepDrafts(ctx, local, time.Minute)
		drafts = local
	}

	schema := app.NewSchema()
	submitDeadline := config.TTLDuration(cfg.Submission.Deadline, 10*time.Second)
	submitter := app.NewRepositorySubmitter(st.assessments, schema, app.SubmitterConfig{
		Timeout:         config.TTLDuration(cfg.Submission.Timeout, 5*time.Second),
		MaxAttempts:     cfg.Submission.MaxAttempts,
		InitialInterval: config.TTLDuration(cfg.Submission.InitialInterval, 200*time.Millisecond),
		Deadline:        submitDeadline,
	})

	handler := transport.NewHandler(
		app.NewAssessmentService(st.assessments, records, memory.NewStaticAnalytics(), cfg.Listing.PageSize),
		app.NewBuilderService(app.NewBuilder(schema), drafts, submitter),
		app.NewExamineeService(st.examinees, schema),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(submitDeadline),
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// writeTimeout leaves room for a submission that runs to its deadline
// inside a draft action request.
func writeTimeout(submitDeadline time.Duration) time.Duration {
	const base = 15 * time.Second
	if t := submitDeadline + 5*time.Second; t > base {
		return t
	}
	return base
}

func sweepDrafts(ctx context.Context, store *memory.DraftStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				log.Printf("expired %d idle drafts", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
