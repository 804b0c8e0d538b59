package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jonesrussell/feedguard/internal/api"
	"github.com/jonesrussell/feedguard/internal/config"
	"github.com/jonesrussell/feedguard/internal/configloader"
	"github.com/jonesrussell/feedguard/internal/detector"
	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/flagstore"
	"github.com/jonesrussell/feedguard/internal/graph"
	"github.com/jonesrussell/feedguard/internal/identity"
	"github.com/jonesrussell/feedguard/internal/logger"
	"github.com/jonesrussell/feedguard/internal/mlclient"
	"github.com/jonesrussell/feedguard/internal/outbox"
	"github.com/jonesrussell/feedguard/internal/predcache"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	local := openLocalStore(cfg, log)
	if closer, ok := local.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	userID := identity.LoadOrTransient(local, log)
	log.Info("User identity loaded", logger.String("user_id", userID))

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runAgent(cfg, log, local, db, userID)
}

// sessionStore is the durable local state surface: persisted outbox
// queues plus the key/value pairs behind the user identity.
type sessionStore interface {
	outbox.Store
	identity.Store
}

// openLocalStore opens the sqlite store. Durable storage being
// unavailable is not fatal: the agent degrades to memory-only queues
// and a transient identity for the session.
func openLocalStore(cfg *config.Config, log logger.Logger) sessionStore {
	local, err := outbox.OpenLocalStore(cfg.Outbox.LocalStorePath)
	if err != nil {
		log.Warn("Local store unavailable, running memory-only for this session",
			logger.String("path", cfg.Outbox.LocalStorePath),
			logger.Error(err),
		)
		return outbox.NoopStore{}
	}
	return local
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := configloader.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies the document store connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// runAgent assembles every component and serves until interrupted.
func runAgent(
	cfg *config.Config,
	log logger.Logger,
	local sessionStore,
	db *sqlx.DB,
	userID string,
) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := predcache.New(cfg.Cache.TTL)
	classifier := mlclient.New(
		cfg.Classifier.BaseURL,
		cache,
		cfg.Classifier.RequestsPerS,
		cfg.Classifier.Burst,
		nil,
		log,
	)

	reports := outbox.NewQueue(
		domain.QueueReport,
		outbox.ReportStoreKey,
		local,
		outbox.NewBulkSubmitter(cfg.Outbox.ReportURL, nil),
		cfg.Outbox.BatchSize,
		cfg.Outbox.FlushInterval,
		log,
	)
	reviews := outbox.NewQueue(
		domain.QueueReview,
		outbox.ReviewStoreKey,
		local,
		outbox.NewBulkSubmitter(cfg.Outbox.ReviewURL, nil),
		cfg.Outbox.BatchSize,
		cfg.Outbox.FlushInterval,
		log,
	)
	for _, q := range []*outbox.Queue{reports, reviews} {
		if err := q.Restore(); err != nil {
			log.Warn("Failed to restore outbox queue, starting empty",
				logger.Error(err),
			)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); reports.Run(ctx) }()
	go func() { defer wg.Done(); reviews.Run(ctx) }()

	flags := flagstore.New(db)
	ingestor := graph.NewIngestor(db, userID, log)

	tracker := detector.NewTracker(
		classifier,
		detector.NewLoggingEffects(log),
		reports,
		reviews,
		flags,
		ingestor,
		detector.Config{
			UserID:    userID,
			ReviewMin: cfg.Review.MinScore,
			ReviewMax: cfg.Review.MaxScore,
		},
		log,
	)

	handler := api.NewHandler(tracker, flags, reports, reviews, log)
	server := api.NewServer(cfg.Service, handler, classifier, log)

	log.Info("Feedguard agent starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("classifier", cfg.Classifier.BaseURL),
	)

	if err := server.Run(ctx); err != nil {
		log.Error("Server error", logger.Error(err))
		stop()
		wg.Wait()
		return 1
	}

	wg.Wait()
	log.Info("Feedguard agent exited cleanly")
	return 0
}
