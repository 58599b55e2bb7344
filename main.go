package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/config"
	"github.com/tommyz7/airbnb-analytics/httputil"
	"github.com/tommyz7/airbnb-analytics/logging"
	"github.com/tommyz7/airbnb-analytics/scheduler"
	"github.com/tommyz7/airbnb-analytics/services"
	"github.com/tommyz7/airbnb-analytics/storage"
	"github.com/tommyz7/airbnb-analytics/sweep"
	"github.com/tommyz7/airbnb-analytics/workers"
)

var (
	sweepNow = flag.Bool("sweep", false, "Run a full sweep once and exit")
	location = flag.String("location", "", "Sweep a single tracked location and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogDir)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting airbnb-analytics...")

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.URL))

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if err := seedLocations(ctx, pgStore, cfg); err != nil {
		log.Fatalf("Failed to seed tracked locations: %v", err)
	}

	clients := httputil.NewClients()
	client := airbnb.NewClient(cfg.Airbnb.APIKey, clients.API)
	if cfg.Airbnb.BaseURL != "" {
		client.BaseURL = cfg.Airbnb.BaseURL
	}

	reconcile := services.NewReconcileService(pgStore)
	sweeper := sweep.NewSweeper(client, pgStore, reconcile, sqliteStore, sweep.Config{
		Username: cfg.Airbnb.Username,
		Password: cfg.Airbnb.Password,
		Locale:   cfg.Sweep.Locale,
		Currency: cfg.Sweep.Currency,
		PageSize: cfg.Sweep.PageSize,
		MaxPages: cfg.Sweep.MaxPages,
	})

	// One-shot modes
	if *location != "" {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Sweep.Timeout)
		defer cancel()
		if err := sweeper.RunLocation(runCtx, *location); err != nil {
			log.Fatalf("Sweep of %s failed: %v", *location, err)
		}
		log.Println("Sweep complete!")
		return
	}
	if *sweepNow {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Sweep.Timeout)
		defer cancel()
		if err := sweeper.RunAll(runCtx); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		log.Println("Sweep complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, sweeper, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var detailWorker *workers.DetailWorker
	if cfg.Detail.Enabled {
		detailService := services.NewDetailService(client, pgStore, cfg.Sweep.Locale)
		detailWorker = workers.NewDetailWorker(pgStore, client, detailService, workers.DetailWorkerConfig{
			Username:   cfg.Airbnb.Username,
			Password:   cfg.Airbnb.Password,
			BatchSize:  cfg.Detail.BatchSize,
			Interval:   cfg.Detail.Interval,
			StaleAfter: cfg.Detail.StaleAfter,
		})
		go detailWorker.Run(ctx)
		log.Println("Detail worker started")
	}

	var thumbnailWorker *workers.ThumbnailWorker
	if cfg.Thumbnail.Enabled {
		var uploader workers.S3Uploader = &workers.NoOpUploader{}
		if cfg.S3.Configured() {
			s3Uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
			if err != nil {
				log.Fatalf("Failed to set up S3 uploader: %v", err)
			}
			uploader = s3Uploader
			log.Printf("Thumbnail archive bucket: %s", cfg.S3.Bucket)
		} else {
			log.Println("No S3 bucket configured, thumbnails will not be archived")
		}
		thumbnailWorker = workers.NewThumbnailWorker(pgStore, clients.Media, uploader, workers.ThumbnailWorkerConfig{
			BatchSize: cfg.Thumbnail.BatchSize,
			Interval:  cfg.Thumbnail.Interval,
		})
		go thumbnailWorker.Run(ctx)
		log.Println("Thumbnail worker started")
	}

	var detailTrig, thumbnailTrig scheduler.Triggerable
	if detailWorker != nil {
		detailTrig = detailWorker
	}
	if thumbnailWorker != nil {
		thumbnailTrig = thumbnailWorker
	}
	sched.SetWorkers(detailTrig, thumbnailTrig)

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func seedLocations(ctx context.Context, store *storage.PostgresStore, cfg *config.Config) error {
	for _, seed := range cfg.Locations {
		if err := store.UpsertTrackedLocation(ctx, seed.TrackedLocation()); err != nil {
			return err
		}
	}
	if len(cfg.Locations) > 0 {
		log.Printf("Seeded %d tracked locations", len(cfg.Locations))
	}
	return nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}
	at := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == '@' {
			at = i
			break
		}
	}
	if at == -1 {
		return connStr
	}
	return connStr[:start] + "***" + connStr[at:]
}
