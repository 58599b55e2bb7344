package sweep

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/models"
	"github.com/tommyz7/airbnb-analytics/services"
	"github.com/tommyz7/airbnb-analytics/storage"
)

// Client is the provider surface the sweep needs.
type Client interface {
	Authenticate(ctx context.Context, username, password string) (airbnb.Session, error)
	SearchListings(ctx context.Context, sess airbnb.Session, location string, f airbnb.SearchFilters) ([]airbnb.ListingSummary, error)
}

// Store is the repository surface for locations and run bookkeeping.
type Store interface {
	ListTrackedLocations(ctx context.Context) ([]models.TrackedLocation, error)
	GetTrackedLocationByName(ctx context.Context, name string) (*models.TrackedLocation, error)
	CreateSweepRun(ctx context.Context, run *models.SweepRun) error
	UpdateSweepRun(ctx context.Context, run *models.SweepRun) error
	CreateSweepLog(ctx context.Context, entry *models.SweepLog) error
}

// Reconciler folds one fetched listing into the repository.
type Reconciler interface {
	ProcessListing(ctx context.Context, summary *airbnb.ListingSummary, snapshotDate time.Time) (*services.ProcessResult, error)
}

type Config struct {
	Username string
	Password string

	Locale   string
	Currency string
	PageSize int // listings per search page
	MaxPages int // pagination cap per location
}

// Sweeper runs the periodic synchronization task: authenticate once,
// then search every active tracked location and reconcile each listing
// found into an apartment row plus a price snapshot for today.
type Sweeper struct {
	client Client
	store  Store
	recon  Reconciler
	ops    *storage.SQLiteStore // optional run mirror, may be nil
	cfg    Config

	paused atomic.Bool
}

func NewSweeper(client Client, store Store, recon Reconciler, ops *storage.SQLiteStore, cfg Config) *Sweeper {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	return &Sweeper{client: client, store: store, recon: recon, ops: ops, cfg: cfg}
}

func (s *Sweeper) Pause()       { s.paused.Store(true) }
func (s *Sweeper) Resume()      { s.paused.Store(false) }
func (s *Sweeper) Paused() bool { return s.paused.Load() }

// RunAll sweeps every active tracked location under a single session.
// An authentication failure aborts the whole sweep; any other failure
// is contained to its location and the remaining locations still run.
func (s *Sweeper) RunAll(ctx context.Context) error {
	if s.Paused() {
		log.Printf("Sweep skipped: paused")
		return nil
	}

	sess, err := s.client.Authenticate(ctx, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	locations, err := s.store.ListTrackedLocations(ctx)
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}
	if len(locations) == 0 {
		log.Printf("Sweep skipped: no active tracked locations")
		return nil
	}

	var failed int
	for i := range locations {
		if err := ctx.Err(); err != nil {
			return err
		}
		loc := &locations[i]
		if err := s.sweepLocation(ctx, sess, loc); err != nil {
			failed++
			log.Printf("Sweep of %s failed: %v", loc.Name, err)
		}
	}
	if failed == len(locations) {
		return fmt.Errorf("all %d locations failed", failed)
	}
	return nil
}

// RunLocation sweeps a single tracked location by name with its own
// fresh session.
func (s *Sweeper) RunLocation(ctx context.Context, name string) error {
	loc, err := s.store.GetTrackedLocationByName(ctx, name)
	if err != nil {
		return fmt.Errorf("get location: %w", err)
	}
	if loc == nil {
		return fmt.Errorf("location %q is not tracked", name)
	}

	sess, err := s.client.Authenticate(ctx, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	return s.sweepLocation(ctx, sess, loc)
}

func (s *Sweeper) sweepLocation(ctx context.Context, sess airbnb.Session, loc *models.TrackedLocation) error {
	run := &models.SweepRun{
		Location:  loc.Name,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := s.store.CreateSweepRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	opsRunID := s.mirrorRunStart(run)

	stats, sweepErr := s.sweepListings(ctx, sess, loc, run)

	finished := time.Now()
	run.FinishedAt = &finished
	run.ApartmentsNew = stats.ApartmentsNew
	run.SnapshotsWritten = stats.SnapshotsWritten()
	run.ErrorsCount = stats.Errors
	run.Metadata = stats.ToJSON()
	if sweepErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = sweepErr.Error()
	} else {
		run.Status = models.RunStatusCompleted
	}

	// Finalize on a context that survives cancellation; a run killed by
	// the sweep deadline must still leave a failed record, not a row
	// stuck on running.
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.UpdateSweepRun(finCtx, run); err != nil {
		log.Printf("Warning: failed to finalize run %d: %v", run.ID, err)
	}
	s.mirrorRunEnd(run, opsRunID)

	if sweepErr != nil {
		s.logRun(finCtx, run, models.LogLevelError, sweepErr.Error())
		return sweepErr
	}
	log.Printf("Swept %s: %d listings, %d new apartments, %d snapshots, %d errors",
		loc.Name, run.ListingsFound, run.ApartmentsNew, run.SnapshotsWritten, run.ErrorsCount)
	return nil
}

func (s *Sweeper) sweepListings(ctx context.Context, sess airbnb.Session, loc *models.TrackedLocation, run *models.SweepRun) (*services.ProcessStats, error) {
	stats := &services.ProcessStats{}
	snapshotDate := truncateToDay(run.StartedAt)
	filters := s.searchFilters(loc)

	for page := 0; page < s.cfg.MaxPages; page++ {
		filters.Offset = page * s.cfg.PageSize
		listings, err := s.client.SearchListings(ctx, sess, loc.Name, filters)
		if err != nil {
			return stats, fmt.Errorf("search page %d: %w", page, err)
		}
		run.ListingsFound += len(listings)

		for i := range listings {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			result, err := s.recon.ProcessListing(ctx, &listings[i], snapshotDate)
			if err != nil {
				// One bad listing never blocks the rest.
				stats.Errors++
				s.logRun(ctx, run, models.LogLevelWarn,
					fmt.Sprintf("listing %d: %v", listings[i].ID, err))
				continue
			}
			stats.Aggregate(result)
		}

		if len(listings) < s.cfg.PageSize {
			break
		}
	}
	return stats, nil
}

func (s *Sweeper) searchFilters(loc *models.TrackedLocation) airbnb.SearchFilters {
	f := airbnb.SearchFilters{
		Locale:   s.cfg.Locale,
		Currency: s.cfg.Currency,
		Limit:    s.cfg.PageSize,
	}
	if loc.Locale != "" {
		f.Locale = loc.Locale
	}
	if loc.Currency != "" {
		f.Currency = loc.Currency
	}
	f.PriceMin = loc.PriceMin
	f.PriceMax = loc.PriceMax
	if loc.MinBedrooms != nil {
		v := float64(*loc.MinBedrooms)
		f.MinBedrooms = &v
	}
	return f
}

func (s *Sweeper) logRun(ctx context.Context, run *models.SweepRun, level models.LogLevel, msg string) {
	entry := &models.SweepLog{
		RunID:     &run.ID,
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Location:  run.Location,
	}
	if err := s.store.CreateSweepLog(ctx, entry); err != nil {
		log.Printf("Warning: failed to write sweep log: %v", err)
	}
	if s.ops != nil {
		if err := s.ops.Log(&run.ID, level, msg, run.Location); err != nil {
			log.Printf("Warning: failed to mirror sweep log: %v", err)
		}
	}
}

func (s *Sweeper) mirrorRunStart(run *models.SweepRun) int64 {
	if s.ops == nil {
		return 0
	}
	id, err := s.ops.CreateRun(run)
	if err != nil {
		log.Printf("Warning: failed to mirror run start: %v", err)
		return 0
	}
	return id
}

func (s *Sweeper) mirrorRunEnd(run *models.SweepRun, opsRunID int64) {
	if s.ops == nil || opsRunID == 0 {
		return
	}
	mirror := *run
	mirror.ID = opsRunID
	if err := s.ops.UpdateRun(&mirror); err != nil {
		log.Printf("Warning: failed to mirror run end: %v", err)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
