package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tommyz7/airbnb-analytics/airbnb"
	"github.com/tommyz7/airbnb-analytics/models"
	"github.com/tommyz7/airbnb-analytics/services"
)

// Authenticator issues sessions for a worker's own use. Workers never
// share a session with the sweep or with each other.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (airbnb.Session, error)
}

// DetailQueue lists apartments due a detail refresh.
type DetailQueue interface {
	GetApartmentsWithStaleDetail(ctx context.Context, staleAfter time.Duration, limit int) ([]models.Apartment, error)
}

type DetailWorkerConfig struct {
	Username   string
	Password   string
	BatchSize  int
	Interval   time.Duration
	StaleAfter time.Duration
}

// DetailWorker periodically refreshes apartments whose full record has
// never been fetched or has gone stale.
type DetailWorker struct {
	store     DetailQueue
	auth      Authenticator
	detail    *services.DetailService
	cfg       DetailWorkerConfig
	triggerCh chan struct{}
}

func NewDetailWorker(store DetailQueue, auth Authenticator, detail *services.DetailService, cfg DetailWorkerConfig) *DetailWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 7 * 24 * time.Hour
	}
	return &DetailWorker{
		store:     store,
		auth:      auth,
		detail:    detail,
		cfg:       cfg,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run immediately
func (w *DetailWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the detail worker loop
func (w *DetailWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Detail worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		case <-w.triggerCh:
			w.processBatch(ctx)
		}
	}
}

func (w *DetailWorker) processBatch(ctx context.Context) {
	apartments, err := w.store.GetApartmentsWithStaleDetail(ctx, w.cfg.StaleAfter, w.cfg.BatchSize)
	if err != nil {
		log.Printf("Detail worker: query error: %v", err)
		return
	}
	if len(apartments) == 0 {
		return
	}

	sess, err := w.auth.Authenticate(ctx, w.cfg.Username, w.cfg.Password)
	if err != nil {
		log.Printf("Detail worker: auth error: %v", err)
		return
	}

	log.Printf("Detail worker: refreshing %d apartments", len(apartments))

	var refreshed, failed int
	for i := range apartments {
		if ctx.Err() != nil {
			return
		}
		a := &apartments[i]
		if err := w.detail.RefreshListing(ctx, sess, a); err != nil {
			failed++
			log.Printf("Detail worker: failed %d: %v", a.AirbnbID, err)
			var aerr *airbnb.AuthError
			if errors.As(err, &aerr) {
				// Session expired mid-batch; the next tick starts fresh.
				return
			}
			continue
		}
		refreshed++

		// Rate limit between provider calls
		if !pause(ctx, 200*time.Millisecond) {
			return
		}
	}

	if refreshed > 0 || failed > 0 {
		log.Printf("Detail worker: refreshed %d, failed %d", refreshed, failed)
	}
}

// pause waits d unless the context ends first, reporting whether the
// full wait elapsed.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
