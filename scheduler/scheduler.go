package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tommyz7/airbnb-analytics/config"
	"github.com/tommyz7/airbnb-analytics/models"
	"github.com/tommyz7/airbnb-analytics/storage"
	"github.com/tommyz7/airbnb-analytics/sweep"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

type Scheduler struct {
	cfg     *config.Config
	sweeper *sweep.Sweeper
	store   *storage.SQLiteStore
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}

	detailWorker    Triggerable
	thumbnailWorker Triggerable
}

func New(cfg *config.Config, sweeper *sweep.Sweeper, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		sweeper: sweeper,
		store:   store,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(detail, thumbnail Triggerable) {
	s.detailWorker = detail
	s.thumbnailWorker = thumbnail
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runSweep(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go s.catchUp(ctx)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runSweep(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// catchUp sweeps immediately when the last recorded run is older than
// one interval, so a restarted daemon does not wait out a full tick.
func (s *Scheduler) catchUp(ctx context.Context) {
	last, err := s.store.GetLastRunTime("")
	if err != nil {
		log.Printf("Error checking last run time: %v", err)
		return
	}
	if time.Since(last) < s.cfg.Scheduler.Interval {
		return
	}
	if last.IsZero() {
		log.Println("No recorded sweeps, running initial sweep")
	} else {
		log.Printf("Last sweep started %s ago, running catch-up sweep", time.Since(last).Round(time.Second))
	}
	s.runSweep(ctx)
}

// runSweep bounds each scheduled sweep so a hung provider call can
// never block the next tick forever.
func (s *Scheduler) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.cfg.Sweep.Timeout)
	defer cancel()

	if err := s.sweeper.RunAll(sweepCtx); err != nil {
		log.Printf("Scheduled sweep error: %v", err)
	}
}

// TriggerNow runs a full sweep outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	sweepCtx, cancel := context.WithTimeout(ctx, s.cfg.Sweep.Timeout)
	defer cancel()
	return s.sweeper.RunAll(sweepCtx)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdSweepNow:
		return s.TriggerNow(ctx)
	case models.CmdSweepLocation:
		params, err := s.store.ParseCommandParams(cmd)
		if err != nil {
			return err
		}
		if params == nil || params.Location == "" {
			return fmt.Errorf("sweep_location command without a location")
		}
		sweepCtx, cancel := context.WithTimeout(ctx, s.cfg.Sweep.Timeout)
		defer cancel()
		return s.sweeper.RunLocation(sweepCtx, params.Location)
	case models.CmdPause:
		s.sweeper.Pause()
		log.Println("Sweeps paused via command")
		return nil
	case models.CmdResume:
		s.sweeper.Resume()
		log.Println("Sweeps resumed via command")
		return nil
	case models.CmdRunDetail:
		if s.detailWorker != nil {
			s.detailWorker.Trigger()
			log.Println("Detail worker triggered via command")
		}
		return nil
	case models.CmdRunThumbnails:
		if s.thumbnailWorker != nil {
			s.thumbnailWorker.Trigger()
			log.Println("Thumbnail worker triggered via command")
		}
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
