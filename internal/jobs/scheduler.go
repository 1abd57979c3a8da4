package jobs

import (
	"context"

	karma "anoa.com/forumkarma/internal/modules/karma/service"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Scheduler runs the out-of-band karma drift repair. Because the vote
// path applies deltas, any partially failed transaction or manual edit
// can desynchronize the ledger from the vote rows; the sweep replays
// every ledger from source on a cron schedule.
type Scheduler struct {
	cron         *cron.Cron
	karmaService karma.KarmaService
}

func NewScheduler(karmaService karma.KarmaService) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		karmaService: karmaService,
	}
}

// Start registers the reconcile sweep under the given cron spec and
// starts the scheduler. An empty spec disables the sweep.
func (s *Scheduler) Start(ctx context.Context, reconcileSpec string) error {
	if reconcileSpec == "" {
		log.Info("karma reconcile sweep disabled")
		return nil
	}

	_, err := s.cron.AddFunc(reconcileSpec, func() {
		log.Info("[CRON] karma reconcile sweep")
		if err := s.karmaService.ReconcileAll(ctx); err != nil {
			log.WithError(err).Error("[CRON] karma reconcile sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("schedule", reconcileSpec).Info("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}
