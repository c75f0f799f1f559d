// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"

	"github.com/Dan9191/bank-portal/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// FreezeReleaser is the part of the service the sweeper needs
type FreezeReleaser interface {
	ReleaseExpiredFreezes(ctx context.Context) (int, error)
}

// Scheduler wraps a cron runner
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

// New creates a scheduler whose jobs never overlap with themselves
func New(log *logrus.Logger) *Scheduler {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	return &Scheduler{cron: c, log: log}
}

// AddFreezeSweep registers the job that lifts card freezes whose
// freeze_until has passed.
func (s *Scheduler) AddFreezeSweep(spec string, svc FreezeReleaser) error {
	if _, err := s.cron.AddFunc(spec, func() { s.sweepFreezes(svc) }); err != nil {
		return fmt.Errorf("invalid freeze sweep schedule %q: %w", spec, err)
	}
	s.log.Infof("Freeze sweep scheduled: %s", spec)
	return nil
}

func (s *Scheduler) sweepFreezes(svc FreezeReleaser) {
	ctx := service.WithActor(context.Background(), service.SystemActor)
	released, err := svc.ReleaseExpiredFreezes(ctx)
	if err != nil {
		s.log.Errorf("Freeze sweep failed: %v", err)
		return
	}
	s.log.WithField("released", released).Debug("Freeze sweep finished")
}

// Start runs the jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before running jobs finished")
	}
}
