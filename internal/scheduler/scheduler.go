// Package scheduler turns capsule delivery times into durable,
// time-triggered units of work.
package scheduler

import (
	"time"

	"github.com/lunaris/capsuled/internal/database"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const jobPrefix = "capsule_"

// A Scheduler registers delivery triggers and rebuilds them from the
// store after a restart.
type Scheduler struct {
	db     database.Client
	broker Broker
	logger logrus.FieldLogger

	// Now is the clock used to decide whether a stored delivery time is
	// still in the future. Overridden in tests.
	Now func() time.Time
}

// New returns a Scheduler registering triggers against broker.
func New(db database.Client, broker Broker, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		db:     db,
		broker: broker,
		logger: logger,
		Now:    time.Now,
	}
}

// Schedule registers a single delivery trigger for the capsule.
// Scheduling the same capsule again supersedes the pending trigger
// instead of duplicating it.
func (s *Scheduler) Schedule(capsuleID string, at time.Time) error {
	err := s.broker.Enqueue(jobPrefix+capsuleID, capsuleID, at.UTC())
	return errors.Wrap(err, "could not enqueue delivery trigger")
}

// Reconcile scans the store and re-registers a trigger for every
// capsule whose delivery time is still in the future. It runs once at
// process start. Re-triggering an already delivered capsule is a no-op
// on the executor side, so reconciliation is safe to repeat.
func (s *Scheduler) Reconcile() error {
	capsules, err := s.db.FindScheduledCapsules()
	if err != nil {
		return errors.Wrap(err, "could not list scheduled capsules")
	}

	now := s.Now().UTC()
	registered := 0
	for _, capsule := range capsules {
		if capsule.ScheduledAt == nil || !capsule.ScheduledAt.After(now) {
			continue
		}

		if err := s.Schedule(capsule.ID, *capsule.ScheduledAt); err != nil {
			return err
		}
		registered++
	}

	s.logger.WithFields(logrus.Fields{"scanned": len(capsules), "registered": registered}).
		Info("reconciled delivery triggers")
	return nil
}
