package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type (
	// A Broker registers time-triggered units of work. Enqueueing under
	// an already used job id supersedes the previous entry. Firing is
	// at-least-once at or after the requested time, durability across
	// restarts is not assumed: the scheduler rebuilds pending triggers
	// from the store on startup.
	Broker interface {
		// Enqueue registers the payload to be handed to the worker at runAt.
		Enqueue(jobID, payload string, runAt time.Time) error
	}

	// A Handler consumes a fired trigger's payload.
	Handler func(payload string)

	// MemoryBroker is an in-process Broker backed by one timer per job.
	MemoryBroker struct {
		mu      sync.Mutex
		stopped bool
		timers  map[string]*time.Timer
		handler Handler
		logger  logrus.FieldLogger
	}
)

// NewMemoryBroker returns a broker dispatching fired jobs to handler.
func NewMemoryBroker(handler Handler, logger logrus.FieldLogger) *MemoryBroker {
	return &MemoryBroker{
		timers:  make(map[string]*time.Timer),
		handler: handler,
		logger:  logger,
	}
}

// Enqueue registers the payload to be handed to the worker at runAt.
// A job already pending under the same id is superseded.
func (b *MemoryBroker) Enqueue(jobID, payload string, runAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return nil
	}

	if t, ok := b.timers[jobID]; ok {
		t.Stop()
	}

	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}

	b.logger.WithFields(logrus.Fields{"job": jobID, "run_at": runAt.UTC()}).Info("trigger registered")
	b.timers[jobID] = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, jobID)
		stopped := b.stopped
		b.mu.Unlock()

		if stopped {
			return
		}
		b.handler(payload)
	})
	return nil
}

// Pending returns the number of registered jobs.
func (b *MemoryBroker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Stop cancels every pending job. Used on shutdown.
func (b *MemoryBroker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}
