package scheduler_test

import (
	"os"
	"testing"
	"time"

	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/model"
	"github.com/lunaris/capsuled/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueue struct {
	jobID   string
	payload string
	runAt   time.Time
}

type fakeBroker struct {
	enqueues []enqueue
}

func (b *fakeBroker) Enqueue(jobID, payload string, runAt time.Time) error {
	b.enqueues = append(b.enqueues, enqueue{jobID: jobID, payload: payload, runAt: runAt})
	return nil
}

// pending returns the surviving job set, later enqueues superseding
// earlier ones under the same id.
func (b *fakeBroker) pending() map[string]enqueue {
	jobs := make(map[string]enqueue)
	for _, e := range b.enqueues {
		jobs[e.jobID] = e
	}
	return jobs
}

func setup(t *testing.T) (db database.Client, cleanup func()) {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "capsuled.*.db")
	if err != nil {
		panic(err)
	}
	filename := tmpfile.Name()
	tmpfile.Close()

	db, err = database.StormOpen(filename)
	if err != nil {
		panic(err)
	}

	return db, func() {
		db.Close()
		os.Remove(filename)
	}
}

func TestSchedulerSchedule(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	broker := &fakeBroker{}
	s := scheduler.New(db, broker, discard())

	at := time.Date(2027, 3, 17, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Schedule("abc", at))

	require.Len(t, broker.enqueues, 1)
	assert.Equal(t, "capsule_abc", broker.enqueues[0].jobID)
	assert.Equal(t, "abc", broker.enqueues[0].payload)
	assert.Equal(t, at, broker.enqueues[0].runAt)
}

func TestSchedulerRescheduleSupersedes(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	broker := &fakeBroker{}
	s := scheduler.New(db, broker, discard())

	require.NoError(t, s.Schedule("abc", time.Now().Add(time.Hour)))
	require.NoError(t, s.Schedule("abc", time.Now().Add(2*time.Hour)))

	assert.Len(t, broker.pending(), 1)
}

func TestSchedulerReconcile(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	// future: gets a trigger. past-due and draft: none.
	scheduled := &model.Capsule{CreatorID: "c", Number: 1, ScheduledAt: &future}
	require.NoError(t, db.Save(scheduled))
	require.NoError(t, db.Save(&model.Capsule{CreatorID: "c", Number: 2, ScheduledAt: &past}))
	require.NoError(t, db.Save(&model.Capsule{CreatorID: "c", Number: 3}))

	broker := &fakeBroker{}
	s := scheduler.New(db, broker, discard())
	s.Now = func() time.Time { return now }

	require.NoError(t, s.Reconcile())

	jobs := broker.pending()
	require.Len(t, jobs, 1)
	job, ok := jobs["capsule_"+scheduled.ID]
	require.True(t, ok)
	assert.Equal(t, scheduled.ID, job.payload)
	assert.Equal(t, future, job.runAt)

	// Running reconciliation again yields the same single pending
	// trigger per capsule, not duplicates.
	require.NoError(t, s.Reconcile())
	assert.Len(t, broker.pending(), 1)
}
