package scheduler_test

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lunaris/capsuled/internal/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firelog struct {
	mu       sync.Mutex
	payloads []string
}

func (f *firelog) handler(payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}

func (f *firelog) fired() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

func discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestMemoryBrokerFires(t *testing.T) {
	log := &firelog{}
	broker := scheduler.NewMemoryBroker(log.handler, discard())
	defer broker.Stop()

	require.NoError(t, broker.Enqueue("job", "payload", time.Now().Add(10*time.Millisecond)))
	assert.Equal(t, 1, broker.Pending())

	assert.Eventually(t, func() bool {
		return len(log.fired()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"payload"}, log.fired())
	assert.Equal(t, 0, broker.Pending())
}

func TestMemoryBrokerFiresPastDueImmediately(t *testing.T) {
	log := &firelog{}
	broker := scheduler.NewMemoryBroker(log.handler, discard())
	defer broker.Stop()

	require.NoError(t, broker.Enqueue("job", "payload", time.Now().Add(-time.Hour)))
	assert.Eventually(t, func() bool {
		return len(log.fired()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBrokerSupersedes(t *testing.T) {
	log := &firelog{}
	broker := scheduler.NewMemoryBroker(log.handler, discard())
	defer broker.Stop()

	require.NoError(t, broker.Enqueue("job", "first", time.Now().Add(20*time.Millisecond)))
	require.NoError(t, broker.Enqueue("job", "second", time.Now().Add(40*time.Millisecond)))
	assert.Equal(t, 1, broker.Pending())

	assert.Eventually(t, func() bool {
		return len(log.fired()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"second"}, log.fired())
}

func TestMemoryBrokerStop(t *testing.T) {
	log := &firelog{}
	broker := scheduler.NewMemoryBroker(log.handler, discard())

	require.NoError(t, broker.Enqueue("job", "payload", time.Now().Add(50*time.Millisecond)))
	broker.Stop()
	assert.Equal(t, 0, broker.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, log.fired())

	// Enqueue after Stop is ignored.
	require.NoError(t, broker.Enqueue("job", "payload", time.Now()))
	assert.Equal(t, 0, broker.Pending())
}
