package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinflow/tradebot/internal/events"
	apptesting "github.com/skinflow/tradebot/internal/testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil, nil, zerolog.Nop())
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestManagerExecutesEnqueuedJob(t *testing.T) {
	m := newTestManager(t)

	var mu sync.Mutex
	var executed []string
	m.Register(JobTypeWALCheckpoint, func(_ context.Context, job *Job) error {
		mu.Lock()
		executed = append(executed, job.ID)
		mu.Unlock()
		return nil
	})

	require.NoError(t, m.Enqueue(&Job{ID: "job-1", Type: JobTypeWALCheckpoint, MaxRetries: 1}))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(executed) == 1
	})
	mu.Lock()
	assert.Equal(t, "job-1", executed[0])
	mu.Unlock()
}

func TestManagerRejectsUnregisteredJobType(t *testing.T) {
	m := NewManager(nil, nil, zerolog.Nop())

	err := m.Enqueue(&Job{ID: "job-2", Type: JobTypeNightlyBackup})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestManagerDequeuePrefersHigherPriority(t *testing.T) {
	m := NewManager(nil, nil, zerolog.Nop())
	m.Register(JobTypeWALCheckpoint, func(context.Context, *Job) error { return nil })
	m.Register(JobTypeReconcileRetry, func(context.Context, *Job) error { return nil })

	now := time.Now().Add(-time.Second)
	require.NoError(t, m.Enqueue(&Job{ID: "low", Type: JobTypeWALCheckpoint, Priority: PriorityLow, CreatedAt: now, AvailableAt: now}))
	require.NoError(t, m.Enqueue(&Job{ID: "high", Type: JobTypeReconcileRetry, Priority: PriorityHigh, CreatedAt: now, AvailableAt: now}))

	first := m.dequeue()
	require.NotNil(t, first)
	assert.Equal(t, "high", first.ID)

	second := m.dequeue()
	require.NotNil(t, second)
	assert.Equal(t, "low", second.ID)

	assert.Nil(t, m.dequeue())
}

func TestManagerDequeueSkipsNotYetAvailable(t *testing.T) {
	m := NewManager(nil, nil, zerolog.Nop())
	m.Register(JobTypeWALCheckpoint, func(context.Context, *Job) error { return nil })

	require.NoError(t, m.Enqueue(&Job{
		ID:          "future",
		Type:        JobTypeWALCheckpoint,
		AvailableAt: time.Now().Add(time.Hour),
	}))

	assert.Nil(t, m.dequeue())
	assert.Equal(t, 1, m.Size())
}

func TestManagerSchedulesRetryOnFailure(t *testing.T) {
	m := NewManager(nil, nil, zerolog.Nop())
	m.Register(JobTypeReconcileRetry, func(context.Context, *Job) error {
		return errors.New("reconcile failed")
	})

	job := &Job{ID: "job-3", Type: JobTypeReconcileRetry, MaxRetries: 3, CreatedAt: time.Now()}
	m.execute(job)

	assert.Equal(t, 1, job.Retries)
	assert.True(t, job.AvailableAt.After(time.Now()), "retry must be deferred")
	assert.Equal(t, 1, m.Size())
}

func TestManagerDropsExhaustedJob(t *testing.T) {
	m := NewManager(nil, nil, zerolog.Nop())
	m.Register(JobTypeReconcileRetry, func(context.Context, *Job) error {
		return errors.New("still failing")
	})

	job := &Job{ID: "job-4", Type: JobTypeReconcileRetry, Retries: 3, MaxRetries: 3}
	m.execute(job)

	assert.Equal(t, 0, m.Size())
}

func TestManagerRestoresPersistedRetries(t *testing.T) {
	db, cleanup := apptesting.NewTestDB(t, "cache")
	defer cleanup()

	store := NewRetryStore(db.Conn(), zerolog.Nop())
	require.NoError(t, store.Save(context.Background(), &Job{
		ID:         "persisted-1",
		Type:       JobTypeReconcileRetry,
		Payload:    map[string]interface{}{"trade_offer_id": "offer-5"},
		Retries:    1,
		MaxRetries: 8,
		CreatedAt:  time.Now(),
	}))

	executed := make(chan *Job, 1)
	m := NewManager(store, nil, zerolog.Nop())
	m.Register(JobTypeReconcileRetry, func(_ context.Context, job *Job) error {
		executed <- job
		return nil
	})
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	select {
	case job := <-executed:
		assert.Equal(t, "persisted-1", job.ID)
		assert.Equal(t, "offer-5", job.Payload["trade_offer_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("restored job never executed")
	}

	// A successful run clears the persisted row.
	waitFor(t, 2*time.Second, func() bool {
		n, err := store.Count(context.Background())
		return err == nil && n == 0
	})
}

func TestRetryBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryBackoff(1))
	assert.Equal(t, time.Minute, retryBackoff(2))
	assert.Equal(t, 2*time.Minute, retryBackoff(3))
	assert.Equal(t, maxRetryDelay, retryBackoff(12))
}

func TestManagerInjectsProgressReporter(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	em := events.NewManager(bus, zerolog.Nop())

	var mu sync.Mutex
	var progress []string
	bus.Subscribe(events.JobProgress, func(event *events.Event) {
		data, ok := event.Data["payload"].(*events.JobStatusData)
		if !ok {
			return
		}
		mu.Lock()
		progress = append(progress, data.JobID)
		mu.Unlock()
	})

	m := NewManager(nil, em, zerolog.Nop())
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)

	m.Register(JobTypeNightlyBackup, func(_ context.Context, job *Job) error {
		pr, ok := job.GetProgressReporter().(*ProgressReporter)
		if !ok {
			return errors.New("progress reporter not injected")
		}
		pr.ReportMessage("snapshot started")
		return nil
	})
	require.NoError(t, m.Enqueue(&Job{ID: "job-p", Type: JobTypeNightlyBackup, MaxRetries: 1}))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(progress) > 0 && progress[0] == "job-p"
	})
}
