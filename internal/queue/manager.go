package queue

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/events"
)

const (
	jobTimeout     = 2 * time.Minute
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 30 * time.Minute
	pollInterval   = 5 * time.Second
)

// HandlerFunc executes one job. A returned error schedules a retry until
// MaxRetries is exhausted.
type HandlerFunc func(ctx context.Context, job *Job) error

// Manager is the job queue: an in-memory priority queue drained by a
// single worker goroutine. Jobs execute one at a time; retries are
// persisted through the RetryStore when one is configured.
type Manager struct {
	handlers     map[JobType]HandlerFunc
	retryStore   *RetryStore
	eventManager *events.Manager
	log          zerolog.Logger

	pending []*Job
	trigger chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	started bool
	mu      sync.Mutex
}

// NewManager creates a job queue manager. retryStore and eventManager
// may be nil.
func NewManager(retryStore *RetryStore, eventManager *events.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		handlers:     make(map[JobType]HandlerFunc),
		retryStore:   retryStore,
		eventManager: eventManager,
		log:          log.With().Str("component", "job_queue").Logger(),
		trigger:      make(chan struct{}, 1),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Register binds a handler to a job type. Enqueueing a type with no
// handler fails.
func (m *Manager) Register(jobType JobType, handler HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[jobType] = handler
}

// Enqueue adds a job to the queue and wakes the worker.
func (m *Manager) Enqueue(job *Job) error {
	m.mu.Lock()
	if _, ok := m.handlers[job.Type]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("no handler registered for job type %s", job.Type)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.AvailableAt.IsZero() {
		job.AvailableAt = job.CreatedAt
	}
	m.pending = append(m.pending, job)
	m.mu.Unlock()

	m.wake()
	return nil
}

// Start restores persisted retries and starts the worker loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if m.retryStore != nil {
		jobs, err := m.retryStore.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to restore persisted retries: %w", err)
		}
		restored := 0
		for _, job := range jobs {
			if err := m.Enqueue(job); err != nil {
				m.log.Warn().Err(err).Str("job_id", job.ID).Msg("skipping persisted retry with no handler")
				continue
			}
			restored++
		}
		if restored > 0 {
			m.log.Info().Int("count", restored).Msg("restored persisted job retries")
		}
	}

	go m.run()
	m.log.Info().Msg("job queue started")
	return nil
}

// Stop shuts down the worker; the in-flight job finishes first.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.stopped
	m.log.Info().Msg("job queue stopped")
}

// Size returns the number of queued jobs.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) wake() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

func (m *Manager) run() {
	defer close(m.stopped)

	// The poll ticker catches jobs whose AvailableAt lies in the future.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-m.trigger:
		case <-ticker.C:
		}

		for {
			job := m.dequeue()
			if job == nil {
				break
			}
			m.execute(job)

			select {
			case <-m.stop:
				return
			default:
			}
		}
	}
}

// dequeue pops the highest-priority runnable job, oldest first within a
// priority. Returns nil when nothing is runnable yet.
func (m *Manager) dequeue() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	best := -1
	for i, job := range m.pending {
		if job.AvailableAt.After(now) {
			continue
		}
		if best == -1 || job.Priority > m.pending[best].Priority ||
			(job.Priority == m.pending[best].Priority && job.CreatedAt.Before(m.pending[best].CreatedAt)) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	job := m.pending[best]
	m.pending = append(m.pending[:best], m.pending[best+1:]...)
	return job
}

func (m *Manager) execute(job *Job) {
	m.mu.Lock()
	handler := m.handlers[job.Type]
	m.mu.Unlock()

	if m.eventManager != nil {
		job.progressReporter = NewProgressReporter(m.eventManager, job.ID, job.Type)
	}

	m.emitStatus(job, "started", "", 0)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	err := handler(ctx, job)
	cancel()

	duration := time.Since(start)
	if err == nil {
		m.emitStatus(job, "completed", "", duration.Seconds())
		m.log.Debug().
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Dur("duration", duration).
			Msg("job completed")
		if m.retryStore != nil {
			if derr := m.retryStore.Delete(context.Background(), job.ID); derr != nil {
				m.log.Warn().Err(derr).Str("job_id", job.ID).Msg("failed to clear persisted retry")
			}
		}
		return
	}

	m.emitStatus(job, "failed", err.Error(), duration.Seconds())
	m.log.Error().
		Err(err).
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("retries", job.Retries).
		Msg("job failed")

	m.scheduleRetry(job)
}

func (m *Manager) scheduleRetry(job *Job) {
	if job.Retries >= job.MaxRetries {
		m.log.Warn().
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Int("max_retries", job.MaxRetries).
			Msg("job exhausted retries, dropping")
		if m.retryStore != nil {
			if err := m.retryStore.Delete(context.Background(), job.ID); err != nil {
				m.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to clear exhausted retry")
			}
		}
		return
	}

	job.Retries++
	job.AvailableAt = time.Now().Add(retryBackoff(job.Retries))

	if m.retryStore != nil {
		if err := m.retryStore.Save(context.Background(), job); err != nil {
			m.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist retry")
		}
	}

	m.mu.Lock()
	m.pending = append(m.pending, job)
	// Deterministic order for inspection; dequeue scans anyway.
	sort.SliceStable(m.pending, func(i, j int) bool {
		return m.pending[i].AvailableAt.Before(m.pending[j].AvailableAt)
	})
	m.mu.Unlock()

	m.log.Info().
		Str("job_id", job.ID).
		Int("retry", job.Retries).
		Time("available_at", job.AvailableAt).
		Msg("job scheduled for retry")
}

func (m *Manager) emitStatus(job *Job, status, errMsg string, durationSecs float64) {
	if m.eventManager == nil {
		return
	}
	m.eventManager.EmitTyped("queue", &events.JobStatusData{
		JobID:       job.ID,
		JobType:     string(job.Type),
		Status:      status,
		Description: GetJobDescription(job.Type),
		Error:       errMsg,
		Duration:    durationSecs,
		Timestamp:   time.Now(),
	})
}

// retryBackoff returns the delay before retry n (1-based), doubling each
// attempt and capped at maxRetryDelay.
func retryBackoff(retry int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(retry-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	return time.Duration(delay)
}
