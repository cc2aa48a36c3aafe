package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/rsscreen/pkg/logger"
)

// ErrJobNotFound is returned for names that were never added
var ErrJobNotFound = errors.New("job not found")

// errAlreadyRunning marks a run skipped because the previous one has not returned
var errAlreadyRunning = errors.New("already running")

type entry struct {
	job     Job
	id      cron.EntryID
	history history
	running bool
}

// Scheduler runs jobs on 5-field cron schedules with retries
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron     *cron.Cron
	logger   *logger.Logger
	observer JobObserver

	mu      sync.RWMutex
	entries map[string]*entry

	// 실행 중 작업 취소용
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	maxRetries int
	retryDelay time.Duration
}

// New creates a scheduler evaluating cron expressions in loc (nil = Local)
func New(log *logger.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		logger:     log.WithField("module", "scheduler"),
		entries:    make(map[string]*entry),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 2,
		retryDelay: 5 * time.Minute,
	}
}

// WithRetry sets how often a failed run is retried and the pause between attempts
func (s *Scheduler) WithRetry(maxRetries int, delay time.Duration) *Scheduler {
	s.maxRetries = maxRetries
	s.retryDelay = delay
	return s
}

// WithObserver reports every run to o (metrics)
func (s *Scheduler) WithObserver(o JobObserver) *Scheduler {
	s.observer = o
	return s
}

// AddJob registers job under its cron schedule. Names must be unique.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.execute(s.ctx, name)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule(), name, err)
	}
	s.entries[name] = &entry{job: job, id: id}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")
	return nil
}

// RemoveJob unschedules a job; a run in progress is not interrupted
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return nil
}

// Start begins firing schedules in the background
func (s *Scheduler) Start() {
	s.logger.WithField("jobs", len(s.JobNames())).Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Trigger starts a job immediately in the background
func (s *Scheduler) Trigger(name string) error {
	if _, err := s.lookup(name); err != nil {
		return err
	}
	go s.execute(s.ctx, name)
	return nil
}

// RunJobNow runs a job synchronously and returns its result
func (s *Scheduler) RunJobNow(ctx context.Context, name string) (JobResult, error) {
	if _, err := s.lookup(name); err != nil {
		return JobResult{}, err
	}

	result := s.execute(ctx, name)
	if !result.Success {
		return result, fmt.Errorf("job %s failed: %s", name, result.Error)
	}
	return result, nil
}

// NextRun returns the next activation time in the scheduler's location
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.RLock()
	e, exists := s.entries[name]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}

	ce := s.cron.Entry(e.id)
	if !ce.Next.IsZero() {
		return ce.Next, nil
	}
	// 스케줄러 시작 전에는 Next가 비어있음
	return ce.Schedule.Next(time.Now().In(s.cron.Location())), nil
}

// JobNames returns registered job names, sorted
func (s *Scheduler) JobNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats summarizes the retained history of one job
func (s *Scheduler) Stats(name string) (JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return JobStats{}, fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	return e.history.stats(e.job), nil
}

// History returns up to n most recent results of a job, oldest first
func (s *Scheduler) History(name string, n int) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	return e.history.latest(n), nil
}

func (s *Scheduler) lookup(name string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	return e, nil
}

// execute runs one scheduled activation. Overlapping activations are skipped.
func (s *Scheduler) execute(ctx context.Context, name string) JobResult {
	start := time.Now()
	log := s.logger.WithField("job", name)

	s.mu.Lock()
	e, exists := s.entries[name]
	if !exists || e.running {
		s.mu.Unlock()
		result := JobResult{JobName: name, StartTime: start, EndTime: start, Skipped: true, Error: errAlreadyRunning.Error()}
		if !exists {
			result.Error = ErrJobNotFound.Error()
		}
		log.Warn("Job skipped: " + result.Error)
		s.notify(result)
		return result
	}
	e.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	log.Info("Job started")
	attempts, err := s.attempt(ctx, e.job, log)

	end := time.Now()
	result := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Attempts:  attempts,
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	e.running = false
	e.history.add(result)
	s.mu.Unlock()
	s.notify(result)

	fields := map[string]interface{}{
		"duration": result.Duration,
		"attempts": attempts,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Job failed after all retries")
	} else {
		log.WithFields(fields).Info("Job completed")
	}
	return result
}

// attempt calls job.Run up to maxRetries+1 times; cancellation ends the loop early
func (s *Scheduler) attempt(ctx context.Context, job Job, log *logger.Logger) (int, error) {
	var err error
	for n := 1; ; n++ {
		if err = job.Run(ctx); err == nil || ctx.Err() != nil || n > s.maxRetries {
			return n, err
		}

		log.WithFields(map[string]interface{}{
			"attempt": n,
			"error":   err.Error(),
		}).Warn("Job attempt failed, retrying")

		select {
		case <-ctx.Done():
			return n, err
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Scheduler) notify(r JobResult) {
	if s.observer != nil {
		s.observer.JobFinished(r.JobName, r)
	}
}
