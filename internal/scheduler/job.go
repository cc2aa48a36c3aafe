package scheduler

import (
	"context"
	"time"
)

// maxHistory results kept per job
const maxHistory = 100

// Job is a unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error

	// Schedule returns the 5-field cron expression
	// Examples: "30 17 * * 1-5" (평일 17:30), "@daily"
	Schedule() string
}

// JobObserver is notified after every finished (or skipped) run
type JobObserver interface {
	JobFinished(job string, result JobResult)
}

// JobResult describes one execution including retries
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// JobStats summarizes the retained history of a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// history keeps the newest maxHistory results of a single job.
// skipped (overlapping) runs are not recorded
type history struct {
	results []JobResult
}

func (h *history) add(r JobResult) {
	h.results = append(h.results, r)
	if over := len(h.results) - maxHistory; over > 0 {
		h.results = append(h.results[:0:0], h.results[over:]...)
	}
}

// latest returns up to n results, oldest first
func (h *history) latest(n int) []JobResult {
	if n > len(h.results) {
		n = len(h.results)
	}
	if n <= 0 {
		return nil
	}
	out := make([]JobResult, n)
	copy(out, h.results[len(h.results)-n:])
	return out
}

func (h *history) stats(job Job) JobStats {
	st := JobStats{
		JobName:   job.Name(),
		Schedule:  job.Schedule(),
		TotalRuns: len(h.results),
	}

	for i := range h.results {
		r := h.results[i]
		start := r.StartTime
		if r.Success {
			st.SuccessCount++
			st.LastSuccess = &start
		} else {
			st.FailureCount++
			st.LastFailure = &start
		}
		st.LastRun = &start
	}
	if st.TotalRuns > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(st.TotalRuns)
	}
	return st
}
