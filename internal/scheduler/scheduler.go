// Package scheduler runs named jobs on fixed intervals.
//
// A job never overlaps itself: a tick that arrives while the previous run is
// still in progress is skipped. Scheduling an id that already exists replaces
// the old job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/sightline/internal/logging"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrShutdown        = errors.New("scheduler is shut down")
)

// JobFunc is the work of a job. ctx is cancelled on Shutdown.
type JobFunc func(ctx context.Context)

// JobInfo describes a scheduled job.
type JobInfo struct {
	ID       string        `json:"id"`
	Interval time.Duration `json:"interval"`
	NextRun  time.Time     `json:"next_run"`
	Running  bool          `json:"running"`
}

type job struct {
	id       string
	interval time.Duration
	fn       JobFunc
	cancel   context.CancelFunc

	running atomic.Bool
	nextRun atomic.Int64 // unix nanos
}

// Scheduler owns one ticker goroutine per job.
type Scheduler struct {
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

func New(logger logging.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger.With(logging.Field{Key: "component", Value: "scheduler"}),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

// Schedule runs fn every interval, starting one interval from now.
// An existing job with the same id is replaced.
func (s *Scheduler) Schedule(id string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if fn == nil {
		return errors.New("job func is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShutdown
	}

	replaced := false
	if old, ok := s.jobs[id]; ok {
		old.cancel()
		replaced = true
	}

	jobCtx, cancel := context.WithCancel(s.ctx)
	j := &job{id: id, interval: interval, fn: fn, cancel: cancel}
	j.nextRun.Store(time.Now().Add(interval).UnixNano())
	s.jobs[id] = j

	s.wg.Add(1)
	go s.loop(jobCtx, j)

	s.logger.Info("job scheduled",
		logging.Field{Key: "job_id", Value: id},
		logging.Field{Key: "interval", Value: interval.String()},
		logging.Field{Key: "replaced", Value: replaced})
	return nil
}

// Remove stops a job. A run already in progress finishes on its own.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.cancel()
	delete(s.jobs, id)
	s.logger.Info("job removed", logging.Field{Key: "job_id", Value: id})
	return nil
}

// Has reports whether id is scheduled.
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// RunNow starts a run of id immediately. It reports false when the job was
// already running and the request was skipped.
func (s *Scheduler) RunNow(id string) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return false, ErrJobNotFound
	}
	return s.fire(j), nil
}

// Jobs lists scheduled jobs ordered by id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{
			ID:       j.id,
			Interval: j.interval,
			NextRun:  time.Unix(0, j.nextRun.Load()),
			Running:  j.running.Load(),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Shutdown stops all jobs and waits for running ones until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.jobs = make(map[string]*job)
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.nextRun.Store(time.Now().Add(j.interval).UnixNano())
			s.fire(j)
		}
	}
}

// fire starts j unless it is already running.
func (s *Scheduler) fire(j *job) bool {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping run, previous run still in progress", logging.Field{Key: "job_id", Value: j.id})
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job panicked",
					logging.Field{Key: "job_id", Value: j.id},
					logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			}
		}()
		j.fn(s.ctx)
	}()
	return true
}
