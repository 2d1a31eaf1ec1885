// Package scheduler runs periodic maintenance jobs inside the worker.
// Schedules use standard cron syntax, including "@every 1h" descriptors.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of scheduled work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. ctx is cancelled when the worker stops.
	Run(ctx context.Context) error
}

// Schedule computes the next activation after t.
type Schedule interface {
	Next(t time.Time) time.Time
}

// ParseSchedule parses a five-field cron expression or a descriptor such
// as "@hourly" or "@every 15m".
func ParseSchedule(spec string) (Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob           = errors.New("job cannot be nil")
	ErrNilSchedule      = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrJobNotFound      = errors.New("job not found")
)

// Config contains configuration for the Scheduler.
type Config struct {
	// Tick is how often due jobs are checked.
	Tick time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Tick: time.Second}
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name      string
	NextRun   time.Time
	LastRun   time.Time
	LastError error
	RunCount  int64
	FailCount int64
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	running  bool
	info     JobInfo
}

// Scheduler runs registered jobs on their schedules. It implements
// suture.Service. A job still running when it comes due again is skipped.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*scheduledJob
	tick   time.Duration
	now    func() time.Time
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates an empty scheduler.
func New(config Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Tick <= 0 {
		config.Tick = DefaultConfig().Tick
	}
	return &Scheduler{
		jobs:   make(map[string]*scheduledJob),
		tick:   config.Tick,
		now:    time.Now,
		logger: logger.With("component", "scheduler"),
	}
}

// Register adds a job. Its first run is the schedule's next activation.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	sj := &scheduledJob{job: job, schedule: schedule}
	sj.info = JobInfo{Name: name, NextRun: schedule.Next(s.now())}
	s.jobs[name] = sj

	s.logger.Info("job registered", "job", name, "next_run", sj.info.NextRun.Format(time.RFC3339))
	return nil
}

// Serve checks for due jobs every tick until ctx is cancelled, then waits
// for running jobs to return.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	defer s.wg.Wait()

	s.logger.Info("scheduler started", "jobs", len(s.Jobs()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "scheduler"
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*scheduledJob, 0)
	for _, sj := range s.jobs {
		if now.Before(sj.info.NextRun) {
			continue
		}
		sj.info.NextRun = sj.schedule.Next(now)
		if sj.running {
			s.logger.Warn("job still running, skipping", "job", sj.info.Name)
			continue
		}
		sj.running = true
		due = append(due, sj)
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.execute(ctx, sj)
		}()
	}
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	if ok && sj.running {
		s.mu.Unlock()
		return fmt.Errorf("job %s is already running", name)
	}
	if ok {
		sj.running = true
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, sj)
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) error {
	name := sj.info.Name
	started := time.Now()
	err := sj.job.Run(ctx)
	elapsed := time.Since(started)
	metrics.RecordJobRun(name, elapsed.Seconds(), err)

	s.mu.Lock()
	sj.running = false
	sj.info.LastRun = s.now()
	sj.info.LastError = err
	sj.info.RunCount++
	if err != nil {
		sj.info.FailCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", elapsed.String(), "error", err)
		return err
	}
	s.logger.Debug("job completed", "job", name, "duration", elapsed.String())
	return nil
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, sj := range s.jobs {
		out = append(out, sj.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
