// Package scheduler runs background jobs on cron schedules in market time.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobObserver receives the outcome of every job run.
type JobObserver interface {
	ObserveJob(job string, duration time.Duration, err error)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	observer JobObserver
	log      zerolog.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a new scheduler. Schedules are interpreted in the market timezone
// and use the six-field cron format (with seconds). A run that is still in
// progress when its next tick fires causes that tick to be skipped.
func New(observer JobObserver, log zerolog.Logger) *Scheduler {
	l := log.With().Str("component", "scheduler").Logger()

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(market_hours.Location()),
		cron.WithChain(
			cron.Recover(cronLogger{l}),
			cron.SkipIfStillRunning(cronLogger{l}),
		),
	)

	return &Scheduler{
		cron:     c,
		observer: observer,
		log:      l,
		jobs:     make(map[string]Job),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob adds a job to the scheduler. An empty schedule registers the job for
// RunNow only.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, func() { s.execute(job) }); err != nil {
			return fmt.Errorf("failed to add job %s: %w", job.Name(), err)
		}
	}
	s.jobs[job.Name()] = job

	s.log.Info().
		Str("job", job.Name()).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// RunNow runs a registered job immediately, in the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.execute(job)
}

// Jobs returns the names of all registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) execute(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	start := time.Now()
	err := job.Run()
	duration := time.Since(start)

	if s.observer != nil {
		s.observer.ObserveJob(job.Name(), duration, err)
	}

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Job failed")
		return err
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration", duration).
		Msg("Job completed")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
