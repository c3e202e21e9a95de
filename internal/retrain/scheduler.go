// Package retrain refits the forecast model from the record store, either on
// demand or on a cron schedule.
package retrain

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a five-field cron expression or a descriptor like "@hourly"
func ParseCron(expr string) (cron.Schedule, error) {
	return parser.Parse(expr)
}

// Scheduler runs a job on a cron schedule. A run that is still in progress
// when the next one is due causes that next run to be skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

// New creates a scheduler that calls job according to spec
func New(spec string, job func()) (*Scheduler, error) {
	schedule, err := ParseCron(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(schedule, cron.FuncJob(job))

	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		cron:     c,
	}, nil
}

// Spec returns the cron expression
func (s *Scheduler) Spec() string {
	return s.spec
}

// Next returns the next scheduled run time after now
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now())
}

// Start begins running the job in the background
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}
