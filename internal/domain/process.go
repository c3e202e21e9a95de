package domain

import "time"

// Process represents one business process instance
type Process struct {
	ID             string
	OwnerID        string
	Type           string
	Priority       Priority
	StartTime      time.Time
	EndTime        time.Time
	Status         Status
	StepsCompleted []string
	Retries        int
	Automated      bool
	Metadata       map[string]string
}

// IsCompleted returns true if the process finished successfully
func (p *Process) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Duration returns the wall time between start and end. It is only
// meaningful for completed processes.
func (p *Process) Duration() time.Duration {
	return p.EndTime.Sub(p.StartTime)
}
