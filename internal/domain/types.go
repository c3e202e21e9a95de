package domain

import "strings"

// Status represents the lifecycle state of a process instance
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus normalises a status string. Unknown values are kept verbatim
// (upper-cased) so that downstream consumers can tolerate them.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// Priority represents process priority
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority normalises a priority string ("high" -> HIGH). Unknown values
// are kept verbatim (upper-cased), they are scored like LOW by the forecaster.
func ParsePriority(s string) Priority {
	return Priority(strings.ToUpper(strings.TrimSpace(s)))
}
