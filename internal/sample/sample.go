// Package sample provides the built-in demo scenario used by the demo command.
package sample

import (
	"time"

	"github.com/hochfrequenz/process-eta/internal/domain"
)

// History returns three completed processes that finished relative to now.
func History(now time.Time) []*domain.Process {
	return []*domain.Process{
		{
			ID:             "p1",
			OwnerID:        "user1",
			Type:           "TRADE",
			Priority:       domain.PriorityHigh,
			StartTime:      now.Add(-600 * time.Second),
			EndTime:        now.Add(-300 * time.Second),
			Status:         domain.StatusCompleted,
			StepsCompleted: []string{"INIT", "VERIFY", "EXECUTE"},
			Retries:        2,
			Automated:      true,
			Metadata:       map[string]string{},
		},
		{
			ID:             "p2",
			OwnerID:        "user2",
			Type:           "TRANSFER",
			Priority:       domain.PriorityMedium,
			StartTime:      now.Add(-1000 * time.Second),
			EndTime:        now.Add(-600 * time.Second),
			Status:         domain.StatusCompleted,
			StepsCompleted: []string{"INIT", "ROUTE"},
			Retries:        1,
			Metadata:       map[string]string{},
		},
		{
			ID:             "p3",
			OwnerID:        "user3",
			Type:           "AUDIT",
			Priority:       domain.PriorityLow,
			StartTime:      now.Add(-1200 * time.Second),
			EndTime:        now.Add(-900 * time.Second),
			Status:         domain.StatusCompleted,
			StepsCompleted: []string{"INIT", "LOG"},
			Metadata:       map[string]string{},
		},
	}
}

// InFlight returns the running process forecast by the demo, started at now.
func InFlight(now time.Time) *domain.Process {
	return &domain.Process{
		ID:             "pX",
		OwnerID:        "user4",
		Type:           "TRADE",
		Priority:       domain.PriorityHigh,
		StartTime:      now,
		EndTime:        now,
		Status:         domain.StatusInProgress,
		StepsCompleted: []string{"INIT", "VERIFY"},
		Retries:        1,
		Automated:      true,
		Metadata:       map[string]string{},
	}
}
