package types

import (
	"time"

	"github.com/google/uuid"
)

// TaskPriority ranks how important a task is for the crop plan.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// IsValid reports whether p is a known priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TaskStatus tracks the lifecycle of a farm task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskSkipped   TaskStatus = "skipped"
)

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskSkipped:
		return true
	}
	return false
}

// FarmTask is an instructed action for a crop season. PlannedAction is the
// exact instruction given to the farmer and is what feedback analysis compares
// the farmer's response against.
type FarmTask struct {
	ID             uuid.UUID    `json:"id"`
	SeasonID       uuid.UUID    `json:"season_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	PlannedAction  string       `json:"planned_action"`
	Priority       TaskPriority `json:"priority"`
	Status         TaskStatus   `json:"status"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	FarmerResponse *string      `json:"farmer_response,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CreateTaskParams is the payload for creating a farm task.
type CreateTaskParams struct {
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	PlannedAction string       `json:"planned_action"`
	Priority      TaskPriority `json:"priority,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
}

// CompleteTaskParams carries the farmer's natural-language report for a task.
type CompleteTaskParams struct {
	FarmerResponse string `json:"farmer_response"`
}
