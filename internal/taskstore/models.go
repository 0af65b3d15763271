package taskstore

import "time"

// Kind distinguishes what a task is doing.
type Kind string

const (
	KindTranslate Kind = "translate"
	KindReview    Kind = "review"
	KindAlign     Kind = "align"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusPending:   {},
	StatusRunning:   {},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ValidStatus reports whether the status is one the store recognizes.
func ValidStatus(status Status) bool {
	_, ok := statusSet[status]
	return ok
}

// Terminal reports whether a task in this status will not change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one pipeline run tracked in the store.
type Task struct {
	ID             string
	Kind           Kind
	Status         Status
	SourcePath     string
	CheckpointPath string
	OutputPath     string
	CompletedUnits int
	TotalUnits     int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Percent returns completion as 0..100 for display.
func (t *Task) Percent() float64 {
	if t.TotalUnits <= 0 {
		return 0
	}
	return float64(t.CompletedUnits) / float64(t.TotalUnits) * 100
}
