package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is the unit of work handed to one agent: a development brief
// with the deliverable files and the communication protocol the agent
// is expected to follow.
type Task struct {
	ID             string
	Persona        string
	Goal           string
	Deliverables   []string
	Protocol       []string
	ExpectedOutput string
	Status         TaskStatus
	Error          string
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewTask creates a task with a generated ID.
func NewTask(persona, goal string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		Persona:   persona,
		Goal:      goal,
		Status:    TaskStatusPending,
		CreatedAt: now,
	}
}

// Start marks the task as running.
func (t *Task) Start() {
	t.Status = TaskStatusRunning
	t.StartedAt = time.Now().UTC()
}

// Complete marks the task as completed.
func (t *Task) Complete() {
	t.Status = TaskStatusCompleted
	t.FinishedAt = time.Now().UTC()
}

// Fail marks the task as failed with the given reason.
func (t *Task) Fail(reason string) {
	t.Status = TaskStatusFailed
	t.Error = reason
	t.FinishedAt = time.Now().UTC()
}
