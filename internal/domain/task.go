package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of an inference task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskSource tags where a task record originated: on this node or synced
// from the remote gateway. Aggregate queries never mix the two lineages.
type TaskSource string

// Possible task source values
const (
	TaskSourceLocal   TaskSource = "local"
	TaskSourceGateway TaskSource = "gateway"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskModel    = errors.New("task model cannot be empty")
	ErrEmptyTaskDeviceID = errors.New("task device ID cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrInvalidTaskSource = errors.New("invalid task source")
)

// Task is one unit of inference work tracked for accounting purposes.
// Duration fields are nanosecond counters reported by the inference engine.
type Task struct {
	ID                 uuid.UUID  `json:"id"`
	Model              string     `json:"model"`
	Status             TaskStatus `json:"status"`
	DeviceID           string     `json:"device_id"`
	Source             TaskSource `json:"source"`
	TotalDuration      int64      `json:"total_duration"`
	LoadDuration       int64      `json:"load_duration"`
	PromptEvalCount    int64      `json:"prompt_eval_count"`
	PromptEvalDuration int64      `json:"prompt_eval_duration"`
	EvalCount          int64      `json:"eval_count"`
	EvalDuration       int64      `json:"eval_duration"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewTask creates a new Task for the given model and device.
// It generates a new UUID for the task ID, sets the status to pending,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(model, deviceID string, source TaskSource) (*Task, error) {
	task := &Task{
		ID:        uuid.New(),
		Model:     model,
		Status:    TaskStatusPending,
		DeviceID:  deviceID,
		Source:    source,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Model == "" {
		return ErrEmptyTaskModel
	}

	if t.DeviceID == "" {
		return ErrEmptyTaskDeviceID
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskSource(t.Source) {
		return ErrInvalidTaskSource
	}

	return nil
}

// TaskUpdate describes a partial update to an existing task.
// Nil fields are left unchanged.
type TaskUpdate struct {
	Status             *TaskStatus
	TotalDuration      *int64
	LoadDuration       *int64
	PromptEvalCount    *int64
	PromptEvalDuration *int64
	EvalCount          *int64
	EvalDuration       *int64
}

// IsEmpty reports whether the update carries no field changes.
func (u TaskUpdate) IsEmpty() bool {
	return u.Status == nil &&
		u.TotalDuration == nil &&
		u.LoadDuration == nil &&
		u.PromptEvalCount == nil &&
		u.PromptEvalDuration == nil &&
		u.EvalCount == nil &&
		u.EvalDuration == nil
}

// Validate checks that any status carried by the update is a known status.
func (u TaskUpdate) Validate() error {
	if u.Status != nil && !isValidTaskStatus(*u.Status) {
		return ErrInvalidTaskStatus
	}
	return nil
}

// SourceForRegistration maps a device's registration state to the task
// lineage its records belong to: registered devices carry gateway-synced
// records, unregistered devices carry node-local ones.
func SourceForRegistration(registered bool) TaskSource {
	if registered {
		return TaskSourceGateway
	}
	return TaskSourceLocal
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTaskSource checks if the given source is a valid TaskSource.
func isValidTaskSource(source TaskSource) bool {
	switch source {
	case TaskSourceLocal, TaskSourceGateway:
		return true
	default:
		return false
	}
}
