package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Earning
var (
	ErrEmptyEarningID       = errors.New("earning ID cannot be empty")
	ErrEmptyEarningTaskID   = errors.New("earning task ID cannot be empty")
	ErrEmptyEarningDeviceID = errors.New("earning device ID cannot be empty")
	ErrNegativeBlockRewards = errors.New("block rewards cannot be negative")
	ErrNegativeJobRewards   = errors.New("job rewards cannot be negative")
	ErrInvalidEarningSource = errors.New("invalid earning source")
)

// Earning is an immutable ledger row recording reward amounts tied to a
// completed unit of work. Rows are created exactly once and never updated.
type Earning struct {
	ID           uuid.UUID  `json:"id"`
	BlockRewards float64    `json:"block_rewards"`
	JobRewards   float64    `json:"job_rewards"`
	DeviceID     string     `json:"device_id"`
	TaskID       uuid.UUID  `json:"task_id"`
	Source       TaskSource `json:"source"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewEarning creates a new Earning row for the given task and device.
// It generates a new UUID for the earning ID and sets the creation timestamp.
// Returns an error if validation fails.
func NewEarning(blockRewards, jobRewards float64, taskID uuid.UUID, deviceID string, source TaskSource) (*Earning, error) {
	earning := &Earning{
		ID:           uuid.New(),
		BlockRewards: blockRewards,
		JobRewards:   jobRewards,
		DeviceID:     deviceID,
		TaskID:       taskID,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
	}

	if err := earning.Validate(); err != nil {
		return nil, err
	}

	return earning, nil
}

// Validate checks if the Earning has valid data.
// Returns an error if any field fails validation.
func (e *Earning) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEarningID
	}

	if e.TaskID == uuid.Nil {
		return ErrEmptyEarningTaskID
	}

	if e.DeviceID == "" {
		return ErrEmptyEarningDeviceID
	}

	if e.BlockRewards < 0 {
		return ErrNegativeBlockRewards
	}

	if e.JobRewards < 0 {
		return ErrNegativeJobRewards
	}

	if !isValidTaskSource(e.Source) {
		return ErrInvalidEarningSource
	}

	return nil
}

// Total returns the combined block and job rewards of the row.
func (e *Earning) Total() float64 {
	return e.BlockRewards + e.JobRewards
}
