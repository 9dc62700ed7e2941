// Package gateway defines the boundary to the remote gateway this node
// syncs task lists with. The sync protocol and its transport live outside
// the ledger subsystem; the ledger only exposes reads a sync process can
// call and propagates connection failures unchanged.
package gateway

import (
	"context"
	"fmt"

	"github.com/sparkmesh/miner-agent/internal/domain"
)

// TaskListRequest asks the gateway for the task list recorded for a device,
// optionally pushing locally recorded tasks alongside.
type TaskListRequest struct {
	DeviceID string         `json:"device_id"`
	Tasks    []*domain.Task `json:"tasks,omitempty"`
}

// TaskListResponse carries the gateway's view of the device task list.
type TaskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}

// Connector is the transport boundary toward the gateway. Synchronization
// is best-effort: no delivery guarantee is assumed by callers.
type Connector interface {
	ConnectTaskList(ctx context.Context, req TaskListRequest) (*TaskListResponse, error)
}

// ConnectionError is surfaced by Connector implementations when the
// gateway cannot be reached. The ledger subsystem only propagates it.
type ConnectionError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface for ConnectionError.
func (e *ConnectionError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("gateway connection to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("gateway connection failed: %v", e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(endpoint string, err error) *ConnectionError {
	return &ConnectionError{Endpoint: endpoint, Err: err}
}
