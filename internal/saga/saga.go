package saga

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMissingTenant    = errors.New("saga execution requires a tenant id")
	ErrMissingSagaType  = errors.New("saga execution requires a saga type")
	ErrInstanceNotFound = errors.New("saga instance not found")
)

// Status is the lifecycle state of a saga instance projection.
type Status string

const (
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusCompensating Status = "compensating"
	StatusFailed       Status = "failed"
)

// Lifecycle event types appended to the saga's own event stream.
const (
	EventSagaStarted             = "SagaStarted"
	EventSagaStepCompleted       = "SagaStepCompleted"
	EventSagaCompleted           = "SagaCompleted"
	EventSagaCompensationStarted = "SagaCompensationStarted"
	EventSagaStepCompensated     = "SagaStepCompensated"
	EventSagaCompensationFailed  = "SagaCompensationFailed"
	EventSagaFailed              = "SagaFailed"
)

// Step is one unit of work in a saga. Action performs the step's effect;
// Compensation undoes it during rollback and must be safe to call after a
// partial failure. The orchestrator treats both as opaque calls.
type Step struct {
	StepID       string
	Action       func(ctx context.Context) error
	Compensation func(ctx context.Context) error
}

// ExecuteOptions configures one saga run. TenantID and SagaType are
// required. ExpectedVersion defaults to 0: the saga aggregate is assumed
// to be new unless a resume version is supplied explicitly.
type ExecuteOptions struct {
	TenantID        string
	SagaType        string
	Payload         map[string]any
	Metadata        map[string]any
	ExpectedVersion int
}

// Instance is the read-optimized projection of one saga, keyed by saga id.
// The event stream is authoritative; this row is a convenience cache kept
// consistent with the latest known saga status.
type Instance struct {
	SagaID      string
	TenantID    string
	SagaType    string
	Payload     map[string]any
	Metadata    map[string]any
	Status      Status
	CurrentStep int
	UpdatedAt   time.Time
}

// InstanceRepository persists the saga instance projection. Every write
// happens in its own short tenant-scoped transaction.
type InstanceRepository interface {
	// Upsert inserts the instance or, if the saga id already exists, resets
	// it to a fresh running state at step zero.
	Upsert(ctx context.Context, instance Instance) error

	// UpdateProgress records the current step and status for a saga.
	UpdateProgress(ctx context.Context, tenantID, sagaID string, currentStep int, status Status) error

	// GetBySagaID returns the projection for one saga within a tenant.
	GetBySagaID(ctx context.Context, tenantID, sagaID string) (*Instance, error)
}
