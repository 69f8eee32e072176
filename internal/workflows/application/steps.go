package application

import (
	"context"

	"github.com/orchestrahq/platform-api/internal/saga"
)

// StateStore is the cache the workflow saga steps write through.
type StateStore interface {
	SetState(ctx context.Context, tenantID, sagaID, workflowType, state string, payload map[string]any) error
	Delete(ctx context.Context, tenantID, sagaID string) error
}

// Workflow cache states written by the saga steps.
const (
	statePending  = "pending"
	statePrepared = "prepared"
)

// BuildWorkflowSteps assembles the saga steps for starting a workflow.
// Each step's compensation restores the cache to the state the previous
// step left behind, so a partial failure unwinds cleanly.
func BuildWorkflowSteps(
	states StateStore, tenantID, sagaID, workflowType string, payload map[string]any,
) []saga.Step {
	return []saga.Step{
		{
			StepID: "cache-workflow-payload",
			Action: func(ctx context.Context) error {
				return states.SetState(ctx, tenantID, sagaID, workflowType, statePending, payload)
			},
			Compensation: func(ctx context.Context) error {
				return states.Delete(ctx, tenantID, sagaID)
			},
		},
		{
			StepID: "mark-workflow-prepared",
			Action: func(ctx context.Context) error {
				return states.SetState(ctx, tenantID, sagaID, workflowType, statePrepared, payload)
			},
			Compensation: func(ctx context.Context) error {
				return states.SetState(ctx, tenantID, sagaID, workflowType, statePending, payload)
			},
		},
	}
}
