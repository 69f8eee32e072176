package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateCall struct {
	op    string
	state string
}

type mockStateStore struct {
	calls       []stateCall
	errToReturn error
}

func (m *mockStateStore) SetState(
	ctx context.Context, tenantID, sagaID, workflowType, state string, payload map[string]any,
) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.calls = append(m.calls, stateCall{op: "set", state: state})
	return nil
}

func (m *mockStateStore) Delete(ctx context.Context, tenantID, sagaID string) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.calls = append(m.calls, stateCall{op: "del"})
	return nil
}

func TestBuildWorkflowSteps_StepOrderAndIDs(t *testing.T) {
	states := &mockStateStore{}

	steps := BuildWorkflowSteps(states, "tenant-a", "saga-1", "order-fulfillment", nil)

	require.Len(t, steps, 2)
	assert.Equal(t, "cache-workflow-payload", steps[0].StepID)
	assert.Equal(t, "mark-workflow-prepared", steps[1].StepID)
}

func TestBuildWorkflowSteps_ActionsWriteThroughStates(t *testing.T) {
	// --- Arrange ---
	states := &mockStateStore{}
	ctx := context.Background()
	steps := BuildWorkflowSteps(states, "tenant-a", "saga-1", "order-fulfillment", nil)

	// --- Act ---
	require.NoError(t, steps[0].Action(ctx))
	require.NoError(t, steps[1].Action(ctx))

	// --- Assert ---
	assert.Equal(t, []stateCall{
		{op: "set", state: "pending"},
		{op: "set", state: "prepared"},
	}, states.calls)
}

func TestBuildWorkflowSteps_CompensationsUnwindState(t *testing.T) {
	// --- Arrange ---
	states := &mockStateStore{}
	ctx := context.Background()
	steps := BuildWorkflowSteps(states, "tenant-a", "saga-1", "order-fulfillment", nil)

	// --- Act ---
	// Undo in reverse order, the way the orchestrator walks them.
	require.NoError(t, steps[1].Compensation(ctx))
	require.NoError(t, steps[0].Compensation(ctx))

	// --- Assert ---
	assert.Equal(t, []stateCall{
		{op: "set", state: "pending"},
		{op: "del"},
	}, states.calls)
}
