package application

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/orchestrahq/platform-api/internal/platform/command"
	"github.com/orchestrahq/platform-api/internal/platform/messaging"
	"github.com/orchestrahq/platform-api/internal/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executedSaga struct {
	sagaID string
	steps  []saga.Step
	opts   saga.ExecuteOptions
}

type mockSagaExecutor struct {
	executed chan executedSaga
}

func newMockSagaExecutor() *mockSagaExecutor {
	return &mockSagaExecutor{executed: make(chan executedSaga, 1)}
}

func (m *mockSagaExecutor) ExecuteSaga(
	ctx context.Context, sagaID string, steps []saga.Step, opts saga.ExecuteOptions,
) error {
	m.executed <- executedSaga{sagaID: sagaID, steps: steps, opts: opts}
	return nil
}

type mockPublisher struct {
	PublishedCalled   bool
	PublishedSubject  string
	PublishedEnvelope *messaging.EventEnvelope
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, envelope *messaging.EventEnvelope) error {
	m.PublishedCalled = true
	m.PublishedSubject = subject
	m.PublishedEnvelope = envelope
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func newTestService(executor SagaExecutor, publisher messaging.Publisher) *WorkflowService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorkflowService(executor, &mockStateStore{}, publisher, logger)
}

func waitForExecution(t *testing.T, executor *mockSagaExecutor) executedSaga {
	t.Helper()
	select {
	case executed := <-executor.executed:
		return executed
	case <-time.After(2 * time.Second):
		t.Fatal("saga was never executed")
		return executedSaga{}
	}
}

func TestWorkflowService_StartWorkflow_HappyPath(t *testing.T) {
	// --- Arrange ---
	executor := newMockSagaExecutor()
	publisher := &mockPublisher{}
	service := newTestService(executor, publisher)

	ctx := command.WithSource(context.Background(), command.SourceREST)
	payload := map[string]any{"orderId": "ORD-1"}

	// --- Act ---
	sagaID, err := service.StartWorkflow(ctx, "tenant-a", "order-fulfillment", payload, nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.NotEmpty(t, sagaID)

	executed := waitForExecution(t, executor)
	assert.Equal(t, sagaID, executed.sagaID)
	assert.Equal(t, "tenant-a", executed.opts.TenantID)
	assert.Equal(t, "order-fulfillment", executed.opts.SagaType)
	assert.Equal(t, 0, executed.opts.ExpectedVersion)
	assert.Equal(t, payload, executed.opts.Payload)
	require.Len(t, executed.steps, 2)
	assert.Equal(t, "cache-workflow-payload", executed.steps[0].StepID)

	assert.True(t, publisher.PublishedCalled, "expected Publish() to be called for REST commands")
	assert.Equal(t, "app.workflow", publisher.PublishedSubject)
	require.NotNil(t, publisher.PublishedEnvelope)
	assert.Equal(t, "app.workflow.accepted", publisher.PublishedEnvelope.EventType)
	assert.Equal(t, sagaID, publisher.PublishedEnvelope.AggregateID)
	assert.Equal(t, "tenant-a", publisher.PublishedEnvelope.TenantID)
}

func TestWorkflowService_StartWorkflow_EventSourceDoesNotRepublish(t *testing.T) {
	// --- Arrange ---
	executor := newMockSagaExecutor()
	publisher := &mockPublisher{}
	service := newTestService(executor, publisher)

	ctx := command.WithSource(context.Background(), command.SourceEvent)

	// --- Act ---
	_, err := service.StartWorkflow(ctx, "tenant-a", "order-fulfillment", map[string]any{}, nil)

	// --- Assert ---
	require.NoError(t, err)
	waitForExecution(t, executor)
	assert.False(t, publisher.PublishedCalled,
		"commands that arrived as events must not be published again")
}

func TestWorkflowService_StartWorkflow_RequiresTenantAndType(t *testing.T) {
	executor := newMockSagaExecutor()
	publisher := &mockPublisher{}
	service := newTestService(executor, publisher)
	ctx := context.Background()

	_, err := service.StartWorkflow(ctx, "", "order-fulfillment", nil, nil)
	assert.ErrorIs(t, err, saga.ErrMissingTenant)

	_, err = service.StartWorkflow(ctx, "tenant-a", "", nil, nil)
	assert.Error(t, err)

	select {
	case <-executor.executed:
		t.Fatal("no saga may be executed when validation fails")
	case <-time.After(50 * time.Millisecond):
	}
}
