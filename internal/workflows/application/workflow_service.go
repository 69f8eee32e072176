package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/orchestrahq/platform-api/internal/platform/command"
	"github.com/orchestrahq/platform-api/internal/platform/httpx"
	"github.com/orchestrahq/platform-api/internal/platform/messaging"
	"github.com/orchestrahq/platform-api/internal/saga"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SagaExecutor runs a saga to completion or compensation.
type SagaExecutor interface {
	ExecuteSaga(ctx context.Context, sagaID string, steps []saga.Step, opts saga.ExecuteOptions) error
}

// WorkflowService accepts workflow start requests, builds the saga steps,
// and hands them to the orchestrator. Execution is fire-and-forget: the
// caller gets the saga id immediately and tracks progress through the
// instance projection.
type WorkflowService struct {
	orchestrator SagaExecutor
	states       StateStore
	publisher    messaging.Publisher
	eventChannel string
	logger       *slog.Logger
}

func NewWorkflowService(
	orchestrator SagaExecutor,
	states StateStore,
	publisher messaging.Publisher,
	logger *slog.Logger,
) *WorkflowService {
	return &WorkflowService{
		orchestrator: orchestrator,
		states:       states,
		publisher:    publisher,
		eventChannel: "app.workflow",
		logger:       logger.With("component", "workflow.service"),
	}
}

func (s *WorkflowService) StartWorkflow(
	ctx context.Context, tenantID, workflowType string, payload, metadata map[string]any,
) (string, error) {
	ctx, span := otel.Tracer("orchestrahq/platform-api").Start(ctx, "workflow.service.start")
	defer span.End()
	logger := httpx.GetLogger(ctx).With("component", "workflow.service")

	if tenantID == "" {
		return "", saga.ErrMissingTenant
	}
	if workflowType == "" {
		return "", fmt.Errorf("workflow type is required")
	}

	sagaID := uuid.NewString()
	span.SetAttributes(
		attribute.String("saga.id", sagaID),
		attribute.String("workflow.type", workflowType),
	)

	steps := BuildWorkflowSteps(s.states, tenantID, sagaID, workflowType, payload)

	// The saga outlives the request: it runs on its own goroutine with a
	// context detached from the request's cancellation.
	execCtx := httpx.WithLogger(context.WithoutCancel(ctx), s.logger)
	go func() {
		err := s.orchestrator.ExecuteSaga(execCtx, sagaID, steps, saga.ExecuteOptions{
			TenantID:        tenantID,
			SagaType:        workflowType,
			Payload:         payload,
			Metadata:        metadata,
			ExpectedVersion: 0,
		})
		if err != nil {
			s.logger.Error("workflow saga failed",
				"sagaId", sagaID, "workflowType", workflowType, "tenantId", tenantID,
				"error", err)
		}
	}()

	if command.IsFromREST(ctx) {
		envelope := messaging.NewEventEnvelope(
			"app.workflow.accepted",
			sagaID,
			"saga:"+workflowType,
			tenantID,
			0,
			map[string]any{"workflowType": workflowType},
		)
		if err := s.publisher.Publish(ctx, s.eventChannel, envelope); err != nil {
			wrappedErr := fmt.Errorf("failed to publish workflow accepted event: %w", err)
			logger.Error("publishing workflow accepted event failed",
				"error", wrappedErr, "eventID", envelope.EventID)
			span.RecordError(wrappedErr)
		}
	}

	httpx.WorkflowStartCounter.Add(ctx, 1)

	span.SetStatus(codes.Ok, "")
	logger.Info("workflow saga started", "sagaId", sagaID, "workflowType", workflowType)
	return sagaID, nil
}
