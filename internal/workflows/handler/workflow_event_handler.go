package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/orchestrahq/platform-api/internal/platform/command"
	"github.com/orchestrahq/platform-api/internal/platform/messaging"
)

// WorkflowEventHandler starts workflows from messages published by other
// services. It implements messaging.MessageHandler.
type WorkflowEventHandler struct {
	service WorkflowCommandService
	logger  *slog.Logger
}

type workflowStartEvent struct {
	WorkflowType string         `json:"workflow_type"`
	Payload      map[string]any `json:"payload"`
	Metadata     map[string]any `json:"metadata"`
}

func NewWorkflowEventHandler(service WorkflowCommandService, logger *slog.Logger) *WorkflowEventHandler {
	return &WorkflowEventHandler{
		service: service,
		logger:  logger.With("component", "workflowEventHandler"),
	}
}

// HandleMessage is the entry point called by the NatsSubscriber. Malformed
// messages are logged and dropped, never retried.
func (h *WorkflowEventHandler) HandleMessage(ctx context.Context, subject string, payload []byte) error {
	var envelope messaging.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.logger.Error("failed to unmarshal event envelope", "error", err, "subject", subject)
		return nil
	}

	if err := envelope.Validate(); err != nil {
		h.logger.Error("invalid event envelope", "error", err, "subject", subject)
		return nil
	}

	if envelope.EventType != "app.workflow.start" {
		h.logger.Warn("received unknown workflow event, discarding", "type", envelope.EventType)
		return nil
	}

	payloadBytes, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.Error("failed to marshal payload", "error", err, "event_id", envelope.EventID)
		return nil
	}

	var event workflowStartEvent
	if err := json.Unmarshal(payloadBytes, &event); err != nil {
		h.logger.Error("failed to unmarshal workflow start event", "error", err, "event_id", envelope.EventID)
		return nil
	}

	if event.WorkflowType == "" {
		h.logger.Error("workflow start event missing workflow type", "event_id", envelope.EventID)
		return nil
	}

	ctx = command.WithSource(ctx, command.SourceEvent)
	sagaID, err := h.service.StartWorkflow(
		ctx, envelope.TenantID, event.WorkflowType, event.Payload, event.Metadata,
	)
	if err != nil {
		h.logger.Error("failed to start workflow from event",
			"error", err, "event_id", envelope.EventID)
		return err
	}

	h.logger.Info("workflow started from event",
		"sagaId", sagaID, "workflowType", event.WorkflowType, "event_id", envelope.EventID)
	return nil
}
