package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/orchestrahq/platform-api/internal/platform/command"
	"github.com/orchestrahq/platform-api/internal/platform/eventstore"
	"github.com/orchestrahq/platform-api/internal/platform/httpx"
	"github.com/orchestrahq/platform-api/internal/platform/validator"
	"github.com/orchestrahq/platform-api/internal/saga"
)

const tenantHeader = "X-Tenant-ID"

type WorkflowCommandService interface {
	StartWorkflow(
		ctx context.Context, tenantID, workflowType string, payload, metadata map[string]any,
	) (string, error)
}

type WorkflowCommandHandler struct {
	service WorkflowCommandService
}

// data contract for the API endpoint
type startWorkflowRequest struct {
	WorkflowType string         `json:"workflow_type"`
	Payload      map[string]any `json:"payload"`
	Metadata     map[string]any `json:"metadata"`
}

func NewWorkflowCommandHandler(service WorkflowCommandService) *WorkflowCommandHandler {
	return &WorkflowCommandHandler{
		service: service,
	}
}

func (h *WorkflowCommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.startWorkflow(w, r)
	default:
		httpx.MethodNotAllowed(w, r)
	}
}

func (h *WorkflowCommandHandler) startWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := command.WithSource(r.Context(), command.SourceREST)

	tenantID := r.Header.Get(tenantHeader)

	var req startWorkflowRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		httpx.BadRequest(w, r, err)
		return
	}

	v := validator.New()
	v.Check(tenantID != "", "tenant", "tenant context missing from request")
	v.Check(req.WorkflowType != "", "workflow_type", "must be provided")
	v.Check(req.Payload != nil, "payload", "must be provided")
	if !v.Valid() {
		httpx.ValidationError(w, r, v.Errors)
		return
	}

	sagaID, err := h.service.StartWorkflow(ctx, tenantID, req.WorkflowType, req.Payload, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, eventstore.ErrConcurrencyConflict):
			httpx.Conflict(w, r, "a workflow with this saga id was modified concurrently")
		case errors.Is(err, saga.ErrMissingTenant):
			httpx.ValidationError(w, r, map[string]string{"tenant": err.Error()})
		default:
			httpx.InternalError(w, r, err)
		}
		return
	}

	_ = httpx.WriteJSON(w, http.StatusAccepted, httpx.Envelope{
		"saga_id":       sagaID,
		"workflow_type": req.WorkflowType,
		"status":        "accepted",
	}, nil)
}
