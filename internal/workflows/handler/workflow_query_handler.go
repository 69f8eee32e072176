package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/orchestrahq/platform-api/internal/platform/httpx"
	"github.com/orchestrahq/platform-api/internal/saga"
)

type WorkflowQueryRepository interface {
	GetBySagaID(ctx context.Context, tenantID, sagaID string) (*saga.Instance, error)
}

type WorkflowQueryHandler struct {
	repo WorkflowQueryRepository
}

type workflowResponse struct {
	SagaID      string         `json:"saga_id"`
	SagaType    string         `json:"saga_type"`
	Status      string         `json:"status"`
	CurrentStep int            `json:"current_step"`
	Payload     map[string]any `json:"payload"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func NewWorkflowQueryHandler(repo WorkflowQueryRepository) *WorkflowQueryHandler {
	return &WorkflowQueryHandler{
		repo: repo,
	}
}

func (h *WorkflowQueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sagaID := httpx.URLParam(r, "id")
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		httpx.ValidationError(w, r, map[string]string{"tenant": "tenant context missing from request"})
		return
	}

	instance, err := h.repo.GetBySagaID(r.Context(), tenantID, sagaID)
	if err != nil {
		switch {
		case errors.Is(err, saga.ErrInstanceNotFound):
			httpx.NotFound(w, r)
		default:
			httpx.InternalError(w, r, err)
		}
		return
	}

	response := workflowResponse{
		SagaID:      instance.SagaID,
		SagaType:    instance.SagaType,
		Status:      string(instance.Status),
		CurrentStep: instance.CurrentStep,
		Payload:     instance.Payload,
		UpdatedAt:   instance.UpdatedAt,
	}

	if err := httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{"workflow": response}, nil); err != nil {
		httpx.InternalError(w, r, err)
	}
}
