package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateTTL = time.Hour

// WorkflowStateStore keeps a short-lived, per-tenant snapshot of a
// workflow's current state in Redis. It backs the workflow saga's step
// side effects; the event stream remains the durable record.
type WorkflowStateStore struct {
	rdb *redis.Client
}

func NewWorkflowStateStore(rdb *redis.Client) *WorkflowStateStore {
	return &WorkflowStateStore{rdb: rdb}
}

type stateSnapshot struct {
	State        string         `json:"state"`
	WorkflowType string         `json:"workflowType"`
	Payload      map[string]any `json:"payload"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// SetState writes the workflow state snapshot under the tenant-scoped key
// with a one hour TTL.
func (s *WorkflowStateStore) SetState(
	ctx context.Context, tenantID, sagaID, workflowType, state string, payload map[string]any,
) error {
	snapshot, err := json.Marshal(stateSnapshot{
		State:        state,
		WorkflowType: workflowType,
		Payload:      payload,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("could not marshal workflow state: %w", err)
	}

	if err := s.rdb.Set(ctx, stateKey(tenantID, sagaID), snapshot, stateTTL).Err(); err != nil {
		return fmt.Errorf("could not cache workflow state: %w", err)
	}
	return nil
}

// Delete removes the workflow state snapshot.
func (s *WorkflowStateStore) Delete(ctx context.Context, tenantID, sagaID string) error {
	if err := s.rdb.Del(ctx, stateKey(tenantID, sagaID)).Err(); err != nil {
		return fmt.Errorf("could not delete workflow state: %w", err)
	}
	return nil
}

func stateKey(tenantID, sagaID string) string {
	return fmt.Sprintf("workflow:%s:%s", tenantID, sagaID)
}
