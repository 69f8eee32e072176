package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orchestrahq/platform-api/internal/platform/database"
	"github.com/orchestrahq/platform-api/internal/saga"
)

// SagaInstancePostgresRepository persists the saga instance projection.
// Every call runs in its own short transaction with the tenant context set
// before any read or write, so row security stays in force. Upsert on an
// existing saga id always resets the row to running at step zero, whatever
// status the caller supplied.
type SagaInstancePostgresRepository struct {
	db *database.PostgresDB
}

func NewSagaInstancePostgresRepository(db *database.PostgresDB) *SagaInstancePostgresRepository {
	return &SagaInstancePostgresRepository{
		db: db,
	}
}

func (r *SagaInstancePostgresRepository) Upsert(ctx context.Context, instance saga.Instance) error {
	payload, err := json.Marshal(orEmpty(instance.Payload))
	if err != nil {
		return fmt.Errorf("could not marshal saga payload: %w", err)
	}
	metadata, err := json.Marshal(orEmpty(instance.Metadata))
	if err != nil {
		return fmt.Errorf("could not marshal saga metadata: %w", err)
	}

	return r.withTenantTx(ctx, instance.TenantID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO saga_instances (
				saga_id, tenant_id, saga_type, payload, metadata, status, current_step
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (saga_id) DO UPDATE
			   SET saga_type = EXCLUDED.saga_type,
			       payload = EXCLUDED.payload,
			       metadata = EXCLUDED.metadata,
			       status = 'running',
			       current_step = 0,
			       updated_at = now()
		`,
			instance.SagaID,
			instance.TenantID,
			instance.SagaType,
			payload,
			metadata,
			string(instance.Status),
			instance.CurrentStep,
		)
		if err != nil {
			return fmt.Errorf("could not upsert saga instance %s: %w", instance.SagaID, err)
		}
		return nil
	})
}

func (r *SagaInstancePostgresRepository) UpdateProgress(
	ctx context.Context, tenantID, sagaID string, currentStep int, status saga.Status,
) error {
	return r.withTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE saga_instances
			   SET current_step = $3,
			       status = $4,
			       updated_at = now()
			 WHERE saga_id = $1 AND tenant_id = $2
		`, sagaID, tenantID, currentStep, string(status))
		if err != nil {
			return fmt.Errorf("could not update saga progress for %s: %w", sagaID, err)
		}
		return nil
	})
}

func (r *SagaInstancePostgresRepository) GetBySagaID(
	ctx context.Context, tenantID, sagaID string,
) (*saga.Instance, error) {
	var (
		instance saga.Instance
		payload  []byte
		metadata []byte
		status   string
	)

	err := r.withTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			SELECT saga_id, tenant_id, saga_type, payload, metadata,
			       status, current_step, updated_at
			  FROM saga_instances
			 WHERE saga_id = $1 AND tenant_id = $2
		`, sagaID, tenantID).Scan(
			&instance.SagaID,
			&instance.TenantID,
			&instance.SagaType,
			&payload,
			&metadata,
			&status,
			&instance.CurrentStep,
			&instance.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("saga %s not found: %w", sagaID, saga.ErrInstanceNotFound)
		}
		return nil, fmt.Errorf("could not get saga instance %s: %w", sagaID, err)
	}

	instance.Status = saga.Status(status)
	if err := json.Unmarshal(payload, &instance.Payload); err != nil {
		return nil, fmt.Errorf("could not unmarshal saga payload: %w", err)
	}
	if err := json.Unmarshal(metadata, &instance.Metadata); err != nil {
		return nil, fmt.Errorf("could not unmarshal saga metadata: %w", err)
	}

	return &instance, nil
}

// withTenantTx wraps fn in a transaction whose tenant context is set first
// and ends with the transaction regardless of outcome. Rollback errors are
// swallowed so the originating error is what propagates.
func (r *SagaInstancePostgresRepository) withTenantTx(
	ctx context.Context, tenantID string, fn func(tx *sql.Tx) error,
) error {
	tx, err := r.db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx, `SELECT set_config('app.current_tenant', $1, true)`, tenantID,
	); err != nil {
		return fmt.Errorf("could not set tenant context: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
