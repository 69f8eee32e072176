package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// AppendEvents writes the batch inside one transaction scoped to the batch
// tenant. A locking read on the current max version serializes concurrent
// appenders to the same aggregate; the unique constraint on
// (aggregate_id, event_version) is the last line of defense.
func (s *PostgresStore) AppendEvents(
	ctx context.Context, aggregateID string, events []DomainEvent, expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}

	tenantID := events[0].TenantID
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required to append events", ErrInvalidEvent)
	}
	for _, event := range events {
		if err := validateEvent(event, aggregateID, tenantID); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Tenant context must be set before the version check so row security
	// applies to every read and write in this transaction.
	if _, err := tx.ExecContext(
		ctx, `SELECT set_config('app.current_tenant', $1, true)`, tenantID,
	); err != nil {
		return fmt.Errorf("could not set tenant context: %w", err)
	}

	currentVersion, err := lockCurrentVersion(ctx, tx, aggregateID)
	if err != nil {
		return err
	}
	if currentVersion != expectedVersion {
		return fmt.Errorf(
			"%w: expected version %d but found %d for aggregate %s",
			ErrConcurrencyConflict, expectedVersion, currentVersion, aggregateID,
		)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_store (
			tenant_id, aggregate_id, aggregate_type, event_type,
			event_data, metadata, event_version
		)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::jsonb, '{}'::jsonb), $7)
	`)
	if err != nil {
		return fmt.Errorf("could not prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for index, event := range events {
		eventData, err := json.Marshal(event.EventData)
		if err != nil {
			return fmt.Errorf("could not marshal event data: %w", err)
		}

		// Absent metadata goes in as SQL NULL so the insert's COALESCE
		// defaults it to an empty jsonb object, never jsonb null.
		var metadata any
		if event.Metadata != nil {
			raw, err := json.Marshal(event.Metadata)
			if err != nil {
				return fmt.Errorf("could not marshal event metadata: %w", err)
			}
			metadata = raw
		}

		_, err = stmt.ExecContext(ctx,
			event.TenantID,
			aggregateID,
			event.AggregateType,
			event.EventType,
			eventData,
			metadata,
			expectedVersion+index+1,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf(
					"%w: version collision while appending to aggregate %s",
					ErrConcurrencyConflict, aggregateID,
				)
			}
			return fmt.Errorf("could not insert event %s: %w", event.EventType, err)
		}
	}

	return tx.Commit()
}

// lockCurrentVersion reads the latest version for the aggregate with a
// FOR UPDATE lock, returning 0 for a stream with no events yet.
func lockCurrentVersion(ctx context.Context, tx *sql.Tx, aggregateID string) (int, error) {
	var version int
	err := tx.QueryRowContext(ctx, `
		SELECT event_version
		  FROM event_store
		 WHERE aggregate_id = $1
		 ORDER BY event_version DESC
		 LIMIT 1
		 FOR UPDATE
	`, aggregateID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not read current aggregate version: %w", err)
	}
	return version, nil
}

func validateEvent(event DomainEvent, aggregateID, tenantID string) error {
	if event.AggregateID != aggregateID {
		return fmt.Errorf(
			"%w: event aggregate id %q does not match append aggregate id %q",
			ErrInvalidEvent, event.AggregateID, aggregateID,
		)
	}
	if event.AggregateType == "" {
		return fmt.Errorf("%w: aggregate type is required", ErrInvalidEvent)
	}
	if event.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidEvent)
	}
	if event.TenantID != tenantID {
		return fmt.Errorf(
			"%w: all events in a batch must belong to the same tenant", ErrInvalidEvent,
		)
	}
	return nil
}
