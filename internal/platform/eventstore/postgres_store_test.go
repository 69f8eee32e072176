package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/orchestrahq/platform-api/internal/platform/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postgresTestFixture struct {
	db    *sql.DB
	store *PostgresStore
	t     *testing.T
}

func setup(t *testing.T) *postgresTestFixture {
	t.Helper()

	uri := os.Getenv("POSTGRES_URI")
	if uri == "" {
		t.Skip("Skipping integration test: POSTGRES_URI env variable is not set")
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbConn, err := database.NewPostgresDB(ctx, uri, 5, 5, 5*time.Minute, logger)
	require.NoError(t, err, "Failed to connect to postgres for test")

	store := NewPostgresStore(dbConn.Pool)

	t.Cleanup(func() {
		_, err := dbConn.Pool.Exec("DELETE FROM event_store")
		if err != nil {
			t.Fatalf("Failed to clean up test data: %v", err)
		}
	})

	return &postgresTestFixture{
		db:    dbConn.Pool,
		store: store,
		t:     t,
	}
}

func testEvent(aggregateID, eventType string) DomainEvent {
	return DomainEvent{
		AggregateID:   aggregateID,
		AggregateType: "workflow",
		EventType:     eventType,
		EventData:     map[string]any{"name": "test"},
		TenantID:      "tenant-a",
	}
}

func TestPostgresStore_AppendEvents_AssignsContiguousVersions(t *testing.T) {
	// --- Arrange ---
	fixture := setup(t)
	ctx := context.Background()

	events := []DomainEvent{
		testEvent("WF001", "workflow.created"),
		testEvent("WF001", "workflow.prepared"),
	}

	// --- Act ---
	err := fixture.store.AppendEvents(ctx, "WF001", events, 0)
	require.NoError(t, err, "AppendEvents should not return an error")

	// --- Assert ---
	rows, err := fixture.db.QueryContext(ctx, `
		SELECT event_type, event_version FROM event_store
		WHERE aggregate_id = $1 ORDER BY event_version
	`, "WF001")
	require.NoError(t, err)
	defer rows.Close()

	type stored struct {
		eventType string
		version   int
	}
	var got []stored
	for rows.Next() {
		var s stored
		require.NoError(t, rows.Scan(&s.eventType, &s.version))
		got = append(got, s)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, 2)
	assert.Equal(t, stored{"workflow.created", 1}, got[0])
	assert.Equal(t, stored{"workflow.prepared", 2}, got[1])
}

func TestPostgresStore_AppendEvents_StaleVersionWritesNothing(t *testing.T) {
	// --- Arrange ---
	fixture := setup(t)
	ctx := context.Background()

	require.NoError(t, fixture.store.AppendEvents(
		ctx, "WF002", []DomainEvent{testEvent("WF002", "workflow.created")}, 0,
	))

	// --- Act ---
	err := fixture.store.AppendEvents(
		ctx, "WF002", []DomainEvent{testEvent("WF002", "workflow.prepared")}, 0,
	)

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	var count int
	require.NoError(t, fixture.db.QueryRowContext(
		ctx, "SELECT count(*) FROM event_store WHERE aggregate_id = $1", "WF002",
	).Scan(&count))
	assert.Equal(t, 1, count, "the stale append must not write a partial batch")
}

func TestPostgresStore_AppendEvents_ConcurrentAppenders(t *testing.T) {
	// --- Arrange ---
	fixture := setup(t)
	ctx := context.Background()

	require.NoError(t, fixture.store.AppendEvents(
		ctx, "WF003", []DomainEvent{testEvent("WF003", "workflow.created")}, 0,
	))

	// --- Act ---
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fixture.store.AppendEvents(
				ctx, "WF003", []DomainEvent{testEvent("WF003", "workflow.prepared")}, 1,
			)
		}(i)
	}
	wg.Wait()

	// --- Assert ---
	var conflicts, successes int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrConcurrencyConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent appender should win")
	assert.Equal(t, 1, conflicts, "the loser must observe a concurrency conflict")
}

func TestPostgresStore_AppendEvents_PersistsEventData(t *testing.T) {
	// --- Arrange ---
	fixture := setup(t)
	ctx := context.Background()

	event := testEvent("WF004", "workflow.created")
	event.EventData = map[string]any{"stepId": "cache-workflow-payload"}

	// --- Act ---
	err := fixture.store.AppendEvents(ctx, "WF004", []DomainEvent{event}, 0)
	require.NoError(t, err)

	// --- Assert ---
	var raw []byte
	require.NoError(t, fixture.db.QueryRowContext(
		ctx, "SELECT event_data FROM event_store WHERE aggregate_id = $1", "WF004",
	).Scan(&raw))

	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, map[string]any{"stepId": "cache-workflow-payload"}, data)
}

func TestPostgresStore_AppendEvents_DefaultsAbsentMetadataToEmptyObject(t *testing.T) {
	// --- Arrange ---
	fixture := setup(t)
	ctx := context.Background()

	event := testEvent("WF007", "workflow.created")
	event.Metadata = nil

	// --- Act ---
	err := fixture.store.AppendEvents(ctx, "WF007", []DomainEvent{event}, 0)
	require.NoError(t, err)

	// --- Assert ---
	var raw []byte
	require.NoError(t, fixture.db.QueryRowContext(
		ctx, "SELECT metadata FROM event_store WHERE aggregate_id = $1", "WF007",
	).Scan(&raw))
	assert.JSONEq(t, `{}`, string(raw), "absent metadata must be stored as an empty object")

	var isObject bool
	require.NoError(t, fixture.db.QueryRowContext(ctx, `
		SELECT jsonb_typeof(metadata) = 'object'
		  FROM event_store WHERE aggregate_id = $1
	`, "WF007").Scan(&isObject))
	assert.True(t, isObject, "metadata column must never hold jsonb null")
}

func TestPostgresStore_AppendEvents_Validation(t *testing.T) {
	// Validation runs before any transaction is opened, so a nil pool is safe.
	store := NewPostgresStore(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		events []DomainEvent
	}{
		{
			name: "mismatched aggregate id",
			events: []DomainEvent{{
				AggregateID: "OTHER", AggregateType: "workflow",
				EventType: "workflow.created", TenantID: "tenant-a",
			}},
		},
		{
			name: "missing aggregate type",
			events: []DomainEvent{{
				AggregateID: "WF005", EventType: "workflow.created", TenantID: "tenant-a",
			}},
		},
		{
			name: "missing tenant id",
			events: []DomainEvent{{
				AggregateID: "WF005", AggregateType: "workflow", EventType: "workflow.created",
			}},
		},
		{
			name: "mixed tenants in one batch",
			events: []DomainEvent{
				{
					AggregateID: "WF005", AggregateType: "workflow",
					EventType: "workflow.created", TenantID: "tenant-a",
				},
				{
					AggregateID: "WF005", AggregateType: "workflow",
					EventType: "workflow.prepared", TenantID: "tenant-b",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.AppendEvents(ctx, "WF005", tt.events, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.NotErrorIs(t, err, ErrConcurrencyConflict)
		})
	}
}

func TestPostgresStore_AppendEvents_EmptyBatchIsNoOp(t *testing.T) {
	store := NewPostgresStore(nil)

	err := store.AppendEvents(context.Background(), "WF006", nil, 0)

	assert.NoError(t, err, "an empty batch must perform no I/O")
}
