package messaging

import (
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
)

func TestNewEventEnvelope_CreatesEnvelopeWithRequiredFields(t *testing.T) {
	// Arrange
	eventType := "app.workflow.accepted"
	aggregateID := faker.UUIDHyphenated()
	tenantID := faker.UUIDHyphenated()
	payload := map[string]any{
		"workflowType": "order-fulfillment",
	}

	// Act
	envelope := NewEventEnvelope(eventType, aggregateID, "saga:order-fulfillment", tenantID, 1, payload)

	// Assert
	assert.Equal(t, eventType, envelope.EventType)
	assert.Equal(t, aggregateID, envelope.AggregateID)
	assert.Equal(t, "saga:order-fulfillment", envelope.AggregateType)
	assert.Equal(t, tenantID, envelope.TenantID)
	assert.Equal(t, 1, envelope.AggregateVersion)
	assert.Equal(t, 1, envelope.EventVersion)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.Timestamp.IsZero())
	assert.NotNil(t, envelope.Payload)
}

func TestEventEnvelope_WithOptions(t *testing.T) {
	envelope := NewEventEnvelope(
		"app.workflow.accepted",
		"saga-1",
		"saga:order-fulfillment",
		"tenant-a",
		1,
		map[string]any{"test": "data"},
		WithCorrelationID("correlation-123"),
		WithCausationID("causation-456"),
		WithUserID("user-789"),
	)

	assert.Equal(t, "correlation-123", envelope.CorrelationID)
	assert.Equal(t, "causation-456", envelope.CausationID)
	assert.Equal(t, "user-789", envelope.UserID)
}

func TestEventEnvelope_Validation(t *testing.T) {
	valid := func() *EventEnvelope {
		return NewEventEnvelope(
			"app.workflow.accepted", "saga-1", "saga:order-fulfillment", "tenant-a",
			1, map[string]any{"test": "data"},
		)
	}

	tests := []struct {
		name     string
		mutate   func(e *EventEnvelope)
		errorMsg string
	}{
		{
			name:   "valid envelope",
			mutate: func(e *EventEnvelope) {},
		},
		{
			name:     "empty event type",
			mutate:   func(e *EventEnvelope) { e.EventType = "" },
			errorMsg: "event type is required",
		},
		{
			name:     "empty aggregate ID",
			mutate:   func(e *EventEnvelope) { e.AggregateID = "" },
			errorMsg: "aggregate ID is required",
		},
		{
			name:     "empty tenant ID",
			mutate:   func(e *EventEnvelope) { e.TenantID = "" },
			errorMsg: "tenant ID is required",
		},
		{
			name:     "nil payload",
			mutate:   func(e *EventEnvelope) { e.Payload = nil },
			errorMsg: "payload is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := valid()
			tt.mutate(envelope)

			err := envelope.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			}
		})
	}
}
