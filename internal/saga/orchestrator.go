package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orchestrahq/platform-api/internal/platform/eventstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "orchestrahq/platform-api"

// Orchestrator drives a saga through its steps, recording lifecycle events
// in the event store and mirroring progress into the instance projection.
// Steps within one saga run strictly sequentially; concurrent sagas only
// coordinate through the event store's per-aggregate locking.
type Orchestrator struct {
	store     eventstore.Store
	instances InstanceRepository
	logger    *slog.Logger
}

func NewOrchestrator(
	store eventstore.Store, instances InstanceRepository, logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		instances: instances,
		logger:    logger.With("component", "sagaOrchestrator"),
	}
}

// ExecuteSaga runs the steps in order. On any failure it compensates the
// completed steps most-recent-first and returns the triggering error;
// compensation bookkeeping failures are logged and recorded as events but
// never replace the error the caller observes.
func (o *Orchestrator) ExecuteSaga(
	ctx context.Context, sagaID string, steps []Step, opts ExecuteOptions,
) error {
	if opts.TenantID == "" {
		return ErrMissingTenant
	}
	if opts.SagaType == "" {
		return ErrMissingSagaType
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "saga.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("saga.id", sagaID),
		attribute.String("saga.type", opts.SagaType),
		attribute.Int("saga.step.count", len(steps)),
	)

	logger := o.logger.With(
		"sagaId", sagaID, "sagaType", opts.SagaType, "tenantId", opts.TenantID,
	)

	completed, version, err := o.runSteps(ctx, sagaID, steps, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "saga execution failed")
		logger.Error("saga execution failed", "error", err)

		// The failed step is the first one that never completed; absent when
		// the failure happened after every step succeeded.
		var failedStepID any
		if len(completed) < len(steps) {
			failedStepID = steps[len(completed)].StepID
		}
		o.handleFailure(ctx, logger, sagaID, opts, err, completed, version, failedStepID)
		return err
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("saga completed")
	return nil
}

// runSteps executes the happy path and returns the completed steps, in
// order, together with the version cursor for the saga's event stream.
func (o *Orchestrator) runSteps(
	ctx context.Context, sagaID string, steps []Step, opts ExecuteOptions,
) (completed []Step, version int, err error) {
	version = opts.ExpectedVersion

	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		stepIDs[i] = step.StepID
	}

	payload := opts.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	err = o.instances.Upsert(ctx, Instance{
		SagaID:      sagaID,
		TenantID:    opts.TenantID,
		SagaType:    opts.SagaType,
		Payload:     payload,
		Metadata:    opts.Metadata,
		Status:      StatusRunning,
		CurrentStep: 0,
	})
	if err != nil {
		return completed, version, fmt.Errorf("could not initialize saga instance: %w", err)
	}

	err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaStarted,
		map[string]any{"steps": stepIDs}, version)
	if err != nil {
		return completed, version, err
	}
	version++

	for index, step := range steps {
		err = o.instances.UpdateProgress(ctx, opts.TenantID, sagaID, index+1, StatusRunning)
		if err != nil {
			return completed, version, fmt.Errorf("could not record saga progress: %w", err)
		}

		if err = o.runStep(ctx, step, index); err != nil {
			return completed, version, err
		}
		completed = append(completed, step)

		err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaStepCompleted,
			map[string]any{"stepId": step.StepID}, version)
		if err != nil {
			return completed, version, err
		}
		version++
	}

	err = o.instances.UpdateProgress(ctx, opts.TenantID, sagaID, len(steps), StatusCompleted)
	if err != nil {
		return completed, version, fmt.Errorf("could not mark saga as completed: %w", err)
	}

	err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaCompleted,
		map[string]any{"steps": stepIDs}, version)
	if err != nil {
		return completed, version, err
	}
	version++

	return completed, version, nil
}

// runStep executes one action inside its own span. The action's error is
// returned unchanged so the caller always observes the original failure.
func (o *Orchestrator) runStep(ctx context.Context, step Step, index int) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "saga.step."+step.StepID)
	defer span.End()
	span.SetAttributes(
		attribute.String("saga.step.id", step.StepID),
		attribute.Int("saga.step.index", index),
	)

	if err := step.Action(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "saga step failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// handleFailure walks the completed steps in reverse, undoing each one.
// A failed compensation halts the walk: after one undo fails the system
// cannot tell whether undoing earlier steps is still safe. Bookkeeping
// errors abort the handler; the triggering error is returned by the
// caller regardless.
func (o *Orchestrator) handleFailure(
	ctx context.Context,
	logger *slog.Logger,
	sagaID string,
	opts ExecuteOptions,
	cause error,
	completed []Step,
	version int,
	failedStepID any,
) {
	err := o.instances.UpdateProgress(
		ctx, opts.TenantID, sagaID, len(completed), StatusCompensating,
	)
	if err != nil {
		logger.Error("could not mark saga as compensating", "error", err)
		return
	}

	err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaCompensationStarted,
		map[string]any{"failedStepId": failedStepID}, version)
	if err != nil {
		logger.Error("could not record compensation start", "error", err)
		return
	}
	version++

	for index := len(completed) - 1; index >= 0; index-- {
		step := completed[index]

		if compErr := o.compensateStep(ctx, step); compErr != nil {
			logger.Error("saga compensation step failed",
				"stepId", step.StepID, "error", compErr)
			err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaCompensationFailed,
				map[string]any{"stepId": step.StepID, "reason": compErr.Error()}, version)
			if err != nil {
				logger.Error("could not record compensation failure", "error", err)
				return
			}
			version++
			break
		}

		err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaStepCompensated,
			map[string]any{"stepId": step.StepID}, version)
		if err != nil {
			logger.Error("could not record compensated step", "error", err)
			return
		}
		version++
	}

	err = o.instances.UpdateProgress(ctx, opts.TenantID, sagaID, len(completed), StatusFailed)
	if err != nil {
		logger.Error("could not mark saga as failed", "error", err)
		return
	}

	err = o.appendSagaEvent(ctx, sagaID, opts, EventSagaFailed,
		map[string]any{"reason": cause.Error(), "failedStepId": failedStepID}, version)
	if err != nil {
		logger.Error("could not record saga failure", "error", err)
	}
}

func (o *Orchestrator) compensateStep(ctx context.Context, step Step) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "saga.compensate."+step.StepID)
	defer span.End()
	span.SetAttributes(attribute.String("saga.step.id", step.StepID))

	if err := step.Compensation(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "saga compensation failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// appendSagaEvent appends exactly one lifecycle event to the saga's own
// stream at the given version. The saga is its own aggregate: the id is
// the saga id, the type is "saga:" plus the saga type.
func (o *Orchestrator) appendSagaEvent(
	ctx context.Context,
	sagaID string,
	opts ExecuteOptions,
	eventType string,
	eventData map[string]any,
	expectedVersion int,
) error {
	event := eventstore.DomainEvent{
		AggregateID:   sagaID,
		AggregateType: "saga:" + opts.SagaType,
		EventType:     eventType,
		EventData:     sanitizeEventData(eventData),
		TenantID:      opts.TenantID,
		Metadata:      opts.Metadata,
	}

	err := o.store.AppendEvents(ctx, sagaID, []eventstore.DomainEvent{event}, expectedVersion)
	if err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			o.logger.Error("concurrency conflict while appending saga event",
				"sagaId", sagaID, "eventType", eventType, "error", err)
		}
		return err
	}
	return nil
}

// sanitizeEventData drops absent fields so only defined values are
// persisted in the event payload.
func sanitizeEventData(eventData map[string]any) map[string]any {
	clean := make(map[string]any, len(eventData))
	for key, value := range eventData {
		if value == nil {
			continue
		}
		clean[key] = value
	}
	return clean
}
