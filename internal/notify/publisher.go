// Package notify carries domain events from the API to notification delivery.
package notify

import (
	"context"
	"sync"
	"time"

	"redblood/internal/metrics"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, event types.Event) error
}

// Emitter stamps and publishes events after their transaction has committed.
// Publish failures are logged and counted but never fail the caller.
type Emitter struct {
	publisher Publisher
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewEmitter(publisher Publisher, logger logrus.FieldLogger, m *metrics.Metrics) *Emitter {
	return &Emitter{publisher: publisher, logger: logger, metrics: m, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, event types.Event) {
	if e == nil || e.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = utils.NanoID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	err := e.publisher.Publish(ctx, event)
	e.metrics.IncrementPublished(string(event.Type), err)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"request_id": event.RequestID,
		}).Error("failed to publish event")
	}
}

// RequestCreated builds the event announcing a new open request.
func RequestCreated(r *types.BloodRequest) types.Event {
	evt := types.Event{
		Type:         types.EventRequestCreated,
		RequestID:    r.ID,
		RequestOwner: r.UserID,
		BloodType:    r.BloodType,
		Urgency:      r.Urgency,
		Hospital:     r.Hospital,
		Status:       string(r.Status),
	}
	if p, ok := r.Coordinates.Point(); ok {
		evt.Location = &p
	}
	return evt
}

func RequestStatusChanged(r *types.BloodRequest, previous types.RequestStatus) types.Event {
	return types.Event{
		Type:           types.EventRequestStatusChanged,
		RequestID:      r.ID,
		RequestOwner:   r.UserID,
		BloodType:      r.BloodType,
		Urgency:        r.Urgency,
		Hospital:       r.Hospital,
		PreviousStatus: string(previous),
		Status:         string(r.Status),
	}
}

func ResponseCreated(r *types.BloodRequest, resp *types.Response) types.Event {
	return types.Event{
		Type:         types.EventResponseCreated,
		RequestID:    r.ID,
		ResponseID:   resp.ID,
		RequestOwner: r.UserID,
		ResponderID:  resp.UserID,
		BloodType:    r.BloodType,
		Status:       string(resp.Status),
	}
}

func ResponseUpdated(r *types.BloodRequest, resp *types.Response, previous types.ResponseStatus) types.Event {
	return types.Event{
		Type:           types.EventResponseUpdated,
		RequestID:      r.ID,
		ResponseID:     resp.ID,
		RequestOwner:   r.UserID,
		ResponderID:    resp.UserID,
		PreviousStatus: string(previous),
		Status:         string(resp.Status),
	}
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger logrus.FieldLogger
}

func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event types.Event) error {
	p.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"request_id": event.RequestID,
		"status":     event.Status,
	}).Info("domain event")
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []types.Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
