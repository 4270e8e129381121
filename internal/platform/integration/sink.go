// Package integration forwards episode lifecycle events to a downstream
// sink over HTTP. Deliveries are best effort: failures are logged and
// counted but never surfaced to the caller, so a dead sink cannot fail
// a clinical workflow.
package integration

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Events forwarded to the sink.
const (
	EventChange    = "change"
	EventAdmission = "admission"
)

// DeliveryRecorder counts notification attempts. Satisfied by the
// metrics package.
type DeliveryRecorder interface {
	RecordSinkDelivery(event string, status string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSinkDelivery(string, string) {}

// Sink posts episode events to the configured downstream URL. A Sink
// built with an empty URL is disabled and drops all events.
type Sink struct {
	client   *resty.Client
	logger   zerolog.Logger
	recorder DeliveryRecorder
	enabled  bool
}

// NewSink builds a sink client for baseURL. Pass an empty baseURL to
// disable forwarding.
func NewSink(baseURL string, timeout time.Duration, logger zerolog.Logger, recorder DeliveryRecorder) *Sink {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	s := &Sink{
		logger:   logger.With().Str("component", "sink").Logger(),
		recorder: recorder,
		enabled:  baseURL != "",
	}
	if !s.enabled {
		return s
	}

	s.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return s
}

// Enabled reports whether events will actually be forwarded.
func (s *Sink) Enabled() bool {
	return s.enabled
}

// NotifyChange forwards the before and after states of an updated
// episode. Callers run it off the request path, so pass a context that
// outlives the originating request.
func (s *Sink) NotifyChange(ctx context.Context, before, after map[string]any) {
	body := map[string]any{"before": before, "after": after}
	s.deliver(ctx, EventChange, "/change", body)
}

// NotifyAdmission forwards a newly admitted episode.
func (s *Sink) NotifyAdmission(ctx context.Context, episode map[string]any) {
	s.deliver(ctx, EventAdmission, "/admission", episode)
}

func (s *Sink) deliver(ctx context.Context, event, path string, body any) {
	if !s.enabled {
		return
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		s.recorder.RecordSinkDelivery(event, "error")
		s.logger.Error().Err(err).Str("event", event).Msg("sink delivery failed")
		return
	}
	if resp.IsError() {
		s.recorder.RecordSinkDelivery(event, "error")
		s.logger.Error().
			Str("event", event).
			Int("status", resp.StatusCode()).
			Msg("sink rejected event")
		return
	}

	s.recorder.RecordSinkDelivery(event, "ok")
	s.logger.Debug().Str("event", event).Msg("sink delivery ok")
}
