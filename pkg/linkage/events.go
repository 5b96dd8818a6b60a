package linkage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/synaptica-ai/rxlink/pkg/common/logger"
	"github.com/synaptica-ai/rxlink/pkg/common/models"
	"github.com/synaptica-ai/rxlink/pkg/dlp"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"github.com/synaptica-ai/rxlink/pkg/observability/metrics"
)

const eventSource = "kafka"

// EventHandler consumes compare events. Requests that can never be compared
// go to the dead letter topic; anything else is returned so the consumer
// redelivers it.
type EventHandler struct {
	service  *Service
	deduper  Deduper
	dlq      Publisher
	redactor *dlp.Redactor
}

func NewEventHandler(service *Service, deduper Deduper, dlq Publisher) *EventHandler {
	return &EventHandler{service: service, deduper: deduper, dlq: dlq}
}

// WithRedactor masks personal data in payloads copied to the dead letter topic.
func (h *EventHandler) WithRedactor(r *dlp.Redactor) *EventHandler {
	h.redactor = r
	return h
}

func (h *EventHandler) Handle(ctx context.Context, event models.Event) error {
	if event.Type != models.EventCompare {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("ignoring event")
		return nil
	}

	var req models.ComparisonRequest
	if err := json.Unmarshal(event.Data, &req); err != nil {
		return h.reject(ctx, event, "", fmt.Errorf("decode compare request: %w", err))
	}
	if req.RequestID == "" {
		req.RequestID = event.ID
	}
	if req.Source == "" {
		req.Source = event.Source
	}
	if req.Source == "" {
		req.Source = eventSource
	}

	claimed := false
	if h.deduper != nil {
		ok, err := h.deduper.Claim(ctx, req.RequestID)
		switch {
		case err != nil:
			logger.Log.WithError(err).WithField("request_id", req.RequestID).Warn("dedupe unavailable, processing anyway")
		case !ok:
			metrics.ObserveDuplicateDelivery()
			logger.Log.WithField("request_id", req.RequestID).Info("skipping duplicate compare request")
			return nil
		default:
			claimed = true
		}
	}

	_, err := h.service.Compare(ctx, req)
	if err == nil {
		return nil
	}
	if features.IsValidationError(err) {
		err = h.reject(ctx, event, req.RequestID, err)
	}
	if err != nil && claimed {
		if releaseErr := h.deduper.Release(ctx, req.RequestID); releaseErr != nil {
			logger.Log.WithError(releaseErr).WithField("request_id", req.RequestID).Warn("failed to release dedupe claim")
		}
	}
	return err
}

// reject returns nil once the event is safely on the dead letter topic.
func (h *EventHandler) reject(ctx context.Context, event models.Event, requestID string, cause error) error {
	rejection := models.Rejection{
		RequestID: requestID,
		EventID:   event.ID,
		Kind:      models.KindInvalidInput,
		Error:     cause.Error(),
		Original:  h.original(event),
	}
	logger.Log.WithError(cause).WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"request_id": requestID,
	}).Warn("compare request rejected")

	if h.dlq == nil {
		return nil
	}
	key := requestID
	if key == "" {
		key = event.ID
	}
	if err := h.dlq.PublishEvent(ctx, models.EventCompareRejected, eventSource, key, rejection); err != nil {
		return fmt.Errorf("dead letter %s: %w", event.ID, err)
	}
	metrics.ObserveDeadLetter()
	return nil
}

// original drops the payload when it cannot be redacted.
func (h *EventHandler) original(event models.Event) json.RawMessage {
	if h.redactor == nil {
		return event.Data
	}
	masked, _, err := h.redactor.RedactJSON(event.Data)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("dropping unredactable payload from dead letter")
		return nil
	}
	return masked
}
