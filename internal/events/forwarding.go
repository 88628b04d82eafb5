// Package events holds the gateway's concrete event handlers. Every handler
// forwards the event to the order-sync publisher once, using the event journal
// to drop provider redeliveries. An id stays pending in the journal until its
// publish succeeds; concurrent deliveries of a pending id are refused so the
// provider keeps redelivering until one of them lands.
package events

import (
	"context"
	"encoding/json"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/publisher"
	"paypal-gateway/internal/storage"
	"paypal-gateway/internal/webhooks"
)

// DefaultEventTypes is the registration order of the built-in handlers
var DefaultEventTypes = []string{
	"CHECKOUT.ORDER.APPROVED",
	"CHECKOUT.ORDER.COMPLETED",
	"CHECKOUT.PAYMENT-APPROVAL.REVERSED",
	"PAYMENT.CAPTURE.COMPLETED",
	"PAYMENT.CAPTURE.PENDING",
	"PAYMENT.CAPTURE.DENIED",
	"PAYMENT.CAPTURE.REFUNDED",
	"PAYMENT.CAPTURE.REVERSED",
	"PAYMENT.AUTHORIZATION.VOIDED",
	"VAULT.PAYMENT-TOKEN.CREATED",
	"VAULT.PAYMENT-TOKEN.DELETED",
	"PAYMENT.SALE.COMPLETED",
	"PAYMENT.SALE.REFUNDED",
	"BILLING.SUBSCRIPTION.CANCELLED",
}

// Payload is the document published for every forwarded event
type Payload struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Resource     json.RawMessage `json:"resource,omitempty"`
	CreateTime   string          `json:"create_time,omitempty"`
	ReceivedAt   time.Time       `json:"received_at"`
}

// ForwardingHandler publishes one event type to the order-sync publisher
type ForwardingHandler struct {
	eventType string
	journal   storage.EventJournal
	publisher publisher.Publisher
	logger    logging.Logger
	now       func() time.Time
}

// NewForwardingHandler creates a handler for eventType. A nil journal disables
// duplicate suppression.
func NewForwardingHandler(eventType string, journal storage.EventJournal, pub publisher.Publisher, logger logging.Logger) *ForwardingHandler {
	if logger == nil {
		logger = logging.Component("events")
	}
	return &ForwardingHandler{
		eventType: eventType,
		journal:   journal,
		publisher: pub,
		logger:    logger.WithFields(logging.Field{Key: "event_type", Value: eventType}),
		now:       time.Now,
	}
}

func (h *ForwardingHandler) EventType() string { return h.eventType }

// Name identifies the handler in logs and status output
func (h *ForwardingHandler) Name() string { return "forward:" + h.publisher.Name() }

// Handle publishes event unless the journal shows it was already forwarded
func (h *ForwardingHandler) Handle(ctx context.Context, event *webhooks.InboundEvent) error {
	if event == nil {
		return errors.ValidationError("event is required")
	}
	log := h.logger.WithContext(ctx).WithFields(logging.Field{Key: "event_id", Value: event.ID})

	if h.journal != nil {
		state, err := h.journal.RecordEvent(ctx, event.ID, event.EventType)
		if err != nil {
			return errors.InternalError("failed to record event", err)
		}
		switch state {
		case storage.EventDone:
			log.Info("Duplicate event delivery ignored")
			return nil
		case storage.EventPending:
			// the provider must not see a success before the other delivery publishes
			return errors.InternalError("event is being forwarded by another delivery", nil).
				WithContext("event_id", event.ID)
		}
	}

	if err := h.forward(ctx, event); err != nil {
		if h.journal != nil {
			if forgetErr := h.journal.ForgetEvent(ctx, event.ID); forgetErr != nil {
				log.Error("Failed to forget event after publish failure", forgetErr)
			}
		}
		return err
	}

	if h.journal != nil {
		if err := h.journal.CompleteEvent(ctx, event.ID); err != nil {
			log.Warn("Failed to mark event forwarded", logging.Err(err))
		}
	}

	log.Info("Event forwarded", logging.Field{Key: "publisher", Value: h.publisher.Name()})
	return nil
}

func (h *ForwardingHandler) forward(ctx context.Context, event *webhooks.InboundEvent) error {
	receivedAt := h.now().UTC()
	body, err := json.Marshal(Payload{
		ID:           event.ID,
		EventType:    event.EventType,
		ResourceType: event.ResourceType,
		Summary:      event.Summary,
		Resource:     event.Resource,
		CreateTime:   event.CreateTime,
		ReceivedAt:   receivedAt,
	})
	if err != nil {
		return errors.InternalError("failed to encode event payload", err)
	}

	return h.publisher.Publish(ctx, &publisher.Message{
		ID:   event.ID,
		Key:  resourceID(event.Resource),
		Body: body,
		Headers: map[string]string{
			"event_type": event.EventType,
		},
		Timestamp: receivedAt,
	})
}

// resourceID extracts resource.id, the order or capture id, for partitioning
func resourceID(resource json.RawMessage) string {
	if len(resource) == 0 {
		return ""
	}
	var r struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resource, &r); err != nil {
		return ""
	}
	return r.ID
}

// DefaultHandlers returns one forwarding handler per DefaultEventTypes entry,
// in that order
func DefaultHandlers(journal storage.EventJournal, pub publisher.Publisher, logger logging.Logger) []webhooks.EventHandler {
	handlers := make([]webhooks.EventHandler, 0, len(DefaultEventTypes))
	for _, eventType := range DefaultEventTypes {
		handlers = append(handlers, NewForwardingHandler(eventType, journal, pub, logger))
	}
	return handlers
}
