package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"paypal-gateway/internal/common/errors"
)

// SimulatedEvent is the mock event PayPal sends to the webhook
type SimulatedEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	CreateTime   string          `json:"create_time,omitempty"`
	Resource     json.RawMessage `json:"resource,omitempty"`
}

type simulateEventRequest struct {
	WebhookID       string `json:"webhook_id"`
	EventType       string `json:"event_type"`
	ResourceVersion string `json:"resource_version,omitempty"`
}

// SimulateEvent asks PayPal to deliver a synthetic event to webhookID
func (c *Client) SimulateEvent(ctx context.Context, token, webhookID, eventType, resourceVersion string) (*SimulatedEvent, error) {
	var event SimulatedEvent
	err := c.do(ctx, http.MethodPost, simulateEventPath, token, simulateEventRequest{
		WebhookID:       webhookID,
		EventType:       eventType,
		ResourceVersion: resourceVersion,
	}, &event)
	if err != nil {
		return nil, err
	}
	if event.ID == "" {
		return nil, errors.DecodeError("simulate-event response has no id", nil)
	}
	return &event, nil
}

// Transmission headers PayPal attaches to every webhook delivery
const (
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

// VerifySignatureRequest is the body of verify-webhook-signature
type VerifySignatureRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// NewVerifySignatureRequest collects the transmission headers of a delivery
func NewVerifySignatureRequest(header http.Header, webhookID string, body []byte) VerifySignatureRequest {
	return VerifySignatureRequest{
		AuthAlgo:         header.Get(HeaderAuthAlgo),
		CertURL:          header.Get(HeaderCertURL),
		TransmissionID:   header.Get(HeaderTransmissionID),
		TransmissionSig:  header.Get(HeaderTransmissionSig),
		TransmissionTime: header.Get(HeaderTransmissionTime),
		WebhookID:        webhookID,
		WebhookEvent:     json.RawMessage(body),
	}
}

// Missing lists the transmission fields that are empty
func (r VerifySignatureRequest) Missing() []string {
	var missing []string
	for name, value := range map[string]string{
		HeaderAuthAlgo:         r.AuthAlgo,
		HeaderCertURL:          r.CertURL,
		HeaderTransmissionID:   r.TransmissionID,
		HeaderTransmissionSig:  r.TransmissionSig,
		HeaderTransmissionTime: r.TransmissionTime,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

type verifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifySignature reports whether PayPal vouches for the delivery
func (c *Client) VerifySignature(ctx context.Context, token string, req VerifySignatureRequest) (bool, error) {
	var resp verifySignatureResponse
	if err := c.do(ctx, http.MethodPost, verifySignaturePath, token, req, &resp); err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}
