package paypal

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"

	"paypal-gateway/internal/common/errors"
)

// EventType is PayPal's representation of a subscribed event name
type EventType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Webhook is a registration stored at PayPal
type Webhook struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	EventTypes []EventType `json:"event_types"`
}

// EventTypeNames flattens EventTypes
func (w Webhook) EventTypeNames() []string {
	names := make([]string, len(w.EventTypes))
	for i, et := range w.EventTypes {
		names[i] = et.Name
	}
	return names
}

type createWebhookRequest struct {
	URL        string      `json:"url"`
	EventTypes []EventType `json:"event_types"`
}

type listWebhooksResponse struct {
	Webhooks []Webhook `json:"webhooks"`
}

// CreateWebhook registers callbackURL for eventTypes. The returned webhook
// always has a non-empty ID.
func (c *Client) CreateWebhook(ctx context.Context, token, callbackURL string, eventTypes []string) (*Webhook, error) {
	req := createWebhookRequest{URL: callbackURL, EventTypes: make([]EventType, len(eventTypes))}
	for i, name := range eventTypes {
		req.EventTypes[i] = EventType{Name: name}
	}

	var created Webhook
	if err := c.do(ctx, http.MethodPost, webhooksPath, token, req, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.DecodeError("webhook create response has no id", nil)
	}
	return &created, nil
}

// ListWebhooks returns every webhook registered for the REST app
func (c *Client) ListWebhooks(ctx context.Context, token string) ([]Webhook, error) {
	var resp listWebhooksResponse
	if err := c.do(ctx, http.MethodGet, webhooksPath, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Webhooks, nil
}

// DeleteWebhook removes a registration. Deleting an unknown id is not an error.
func (c *Client) DeleteWebhook(ctx context.Context, token, id string) error {
	err := c.do(ctx, http.MethodDelete, webhooksPath+"/"+url.PathEscape(id), token, nil, nil)
	var apiErr *APIError
	if asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func asAPIError(err error, target **APIError) bool {
	return err != nil && stderrors.As(err, target)
}
