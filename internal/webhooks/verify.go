package webhooks

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/paypal"
	"paypal-gateway/internal/signature"
)

// Verifier authenticates a delivery before its body is decoded. A rejected
// delivery is reported with a verification error.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request, body []byte) error
}

// PayPalVerifier asks PayPal's verify-webhook-signature API about the
// transmission headers of a delivery
type PayPalVerifier struct {
	subscriptions SubscriptionSource
	tokens        TokenSource
	api           SignatureAPI
	logger        logging.Logger
}

// NewPayPalVerifier checks deliveries against the registered webhook id.
// A nil logger uses the "verifier" component logger.
func NewPayPalVerifier(subscriptions SubscriptionSource, tokens TokenSource, api SignatureAPI, logger logging.Logger) *PayPalVerifier {
	if logger == nil {
		logger = logging.Component("verifier")
	}
	return &PayPalVerifier{subscriptions: subscriptions, tokens: tokens, api: api, logger: logger}
}

// Verify returns a verification error when headers are missing, no webhook
// is registered or PayPal does not confirm the signature. Provider outages
// surface as their own error type.
func (v *PayPalVerifier) Verify(ctx context.Context, r *http.Request, body []byte) error {
	// PayPal verifies the event document itself, so it has to be JSON
	if !json.Valid(body) {
		return errors.DecodeError("body is not a JSON event", nil)
	}

	sub, err := v.subscriptions.Subscription(ctx)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotRegistered) {
			return errors.VerificationError("no webhook is registered", err)
		}
		return err
	}

	req := paypal.NewVerifySignatureRequest(r.Header, sub.ID, body)
	if missing := req.Missing(); len(missing) > 0 {
		return errors.VerificationError("missing transmission headers", nil).
			WithContext("headers", strings.Join(missing, ","))
	}

	var ok bool
	err = callWithToken(ctx, v.tokens, func(token string) error {
		var err error
		ok, err = v.api.VerifySignature(ctx, token, req)
		return err
	})
	if err != nil {
		var apiErr *paypal.APIError
		if stderrors.As(err, &apiErr) && apiErr.ClientError() {
			return errors.VerificationError("PayPal refused the verification request", err)
		}
		return err
	}
	if !ok {
		return errors.VerificationError("signature rejected by PayPal", nil).
			WithContext("transmission_id", req.TransmissionID)
	}
	return nil
}

// HMACVerifier checks a shared-secret HMAC of the body
type HMACVerifier struct {
	verifier *signature.Verifier
}

// NewHMACVerifier adapts a signature.Verifier to the dispatcher
func NewHMACVerifier(verifier *signature.Verifier) *HMACVerifier {
	return &HMACVerifier{verifier: verifier}
}

// Verify reports a verification error naming the signature header on mismatch
func (v *HMACVerifier) Verify(ctx context.Context, r *http.Request, body []byte) error {
	if err := v.verifier.Verify(r, body); err != nil {
		return errors.VerificationError("signature mismatch", err).WithContext("header", v.verifier.Header())
	}
	return nil
}
