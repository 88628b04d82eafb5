// Package signature verifies HMAC signatures on inbound webhook requests that
// are delivered by a relay sharing a secret with the gateway, rather than by
// PayPal directly.
//
// The signature is computed over the raw request body and carried in a
// configurable header, hex or base64 encoded, optionally prefixed with the
// algorithm name ("sha256=...").
package signature
