package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"strings"

	"paypal-gateway/internal/common/logging"
)

// Config describes where the signature lives and how it is computed
type Config struct {
	Header    string
	Secret    string
	Algorithm string // sha256 (default), sha512 or sha1
}

// Verifier handles webhook signature verification
type Verifier struct {
	config  Config
	newHash func() hash.Hash
	logger  logging.Logger
}

// NewVerifier creates a new signature verifier
func NewVerifier(config Config, logger logging.Logger) (*Verifier, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("signature secret is required")
	}
	if config.Header == "" {
		config.Header = "X-Signature"
	}
	if config.Algorithm == "" {
		config.Algorithm = "sha256"
	}

	var newHash func() hash.Hash
	switch strings.ToLower(config.Algorithm) {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	case "sha1":
		newHash = sha1.New
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %s", config.Algorithm)
	}

	if logger == nil {
		logger = logging.Component("signature")
	}

	return &Verifier{config: config, newHash: newHash, logger: logger}, nil
}

// Header returns the header name carrying the signature
func (v *Verifier) Header() string {
	return v.config.Header
}

// Sign computes the hex signature of body
func (v *Verifier) Sign(body []byte) string {
	return hex.EncodeToString(v.mac(body))
}

// Verify checks the signature header of r against body
func (v *Verifier) Verify(r *http.Request, body []byte) error {
	headerValue := strings.TrimSpace(r.Header.Get(v.config.Header))
	if headerValue == "" {
		return VerificationError{Header: v.config.Header, Reason: ErrMissingSignature}
	}

	if prefix, rest, found := strings.Cut(headerValue, "="); found && strings.EqualFold(prefix, v.config.Algorithm) {
		headerValue = rest
	}

	provided, err := decodeSignature(headerValue)
	if err != nil {
		return VerificationError{Header: v.config.Header, Reason: ErrMalformedSignature}
	}

	if !hmac.Equal(provided, v.mac(body)) {
		v.logger.Debug("Signature mismatch", logging.Field{Key: "header", Value: v.config.Header})
		return VerificationError{Header: v.config.Header, Reason: ErrSignatureMismatch}
	}
	return nil
}

func (v *Verifier) mac(body []byte) []byte {
	m := hmac.New(v.newHash, []byte(v.config.Secret))
	m.Write(body)
	return m.Sum(nil)
}

func decodeSignature(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
