package signature

import (
	"errors"
	"fmt"
)

// Reasons a delivery fails HMAC verification
var (
	ErrMissingSignature   = errors.New("missing signature header")
	ErrMalformedSignature = errors.New("signature is neither hex nor base64")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// VerificationError names the header that failed and wraps one of the Err* reasons
type VerificationError struct {
	Header string
	Reason error
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("signature verification failed for header %s: %v", e.Header, e.Reason)
}

func (e VerificationError) Unwrap() error {
	return e.Reason
}
