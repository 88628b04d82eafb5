package oauth2

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SafetyMargin is subtracted from a token's lifetime when judging freshness
	SafetyMargin = 5 * time.Second

	tokenSchemaVersion = 1
)

// AccessToken is a bearer credential issued by PayPal
type AccessToken struct {
	Token     string
	CreatedAt time.Time
	// ExpiresIn is the lifetime in seconds as reported by the provider
	ExpiresIn int
}

// ExpiresAt returns the instant the provider stops accepting the token
func (t AccessToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsValid reports whether the token can still be used at now
func (t AccessToken) IsValid(now time.Time) bool {
	if t.Token == "" || t.ExpiresIn <= 0 {
		return false
	}
	return now.Before(t.ExpiresAt().Add(-SafetyMargin))
}

// TTL is how long the token should stay in the cache
func (t AccessToken) TTL() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

type tokenDocument struct {
	SchemaVersion int    `json:"schema_version"`
	Token         string `json:"token"`
	Created       int64  `json:"created"`
	ExpiresIn     int    `json:"expires_in"`
}

func encodeToken(t AccessToken) (string, error) {
	data, err := json.Marshal(tokenDocument{
		SchemaVersion: tokenSchemaVersion,
		Token:         t.Token,
		Created:       t.CreatedAt.Unix(),
		ExpiresIn:     t.ExpiresIn,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeToken parses a cached blob. Documents written before versioning (no
// schema_version) are accepted; newer versions are rejected.
func decodeToken(blob string) (AccessToken, error) {
	var doc tokenDocument
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return AccessToken{}, fmt.Errorf("malformed token document: %w", err)
	}
	if doc.SchemaVersion > tokenSchemaVersion {
		return AccessToken{}, fmt.Errorf("unsupported token schema version %d", doc.SchemaVersion)
	}
	if doc.Token == "" {
		return AccessToken{}, fmt.Errorf("token document has no token")
	}
	return AccessToken{
		Token:     doc.Token,
		CreatedAt: time.Unix(doc.Created, 0),
		ExpiresIn: doc.ExpiresIn,
	}, nil
}
