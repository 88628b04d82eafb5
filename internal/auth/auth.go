// Package auth protects the operator API with HS256 bearer tokens. Tokens are
// minted by IssueToken (the webhookctl CLI does this from the shared secret)
// and may be revoked before they expire; revocations live in the token cache
// so every instance sharing Redis honours them.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"paypal-gateway/internal/common/cache"
	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

const (
	Issuer = "paypal-gateway"

	// MinSecretLength matches the ADMIN_JWT_SECRET validation rule
	MinSecretLength = 32

	revokedPrefix = "jwt:revoked:"
)

type contextKey struct{}

// Claims carried by operator tokens
type Claims struct {
	jwt.RegisteredClaims
}

// Auth validates operator bearer tokens and tracks revoked ones
type Auth struct {
	secret  []byte
	revoked cache.Cache
	logger  logging.Logger
	now     func() time.Time
}

// New creates an Auth. revoked may be nil, in which case Revoke is rejected
// and tokens are valid until they expire.
func New(secret string, revoked cache.Cache, logger logging.Logger) (*Auth, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.ConfigError("jwt secret must be at least 32 characters")
	}
	if logger == nil {
		logger = logging.Component("auth")
	}
	return &Auth{
		secret:  []byte(secret),
		revoked: revoked,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// IssueToken signs a token for subject valid for ttl
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	return issue([]byte(secret), subject, ttl, time.Now())
}

// IssueToken signs a token for subject with this Auth's secret
func (a *Auth) IssueToken(subject string, ttl time.Duration) (string, error) {
	return issue(a.secret, subject, ttl, a.now())
}

func issue(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) < MinSecretLength {
		return "", errors.ConfigError("jwt secret must be at least 32 characters")
	}
	if subject == "" {
		return "", errors.ValidationError("token subject is required")
	}
	if ttl <= 0 {
		return "", errors.ValidationError("token ttl must be positive")
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and rejects tokens that are malformed,
// signed with another key or method, expired, issued elsewhere or revoked.
func (a *Auth) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.VerificationError("token is required", nil)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, errors.VerificationError("invalid token", err)
	}

	if a.revoked != nil {
		_, found, err := a.revoked.Get(ctx, revokedPrefix+tokenString)
		if err != nil {
			// Fail closed: an unreachable revocation list rejects the token.
			return nil, errors.ConnectionError("failed to check token revocation", err)
		}
		if found {
			return nil, errors.VerificationError("token has been revoked", nil)
		}
	}
	return claims, nil
}

// Revoke invalidates tokenString until its natural expiry
func (a *Auth) Revoke(ctx context.Context, tokenString string) error {
	if a.revoked == nil {
		return errors.ConfigError("token revocation requires a cache")
	}
	claims, err := a.ValidateToken(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	if err := a.revoked.Set(ctx, revokedPrefix+tokenString, claims.Subject, ttl); err != nil {
		return errors.ConnectionError("failed to revoke token", err)
	}
	a.logger.Info("Operator token revoked", logging.Field{Key: "subject", Value: claims.Subject})
	return nil
}

// RequireBearer rejects requests without a valid "Authorization: Bearer" token
// and stores the token claims in the request context.
func (a *Auth) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "Authentication required")
			return
		}

		claims, err := a.ValidateToken(r.Context(), tokenString)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeConnection) {
				a.logger.WithContext(r.Context()).Error("Token revocation check failed", err)
			}
			writeUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFromContext returns the claims stored by RequireBearer
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+Issuer+`"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
