// Package oauth2 obtains and caches the PayPal REST bearer token using the
// OAuth 2.0 client-credentials grant.
//
// # Token lifecycle
//
// The Authenticator keeps one token in a cache.Cache under a fixed key. A cached
// token is reused while now < created + expires_in - SafetyMargin. Otherwise a
// new token is requested from {base}/v1/oauth2/token with HTTP Basic
// credentials and written back with a TTL equal to its lifetime.
//
// A failed request never touches the cache, so a still-valid token written by
// another instance is not clobbered by an error.
//
// # Storage format
//
// The cached blob is a small JSON document:
//
//	{"schema_version":1,"token":"A21AA...","created":1700000000,"expires_in":32400}
//
// When a crypto.Sealer is configured the document is sealed before it is
// written. Documents that cannot be decoded, or carry a newer schema_version,
// are treated as absent.
//
// # Usage
//
//	auth, err := oauth2.NewAuthenticator(oauth2.Config{
//	    BaseURL:      "https://api-m.sandbox.paypal.com",
//	    ClientID:     clientID,
//	    ClientSecret: clientSecret,
//	}, cache.NewLocalCache(10*time.Minute))
//
//	header, err := auth.AuthorizationHeader(ctx) // "Bearer A21AA..."
package oauth2
