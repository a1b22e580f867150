// Package auth turns an inbound credential into a verified caller identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"meeting-summarizer/internal/integrations/paramstore"
)

var (
	// ErrUnauthenticated covers every credential problem: missing, malformed,
	// expired, wrong signature, or no usable identity claim.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrUnavailable means the verifier could not load its signing secret.
	ErrUnavailable = errors.New("auth: verifier unavailable")
)

// Claims are the session token claims. The identity is the email claim,
// falling back to the subject.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the claims, or "".
func (c *Claims) Identity() string {
	if email := strings.TrimSpace(c.Email); email != "" {
		return email
	}
	return strings.TrimSpace(c.Subject)
}

// Verifier validates HS256 session tokens signed with a secret kept in SSM.
type Verifier struct {
	getter      paramstore.Getter
	secretParam string
	issuer      string

	mu     sync.Mutex
	secret []byte
}

type Option func(*Verifier)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

func NewVerifier(getter paramstore.Getter, paramPrefix string, opts ...Option) (*Verifier, error) {
	if getter == nil {
		return nil, errors.New("auth: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("auth: parameter prefix must not be empty")
	}
	v := &Verifier{getter: getter, secretParam: paramPrefix + "/jwt-secret"}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Authenticate verifies a raw token and returns the caller identity.
func (v *Verifier) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	secret, err := v.resolveSecret(ctx)
	if err != nil {
		return "", err
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, parserOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return "", ErrUnauthenticated
	}
	identity := claims.Identity()
	if identity == "" {
		return "", fmt.Errorf("%w: token carries no identity", ErrUnauthenticated)
	}
	return identity, nil
}

func (v *Verifier) resolveSecret(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.secret != nil {
		return v.secret, nil
	}
	secret, err := paramstore.GetToken(ctx, v.getter, v.secretParam)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	v.secret = []byte(secret)
	return v.secret, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IdentityFromAuthorizer reads the identity an API Gateway authorizer has
// already verified, from either a Cognito-style "claims" map or flat
// context keys.
func IdentityFromAuthorizer(authorizer map[string]interface{}) (string, bool) {
	if len(authorizer) == 0 {
		return "", false
	}
	if claims, ok := authorizer["claims"].(map[string]interface{}); ok {
		if id := claimIdentity(claims); id != "" {
			return id, true
		}
	}
	if id := claimIdentity(authorizer); id != "" {
		return id, true
	}
	return "", false
}

func claimIdentity(m map[string]interface{}) string {
	for _, key := range []string{"email", "sub"} {
		if s, ok := m[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
