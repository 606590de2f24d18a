package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"custody-backend/internal/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/option"
)

// ErrUnauthenticated means no caller could be established for a request.
var ErrUnauthenticated = errors.New("unauthenticated")

const APIKeyHeader = "X-API-Key"

// IdentityOracle resolves the caller behind an inbound request.
type IdentityOracle interface {
	Identify(r *http.Request) (domain.Caller, error)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

// JWTOracle accepts HS256 access tokens issued by TokenManager.
type JWTOracle struct {
	tokens    TokenManager
	adminRole string
}

func NewJWTOracle(tokens TokenManager, adminRole string) *JWTOracle {
	return &JWTOracle{tokens: tokens, adminRole: adminRole}
}

func (o *JWTOracle) Identify(r *http.Request) (domain.Caller, error) {
	tok, ok := bearerToken(r)
	if !ok {
		return domain.Caller{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	claims, err := o.tokens.ValidateToken(tok)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return domain.Caller{
		ID:      claims.Subject,
		Email:   claims.Email,
		IsAdmin: claims.HasRole(o.adminRole),
	}, nil
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseOracle accepts Firebase ID tokens. Administrators carry a truthy
// custom claim named after the admin role.
type FirebaseOracle struct {
	verifier  idTokenVerifier
	adminRole string
}

func NewFirebaseOracle(ctx context.Context, projectID, credentialsFile, adminRole string) (*FirebaseOracle, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return &FirebaseOracle{verifier: client, adminRole: adminRole}, nil
}

func (o *FirebaseOracle) Identify(r *http.Request) (domain.Caller, error) {
	tok, ok := bearerToken(r)
	if !ok {
		return domain.Caller{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	token, err := o.verifier.VerifyIDToken(r.Context(), tok)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	caller := domain.Caller{ID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		caller.Email = email
	}
	if admin, ok := token.Claims[o.adminRole].(bool); ok {
		caller.IsAdmin = admin
	}
	return caller, nil
}

// APIKey is a registered machine credential such as a scanner kiosk.
type APIKey struct {
	ID         string
	SecretHash []byte
	Principal  string
	Admin      bool
}

// APIKeyOracle accepts "X-API-Key: <id>.<secret>" with bcrypt-hashed secrets.
type APIKeyOracle struct {
	keys map[string]APIKey
}

func NewAPIKeyOracle(keys []APIKey) *APIKeyOracle {
	m := make(map[string]APIKey, len(keys))
	for _, k := range keys {
		m[k.ID] = k
	}
	return &APIKeyOracle{keys: m}
}

func (o *APIKeyOracle) Identify(r *http.Request) (domain.Caller, error) {
	raw := r.Header.Get(APIKeyHeader)
	id, secret, ok := strings.Cut(raw, ".")
	if !ok || id == "" || secret == "" {
		return domain.Caller{}, fmt.Errorf("%w: malformed api key", ErrUnauthenticated)
	}
	key, ok := o.keys[id]
	if !ok {
		return domain.Caller{}, fmt.Errorf("%w: unknown api key", ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword(key.SecretHash, []byte(secret)); err != nil {
		return domain.Caller{}, fmt.Errorf("%w: api key rejected", ErrUnauthenticated)
	}
	return domain.Caller{ID: key.Principal, IsAdmin: key.Admin}, nil
}

// ChainOracle uses the API key oracle when the request carries a key and the
// token oracle otherwise.
type ChainOracle struct {
	apiKeys *APIKeyOracle
	tokens  IdentityOracle
}

// NewChainOracle accepts a nil apiKeys when no keys are registered.
func NewChainOracle(apiKeys *APIKeyOracle, tokens IdentityOracle) *ChainOracle {
	return &ChainOracle{apiKeys: apiKeys, tokens: tokens}
}

func (o *ChainOracle) Identify(r *http.Request) (domain.Caller, error) {
	if r.Header.Get(APIKeyHeader) != "" {
		if o.apiKeys == nil {
			return domain.Caller{}, fmt.Errorf("%w: api keys are not enabled", ErrUnauthenticated)
		}
		return o.apiKeys.Identify(r)
	}
	return o.tokens.Identify(r)
}
