package bootstrap

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"custody-backend/internal/config"
	"custody-backend/internal/security"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "0123456789abcdef0123456789abcdef"

func parse(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenStore(ctx, parse(t, `
database: {driver: memory}
identity: {jwt_secret: "`+secret+`"}
storage: {dir: /tmp/custody-bootstrap}`))
	require.NoError(t, err)
	assert.NoError(t, mem.Ping(ctx))
	assert.NoError(t, mem.Close())

	path := filepath.Join(t.TempDir(), "custody.db")
	lite, err := OpenStore(ctx, parse(t, fmt.Sprintf(`
database: {driver: sqlite, path: %q}
identity: {jwt_secret: "%s"}
storage: {dir: /tmp/custody-bootstrap}`, path, secret)))
	require.NoError(t, err)
	defer lite.Close()
	assert.NoError(t, lite.Ping(ctx))
	_, err = lite.Assets.GetByID(ctx, uuid.New())
	assert.Error(t, err)
}

func TestNewIdentityOracle(t *testing.T) {
	ctx := context.Background()

	oracle, err := NewIdentityOracle(ctx, parse(t, `
database: {driver: memory}
identity: {jwt_secret: "`+secret+`"}
storage: {dir: /tmp/custody-bootstrap}`))
	require.NoError(t, err)
	require.IsType(t, &security.JWTOracle{}, oracle)

	tok, err := security.NewTokenManager(secret, "").GenerateAccessToken("u1", "", []string{"admin"}, time.Hour)
	require.NoError(t, err)
	r := httptest.NewRequest("GET", "/api/v1/assets", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	caller, err := oracle.Identify(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.ID)
	assert.True(t, caller.IsAdmin)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	chained, err := NewIdentityOracle(ctx, parse(t, fmt.Sprintf(`
database: {driver: memory}
identity:
  jwt_secret: "%s"
  api_keys:
    - {id: kiosk, secret_hash: "%s"}
storage: {dir: /tmp/custody-bootstrap}`, secret, hash)))
	require.NoError(t, err)
	r = httptest.NewRequest("GET", "/api/v1/assets", nil)
	r.Header.Set(security.APIKeyHeader, "kiosk.s3cret")
	caller, err = chained.Identify(r)
	require.NoError(t, err)
	assert.Equal(t, "apikey:kiosk", caller.ID)
}

func TestNewNotifierAndLocator(t *testing.T) {
	cfg := parse(t, `
database: {driver: memory}
identity: {jwt_secret: "`+secret+`"}
storage: {dir: /tmp/custody-bootstrap}
artifact: {detail_url_template: "https://custody.example.com/a/{id}"}`)

	locator, err := NewLocator(cfg)
	require.NoError(t, err)
	id := uuid.New()
	assert.Equal(t, "https://custody.example.com/a/"+id.String(), locator.Locate(id))

	notifier, err := NewNotifier(cfg, locator)
	require.NoError(t, err)
	assert.NotNil(t, notifier)
}
