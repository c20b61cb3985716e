package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/corrigefolio/backend/src/config"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Hour}
	return NewAuthService("test-secret-key-with-at-least-32-bytes!!")
}

func TestPasswordHashing(t *testing.T) {
	svc := newTestAuthService(t)

	hash, err := svc.HashPassword("s3nha-do-operador")
	require.NoError(t, err)
	assert.NotEqual(t, "s3nha-do-operador", hash)

	assert.NoError(t, svc.CompareHashAndPassword(hash, "s3nha-do-operador"))
	assert.Error(t, svc.CompareHashAndPassword(hash, "senha-errada"))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService(t)

	token, err := svc.GenerateToken("operator")
	require.NoError(t, err)

	subject, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	svc := newTestAuthService(t)
	token, err := svc.GenerateToken("operator")
	require.NoError(t, err)

	other := NewAuthService("another-secret-key-with-32-bytes-min!!!")
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	svc := newTestAuthService(t)
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}
