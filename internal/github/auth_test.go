package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// tokenServer serves installation tokens that expire at expiry.
func tokenServer(t *testing.T, expiry time.Time, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		n := hits.Add(1)
		if status != http.StatusCreated {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      fmt.Sprintf("token-%d", n),
			"expires_at": expiry.Format(time.RFC3339),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestAppCredentials_CachesToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	srv, hits := tokenServer(t, now.Add(time.Hour), http.StatusCreated)

	creds, err := NewAppCredentials(config.GitHubConfig{AppID: 1, BaseURL: srv.URL}, testKey(t), nil)
	require.NoError(t, err)
	creds.now = func() time.Time { return now }

	first, err := creds.Credential(context.Background(), 7)
	require.NoError(t, err)
	second, err := creds.Credential(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "token-1", first.Token)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAppCredentials_RefreshesNearExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	srv, hits := tokenServer(t, now.Add(time.Hour), http.StatusCreated)

	creds, err := NewAppCredentials(config.GitHubConfig{AppID: 1, BaseURL: srv.URL}, testKey(t), nil)
	require.NoError(t, err)
	creds.now = func() time.Time { return now }

	_, err = creds.Credential(context.Background(), 7)
	require.NoError(t, err)

	creds.now = func() time.Time { return now.Add(58 * time.Minute) }
	cred, err := creds.Credential(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "token-2", cred.Token)
	assert.Equal(t, int32(2), hits.Load())
}

func TestAppCredentials_RemoteFailure(t *testing.T) {
	srv, _ := tokenServer(t, time.Time{}, http.StatusServiceUnavailable)

	creds, err := NewAppCredentials(config.GitHubConfig{AppID: 1, BaseURL: srv.URL}, testKey(t), nil)
	require.NoError(t, err)

	_, err = creds.Credential(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
}

func TestCredential_ValidAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"fresh", Credential{Token: "t", ExpiresAt: now.Add(time.Hour)}, true},
		{"inside refresh margin", Credential{Token: "t", ExpiresAt: now.Add(4 * time.Minute)}, false},
		{"expired", Credential{Token: "t", ExpiresAt: now.Add(-time.Minute)}, false},
		{"empty token", Credential{ExpiresAt: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.ValidAt(now))
		})
	}
}

func TestNewAppCredentials_BadKey(t *testing.T) {
	_, err := NewAppCredentials(config.GitHubConfig{AppID: 1}, []byte("not a key"), nil)
	assert.Error(t, err)
}
