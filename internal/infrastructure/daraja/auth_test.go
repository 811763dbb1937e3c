package daraja

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

func newTokenServer(t *testing.T, hits *atomic.Int64, token string, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "ck", user)
		require.Equal(t, "cs", pass)

		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"` + token + `","expiresInSeconds":` + strconv.FormatInt(expiresIn, 10) + `}`))
	}))
}

func TestCredentialManager_ConcurrentCallersSingleExchange(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, "tok-1", 3600)
	defer srv.Close()

	m := NewCredentialManager(srv.URL, "ck", "cs", 30*time.Second, 5*time.Second, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load(), "50 concurrent callers must produce one exchange")
}

func TestCredentialManager_RefreshesNearExpiry(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, "tok-1", 3600)
	defer srv.Close()

	m := NewCredentialManager(srv.URL, "ck", "cs", 30*time.Second, 5*time.Second, logger.NewNop())

	base := time.Now().UTC()
	m.now = func() time.Time { return base }

	_, err := m.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load())

	// Well within the token lifetime: served from cache.
	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	// Inside the safety margin of expiry: refreshed.
	m.now = func() time.Time { return base.Add(3600*time.Second - 10*time.Second) }
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCredentialManager_Invalidate(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, "tok-1", 3600)
	defer srv.Close()

	m := NewCredentialManager(srv.URL, "ck", "cs", 30*time.Second, 5*time.Second, logger.NewNop())

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	m.Invalidate()

	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCredentialManager_ExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewCredentialManager(srv.URL, "ck", "cs", 30*time.Second, 5*time.Second, logger.NewNop())

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCredentialError(err))
}

func TestCredentialManager_Unreachable(t *testing.T) {
	m := NewCredentialManager("http://127.0.0.1:1", "ck", "cs", 30*time.Second, time.Second, logger.NewNop())

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCredentialError(err))
}
