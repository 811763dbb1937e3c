package daraja

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pesaflow/pesaflow/internal/shared/biztime"
	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// credential is one immutable token snapshot. Refresh installs a new
// snapshot; readers always see a stable value.
type credential struct {
	token     string
	expiresAt time.Time
}

// CredentialManager acquires and caches the gateway's short-lived bearer
// token. Concurrent callers during a refresh collapse into a single outbound
// call; no stale token is ever served past expiry.
type CredentialManager struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	safetyMargin   time.Duration

	httpClient *http.Client

	mu     sync.RWMutex
	cached *credential

	group singleflight.Group

	now    func() time.Time
	logger logger.Interface
}

// NewCredentialManager creates a credential manager for the gateway's
// authentication endpoint.
func NewCredentialManager(baseURL, consumerKey, consumerSecret string, safetyMargin time.Duration, timeout time.Duration, log logger.Interface) *CredentialManager {
	return &CredentialManager{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		safetyMargin:   safetyMargin,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now:    biztime.NowUTC,
		logger: log,
	}
}

// tokenResponse is the credential exchange response body.
type tokenResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// Token returns a valid bearer token, refreshing it when the cached one is
// within the safety margin of expiry.
func (m *CredentialManager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cachedToken(); ok {
		return tok, nil
	}

	// Single-flight the refresh so 50 concurrent callers produce exactly
	// one authentication exchange.
	result, err, _ := m.group.Do("token", func() (any, error) {
		// Double-check inside the flight: another caller may have
		// refreshed between our cache miss and acquiring the flight.
		if tok, ok := m.cachedToken(); ok {
			return tok, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the cached token so the next call performs a fresh
// exchange. Used when the gateway rejects a token early.
func (m *CredentialManager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

func (m *CredentialManager) cachedToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cached == nil {
		return "", false
	}
	if !m.now().Before(m.cached.expiresAt.Add(-m.safetyMargin)) {
		return "", false
	}
	return m.cached.token, true
}

func (m *CredentialManager) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/oauth/token", nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(m.consumerKey, m.consumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewCredentialError("credential exchange failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		m.logger.Warnw("credential exchange rejected",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return "", apperrors.NewCredentialError("credential exchange rejected", fmt.Sprintf("status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", apperrors.NewCredentialError("invalid credential response", err.Error())
	}
	if tr.Token == "" || tr.ExpiresInSeconds <= 0 {
		return "", apperrors.NewCredentialError("invalid credential response", "empty token or expiry")
	}

	snapshot := &credential{
		token:     tr.Token,
		expiresAt: m.now().Add(time.Duration(tr.ExpiresInSeconds) * time.Second),
	}

	// Replace, never mutate in place: readers holding the old snapshot
	// keep a consistent value.
	m.mu.Lock()
	m.cached = snapshot
	m.mu.Unlock()

	m.logger.Debugw("gateway credential refreshed", "expires_at", snapshot.expiresAt)

	return snapshot.token, nil
}
