package parasut

import (
	"context"
	"sync"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

// Authenticator obtains tokens from the provider. *AuthFacade implements it.
type Authenticator interface {
	PasswordGrant(ctx context.Context) (*TokenResponse, error)
	RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

type TokenState string

const (
	TokenInit          TokenState = "init"
	TokenAuthenticated TokenState = "authenticated"
	TokenExpired       TokenState = "expired"
)

// TokenManager owns the bearer token. It is the only writer of token and
// expiry; concurrent callers hitting an expired token share one refresh.
type TokenManager struct {
	auth    Authenticator
	metrics *Metrics

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	flight singleflight.Group

	// o ile wcześniej przed wygaśnięciem odświeżyć token
	refreshSkew    time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
}

type TokenOption func(*TokenManager)

func WithRefreshSkew(d time.Duration) TokenOption {
	return func(m *TokenManager) { m.refreshSkew = d }
}

// WithRefreshTimeout bounds the shared refresh call, which is detached from
// the cancellation of the caller that started it.
func WithRefreshTimeout(d time.Duration) TokenOption {
	return func(m *TokenManager) { m.refreshTimeout = d }
}

func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

func WithTokenMetrics(metrics *Metrics) TokenOption {
	return func(m *TokenManager) { m.metrics = metrics }
}

// NewTokenManager tworzy managera bez wstępnego logowania; uwierzytelnienie
// nastąpi przy pierwszym EnsureValid.
func NewTokenManager(auth Authenticator, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		auth:           auth,
		refreshTimeout: 30 * time.Second,
		now:            time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// EnsureValid returns a bearer token that has not expired. With a valid token
// it returns immediately without any network call.
func (m *TokenManager) EnsureValid(ctx context.Context) (string, error) {
	// szybka ścieżka
	if token, ok := m.current(); ok {
		return token, nil
	}

	ch := m.flight.DoChan("token", func() (interface{}, error) {
		// podwójne sprawdzenie: ktoś mógł właśnie odświeżyć
		if token, ok := m.current(); ok {
			return token, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.authenticate(rctx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops all token state (logout). The next EnsureValid performs a
// full authentication.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAt = time.Time{}
	logger.Debug("TokenManager: token invalidated")
}

// expire marks the given access token as expired if it is still current.
// Used when the provider rejects a token before its expiry.
func (m *TokenManager) expire(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != "" && m.accessToken == token {
		m.expiresAt = time.Time{}
		logger.Debug("TokenManager: access token rejected by provider, marked expired")
	}
}

func (m *TokenManager) State() TokenState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.accessToken == "":
		return TokenInit
	case m.validLocked():
		return TokenAuthenticated
	default:
		return TokenExpired
	}
}

// ExpiresAt returns the expiry of the current access token, zero when none.
func (m *TokenManager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

func (m *TokenManager) current() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.validLocked() {
		return "", false
	}
	return m.accessToken, true
}

func (m *TokenManager) validLocked() bool {
	if m.accessToken == "" || m.expiresAt.IsZero() {
		return false
	}
	return m.expiresAt.Add(-m.refreshSkew).After(m.now().UTC())
}

// authenticate próbuje refresh tokena, a gdy go brak lub się nie uda,
// wykonuje pełne uwierzytelnienie hasłem.
func (m *TokenManager) authenticate(ctx context.Context) (string, error) {
	m.mu.RLock()
	refresh := m.refreshToken
	hadToken := m.accessToken != ""
	m.mu.RUnlock()

	if hadToken {
		logger.Debug("TokenManager: access token expired")
	}

	if refresh != "" {
		logger.Debug("TokenManager: trying refresh token grant")
		tr, err := m.auth.RefreshGrant(ctx, refresh)
		if err == nil {
			m.metrics.tokenRefreshed(grantRefresh, "success")
			return m.store(tr), nil
		}
		m.metrics.tokenRefreshed(grantRefresh, "failure")
		logger.Debugf("TokenManager: refresh failed: %v, performing full authentication", err)
	}

	logger.Debug("TokenManager: performing full authentication")
	tr, err := m.auth.PasswordGrant(ctx)
	if err != nil {
		m.metrics.tokenRefreshed(grantPassword, "failure")
		return "", &invoice.AuthenticationError{Reason: failureReason(err), Err: err}
	}
	m.metrics.tokenRefreshed(grantPassword, "success")
	return m.store(tr), nil
}

func (m *TokenManager) store(tr *TokenResponse) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = tr.AccessToken
	m.expiresAt = tr.ExpiresAt(m.now())
	if tr.RefreshToken != "" {
		m.refreshToken = tr.RefreshToken
	}
	logger.WithField("expires_at", m.expiresAt).Debug("TokenManager: authenticated, token cached")
	return m.accessToken
}

func failureReason(err error) string {
	var pe *invoice.ProviderRequestError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	var te *invoice.TransportError
	if errors.As(err, &te) {
		return "token endpoint unreachable"
	}
	return "token request failed"
}
