package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mrlokans/webinarsync/internal/database"
	"github.com/mrlokans/webinarsync/internal/entities"
)

const (
	tokenRefreshMargin   = 5 * time.Minute
	tokenExchangeRetries = 3
)

// CredentialStore resolves the connected platform account of an organization.
type CredentialStore interface {
	GetConnection(ctx context.Context, organizationID string) (*entities.Connection, error)
}

type cachedToken struct {
	accessToken  string
	expiresAt    time.Time
	clientID     string
	clientSecret string
}

// issuedFor reports whether the token was exchanged with the connection's current credentials.
func (t cachedToken) issuedFor(conn *entities.Connection) bool {
	return t.clientID == conn.ClientID && t.clientSecret == conn.ClientSecret
}

// TokenSource exchanges account credentials for short-lived bearer tokens and
// caches them per account until shortly before expiry. A cached token is
// dropped when the stored credentials change or the API rejects it.
type TokenSource struct {
	httpClient *http.Client
	tokenURL   string
	store      CredentialStore
	now        func() time.Time

	mu       sync.Mutex
	tokens   map[string]cachedToken
	accounts map[string]string
}

// NewTokenSource creates a token source backed by the given credential store.
func NewTokenSource(httpClient *http.Client, tokenURL string, store CredentialStore) *TokenSource {
	return &TokenSource{
		httpClient: httpClient,
		tokenURL:   tokenURL,
		store:      store,
		now:        time.Now,
		tokens:     make(map[string]cachedToken),
		accounts:   make(map[string]string),
	}
}

// Token returns a valid bearer token for the organization.
// Missing connections map to ErrMissingConnection, rejected credentials to ErrInvalidToken.
func (s *TokenSource) Token(ctx context.Context, organizationID string) (string, error) {
	conn, err := s.store.GetConnection(ctx, organizationID)
	if errors.Is(err, database.ErrConnectionNotFound) {
		return "", fmt.Errorf("%w: %w", ErrMissingConnection, err)
	}
	if err != nil {
		return "", fmt.Errorf("load connection: %w", err)
	}
	if conn == nil || conn.AccountID == "" || conn.ClientID == "" {
		return "", ErrMissingConnection
	}

	s.mu.Lock()
	s.accounts[organizationID] = conn.AccountID
	cached, ok := s.tokens[conn.AccountID]
	s.mu.Unlock()
	if ok && cached.issuedFor(conn) && s.now().Add(tokenRefreshMargin).Before(cached.expiresAt) {
		return cached.accessToken, nil
	}

	token, err := s.exchange(ctx, conn)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.tokens[conn.AccountID] = token
	s.mu.Unlock()
	return token.accessToken, nil
}

// Invalidate drops the cached token of the organization's account, forcing a
// new exchange on the next Token call.
func (s *TokenSource) Invalidate(organizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.accounts[organizationID]; ok {
		delete(s.tokens, account)
	}
}

func (s *TokenSource) exchange(ctx context.Context, conn *entities.Connection) (cachedToken, error) {
	var result cachedToken

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	operation := func() error {
		token, err := s.doExchange(ctx, conn)
		if err != nil {
			if isRetryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = token
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, tokenExchangeRetries), ctx))
	if err != nil {
		return cachedToken{}, fmt.Errorf("token exchange: %w", err)
	}
	return result, nil
}

func (s *TokenSource) doExchange(ctx context.Context, conn *entities.Connection) (cachedToken, error) {
	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", conn.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return cachedToken{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(conn.ClientID, conn.ClientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return cachedToken{}, ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return cachedToken{}, ErrRateLimited
	case resp.StatusCode >= 500:
		return cachedToken{}, &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return cachedToken{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return cachedToken{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return cachedToken{}, errors.New("token response did not include an access token")
	}

	return cachedToken{
		accessToken:  tr.AccessToken,
		expiresAt:    s.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		clientID:     conn.ClientID,
		clientSecret: conn.ClientSecret,
	}, nil
}
