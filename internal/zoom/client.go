package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://api.zoom.us/v2"
	DefaultTokenURL = "https://zoom.us/oauth/token"

	defaultTimeout = 30 * time.Second
	maxPageSize    = 300
)

// Endpoint identifies the upstream list resource a page was fetched from.
type Endpoint string

const (
	EndpointPastParticipants   Endpoint = "past_webinars/participants"
	EndpointReportParticipants Endpoint = "report/webinars/participants"
	EndpointRegistrants        Endpoint = "webinars/registrants"
)

// Tokens provides bearer tokens for an organization.
type Tokens interface {
	Token(ctx context.Context, organizationID string) (string, error)
}

// TokenInvalidator is implemented by token sources that cache tokens. The
// client calls it when the API rejects a token.
type TokenInvalidator interface {
	Invalidate(organizationID string)
}

// Client interfaces with the webinar platform REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     Tokens
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new webinar platform API client
func NewClient(tokens Tokens, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify checks that a bearer token can be obtained for the organization.
func (c *Client) Verify(ctx context.Context, organizationID string) error {
	_, err := c.tokens.Token(ctx, organizationID)
	return err
}

// ListParticipants fetches one page of participants of a past webinar from the given endpoint.
func (c *Client) ListParticipants(ctx context.Context, organizationID string, endpoint Endpoint, webinarID string, pageSize int, nextToken string) (Page[ParticipantData], error) {
	var path string
	switch endpoint {
	case EndpointPastParticipants:
		path = "/past_webinars/" + escapeWebinarID(webinarID) + "/participants"
	case EndpointReportParticipants:
		path = "/report/webinars/" + escapeWebinarID(webinarID) + "/participants"
	default:
		return Page[ParticipantData]{}, fmt.Errorf("unsupported participants endpoint %q", endpoint)
	}

	var resp participantsResponse
	if err := c.getPage(ctx, organizationID, path, pageSize, nextToken, nil, &resp); err != nil {
		return Page[ParticipantData]{}, err
	}
	return Page[ParticipantData]{
		PageSize:      resp.PageSize,
		TotalRecords:  resp.TotalRecords,
		NextPageToken: resp.NextPageToken,
		Records:       resp.Participants,
	}, nil
}

// ListRegistrants fetches one page of registrants of a webinar.
func (c *Client) ListRegistrants(ctx context.Context, organizationID, webinarID string, pageSize int, nextToken string) (Page[RegistrantData], error) {
	path := "/webinars/" + escapeWebinarID(webinarID) + "/registrants"

	var resp registrantsResponse
	if err := c.getPage(ctx, organizationID, path, pageSize, nextToken, url.Values{"status": {"approved"}}, &resp); err != nil {
		return Page[RegistrantData]{}, err
	}
	return Page[RegistrantData]{
		PageSize:      resp.PageSize,
		TotalRecords:  resp.TotalRecords,
		NextPageToken: resp.NextPageToken,
		Records:       resp.Registrants,
	}, nil
}

// ListWebinars fetches one page of the account's webinars.
func (c *Client) ListWebinars(ctx context.Context, organizationID string, pageSize int, nextToken string) (Page[WebinarData], error) {
	var resp webinarsResponse
	if err := c.getPage(ctx, organizationID, "/users/me/webinars", pageSize, nextToken, url.Values{"type": {"past"}}, &resp); err != nil {
		return Page[WebinarData]{}, err
	}
	return Page[WebinarData]{
		PageSize:      resp.PageSize,
		TotalRecords:  resp.TotalRecords,
		NextPageToken: resp.NextPageToken,
		Records:       resp.Webinars,
	}, nil
}

func (c *Client) getPage(ctx context.Context, organizationID, path string, pageSize int, nextToken string, extra url.Values, out any) error {
	token, err := c.tokens.Token(ctx, organizationID)
	if err != nil {
		return err
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("page_size", strconv.Itoa(pageSize))
	if nextToken != "" {
		q.Set("next_page_token", nextToken)
	}
	u.RawQuery = q.Encode()

	err = c.doRequest(ctx, u.String(), token, out)
	if !errors.Is(err, ErrInvalidToken) {
		return err
	}

	// A cached token revoked upstream: exchange a fresh one and try once more.
	invalidator, ok := c.tokens.(TokenInvalidator)
	if !ok {
		return err
	}
	invalidator.Invalidate(organizationID)
	token, err = c.tokens.Token(ctx, organizationID)
	if err != nil {
		return err
	}
	err = c.doRequest(ctx, u.String(), token, out)
	if errors.Is(err, ErrInvalidToken) {
		invalidator.Invalidate(organizationID)
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidToken
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// escapeWebinarID double-encodes instance UUIDs that start with or contain '/',
// which the platform requires for past webinar lookups.
func escapeWebinarID(id string) string {
	if strings.HasPrefix(id, "/") || strings.Contains(id, "//") {
		return url.PathEscape(url.PathEscape(id))
	}
	return url.PathEscape(id)
}

// IsAuthError reports whether err means the account must be reconnected.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrMissingConnection)
}
