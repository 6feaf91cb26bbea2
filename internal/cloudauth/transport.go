package cloudauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rfoxley/hearthsync/internal/session"
)

// maxResponseSize bounds the exchange response body (64KB).
const maxResponseSize = 64 << 10

// defaultTimeout is the per-request timeout when none is configured.
const defaultTimeout = 10 * time.Second

// Config holds the remote endpoint settings.
type Config struct {
	// ExchangeURL is the credential exchange endpoint.
	ExchangeURL string

	// RevokeURL is the credential revocation endpoint.
	RevokeURL string

	// Timeout bounds each HTTP request. Zero means the default.
	Timeout time.Duration
}

// Logger is the minimal logging interface used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Transport implements session.AuthTransport and session.RevocationTransport
// over HTTP. Each request carries a correlation ID for remote-side tracing.
type Transport struct {
	cfg    Config
	client *http.Client
	logger Logger
}

// New creates a Transport for the given endpoints.
func New(cfg Config) *Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Transport{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the transport.
func (t *Transport) SetLogger(logger Logger) {
	t.logger = logger
}

// exchangeRequest is the credential exchange request body.
type exchangeRequest struct {
	Credential string `json:"credential"`
	RequestID  string `json:"request_id"`
}

// exchangeResponse is the credential exchange response body.
type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error,omitempty"`
}

// ExchangeCredential exchanges the long-lived credential for an access token
// and returns a channel that tracks the token's validity window.
func (t *Transport) ExchangeCredential(ctx context.Context, credential string) (session.AuthenticatedChannel, error) {
	requestID := uuid.NewString()
	body, err := json.Marshal(exchangeRequest{Credential: credential, RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("encoding exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.ExchangeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrExchangeFailed, err)
	}

	var parsed exchangeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrExchangeFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrExchangeFailed, resp.StatusCode, parsed.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrExchangeFailed, resp.StatusCode)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("%w: response missing access token", ErrExchangeFailed)
	}

	t.logger.Debug("credential exchanged", "request_id", requestID)
	return newChannel(parsed.AccessToken, tokenExpiry(parsed.AccessToken)), nil
}

// revokeRequest is the revocation request body.
type revokeRequest struct {
	Credential string `json:"credential"`
	RequestID  string `json:"request_id"`
}

// Revoke invalidates the credential remotely. Non-2xx responses and
// transport failures are returned as *session.RevocationError so callers
// can inspect the HTTP status.
func (t *Transport) Revoke(ctx context.Context, credential string) error {
	body, err := json.Marshal(revokeRequest{Credential: credential, RequestID: uuid.NewString()})
	if err != nil {
		return fmt.Errorf("encoding revoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.RevokeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &session.RevocationError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &session.RevocationError{StatusCode: resp.StatusCode}
	}
	return nil
}

// tokenExpiry extracts the expiry claim from the issued access token.
// The token is verified server-side; the client only reads the validity
// window to schedule its unauthenticated notification. A token without a
// readable expiry yields a zero time, meaning no local expiry tracking.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
