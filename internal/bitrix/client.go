// Package bitrix is a minimal client for the Bitrix24 REST methods used to
// register user field types.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultScheme  = "https"

	// DefaultEndpoint is the method the service has always registered with.
	DefaultEndpoint = "userfieldtype.add"

	maxResponseSize = 1 << 20
)

type Client struct {
	httpClient *http.Client
	scheme     string
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithScheme switches the REST base scheme; tests talk plain http.
func WithScheme(scheme string) Option {
	return func(c *Client) {
		if s := strings.ToLower(strings.TrimSpace(scheme)); s != "" {
			c.scheme = s
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: newHTTPClient(),
		scheme:     DefaultScheme,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a successful Bitrix24 answer.
type Response struct {
	Endpoint   string
	StatusCode int
	Result     json.RawMessage
	Payload    json.RawMessage
}

// MethodURL builds https://{domain}/rest/{method}?auth={token}.
func (c *Client) MethodURL(host, method, token string) string {
	u := url.URL{
		Scheme: c.scheme,
		Host:   host,
		Path:   "/rest/" + strings.TrimLeft(method, "/"),
	}
	q := url.Values{}
	q.Set("auth", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// AddUserFieldType POSTs the field type payload to one REST method.
// A nil error means the answer carried a truthy result.
func (c *Client) AddUserFieldType(ctx context.Context, host, token, method string, payload domain.FieldTypePayload) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode field type payload: %w", err)
	}

	c.logger.Debug("Sending Bitrix request",
		"domain", host,
		"endpoint", method,
		"token", domain.MaskToken(token))

	resp, cancel, err := doPost(ctx, c.httpClient, c.timeout, c.MethodURL(host, method, token), body)
	defer cancel()
	if err != nil {
		return nil, &TransportError{Endpoint: method, Domain: host, Message: c.describe(ctx, err), err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	raw = bytes.TrimSpace(raw)
	if err != nil {
		return nil, &TransportError{
			Endpoint:   method,
			Domain:     host,
			StatusCode: resp.StatusCode,
			Message:    "read response body: " + c.describe(ctx, err),
			err:        err,
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &TransportError{
			Endpoint:   method,
			Domain:     host,
			StatusCode: resp.StatusCode,
			Message:    "server error: " + truncate(strings.TrimSpace(string(raw)), 200),
		}
	}

	// Below 500 the portal answered; anything without a truthy result is a
	// rejection, including non-JSON bodies.
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || !Truthy(env.Result) {
		return nil, &APIError{
			Endpoint:   method,
			Domain:     host,
			StatusCode: resp.StatusCode,
			Payload:    rawPayload(raw),
		}
	}

	return &Response{
		Endpoint:   method,
		StatusCode: resp.StatusCode,
		Result:     env.Result,
		Payload:    json.RawMessage(raw),
	}, nil
}

// describe renders a transport failure without the request URL, which
// carries the auth token.
func (c *Client) describe(ctx context.Context, err error) string {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timeout of %dms exceeded", c.timeout.Milliseconds())
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Sprintf("timeout of %dms exceeded", c.timeout.Milliseconds())
		}
		return urlErr.Err.Error()
	}
	return err.Error()
}

// rawPayload keeps JSON bodies verbatim and quotes anything else as a JSON
// string, so an HTML error page still reads back as valid JSON.
func rawPayload(raw []byte) json.RawMessage {
	if len(raw) > 0 && json.Valid(raw) {
		return json.RawMessage(raw)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(string(raw))
	return json.RawMessage(bytes.TrimSpace(buf.Bytes()))
}
