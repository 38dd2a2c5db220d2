// Package api implements the raven HTTP API client: the normalized request
// transport, the bootstrap-driven session state store, capability
// composition, and the scope authorization helper.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SessionCookieName is the cookie the server uses to track client sessions.
const SessionCookieName = "tokens.raven"

// requestTimeout bounds every API request. A timeout is indistinguishable
// from "no response received" at this layer.
const requestTimeout = 5 * time.Second

// Response is the uniform request envelope. Every failure mode folds into
// it: HTTP error statuses carry their real code and text, while network
// errors, timeouts and request construction errors carry StatusCode 0 and
// the error text. Transport methods never return a Go error.
type Response struct {
	Success    bool
	StatusCode int
	StatusText string
	Data       json.RawMessage
}

// RequestOptions configures a single API request. Method defaults to GET;
// Body is serialized as JSON and honored only for POST, PUT and PATCH.
type RequestOptions struct {
	Method string
	Params map[string]string
	Body   any
}

// Transport issues requests against the raven API and normalizes every
// outcome into a Response.
type Transport struct {
	base   *url.URL
	client *http.Client
	jar    *cookiejar.Jar
	logger zerolog.Logger
}

// NewTransport creates a transport targeting https://<host>/api/. The
// insecure flag skips TLS verification for lab deployments.
func NewTransport(host string, insecure bool, logger zerolog.Logger) (*Transport, error) {
	base, err := url.Parse("https://" + host + "/api/")
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: requestTimeout,
		Jar:     jar,
	}
	if insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Transport{
		base:   base,
		client: client,
		jar:    jar,
		logger: logger,
	}, nil
}

// NewTransportURL creates a transport against a fully specified base URL.
// Used by tests to point at an httptest server.
func NewTransportURL(baseURL string, logger zerolog.Logger) (*Transport, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Transport{
		base:   base,
		client: &http.Client{Timeout: requestTimeout, Jar: jar},
		jar:    jar,
		logger: logger,
	}, nil
}

// Host returns the host the transport targets.
func (t *Transport) Host() string {
	return t.base.Host
}

func bodyAllowed(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Do issues one request and folds the outcome into a Response.
func (t *Transport) Do(ctx context.Context, endpoint string, opts *RequestOptions) Response {
	method := http.MethodGet
	if opts != nil && opts.Method != "" {
		method = strings.ToUpper(opts.Method)
	}

	target := t.base.JoinPath(strings.TrimPrefix(endpoint, "/"))
	if opts != nil && len(opts.Params) > 0 {
		q := target.Query()
		for k, v := range opts.Params {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if opts != nil && opts.Body != nil && bodyAllowed(method) {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return Response{Success: false, StatusCode: 0, StatusText: err.Error()}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Response{Success: false, StatusCode: 0, StatusText: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// No response received: network error, refused connection or timeout.
		t.logger.Debug().Str("endpoint", endpoint).Err(err).Msg("request failed without response")
		return Response{Success: false, StatusCode: 0, StatusText: err.Error()}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Response{Success: true, Data: payload}
	}

	return Response{
		Success:    false,
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Data:       payload,
	}
}

// SessionCookie returns the current session cookie value, if the server has
// set one on this transport.
func (t *Transport) SessionCookie() string {
	for _, c := range t.jar.Cookies(t.base) {
		if c.Name == SessionCookieName {
			return c.Value
		}
	}
	return ""
}

// SetSessionCookie seeds the session cookie, restoring a session persisted
// by a previous CLI invocation.
func (t *Transport) SetSessionCookie(value string) {
	if value == "" {
		return
	}
	t.jar.SetCookies(t.base, []*http.Cookie{{
		Name:  SessionCookieName,
		Value: value,
		Path:  "/",
	}})
}

// DecodeOr returns the decoded response body on success, or fallback when
// the request failed or the body does not parse. List-style API calls use
// it to degrade to empty containers instead of surfacing transport errors.
func DecodeOr[T any](resp Response, fallback T) T {
	if !resp.Success {
		return fallback
	}
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return fallback
	}
	return out
}
