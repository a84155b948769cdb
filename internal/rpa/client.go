// Package rpa is a client for the Remote Planning API: a graph-style HTTP API
// addressed as /{id} and /{id}/{edge}, authenticated with OAuth2 client
// credentials.
package rpa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// authDebugHeader carries the reason for a 403 from the remote system.
const authDebugHeader = "WWW-Authenticate"

const maxErrorBody = 64 << 10

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       []byte
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rpa: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rpa: %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

type Config struct {
	BaseURL    string
	PartnerID  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	partnerID  string
	auth       Authenticator
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, auth Authenticator) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		partnerID:  cfg.PartnerID,
		auth:       auth,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Request addresses a graph node (ID) or one of its edges (ID + Edge).
type Request struct {
	Method string
	ID     string
	Edge   string
	Query  url.Values
	Header http.Header
	// JSON is encoded as the request body when set. Body is used otherwise.
	JSON        any
	Body        io.Reader
	ContentType string
}

func (r Request) path() string {
	p := "/" + url.PathEscape(r.ID)
	if r.Edge != "" {
		p += "/" + url.PathEscape(r.Edge)
	}
	return p
}

// Do sends req and decodes a JSON response into out when out is not nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rpa: decode %s %s: %w", req.Method, req.path(), err)
	}
	return nil
}

// Send performs req and returns the raw response for 2xx statuses. The caller
// must close the body. Transport errors are returned as is.
func (c *Client) Send(ctx context.Context, req Request) (*http.Response, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	body := req.Body
	contentType := req.ContentType
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("rpa: encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	target := c.baseURL + req.path()
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("rpa request", "method", method, "path", req.path(), "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: data}
		if resp.StatusCode == http.StatusForbidden {
			apiErr.Message = resp.Header.Get(authDebugHeader)
		}
		return nil, apiErr
	}
	return resp, nil
}
