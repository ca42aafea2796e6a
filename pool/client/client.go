package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ellavondegurechaff/vmq/backend/models"
	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/pool/config"
)

// Error is a failure reported by the server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Code, e.Message, e.StatusCode)
}

// IsCode reports whether err is a server error carrying code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Client talks to the pool HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: config.ClientRequestTimeout},
	}, nil
}

func (c *Client) Add(ctx context.Context, tokens []string) (accounts.AddResult, error) {
	var res accounts.AddResult
	if tokens == nil {
		tokens = []string{}
	}
	err := c.do(ctx, http.MethodPost, "/add_accounts", tokens, &res)
	return res, err
}

func (c *Client) Allocate(ctx context.Context, count int, consumer string) (accounts.Allocation, error) {
	var res accounts.Allocation
	body := map[string]any{"count": count, "consumer": consumer}
	err := c.do(ctx, http.MethodPost, "/extract", body, &res)
	return res, err
}

func (c *Client) Stats(ctx context.Context) (accounts.Stats, error) {
	var res accounts.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &res)
	return res, err
}

func (c *Client) Export(ctx context.Context) (accounts.Export, error) {
	var res accounts.Export
	err := c.do(ctx, http.MethodGet, "/export", nil, &res)
	return res, err
}

func (c *Client) Health(ctx context.Context) (models.HealthCheck, error) {
	var res models.HealthCheck
	err := c.do(ctx, http.MethodGet, "/health", nil, &res)
	return res, err
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *models.APIError `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &Error{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success || resp.StatusCode >= 400 {
		e := &Error{StatusCode: resp.StatusCode}
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Message = env.Error.Message
		}
		return e
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", path, err)
		}
	}
	return nil
}
