package storeclient

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
	"time"

	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

const defaultTimeout = 10 * time.Second

// Client is a minimal client of the telemetry store contract.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient constructs a store client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("storeclient: empty base url")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("storeclient: invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("storeclient: base url must be http or https")
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Unit returns the latest records of one unit.
func (c *Client) Unit(ctx context.Context, unitID string) ([]telemetry.Row, error) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return nil, telemetry.ErrEmptyUnitID
	}
	var resp telemetry.UnitResponse
	if err := c.get(ctx, unitID, &resp); err != nil {
		return nil, err
	}
	if err := envelopeError(resp.Status, resp.Message); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// All returns the latest records of every unit.
func (c *Client) All(ctx context.Context) (map[string][]telemetry.Row, error) {
	var resp telemetry.AllResponse
	if err := c.get(ctx, telemetry.QueryAll, &resp); err != nil {
		return nil, err
	}
	if err := envelopeError(resp.Status, resp.Message); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = map[string][]telemetry.Row{}
	}
	return resp.Data, nil
}

// Status returns the store's server-side liveness summary.
func (c *Client) Status(ctx context.Context) (map[string]telemetry.StatusEntry, error) {
	var resp telemetry.StatusResponse
	if err := c.get(ctx, telemetry.QueryStatus, &resp); err != nil {
		return nil, err
	}
	if err := envelopeError(resp.Status, resp.Message); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = map[string]telemetry.StatusEntry{}
	}
	return resp.Data, nil
}

// Post appends one reading.
func (c *Client) Post(ctx context.Context, payload telemetry.Payload) (telemetry.WriteResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return telemetry.WriteResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(""), bytes.NewReader(body))
	if err != nil {
		return telemetry.WriteResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp telemetry.WriteResponse
	if err := c.do(req, &resp); err != nil {
		return telemetry.WriteResponse{}, err
	}
	if err := envelopeError(resp.Status, resp.Message); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return telemetry.ErrUnknownUnit
	}
	if resp.StatusCode >= 300 {
		var env telemetry.WriteResponse
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Message != "" {
			return fmt.Errorf("storeclient: http %d: %s", resp.StatusCode, env.Message)
		}
		return fmt.Errorf("storeclient: http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storeclient: decode response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(id string) string {
	target, _ := url.Parse(c.baseURL)
	if target.Path == "" {
		target.Path = "/"
	}
	if id != "" {
		target.RawQuery = url.Values{"id": []string{id}}.Encode()
	}
	return target.String()
}

// envelopeError maps an error envelope. A "not found" message means the unit
// has no log, which some deployments report with HTTP 200.
func envelopeError(status, message string) error {
	if status != telemetry.ResponseError {
		return nil
	}
	if strings.Contains(strings.ToLower(message), "not found") {
		return telemetry.ErrUnknownUnit
	}
	if message == "" {
		message = "unknown error"
	}
	return errors.New("storeclient: " + message)
}
