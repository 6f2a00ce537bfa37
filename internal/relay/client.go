package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

const (
	apiVersion = "1"

	// errorBodyLimit caps how much of an error response ends up in logs.
	errorBodyLimit = 512
)

// HTTPError is returned for non-2xx API responses. It carries the
// response body so failures can be diagnosed from the logs alone.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func newHTTPError(status int, body []byte) *HTTPError {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > errorBodyLimit {
		snippet = snippet[:errorBodyLimit]
	}
	return &HTTPError{StatusCode: status, Body: snippet}
}

// ClientConfig configures the API client.
type ClientConfig struct {
	// BaseURL is the API host, without a trailing slash.
	BaseURL string
	// DeviceID and Secret authenticate message fetches and head
	// updates. Both may be empty for onboarding calls.
	DeviceID string
	Secret   string
	// Timeout bounds every request.
	Timeout time.Duration
	Logger  logging.Logger
}

// Client talks to the relay's HTTP API.
type Client struct {
	baseURL    string
	deviceID   string
	secret     string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient builds an API client from the given config.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobal()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		deviceID:   cfg.DeviceID,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// DeviceID returns the device id this client authenticates as.
func (c *Client) DeviceID() string { return c.deviceID }

// Secret returns the account secret this client authenticates with.
func (c *Client) Secret() string { return c.secret }

// FetchMessages returns every message the server still holds for this
// device, oldest first, exactly as the server ordered them.
func (c *Client) FetchMessages(ctx context.Context) ([]Message, error) {
	query := url.Values{}
	query.Set("secret", c.secret)
	query.Set("device_id", c.deviceID)
	endpoint := fmt.Sprintf("%s/%s/messages.json?%s", c.baseURL, apiVersion, query.Encode())

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: decode response: %w", err)
	}
	c.logger.Debug("fetched messages", "count", len(out.Messages))
	return out.Messages, nil
}

// UpdateHead moves the server-side head pointer. The server deletes
// every message for this device with an id at or below the given one.
func (c *Client) UpdateHead(ctx context.Context, id int64) error {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("message", strconv.FormatInt(id, 10))
	endpoint := fmt.Sprintf("%s/%s/devices/%s/update_highest_message.json",
		c.baseURL, apiVersion, url.PathEscape(c.deviceID))

	if _, err := c.do(ctx, http.MethodPost, endpoint, form); err != nil {
		return fmt.Errorf("update head: %w", err)
	}
	return nil
}

// LoginResult is the response to a successful account login.
type LoginResult struct {
	Status int    `json:"status"`
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// Login exchanges account credentials for the account secret used by
// all further API calls. Only the setup flow calls this.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	endpoint := fmt.Sprintf("%s/%s/users/login.json", c.baseURL, apiVersion)

	body, err := c.do(ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return LoginResult{}, fmt.Errorf("login: decode response: %w", err)
	}
	if result.Status != 1 || result.Secret == "" {
		return LoginResult{}, fmt.Errorf("login: rejected: %s", strings.TrimSpace(string(body)))
	}
	return result, nil
}

// DeviceRegistration is the response to a successful device
// registration.
type DeviceRegistration struct {
	Status int    `json:"status"`
	ID     string `json:"id"`
}

// RegisterDevice registers this machine as a new desktop device under
// the account and returns its id. Only the setup flow calls this.
func (c *Client) RegisterDevice(ctx context.Context, secret, name string) (DeviceRegistration, error) {
	form := url.Values{}
	form.Set("secret", secret)
	form.Set("name", name)
	form.Set("os", "O")
	endpoint := fmt.Sprintf("%s/%s/devices.json", c.baseURL, apiVersion)

	body, err := c.do(ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return DeviceRegistration{}, fmt.Errorf("register device: %w", err)
	}
	var result DeviceRegistration
	if err := json.Unmarshal(body, &result); err != nil {
		return DeviceRegistration{}, fmt.Errorf("register device: decode response: %w", err)
	}
	if result.Status != 1 || result.ID == "" {
		return DeviceRegistration{}, fmt.Errorf("register device: rejected: %s", strings.TrimSpace(string(body)))
	}
	return result, nil
}

// do performs one bounded request and returns the response body.
// Non-2xx statuses become an *HTTPError carrying the body.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return body, nil
}
