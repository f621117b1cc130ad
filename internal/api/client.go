package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://api.vistopia.com.cn/api/v1/"
	DefaultWebBaseURL = "https://www.vistopia.com.cn/api/v1/"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// ErrMissingData is returned when a successful envelope carries no data field
var ErrMissingData = errors.New("api response is missing the data field")

// APIError carries the platform's own error report
type APIError struct {
	Endpoint string
	Status   string
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = "unknown"
	}
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("api request %s failed (status %q, code %s): %s", e.Endpoint, e.Status, code, msg)
}

// envelope is the {status, data} wrapper every endpoint answers with
type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	ErrorCode json.RawMessage `json:"error_code"`
	Message   string          `json:"message"`
}

// Options configures a Client
type Options struct {
	Token      string
	BaseURL    string
	WebBaseURL string
	Timeout    time.Duration
	// RateLimit is requests per second; zero or less means unlimited.
	RateLimit  float64
	HTTPClient *http.Client
}

// Client issues authenticated GET requests against the platform API
type Client struct {
	token      string
	baseURL    *url.URL
	webBaseURL *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client, filling in the public endpoints for empty URLs
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.WebBaseURL == "" {
		opts.WebBaseURL = DefaultWebBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	web, err := parseBase(opts.WebBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid web api base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Client{
		token:      opts.Token,
		baseURL:    base,
		webBaseURL: web,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}

// Get calls endpoint (relative to the API base) and decodes the envelope's
// data into out. out may be nil to discard the payload.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	data, err := c.get(ctx, c.baseURL, endpoint, params)
	if err != nil {
		return err
	}
	return decodeData(endpoint, data, out)
}

// GetWeb is Get against the web API base, used by the undocumented endpoints
func (c *Client) GetWeb(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	data, err := c.get(ctx, c.webBaseURL, endpoint, params)
	if err != nil {
		return err
	}
	return decodeData(endpoint, data, out)
}

func decodeData(endpoint string, data json.RawMessage, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, base *url.URL, endpoint string, params url.Values) (json.RawMessage, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	u := base.ResolveReference(ref)

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api_token", c.token)
	u.RawQuery = q.Encode()

	logrus.WithField("url", redact(u)).Debug("Visiting api endpoint")

	resp, err := c.do(ctx, u.String(), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("api returned status %d for %s", resp.StatusCode, endpoint)
		}
		return nil, fmt.Errorf("failed to parse JSON response from %s: %w", endpoint, err)
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   env.Status,
		"bytes":    len(body),
	}).Debug("API response received")

	if env.Status != "success" {
		apiErr := &APIError{
			Endpoint: endpoint,
			Status:   env.Status,
			Code:     strings.Trim(string(env.ErrorCode), `"`),
			Message:  env.Message,
		}
		logrus.WithFields(logrus.Fields{
			"endpoint":   endpoint,
			"error_code": apiErr.Code,
			"message":    apiErr.Message,
		}).Error("API request failed")
		return nil, apiErr
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrMissingData)
	}
	return env.Data, nil
}

// Download streams rawURL into w using the same identity as API calls
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, rawURL, "*/*")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download %s returned status %d", rawURL, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Device-Type", "web")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Cookie", authCookie(c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", redactString(rawURL), err)
	}
	return resp, nil
}

// authCookie is the web session cookie the site sets after login
func authCookie(token string) string {
	return "user=" + url.QueryEscape(`{"token":"`+token+`"}`)
}

func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("api_token") {
		q.Set("api_token", "xxx")
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

func redactString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return redact(u)
}
