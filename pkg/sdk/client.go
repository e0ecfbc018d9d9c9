package assetdex

import (
	"bytes"
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

const defaultTimeout = 30 * time.Second

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	apiKey     string
	userID     string
	httpClient *http.Client
}

// WithAPIKey sets the Bearer token sent on every request.
// Leave unset against a server with authentication disabled.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithUserID sets the principal the client acts for. The service
// resolves this id's site permissions on every call.
func WithUserID(id string) Option {
	return optionFunc(func(c *clientConfig) {
		c.userID = id
	})
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// Client is the assetdex SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	userID  string
	hc      *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("assetdex: base URL required")
	}
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.userID == "" {
		return nil, errors.New("assetdex: user id required (use WithUserID)")
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.apiKey,
		userID:  cfg.userID,
		hc:      hc,
	}, nil
}

// Search resolves a query through the tiered search pipeline.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Suggestions returns completion candidates for a partial term.
func (c *Client) Suggestions(ctx context.Context, partial string, limit int) ([]string, error) {
	q := url.Values{"q": {partial}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp suggestionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/suggestions", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// RegisterAsset registers uploaded asset metadata and queues it for
// classification. The returned asset is pending.
func (c *Client) RegisterAsset(ctx context.Context, req RegisterAssetRequest) (*Asset, error) {
	var asset Asset
	if err := c.do(ctx, http.MethodPost, "/api/v1/assets", nil, req, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Asset fetches one asset by id, permission permitting.
func (c *Client) Asset(ctx context.Context, id string) (*Asset, error) {
	var asset Asset
	if err := c.do(ctx, http.MethodGet, "/api/v1/assets/"+url.PathEscape(id), nil, nil, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Reprocess resets every failed classification back to pending and
// re-queues it.
func (c *Client) Reprocess(ctx context.Context) (*ReprocessResult, error) {
	var res ReprocessResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/assets/reprocess", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("assetdex: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("assetdex: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("assetdex: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("assetdex: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
