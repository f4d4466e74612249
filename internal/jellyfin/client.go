package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	clientName    = "nextup"
	clientVersion = "1.0"
)

// Client handles communication with a Jellyfin server. It holds no server
// identity itself: every method takes the server base URL and access token,
// so one client can talk to any number of servers.
type Client struct {
	resty    *resty.Client
	deviceID string
	logger   *slog.Logger
}

// ClientConfig holds configuration for the API client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Debug      bool
	Logger     *slog.Logger
}

// DefaultClientConfig returns sensible defaults for the API client
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// NewClient creates a new Jellyfin API client
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", clientName+"/"+clientVersion).
		SetHeader("Accept", "application/json")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	client := &Client{
		resty:    restyClient,
		deviceID: uuid.NewString(),
		logger:   config.Logger,
	}

	if config.Debug {
		restyClient.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
			client.logger.Debug("api response",
				"method", r.Request.Method,
				"url", r.Request.URL,
				"status", r.StatusCode(),
				"time", r.Time(),
			)
			return nil
		})
	}

	return client
}

// authHeader builds the MediaBrowser authorization header for the token
func (c *Client) authHeader(token string) string {
	return fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s", Token="%s"`,
		clientName, clientName, c.deviceID, clientVersion, token)
}

// get performs a GET request and decodes the JSON response into out
func (c *Client) get(ctx context.Context, server, token, path string, params map[string]string, out any) error {
	req := c.resty.R().
		SetContext(ctx).
		SetHeader("Authorization", c.authHeader(token))
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(joinURL(server, path))
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode())
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("GET %s: failed to decode response: %w", path, err)
		}
	}
	return nil
}

// post performs a POST request with a JSON body. Any 2xx status (the report
// endpoints answer 204, some servers 200) counts as success.
func (c *Client) post(ctx context.Context, server, token, path string, body any) error {
	req := c.resty.R().
		SetContext(ctx).
		SetHeader("Authorization", c.authHeader(token)).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post(joinURL(server, path))
	if err != nil {
		return fmt.Errorf("POST %s failed: %w", path, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("POST %s: HTTP %d", path, resp.StatusCode())
	}
	return nil
}

// Item fetches metadata for a single library item
func (c *Client) Item(ctx context.Context, server, token, itemID string) (*Item, error) {
	var item Item
	path := fmt.Sprintf("/Items/%s", url.PathEscape(itemID))
	if err := c.get(ctx, server, token, path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// PlaybackInfo fetches the play session id and media sources for an item
func (c *Client) PlaybackInfo(ctx context.Context, server, token, itemID string) (*PlaybackInfoResponse, error) {
	var info PlaybackInfoResponse
	path := fmt.Sprintf("/Items/%s/PlaybackInfo", url.PathEscape(itemID))
	if err := c.get(ctx, server, token, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Episodes fetches the episodes of a season, including their media sources
func (c *Client) Episodes(ctx context.Context, server, token, seriesID, seasonID string) ([]Item, error) {
	var page ItemsPage
	path := fmt.Sprintf("/Shows/%s/Episodes", url.PathEscape(seriesID))
	params := map[string]string{
		"seasonId": seasonID,
		"fields":   "MediaSources,Path",
	}
	if err := c.get(ctx, server, token, path, params, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Seasons fetches the seasons of a series
func (c *Client) Seasons(ctx context.Context, server, token, seriesID string) ([]Item, error) {
	var page ItemsPage
	path := fmt.Sprintf("/Shows/%s/Seasons", url.PathEscape(seriesID))
	if err := c.get(ctx, server, token, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// StreamURL builds a direct-play stream URL for an item
func (c *Client) StreamURL(server, token, itemID string) string {
	return fmt.Sprintf("%s/Videos/%s/stream?Static=true&api_key=%s",
		strings.TrimRight(server, "/"), url.PathEscape(itemID), url.QueryEscape(token))
}

// joinURL joins a server base URL and an API path
func joinURL(server, path string) string {
	return strings.TrimRight(server, "/") + path
}
