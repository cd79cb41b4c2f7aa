// Package generator is the client for the external web page generation
// platform (v0-style chats API).
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"webgen-bot/internal/common/logger"
)

var (
	ErrRateLimited  = errors.New("GENERATION_RATE_LIMITED: Too Many Requests")
	ErrUnauthorized = errors.New("GENERATION_UNAUTHORIZED: Unauthorized")
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Model:   "v0-1.5-md",
		Timeout: 600 * time.Second,
	}
}

type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"component": "generator-client",
		}),
	}
}

// CreateChat submits a generation prompt and returns the resulting chat with
// its preview URL. The caller owns retries; a single call is one attempt.
func (c *Client) CreateChat(ctx context.Context, prompt string) (*Chat, error) {
	body, err := json.Marshal(createChatRequest{
		Message: prompt,
		Model:   c.config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/chats", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	return c.decodeChat(resp.Body)
}

// ChatStatus polls an existing chat for its current status and preview URL.
func (c *Client) ChatStatus(ctx context.Context, chatID string) (*Chat, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.config.BaseURL+"/v1/chats/"+chatID, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	return c.decodeChat(resp.Body)
}

// checkStatus maps HTTP failures onto errors whose text drives the retry
// policy upstream.
func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("generation API: Forbidden")
	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("generation API: Bad Request: %s", bytes.TrimSpace(body))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("generation API: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

func (c *Client) decodeChat(r io.Reader) (*Chat, error) {
	var cr chatResponse
	if err := json.NewDecoder(r).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("generation API: %s", cr.Error.Message)
	}
	if cr.ID == "" {
		return nil, fmt.Errorf("generation API: response missing chat id")
	}

	chat := &Chat{
		ID:      cr.ID,
		Status:  cr.Status,
		DemoURL: cr.Demo,
		WebURL:  cr.URL,
	}
	if chat.DemoURL == "" {
		chat.DemoURL = cr.URL
	}
	return chat, nil
}
