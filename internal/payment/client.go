// Package payment is the client for the external subscription payment
// microservice (DLO). It only creates checkout links; settlement happens on
// the provider side.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"webgen-bot/internal/common/logger"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: log.With(map[string]interface{}{
			"component": "payment-client",
		}),
	}
}

type createSubscriptionRequest struct {
	UserID string `json:"user_id"`
	PlanID string `json:"plan_id"`
}

// createSubscriptionResponse tolerates the link field names different
// provider versions have used.
type createSubscriptionResponse struct {
	SubscribeLink string `json:"subscribeLink"`
	PaymentLink   string `json:"payment_link"`
	PaymentLink2  string `json:"paymentLink"`
	Link          string `json:"link"`
}

func (r createSubscriptionResponse) link() string {
	for _, l := range []string{r.SubscribeLink, r.PaymentLink, r.PaymentLink2, r.Link} {
		if l != "" {
			return l
		}
	}
	return ""
}

// CreateSubscription asks the provider for a checkout link for the plan.
func (c *Client) CreateSubscription(ctx context.Context, userID, planID string) (string, error) {
	body, err := json.Marshal(createSubscriptionRequest{UserID: userID, PlanID: planID})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/subscriptions/create", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("payment service status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out createSubscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	link := out.link()
	if link == "" {
		return "", fmt.Errorf("payment service response missing checkout link")
	}

	c.logger.Info("checkout link created", map[string]interface{}{
		"userId": userID,
		"planId": planID,
	})
	return link, nil
}
