// Package transport carries messages between the messaging platform and the
// bot. The platform protocol itself lives outside this service; inbound
// messages arrive on a webhook and replies are POSTed back.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MessageType classifies the payload of an inbound message.
type MessageType string

const (
	TypeText   MessageType = "text"
	TypeAudio  MessageType = "audio"
	TypeImage  MessageType = "image"
	TypeButton MessageType = "button"
)

// Message is one inbound user message.
type Message struct {
	From     string      `json:"from"`               // sender phone
	Type     MessageType `json:"type"`
	Body     string      `json:"body,omitempty"`     // text or button title
	MediaURL string      `json:"mediaUrl,omitempty"` // audio/image location
	PushName string      `json:"pushName,omitempty"`
}

// Responder delivers replies back to a user.
type Responder interface {
	Send(ctx context.Context, to, text string) error
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// HTTPResponder POSTs replies to the configured outbound endpoint.
type HTTPResponder struct {
	url    string
	client *http.Client
	logger Logger
}

func NewHTTPResponder(url string, log Logger) *HTTPResponder {
	return &HTTPResponder{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: log,
	}
}

type outboundMessage struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (r *HTTPResponder) Send(ctx context.Context, to, text string) error {
	if r.url == "" {
		// No outbound endpoint configured (local runs); log and move on.
		r.logger.Debug("outbound message dropped, no endpoint configured", map[string]interface{}{
			"to": to,
		})
		return nil
	}

	body, err := json.Marshal(outboundMessage{To: to, Text: text})
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build outbound request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send outbound: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("outbound endpoint status %d", resp.StatusCode)
	}
	return nil
}
