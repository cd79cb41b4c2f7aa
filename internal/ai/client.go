// Package ai talks to an OpenAI-compatible chat completion API. It backs the
// intent classifier, the FAQ advisor, and the generation pipeline's
// extraction and synthesis steps.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"webgen-bot/internal/common/logger"
)

// ErrorSentinel is returned by Chat when the model call fails. Callers swap
// it for a friendly fallback instead of surfacing an error mid-conversation.
const ErrorSentinel = "-ERROR-"

var (
	ErrRequestFailed = errors.New("AI_REQUEST_FAILED")
	ErrTimeout       = errors.New("AI_TIMEOUT")
	ErrEmptyResponse = errors.New("AI_EMPTY_RESPONSE")
)

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
			"component": "ai-client",
		}),
	}
}

// Chat runs one advisor turn over the given history. It never returns an
// error: failures come back as the ErrorSentinel string.
func (c *Client) Chat(ctx context.Context, history []Message, text string) string {
	msgs := make([]chatReqMsg, 0, len(history)+2)
	msgs = append(msgs, chatReqMsg{Role: RoleSystem, Content: advisorSystemPrompt})
	for _, m := range history {
		msgs = append(msgs, chatReqMsg{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, chatReqMsg{Role: RoleUser, Content: text})

	out, err := c.complete(ctx, chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    msgs,
		Temperature: c.config.Temperature,
		MaxTokens:   400,
	})
	if err != nil {
		c.logger.Warn("chat completion failed", map[string]interface{}{"error": err.Error()})
		return ErrorSentinel
	}
	return out
}

// Completion runs a single system+user exchange and returns the raw text.
func (c *Client) Completion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	return c.complete(ctx, chatCompletionRequest{
		Model: c.config.Model,
		Messages: []chatReqMsg{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

// CompletionJSON runs a single exchange in JSON mode and returns the raw
// object bytes. The caller validates the shape.
func (c *Client) CompletionJSON(ctx context.Context, system, user string, temperature float64) (json.RawMessage, error) {
	out, err := c.complete(ctx, chatCompletionRequest{
		Model: c.config.Model,
		Messages: []chatReqMsg{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature:    temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// DescribeImage summarizes an image by URL so image messages can flow through
// the text pipeline.
func (c *Client) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	return c.complete(ctx, chatCompletionRequest{
		Model: c.config.Model,
		Messages: []chatReqMsg{
			{Role: RoleUser, Content: []contentPart{
				{Type: "text", Text: describeImagePrompt},
				{Type: "image_url", ImageURL: &imageURLPart{URL: imageURL}},
			}},
		},
		MaxTokens: 200,
	})
}

// Transcribe downloads an audio file and sends it to the transcription
// endpoint.
func (c *Client) Transcribe(ctx context.Context, audioURL string) (string, error) {
	audio, err := c.download(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("%w: fetch audio: %v", ErrRequestFailed, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.ogg")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	_ = mw.WriteField("model", "whisper-1")
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrRequestFailed, err)
	}
	return tr.Text, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// complete sends a chat completion request with retries and returns the first
// choice's content.
func (c *Client) complete(ctx context.Context, reqBody chatCompletionRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrTimeout
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if reqErr != nil {
			return "", fmt.Errorf("%w: %v", ErrRequestFailed, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return "", ErrTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
			resp = nil
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("no successful response after retries")
		}
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, lastErr)
	}
	defer resp.Body.Close()

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrRequestFailed, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, completion.Error.Message)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return completion.Choices[0].Message.Content, nil
}
