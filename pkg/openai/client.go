// Package openai is the outbound completion collaborator: an
// OpenAI-compatible chat-completions client that accepts text or text+image
// turns and returns generated text.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options bound a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// PromptTurn is one upstream message. Image, when set, is sent as an
// image_url content part alongside the text.
type PromptTurn struct {
	Role    string
	Content string
	Image   string
}

// Completer generates a reply for an ordered transcript. The production
// implementation is Client; tests substitute a stub.
type Completer interface {
	Complete(ctx context.Context, turns []PromptTurn, opts Options) (string, error)
}

// Client calls an OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

// New creates a Client for the given base URL, key and model. Timeout bounds
// the whole upstream exchange.
func New(url, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: timeout},
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// apiMessage carries either a plain string or a content-part array, matching
// the wire format the completions API expects for vision input.
type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type completionRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the transcript upstream and returns the assistant's text.
// Any transport failure, non-2xx status or empty choice list is an error; the
// caller does not retry.
func (c *Client) Complete(ctx context.Context, turns []PromptTurn, opts Options) (string, error) {
	payload := completionRequest{
		Model:       c.model,
		Messages:    make([]apiMessage, 0, len(turns)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for _, t := range turns {
		payload.Messages = append(payload.Messages, toAPIMessage(t))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("completion API returned %d: %s", resp.StatusCode, excerpt(respBody))
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parse completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func toAPIMessage(t PromptTurn) apiMessage {
	if t.Image == "" {
		return apiMessage{Role: t.Role, Content: t.Content}
	}
	return apiMessage{Role: t.Role, Content: []contentPart{
		{Type: "text", Text: t.Content},
		{Type: "image_url", ImageURL: &imageURL{URL: t.Image}},
	}}
}

func excerpt(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
