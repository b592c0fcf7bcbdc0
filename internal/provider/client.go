// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Message is one chat turn sent to a vendor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a vendor-agnostic completion call.
type CompletionRequest struct {
	Model       string
	APIKey      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Client is a thin wrapper over one vendor's completion endpoint. A failed
// call returns an error; the manager treats every error the same way and
// moves to the next fallback step.
type Client interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.code, truncate(e.msg, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// openAICompatClient talks to any OpenAI-style /chat/completions endpoint.
// Groq and OpenAI both go through it with different base URLs.
type openAICompatClient struct {
	name    string
	baseURL string
	http    *http.Client
}

// NewOpenAICompatClient builds a client for an OpenAI-compatible vendor.
func NewOpenAICompatClient(name, baseURL string, timeout time.Duration) Client {
	return &openAICompatClient{name: name, baseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *openAICompatClient) Name() string { return c.name }

func (c *openAICompatClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	payload := []byte(`{}`)
	payload, _ = sjson.SetBytes(payload, "model", req.Model)
	payload, _ = sjson.SetBytes(payload, "max_tokens", req.MaxTokens)
	payload, _ = sjson.SetBytes(payload, "temperature", req.Temperature)
	for i, msg := range req.Messages {
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("messages.%d.role", i), msg.Role)
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("messages.%d.content", i), msg.Content)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("User-Agent", "mobius-bot")

	body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%s: malformed completion response", c.name)
	}
	return content.String(), nil
}

func (c *openAICompatClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("%s client: close response body error: %v", c.name, errClose)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErr{code: resp.StatusCode, msg: string(body)}
	}
	return body, nil
}

// geminiClient talks to the Gemini generateContent endpoint.
type geminiClient struct {
	baseURL string
	http    *http.Client
}

// NewGeminiClient builds a Gemini client.
func NewGeminiClient(baseURL string, timeout time.Duration) Client {
	return &geminiClient{baseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *geminiClient) Name() string { return "gemini" }

func (c *geminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	payload := []byte(`{}`)
	// generateContent has no system role and rejects consecutive turns of
	// the same role, so system text is merged into the next user turn
	// instead of becoming its own contents entry.
	var system string
	idx := 0
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		role := "user"
		text := msg.Content
		if msg.Role == "assistant" {
			role = "model"
		} else if system != "" {
			text = system + "\n\n" + text
			system = ""
		}
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.role", idx), role)
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.parts.0.text", idx), text)
		idx++
	}
	if system != "" {
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.role", idx), "user")
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.parts.0.text", idx), system)
	}
	payload, _ = sjson.SetBytes(payload, "generationConfig.maxOutputTokens", req.MaxTokens)
	payload, _ = sjson.SetBytes(payload, "generationConfig.temperature", req.Temperature)

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, req.Model, req.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "mobius-bot")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("gemini client: close response body error: %v", errClose)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusErr{code: resp.StatusCode, msg: string(body)}
	}
	content := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if !content.Exists() {
		return "", fmt.Errorf("gemini: malformed completion response")
	}
	return content.String(), nil
}

// anthropicClient talks to the Anthropic messages endpoint.
type anthropicClient struct {
	baseURL string
	http    *http.Client
}

// NewAnthropicClient builds an Anthropic client.
func NewAnthropicClient(baseURL string, timeout time.Duration) Client {
	return &anthropicClient{baseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *anthropicClient) Name() string { return "anthropic" }

func (c *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	payload := []byte(`{}`)
	payload, _ = sjson.SetBytes(payload, "model", req.Model)
	payload, _ = sjson.SetBytes(payload, "max_tokens", req.MaxTokens)
	payload, _ = sjson.SetBytes(payload, "temperature", req.Temperature)
	idx := 0
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			payload, _ = sjson.SetBytes(payload, "system", msg.Content)
			continue
		}
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("messages.%d.role", idx), msg.Role)
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("messages.%d.content", idx), msg.Content)
		idx++
	}

	url := c.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("User-Agent", "mobius-bot")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("anthropic client: close response body error: %v", errClose)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusErr{code: resp.StatusCode, msg: string(body)}
	}
	content := gjson.GetBytes(body, "content.0.text")
	if !content.Exists() {
		return "", fmt.Errorf("anthropic: malformed completion response")
	}
	return content.String(), nil
}
