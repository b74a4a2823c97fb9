// Package anthropic talks to the Anthropic Messages API over plain HTTP.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/quizsolver/internal/httpclient"
	"github.com/mohammad-safakhou/quizsolver/provider/prompt"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type Client struct {
	http        *httpclient.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

func NewClient(apiKey, model, baseURL string, temperature float64, maxTokens int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Client{
		http:        httpclient.New(-1, 0, ""),
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *Client) Name() string { return "anthropic" }

// Complete sends one Messages API request and joins the text blocks of the
// reply.
func (c *Client) Complete(ctx context.Context, p prompt.Prompt) (string, error) {
	req := request{
		Model:       c.model,
		System:      p.System,
		Messages:    []message{{Role: "user", Content: p.User}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = p.MaxTokens
	}
	if p.Temperature > 0 {
		req.Temperature = p.Temperature
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": apiVersion,
	}
	var resp response
	if err := c.http.DoJSON(ctx, "POST", c.baseURL+"/v1/messages", headers, req, &resp); err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic messages: empty reply")
	}
	return b.String(), nil
}
