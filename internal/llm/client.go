package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/types"
)

// Gateway calls an OpenAI-compatible chat-completions endpoint.
type Gateway struct {
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration // per HTTP attempt
	MaxElapsed time.Duration // total budget across backoff attempts

	httpClient *http.Client
}

// NewGatewayFromEnv builds a Gateway from LLM_GATEWAY_URL, LLM_API_KEY
// and LLM_MODEL.
func NewGatewayFromEnv() (*Gateway, error) {
	url := os.Getenv("LLM_GATEWAY_URL")
	key := os.Getenv("LLM_API_KEY")
	if url == "" || key == "" {
		return nil, fmt.Errorf("llm gateway not configured")
	}
	return &Gateway{
		URL:    url,
		APIKey: key,
		Model:  os.Getenv("LLM_MODEL"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate sends the prompt context and returns the generated agent text.
// Server-side and network failures are retried with exponential backoff
// inside the HTTP budget; client errors are permanent. The error returned
// after exhaustion is always a *GenerationError.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	log := logger.New().WithField("component", "llm-gateway")

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	maxElapsed := g.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 45 * time.Second
	}
	// the gateway is shared across concurrent runners, so no lazy field init
	client := g.httpClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	messages := []chatMessage{{Role: "system", Content: req.SystemPrompt}}
	for _, turn := range req.History {
		role := "user"
		if turn.Speaker == types.SpeakerAgent {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}
	if req.UserText != "" {
		messages = append(messages, chatMessage{Role: "user", Content: req.UserText})
	}

	body := map[string]any{
		"model":       g.Model,
		"messages":    messages,
		"temperature": 0.0,
	}
	data, _ := json.Marshal(body)
	log.WithField("payload_len", len(data)).Debug("llm request prepared")

	var content string
	var lastErr *GenerationError

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		httpReq, _ := http.NewRequestWithContext(attemptCtx, "POST", g.URL, bytes.NewReader(data))
		httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			lastErr = &GenerationError{Transient: true, Message: fmt.Sprintf("llm request failed: %v", err)}
			log.WithError(err).Warn("llm request failed")
			return lastErr
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("llm raw response received")

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &GenerationError{Transient: true, Message: fmt.Sprintf("llm server error: status %d", resp.StatusCode)}
			return lastErr
		case resp.StatusCode >= 400:
			lastErr = &GenerationError{Message: fmt.Sprintf("llm client error: status %d: %s", resp.StatusCode, truncate(string(raw), 200))}
			return backoff.Permanent(lastErr)
		}

		content = contentFromChoices(raw)
		if strings.TrimSpace(content) == "" {
			lastErr = &GenerationError{Message: "empty generation"}
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return "", lastErr
		}
		// backoff stopped on context cancellation before any attempt finished
		return "", &GenerationError{Transient: true, Message: fmt.Sprintf("llm call aborted: %v", err)}
	}
	return strings.TrimSpace(content), nil
}

// contentFromChoices reads the openai-style choices[0].message.content field
func contentFromChoices(raw []byte) string {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		return ""
	}
	return parsed.Choices[0].Message.Content
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
