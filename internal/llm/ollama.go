// Package llm provides the answering model behind the pipeline's Generator
// interface. The default backend is a local Ollama server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/pkg/types"
)

const systemPrompt = `You are a desktop assistant that answers questions about what is currently on the user's screen. Ground every answer in the screen context below. If the context does not contain the answer, say so plainly.`

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	// Endpoint is the Ollama server URL (default http://127.0.0.1:11434).
	Endpoint string
	// Model is the chat model name.
	Model string
	// Timeout bounds one generation call. Cold starts load the model, so
	// this is generous by default.
	Timeout time.Duration
}

// Ollama generates answers through a local Ollama server.
type Ollama struct {
	endpoint string
	model    string
	client   *http.Client
	log      *logging.Logger
}

// NewOllama creates an Ollama-backed generator.
func NewOllama(cfg OllamaConfig) *Ollama {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Ollama{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		log:      logging.Global().WithComponent("LLM"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Generate implements the pipeline's Generator interface: it folds the
// context block into the system prompt, replays the conversation history,
// and asks the model for one answer.
func (o *Ollama) Generate(ctx context.Context, query, contextBlock string, history []types.Message) (string, error) {
	system := systemPrompt
	if contextBlock != "" {
		system += "\n\nScreen context:\n" + contextBlock
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: system})
	for _, msg := range history {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: query})

	body, err := json.Marshal(chatRequest{Model: o.model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("model error: %s", parsed.Error)
	}

	o.log.Debug("generated %d chars in %v", len(parsed.Message.Content), time.Since(start))
	return strings.TrimSpace(parsed.Message.Content), nil
}
