package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/glance/pkg/types"
)

func TestGenerateRoundTrip(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "  The button is in the lower right.  "},
		})
	}))
	defer srv.Close()

	gen := NewOllama(OllamaConfig{Endpoint: srv.URL, Model: "test-model"})

	history := []types.Message{
		{Role: types.RoleUser, Content: "what is on my screen"},
		{Role: types.RoleAssistant, Content: "a checkout page"},
	}
	answer, err := gen.Generate(context.Background(), "where is the submit button", "Buttons: Submit order", history)
	require.NoError(t, err)
	assert.Equal(t, "The button is in the lower right.", answer)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "Buttons: Submit order")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "where is the submit button", captured.Messages[3].Content)
	assert.Equal(t, "test-model", captured.Model)
	assert.False(t, captured.Stream)
}

func TestGenerateModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Error: "model not found"})
	}))
	defer srv.Close()

	gen := NewOllama(OllamaConfig{Endpoint: srv.URL})

	_, err := gen.Generate(context.Background(), "hello", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestGenerateServerUnreachable(t *testing.T) {
	gen := NewOllama(OllamaConfig{Endpoint: "http://127.0.0.1:1"})

	_, err := gen.Generate(context.Background(), "hello", "", nil)
	require.Error(t, err)
}
