package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/crossfade/internal/shared"
)

func TestOpenAIClient(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard)

	t.Run("Complete", func(t *testing.T) {
		var got struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/chat/completions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  https://www.youtube.com/watch?v=abcdefghijk \n"},"finish_reason":"stop"}]}`)
		}))
		defer ts.Close()

		c := NewOpenAIClient(shared.AIConfig{APIKey: "sk", BaseURL: ts.URL + "/v1"}, ts.Client(), logger)
		answer, err := c.Complete(ctx, "system", "find Yellow by Coldplay")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if answer != "https://www.youtube.com/watch?v=abcdefghijk" {
			t.Errorf("expected trimmed answer, got %q", answer)
		}
		if got.Model != "gpt-4o-mini" {
			t.Errorf("expected default model, got %s", got.Model)
		}
		if got.Temperature < 0.69 || got.Temperature > 0.71 {
			t.Errorf("expected temperature 0.7, got %v", got.Temperature)
		}
		if len(got.Messages) != 2 || got.Messages[1].Content != "find Yellow by Coldplay" {
			t.Errorf("unexpected messages %+v", got.Messages)
		}
	})

	t.Run("No Choices", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"c1","choices":[]}`)
		}))
		defer ts.Close()

		c := NewOpenAIClient(shared.AIConfig{APIKey: "sk", BaseURL: ts.URL}, ts.Client(), logger)
		if _, err := c.Complete(ctx, "", "x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited","type":"requests"}}`)
		}))
		defer ts.Close()

		c := NewOpenAIClient(shared.AIConfig{APIKey: "sk", BaseURL: ts.URL}, ts.Client(), logger)
		if _, err := c.Complete(ctx, "", "x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
