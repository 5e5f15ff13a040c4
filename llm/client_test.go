package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, content string, check func(chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
}

func TestClientComplete(t *testing.T) {
	var calls int
	server := completionServer(t, "hello there", func(req chatRequest) {
		calls++
		if req.Model != "demo-model" {
			t.Errorf("Model = %q, want demo-model", req.Model)
		}
		if req.MaxTokens != 500 {
			t.Errorf("MaxTokens = %d, want 500", req.MaxTokens)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "transcript" {
			t.Errorf("Messages = %+v, want system then user", req.Messages)
		}
	})
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	got, err := client.Complete(context.Background(), "be brief", "transcript", 500)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Complete = %q, want %q", got, "hello there")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClientCompleteHTTPError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "sys", "user", 0)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no retry", calls)
	}
}

func TestClientCompleteRequiresKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.Complete(context.Background(), "sys", "user", 0); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("err = %v, want api key error", err)
	}
}

func TestClientCompleteEmpty(t *testing.T) {
	server := completionServer(t, "   ", nil)
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), "sys", "user", 0); err == nil {
		t.Fatal("expected empty completion error")
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", `{"title":"A"}`, "A", false},
		{"fenced", "```json\n{\"title\":\"B\"}\n```", "B", false},
		{"bare fence", "```\n{\"title\":\"C\"}\n```", "C", false},
		{"prose around", "Sure! Here is your draft:\n{\"title\":\"D\"}\nEnjoy.", "D", false},
		{"not json", "Just some words about the meeting.", "", true},
		{"empty", "  ", "", true},
	}
	for _, tt := range tests {
		var out struct {
			Title string `json:"title"`
		}
		err := DecodeJSON(tt.content, &out)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if out.Title != tt.want {
			t.Errorf("%s: Title = %q, want %q", tt.name, out.Title, tt.want)
		}
	}
}
