package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServerReturning(t *testing.T, content string, status int) (*httptest.Server, *chatRequest) {
	t.Helper()
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			resp := chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}}}
			_ = json.NewEncoder(w).Encode(resp)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestGenerateChapters_ParsesResponse(t *testing.T) {
	content := `{"timestamps":[{"time":0,"label":"Intro"},{"time":33,"label":"Main demo"},{"time":64,"label":"Wrap up"}]}`
	srv, captured := chatServerReturning(t, content, http.StatusOK)

	client := NewAIClient(srv.URL, "key", "test-model")
	markers, err := client.GenerateChapters(context.Background(), "Demo", "release walkthrough", 95, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(markers))
	}
	if markers[0].Time != 0 || markers[0].Label != "Intro" {
		t.Errorf("unexpected first marker %+v", markers[0])
	}

	if captured.Model != "test-model" {
		t.Errorf("unexpected model %q", captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(captured.Messages))
	}
	user := captured.Messages[1].Content
	for _, want := range []string{"Title: Demo", "Duration: 95 seconds", "Create 3 chapters."} {
		if !strings.Contains(user, want) {
			t.Errorf("expected prompt to contain %q, got %q", want, user)
		}
	}
}

func TestGenerateChapters_StripsMarkdownFences(t *testing.T) {
	content := "```json\n{\"timestamps\":[{\"time\":0,\"label\":\"Intro\"}]}\n```"
	srv, _ := chatServerReturning(t, content, http.StatusOK)

	client := NewAIClient(srv.URL, "", "test-model")
	markers, err := client.GenerateChapters(context.Background(), "Demo", "", 60, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markers) != 1 || markers[0].Label != "Intro" {
		t.Errorf("unexpected markers %+v", markers)
	}
}

func TestGenerateChapters_UpstreamError(t *testing.T) {
	srv, _ := chatServerReturning(t, "", http.StatusInternalServerError)

	client := NewAIClient(srv.URL, "key", "test-model")
	if _, err := client.GenerateChapters(context.Background(), "Demo", "", 60, 3); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestGenerateChapters_MalformedContent(t *testing.T) {
	srv, _ := chatServerReturning(t, "here are your chapters!", http.StatusOK)

	client := NewAIClient(srv.URL, "key", "test-model")
	if _, err := client.GenerateChapters(context.Background(), "Demo", "", 60, 3); err == nil {
		t.Error("expected error for non-JSON content")
	}
}

func TestGenerateChapters_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	t.Cleanup(srv.Close)

	client := NewAIClient(srv.URL, "key", "test-model")
	if _, err := client.GenerateChapters(context.Background(), "Demo", "", 60, 3); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("stripMarkdownFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
