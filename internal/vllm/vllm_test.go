package vllm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mpetrov/iris/transport"
)

const cannedResponse = `{"choices":[{"message":{"content":"A cat."}}]}`

func turnsWithImage() []transport.Turn {
	return []transport.Turn{
		{
			Role: transport.RoleUser,
			Content: []transport.ContentBlock{
				transport.Text("Describe this image."),
				transport.Image([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}),
			},
		},
	}
}

func TestChatRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotAuth = req.Header.Get("Authorization")

		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %s", err)
		}

		io.WriteString(w, cannedResponse)
	}))
	defer ts.Close()

	v := Init(ts.URL, "test-model", "EMPTY", ts.Client())
	raw, err := v.Chat(t.Context(), turnsWithImage())
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}

	if string(raw) != cannedResponse {
		t.Errorf("response body not passed through raw, got %s", raw)
	}
	if expected, actual := "/v1/chat/completions", gotPath; expected != actual {
		t.Errorf("expected path %q, got %q", expected, actual)
	}
	if gotAuth != "" {
		t.Errorf("sentinel key must not send auth, got %q", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("expected model test-model, got %v", gotBody["model"])
	}

	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %v", gotBody["messages"])
	}

	system := msgs[0].(map[string]any)
	if system["role"] != "system" {
		t.Error("expected the system message first")
	}

	user := msgs[1].(map[string]any)
	parts, ok := user["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected two content parts, got %v", user["content"])
	}
	if parts[0].(map[string]any)["type"] != "text" {
		t.Error("expected the text part first")
	}

	imgPart := parts[1].(map[string]any)
	if imgPart["type"] != "image_url" {
		t.Errorf("expected an image_url part, got %v", imgPart["type"])
	}
	url := imgPart["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("expected a jpeg data URL, got %.40s", url)
	}
}

func TestChatSendsBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		io.WriteString(w, cannedResponse)
	}))
	defer ts.Close()

	v := Init(ts.URL, "test-model", "sk-secret", ts.Client())
	if _, err := v.Chat(t.Context(), turnsWithImage()); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if expected, actual := "Bearer sk-secret", gotAuth; expected != actual {
		t.Errorf("expected %q, got %q", expected, actual)
	}
}

func TestChatNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer ts.Close()

	v := Init(ts.URL, "test-model", "EMPTY", ts.Client())
	_, err := v.Chat(t.Context(), turnsWithImage())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("expected the body in the error, got %s", err)
	}
}

func TestIsHealthy(t *testing.T) {
	t.Run("health endpoint", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path != "/health" {
				http.NotFound(w, req)
				return
			}
		}))
		defer ts.Close()

		v := Init(ts.URL, "m", "EMPTY", ts.Client())
		if !v.IsHealthy() {
			t.Error("expected healthy")
		}
	})

	t.Run("models fallback", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path != "/v1/models" {
				http.NotFound(w, req)
				return
			}
		}))
		defer ts.Close()

		v := Init(ts.URL, "m", "EMPTY", ts.Client())
		if !v.IsHealthy() {
			t.Error("expected healthy via /v1/models")
		}
	})

	t.Run("down", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer ts.Close()

		v := Init(ts.URL, "m", "EMPTY", ts.Client())
		if v.IsHealthy() {
			t.Error("expected unhealthy")
		}
	})
}
