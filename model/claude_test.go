// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/bytedance/sonic"
	"github.com/google/go-cmp/cmp"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/NickB03/vana/config"
)

const claudeReply = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [
    {"type": "text", "text": "Routing to the architecture specialist."},
    {"type": "tool_use", "id": "toolu_01", "name": "plan_task", "input": {"task": "design a cache"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 12, "output_tokens": 8}
}`

func newTestClaude(t *testing.T, handler http.HandlerFunc) *Claude {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClaude(t.Context(), ClaudeConfig{
		APIKey:  "test-key",
		Options: []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)},
	})
	if err != nil {
		t.Fatalf("NewClaude() error = %v", err)
	}
	return c
}

func TestClaudeGenerateContent(t *testing.T) {
	var body map[string]any
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(b, &body); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, claudeReply)
	})

	req := &adkmodel.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("Design a cache", genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are VANA.", genai.RoleUser),
			Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        "plan_task",
				Description: "Plan a task",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{"task": {Type: genai.TypeString}},
					Required:   []string{"task"},
				},
			}}}},
		},
	}

	var got []*adkmodel.LLMResponse
	for resp, err := range c.GenerateContent(t.Context(), req, false) {
		if err != nil {
			t.Fatalf("GenerateContent() error = %v", err)
		}
		got = append(got, resp)
	}
	if len(got) != 1 {
		t.Fatalf("got %d responses, want 1", len(got))
	}

	resp := got[0]
	if resp.Content.Parts[0].Text != "Routing to the architecture specialist." {
		t.Errorf("text = %q", resp.Content.Parts[0].Text)
	}
	fc := resp.Content.Parts[1].FunctionCall
	if fc == nil || fc.Name != "plan_task" || fc.ID != "toolu_01" {
		t.Fatalf("function call = %+v", fc)
	}
	if diff := cmp.Diff(map[string]any{"task": "design a cache"}, fc.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if resp.FinishReason != genai.FinishReasonStop {
		t.Errorf("FinishReason = %v", resp.FinishReason)
	}
	if resp.UsageMetadata.TotalTokenCount != 20 {
		t.Errorf("TotalTokenCount = %d, want 20", resp.UsageMetadata.TotalTokenCount)
	}

	if body["model"] != ClaudeDefaultModel {
		t.Errorf("model = %v", body["model"])
	}
	system, _ := body["system"].([]any)
	if len(system) != 1 {
		t.Errorf("system = %v", body["system"])
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", body["tools"])
	}
	schema := tools[0].(map[string]any)["input_schema"].(map[string]any)
	props := schema["properties"].(map[string]any)
	if props["task"].(map[string]any)["type"] != "string" {
		t.Errorf("input_schema = %v", schema)
	}
}

func TestClaudeAPIError(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	})

	var gotErr error
	for _, err := range c.GenerateContent(t.Context(), &adkmodel.LLMRequest{}, false) {
		gotErr = err
	}
	if gotErr == nil {
		t.Error("GenerateContent() error = nil, want API error")
	}
}

func TestContentToMessageParam(t *testing.T) {
	content := &genai.Content{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{FunctionResponse: &genai.FunctionResponse{ID: "toolu_01", Name: "plan_task", Response: map[string]any{"result": "ok"}}},
		},
	}
	msg, err := contentToMessageParam(content)
	if err != nil {
		t.Fatalf("contentToMessageParam() error = %v", err)
	}
	if len(msg.Content) != 1 {
		t.Fatalf("len(Content) = %d, want thought part dropped", len(msg.Content))
	}
	b, err := sonic.ConfigStd.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string `json:"type"`
			ToolUseID string `json:"tool_use_id"`
		} `json:"content"`
	}
	if err := sonic.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Role != "user" || decoded.Content[0].Type != "tool_result" || decoded.Content[0].ToolUseID != "toolu_01" {
		t.Errorf("message = %s", b)
	}

	if _, err := contentToMessageParam(&genai.Content{Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{}}}}); err == nil {
		t.Error("unnamed function call accepted")
	}
}

func TestAsClaudeRole(t *testing.T) {
	if asClaudeRole("model") != "assistant" || asClaudeRole("user") != "user" {
		t.Error("asClaudeRole() mapping wrong")
	}
}

func TestSchemaToJSON(t *testing.T) {
	got := schemaToJSON(&genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString, Enum: []string{"a", "b"}},
	})
	want := map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": []string{"a", "b"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schemaToJSON() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewClaudeRequiresKey(t *testing.T) {
	if _, err := NewClaude(t.Context(), ClaudeConfig{}); err == nil {
		t.Error("NewClaude() without API key succeeded")
	}
	if _, err := NewClaude(t.Context(), ClaudeConfig{Mode: ClaudeModeVertexAI}); err == nil {
		t.Error("NewClaude() on Vertex AI without project succeeded")
	}
}

func TestGeminiClientConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Model.GoogleAPIKey = "k"
	if got := GeminiClientConfig(cfg); got.Backend != genai.BackendGeminiAPI || got.APIKey != "k" {
		t.Errorf("GeminiClientConfig() = %+v", got)
	}
	cfg.Project = "p"
	if got := GeminiClientConfig(cfg); got.Backend != genai.BackendVertexAI || got.Project != "p" || got.Location != "us-central1" {
		t.Errorf("GeminiClientConfig() = %+v", got)
	}
}

func TestIsClaude(t *testing.T) {
	if !IsClaude("claude-sonnet-4-20250514") || IsClaude("gemini-2.0-flash") {
		t.Error("IsClaude() wrong")
	}
}
