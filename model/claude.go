// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/bytedance/sonic"
	"golang.org/x/oauth2/google"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/NickB03/vana/internal/xiter"
)

const (
	// ClaudeDefaultModel is the default model name for [Claude].
	ClaudeDefaultModel = "claude-sonnet-4-20250514"

	// ClaudeDefaultMaxTokens is used when the request does not set MaxOutputTokens.
	ClaudeDefaultMaxTokens = 4096

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// ClaudeMode selects how Claude is reached.
type ClaudeMode int

const (
	// ClaudeModeAnthropic uses the Anthropic API with an API key.
	ClaudeModeAnthropic ClaudeMode = iota

	// ClaudeModeVertexAI uses Claude on Google Cloud Vertex AI with application default credentials.
	ClaudeModeVertexAI
)

// ClaudeConfig configures [NewClaude].
type ClaudeConfig struct {
	Model    string
	Mode     ClaudeMode
	APIKey   string
	Project  string
	Location string

	// Options are appended to the client options, e.g. [option.WithBaseURL].
	Options []option.RequestOption
}

// Claude is an [adkmodel.LLM] backed by the Anthropic Messages API.
type Claude struct {
	name   string
	client anthropic.Client
}

// NewClaude returns a [Claude] model.
func NewClaude(ctx context.Context, cfg ClaudeConfig) (*Claude, error) {
	if cfg.Model == "" {
		cfg.Model = ClaudeDefaultModel
	}

	var opts []option.RequestOption
	switch cfg.Mode {
	case ClaudeModeAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic API key is required")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case ClaudeModeVertexAI:
		if cfg.Project == "" || cfg.Location == "" {
			return nil, errors.New("project and location are required for Claude on Vertex AI")
		}
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		opts = append(opts, vertex.WithCredentials(ctx, cfg.Location, cfg.Project, creds))
	default:
		return nil, fmt.Errorf("unknown Claude mode %d", cfg.Mode)
	}
	opts = append(opts, cfg.Options...)

	return &Claude{
		name:   cfg.Model,
		client: anthropic.NewClient(opts...),
	}, nil
}

// Name implements [adkmodel.LLM].
func (m *Claude) Name() string {
	return m.name
}

// GenerateContent implements [adkmodel.LLM].
//
// The Messages API is always called in unary mode; with stream set the single complete
// response is yielded.
func (m *Claude) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return xiter.Once(func() (*adkmodel.LLMResponse, error) {
		params, err := m.messageParams(req)
		if err != nil {
			return nil, err
		}

		msg, err := m.client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("claude API error: %w", err)
		}
		return messageToResponse(msg), nil
	})
}

func (m *Claude) messageParams(req *adkmodel.LLMRequest) (anthropic.MessageNewParams, error) {
	name := m.name
	if req.Model != "" && strings.HasPrefix(req.Model, "claude") {
		name = req.Model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(name),
		MaxTokens: ClaudeDefaultMaxTokens,
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		msg, err := contentToMessageParam(content)
		if err != nil {
			return params, err
		}
		if len(msg.Content) > 0 {
			params.Messages = append(params.Messages, msg)
		}
	}

	cfg := req.Config
	if cfg == nil {
		return params, nil
	}

	if cfg.MaxOutputTokens > 0 {
		params.MaxTokens = int64(cfg.MaxOutputTokens)
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*cfg.Temperature))
	}
	if cfg.TopK != nil {
		params.TopK = anthropic.Int(int64(*cfg.TopK))
	}
	if cfg.TopP != nil {
		params.TopP = anthropic.Float(float64(*cfg.TopP))
	}
	params.StopSequences = cfg.StopSequences

	if sys := contentText(cfg.SystemInstruction); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	for _, t := range cfg.Tools {
		if t == nil {
			continue
		}
		for _, fd := range t.FunctionDeclarations {
			tu, err := functionDeclarationToTool(fd)
			if err != nil {
				return params, err
			}
			params.Tools = append(params.Tools, tu)
		}
	}

	return params, nil
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var texts []string
	for _, p := range c.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func asClaudeRole(role string) anthropic.MessageParamRole {
	if role == string(genai.RoleModel) || role == "assistant" {
		return anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParamRoleUser
}

func contentToMessageParam(content *genai.Content) (anthropic.MessageParam, error) {
	msg := anthropic.MessageParam{
		Role:    asClaudeRole(content.Role),
		Content: make([]anthropic.ContentBlockParamUnion, 0, len(content.Parts)),
	}
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		block, ok, err := partToBlock(part)
		if err != nil {
			return msg, err
		}
		if ok {
			msg.Content = append(msg.Content, block)
		}
	}
	return msg, nil
}

// partToBlock converts a part. ok is false for parts Claude has no equivalent for.
func partToBlock(part *genai.Part) (block anthropic.ContentBlockParamUnion, ok bool, err error) {
	switch {
	case part.Thought:
		return block, false, nil

	case part.Text != "":
		return anthropic.NewTextBlock(part.Text), true, nil

	case part.FunctionCall != nil:
		fc := part.FunctionCall
		if fc.Name == "" {
			return block, false, errors.New("function call name is empty")
		}
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		return anthropic.NewToolUseBlock(fc.ID, args, fc.Name), true, nil

	case part.FunctionResponse != nil:
		fr := part.FunctionResponse
		out, err := sonic.ConfigStd.MarshalToString(fr.Response)
		if err != nil {
			return block, false, fmt.Errorf("failed to marshal function response %s: %w", fr.Name, err)
		}
		_, isErr := fr.Response["error"]
		return anthropic.NewToolResultBlock(fr.ID, out, isErr), true, nil
	}

	return block, false, nil
}

func functionDeclarationToTool(fd *genai.FunctionDeclaration) (anthropic.ToolUnionParam, error) {
	if fd == nil || fd.Name == "" {
		return anthropic.ToolUnionParam{}, errors.New("function declaration name is empty")
	}

	var schema map[string]any
	switch {
	case fd.ParametersJsonSchema != nil:
		b, err := sonic.ConfigStd.Marshal(fd.ParametersJsonSchema)
		if err != nil {
			return anthropic.ToolUnionParam{}, fmt.Errorf("failed to marshal schema of %s: %w", fd.Name, err)
		}
		if err := sonic.ConfigStd.Unmarshal(b, &schema); err != nil {
			return anthropic.ToolUnionParam{}, fmt.Errorf("failed to decode schema of %s: %w", fd.Name, err)
		}
	case fd.Parameters != nil:
		schema = schemaToJSON(fd.Parameters)
	}

	input := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
	if props, ok := schema["properties"]; ok && props != nil {
		input.Properties = props
	}
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				input.Required = append(input.Required, s)
			}
		}
	} else if req, ok := schema["required"].([]string); ok {
		input.Required = req
	}

	tu := anthropic.ToolUnionParamOfTool(input, fd.Name)
	if fd.Description != "" {
		tu.OfTool.Description = anthropic.String(fd.Description)
	}
	return tu, nil
}

// schemaToJSON converts a genai schema into a JSON Schema object with lower-case types.
func schemaToJSON(s *genai.Schema) map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any)
	if s.Type != "" {
		out["type"] = strings.ToLower(string(s.Type))
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = schemaToJSON(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = schemaToJSON(v)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func stopReasonToFinishReason(r anthropic.StopReason) genai.FinishReason {
	switch r {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, anthropic.StopReasonToolUse:
		return genai.FinishReasonStop
	case anthropic.StopReasonMaxTokens:
		return genai.FinishReasonMaxTokens
	}
	return genai.FinishReasonUnspecified
}

func messageToResponse(msg *anthropic.Message) *adkmodel.LLMResponse {
	parts := make([]*genai.Part, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, genai.NewPartFromText(b.Text))
		case anthropic.ToolUseBlock:
			var args map[string]any
			if len(b.Input) > 0 {
				if err := sonic.ConfigFastest.Unmarshal(b.Input, &args); err != nil {
					continue
				}
			}
			part := genai.NewPartFromFunctionCall(b.Name, args)
			part.FunctionCall.ID = b.ID
			parts = append(parts, part)
		}
	}

	in, out := int32(msg.Usage.InputTokens), int32(msg.Usage.OutputTokens)
	return &adkmodel.LLMResponse{
		Content: &genai.Content{
			Role:  string(genai.RoleModel),
			Parts: parts,
		},
		FinishReason: stopReasonToFinishReason(msg.StopReason),
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     in,
			CandidatesTokenCount: out,
			TotalTokenCount:      in + out,
		},
		TurnComplete: true,
	}
}
