// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/NickB03/vana/cache"
	"github.com/NickB03/vana/embedding"
	"github.com/NickB03/vana/planner"
	"github.com/NickB03/vana/rag"
	"github.com/NickB03/vana/sandbox"
	"github.com/NickB03/vana/vector"
)

// scriptedLLM answers with text, or calls callTool first when set.
type scriptedLLM struct {
	mu       sync.Mutex
	requests []*model.LLMRequest
	callTool string
	callArgs map[string]any
}

func (m *scriptedLLM) Name() string { return "scripted" }

func (m *scriptedLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	return func(yield func(*model.LLMResponse, error) bool) {
		last := req.Contents[len(req.Contents)-1]
		for _, p := range last.Parts {
			if p.FunctionResponse != nil {
				yield(textResponse(fmt.Sprintf("%s said: %v", p.FunctionResponse.Name, p.FunctionResponse.Response["message"])), nil)
				return
			}
		}
		if m.callTool != "" {
			yield(&model.LLMResponse{
				Content: &genai.Content{
					Role:  string(genai.RoleModel),
					Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: m.callTool, Args: m.callArgs}}},
				},
				TurnComplete: true,
			}, nil)
			return
		}
		yield(textResponse("hello from vana"), nil)
	}
}

func textResponse(text string) *model.LLMResponse {
	return &model.LLMResponse{
		Content:      genai.NewContentFromText(text, genai.RoleModel),
		TurnComplete: true,
	}
}

func TestAgentSpecValidate(t *testing.T) {
	valid := AgentSpec{Name: "a", Description: "d", Instruction: "i"}
	tests := map[string]struct {
		mutate  func(*AgentSpec)
		wantErr bool
	}{
		"valid":           {func(*AgentSpec) {}, false},
		"bad name":        {func(s *AgentSpec) { s.Name = "my agent" }, true},
		"reserved name":   {func(s *AgentSpec) { s.Name = "user" }, true},
		"no description":  {func(s *AgentSpec) { s.Description = "" }, true},
		"no instruction":  {func(s *AgentSpec) { s.Instruction = "" }, true},
		"bad output key":  {func(s *AgentSpec) { s.OutputKey = "x-y" }, true},
		"good output key": {func(s *AgentSpec) { s.OutputKey = "plan" }, false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("Validate() error = %v, want ErrInvalidSpec", err)
			}
		})
	}
}

func TestBuildDefault(t *testing.T) {
	sys, err := Build(t.Context(), &scriptedLLM{}, &Toolbox{}, DefaultSpecs())
	if err != nil {
		t.Fatal(err)
	}

	if got := sys.Root().Name(); got != planner.OrchestratorAgent {
		t.Errorf("root = %q", got)
	}
	if got := len(sys.Root().SubAgents()); got != 5 {
		t.Errorf("root has %d sub-agents, want 5", got)
	}
	if diff := cmp.Diff(ToolNames(), sys.Tools()); diff != "" {
		t.Errorf("Tools() mismatch (-want +got):\n%s", diff)
	}
	if err := sys.Check(Counts{Agents: 6, Tools: 9}); err != nil {
		t.Errorf("Check() = %v", err)
	}
	if err := sys.Check(Counts{Agents: 7, Tools: 3}); err == nil {
		t.Error("Check() with wrong counts = nil")
	}

	infos := sys.Agents()
	var names []string
	for _, in := range infos {
		names = append(names, in.Name)
	}
	want := []string{
		"vana", "architecture_specialist", "devops_specialist", "qa_specialist", "research_specialist", "ui_specialist",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Agents() order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{ToolExecuteCode, ToolSearchKnowledge}, infos[3].Tools); diff != "" {
		t.Errorf("qa tools mismatch (-want +got):\n%s", diff)
	}

	if a, ok := sys.Agent(planner.ResearchAgent); !ok || a.Name() != planner.ResearchAgent {
		t.Errorf("Agent(research) = %v, %v", a, ok)
	}
}

func TestBuildInvalid(t *testing.T) {
	spec := func(name string, subs ...string) AgentSpec {
		return AgentSpec{Name: name, Description: name, Instruction: name, SubAgents: subs}
	}
	tests := map[string][]AgentSpec{
		"duplicate":    {spec("a"), spec("a")},
		"unknown sub":  {spec("a", "b")},
		"unknown tool": {{Name: "a", Description: "d", Instruction: "i", Tools: []string{"teleport"}}},
		"two parents":  {spec("root", "a", "b"), spec("a", "c"), spec("b", "c"), spec("c")},
		"two roots":    {spec("a"), spec("b")},
		"cycle":        {spec("root"), spec("x", "y"), spec("y", "x")},
		"no agents":    nil,
	}
	for name, specs := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Build(t.Context(), &scriptedLLM{}, nil, specs)
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("Build() error = %v, want ErrInvalidSpec", err)
			}
		})
	}
}

func TestWorkflow(t *testing.T) {
	sys, err := Build(t.Context(), &scriptedLLM{}, &Toolbox{}, DefaultSpecs())
	if err != nil {
		t.Fatal(err)
	}

	wf, err := sys.Workflow(planner.ArchitectureAgent)
	if err != nil {
		t.Fatal(err)
	}
	var steps []string
	for _, a := range wf.SubAgents() {
		steps = append(steps, a.Name())
	}
	if diff := cmp.Diff([]string{"workflow_planner", planner.ArchitectureAgent, "workflow_reviewer"}, steps); diff != "" {
		t.Errorf("workflow steps mismatch (-want +got):\n%s", diff)
	}

	qa, err := sys.Workflow(planner.QAAgent)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(qa.SubAgents()); got != 2 {
		t.Errorf("qa workflow has %d steps, want 2", got)
	}

	if _, err := sys.Workflow(planner.OrchestratorAgent); err == nil {
		t.Error("Workflow(vana) error = nil")
	}
	if _, err := sys.Workflow("nobody"); err == nil {
		t.Error("Workflow(unknown) error = nil")
	}
}

func TestRunnerChat(t *testing.T) {
	llm := &scriptedLLM{}
	sys, err := Build(t.Context(), llm, &Toolbox{}, DefaultSpecs())
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner("", sys.Root())
	if err != nil {
		t.Fatal(err)
	}

	reply, err := r.Chat(t.Context(), "u1", "", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "hello from vana" || reply.Agent != "vana" {
		t.Errorf("Chat() = %+v", reply)
	}
	if reply.SessionID == "" {
		t.Fatal("no session id")
	}

	again, err := r.Chat(t.Context(), "u1", reply.SessionID, "and again")
	if err != nil {
		t.Fatal(err)
	}
	if again.SessionID != reply.SessionID {
		t.Errorf("session changed: %q != %q", again.SessionID, reply.SessionID)
	}
	last := llm.requests[len(llm.requests)-1]
	if len(last.Contents) < 3 {
		t.Errorf("second turn sent %d contents, want history of at least 3", len(last.Contents))
	}

	custom, err := r.Chat(t.Context(), "u1", "my-session", "hi")
	if err != nil || custom.SessionID != "my-session" {
		t.Errorf("Chat(custom session) = %+v, %v", custom, err)
	}

	if _, err := r.Chat(t.Context(), "u1", "", "  "); err == nil {
		t.Error("Chat(empty) error = nil")
	}
}

func TestRunnerToolCall(t *testing.T) {
	llm := &scriptedLLM{callTool: ToolEcho, callArgs: map[string]any{"message": "ping"}}
	sys, err := Build(t.Context(), llm, &Toolbox{}, DefaultSpecs())
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner("vana-test", sys.Root())
	if err != nil {
		t.Fatal(err)
	}

	reply, err := r.Chat(t.Context(), "u1", "", "echo ping")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "echo said: ping" {
		t.Errorf("Chat() text = %q", reply.Text)
	}
	if reply.Events < 3 {
		t.Errorf("events = %d, want call, response and answer", reply.Events)
	}
}

type fakeRetriever struct {
	calls int
}

func (f *fakeRetriever) RetrieveContexts(_ context.Context, query string, corpora []string, opts rag.RetrieveOptions) ([]rag.Context, error) {
	f.calls++
	return []rag.Context{{Text: query + " in " + strings.Join(corpora, ","), Distance: float64(opts.TopK)}}, nil
}

type fakeExecutor struct {
	err error
}

func (f *fakeExecutor) Execute(_ context.Context, req *sandbox.Request) (*sandbox.Result, error) {
	return &sandbox.Result{
		Stdout:   strings.ToUpper(req.Code),
		ExitCode: 0,
		Duration: 1500 * time.Millisecond,
		Usage:    sandbox.Usage{MemoryBytes: 2048},
	}, f.err
}

func (f *fakeExecutor) Close() error { return nil }

func TestToolboxUnavailable(t *testing.T) {
	tb := &Toolbox{}
	ctx := t.Context()

	if r, _ := tb.searchKnowledge(ctx, SearchArgs{Query: "x"}); r.Status != StatusUnavailable {
		t.Errorf("search status = %q", r.Status)
	}
	if r, _ := tb.retrieveRAG(ctx, RAGArgs{Query: "x"}); r.Status != StatusUnavailable {
		t.Errorf("rag status = %q", r.Status)
	}
	if r, _ := tb.planTask(ctx, PlanArgs{Task: "x"}); r.Status != StatusUnavailable {
		t.Errorf("plan status = %q", r.Status)
	}
	if r, _ := tb.executeCode(ctx, CodeArgs{Code: "x"}); r.Status != StatusUnavailable {
		t.Errorf("execute status = %q", r.Status)
	}
	if r, _ := tb.health(ctx, NoArgs{}); r.Status != StatusUnavailable {
		t.Errorf("health status = %q", r.Status)
	}
	if r, _ := tb.cacheStats(ctx, NoArgs{}); r.Status != StatusUnavailable {
		t.Errorf("cache stats status = %q", r.Status)
	}
	if r, _ := tb.listAgents(ctx, NoArgs{}); r.Status != StatusUnavailable {
		t.Errorf("list agents status = %q", r.Status)
	}
}

func TestToolbox(t *testing.T) {
	ctx := t.Context()
	store, err := vector.NewChromem("", nil)
	if err != nil {
		t.Fatal(err)
	}
	caches := cache.NewRegistry(cache.DefaultRegistryConfig())
	search, _ := caches.Get(cache.Search)
	index := vector.NewIndex(store, embedding.NewHash(64), vector.WithSearchCache(search))
	if _, err := index.Add(ctx, "kb", "adk.md", "agents delegate to specialists", nil); err != nil {
		t.Fatal(err)
	}

	retriever := &fakeRetriever{}
	tb := &Toolbox{
		Index:      index,
		Collection: "kb",
		RAG:        retriever,
		Corpora:    []string{"corpus-1"},
		Planner:    planner.New(),
		Executor:   &fakeExecutor{},
		Caches:     caches,
		Health:     func(context.Context) any { return map[string]string{"status": "healthy"} },
	}

	if r, _ := tb.echo(ctx, EchoArgs{Message: "hi"}); r.Message != "hi" || r.Status != StatusSuccess {
		t.Errorf("echo = %+v", r)
	}

	sr, _ := tb.searchKnowledge(ctx, SearchArgs{Query: "specialists"})
	if sr.Status != StatusSuccess || len(sr.Results) != 1 || sr.Collection != "kb" {
		t.Errorf("search_knowledge = %+v", sr)
	}
	vr, _ := tb.vectorSearch(ctx, VectorSearchArgs{Collection: "missing", Query: "x"})
	if vr.Status != StatusError {
		t.Errorf("vector_search(missing) = %+v", vr)
	}
	if vr, _ := tb.vectorSearch(ctx, VectorSearchArgs{Query: "x"}); vr.Status != StatusError {
		t.Errorf("vector_search without collection = %+v", vr)
	}

	for range 2 {
		rr, _ := tb.retrieveRAG(ctx, RAGArgs{Query: "deploy"})
		if rr.Status != StatusSuccess || rr.Contexts[0].Text != "deploy in corpus-1" || rr.Contexts[0].Distance != 5 {
			t.Errorf("retrieve_rag = %+v", rr)
		}
	}
	if retriever.calls != 1 {
		t.Errorf("retriever called %d times, want 1 with the document cache", retriever.calls)
	}

	pr, _ := tb.planTask(ctx, PlanArgs{Task: "Design the service architecture"})
	if pr.Status != StatusSuccess || pr.Route != planner.ArchitectureAgent || pr.Plan.Category != planner.CategoryArchitecture {
		t.Errorf("plan_task = %+v", pr)
	}
	if !strings.Contains(pr.Markdown, "## Plan") {
		t.Errorf("plan markdown = %q", pr.Markdown)
	}

	cr, _ := tb.executeCode(ctx, CodeArgs{Language: "python", Code: "print(1)"})
	if cr.Status != StatusSuccess || cr.Stdout != "PRINT(1)" || cr.DurationMS != 1500 || cr.PeakMemoryBytes != 2048 {
		t.Errorf("execute_code = %+v", cr)
	}
	tb.Executor = &fakeExecutor{err: &sandbox.LimitError{Resource: sandbox.ResourceMemory, Observed: 2, Limit: 1}}
	if cr, _ := tb.executeCode(ctx, CodeArgs{Code: "x"}); cr.Status != StatusError || cr.Error == "" {
		t.Errorf("execute_code over limit = %+v", cr)
	}

	hr, _ := tb.health(ctx, NoArgs{})
	if hr.Status != StatusSuccess {
		t.Errorf("health = %+v", hr)
	}

	stats, _ := tb.cacheStats(ctx, NoArgs{})
	if stats.Caches[cache.Document].Hits != 1 || stats.Caches[cache.Analysis].Misses == 0 {
		t.Errorf("cache_stats = %+v", stats.Caches)
	}
}
