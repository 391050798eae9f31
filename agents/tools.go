// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/NickB03/vana/cache"
	"github.com/NickB03/vana/planner"
	"github.com/NickB03/vana/rag"
	"github.com/NickB03/vana/sandbox"
	"github.com/NickB03/vana/vector"
)

// Tool names.
const (
	ToolEcho            = "echo"
	ToolHealthStatus    = "get_health_status"
	ToolSearchKnowledge = "search_knowledge"
	ToolVectorSearch    = "vector_search"
	ToolRetrieveRAG     = "retrieve_rag"
	ToolPlanTask        = "plan_task"
	ToolExecuteCode     = "execute_code"
	ToolCacheStats      = "cache_stats"
	ToolListAgents      = "list_agents"

	// ToolMCP stands for every tool of [Toolbox.Extra].
	ToolMCP = "mcp"
)

// Result statuses reported to the model.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusUnavailable = "unavailable"
)

const defaultTopK = 5

// Retriever retrieves passages from RAG corpora. It is implemented by [*rag.Service].
type Retriever interface {
	RetrieveContexts(ctx context.Context, query string, corpora []string, opts rag.RetrieveOptions) ([]rag.Context, error)
}

// Toolbox holds the backends tools call into. Nil backends are allowed; their tools then
// report [StatusUnavailable].
type Toolbox struct {
	Index      *vector.Index
	Collection string

	RAG          Retriever
	Corpora      []string
	RAGThreshold float64

	Planner  *planner.TaskPlanner
	Executor sandbox.Executor
	Caches   *cache.Registry

	// Health returns the current health report.
	Health func(context.Context) any

	// Extra tools, typically from MCP servers.
	Extra []tool.Tool

	Logger *slog.Logger

	agents func() []AgentInfo
}

func (tb *Toolbox) logger() *slog.Logger {
	if tb.Logger == nil {
		return slog.Default()
	}
	return tb.Logger
}

func (tb *Toolbox) cache(name string) *cache.Cache[string, any] {
	c, _ := tb.Caches.Get(name)
	return c
}

// cached memoises load under key in c. A nil cache calls load directly.
func cached[T any](ctx context.Context, c *cache.Cache[string, any], key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	v, err := c.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// NoArgs is the argument type of tools without parameters.
type NoArgs struct{}

// EchoArgs are the arguments of echo.
type EchoArgs struct {
	Message string `json:"message" jsonschema:"text to echo back"`
}

// EchoResult is the result of echo.
type EchoResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (tb *Toolbox) echo(_ context.Context, args EchoArgs) (EchoResult, error) {
	return EchoResult{Status: StatusSuccess, Message: args.Message}, nil
}

// HealthResult is the result of get_health_status.
type HealthResult struct {
	Status string `json:"status"`
	Report any    `json:"report,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (tb *Toolbox) health(ctx context.Context, _ NoArgs) (HealthResult, error) {
	if tb.Health == nil {
		return HealthResult{Status: StatusUnavailable, Error: "health checks are not configured"}, nil
	}
	return HealthResult{Status: StatusSuccess, Report: tb.Health(ctx)}, nil
}

// SearchArgs are the arguments of search_knowledge.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"natural language search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
}

// VectorSearchArgs are the arguments of vector_search.
type VectorSearchArgs struct {
	Collection string `json:"collection" jsonschema:"name of the vector collection to search"`
	Query      string `json:"query" jsonschema:"natural language search query"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
}

// SearchResult is the result of search_knowledge and vector_search.
type SearchResult struct {
	Status     string         `json:"status"`
	Collection string         `json:"collection,omitempty"`
	Results    []vector.Match `json:"results"`
	Error      string         `json:"error,omitempty"`
}

func (tb *Toolbox) searchKnowledge(ctx context.Context, args SearchArgs) (SearchResult, error) {
	return tb.search(ctx, tb.Collection, args.Query, args.TopK)
}

func (tb *Toolbox) vectorSearch(ctx context.Context, args VectorSearchArgs) (SearchResult, error) {
	return tb.search(ctx, args.Collection, args.Query, args.TopK)
}

func (tb *Toolbox) search(ctx context.Context, collection, query string, topK int) (SearchResult, error) {
	if tb.Index == nil {
		return SearchResult{Status: StatusUnavailable, Error: "the knowledge index is not configured"}, nil
	}
	if query == "" || collection == "" {
		return SearchResult{Status: StatusError, Error: "query and collection are required"}, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	matches, err := tb.Index.Search(ctx, collection, query, topK)
	if err != nil {
		tb.logger().WarnContext(ctx, "knowledge search failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
		return SearchResult{Status: StatusError, Collection: collection, Error: err.Error()}, nil
	}
	return SearchResult{Status: StatusSuccess, Collection: collection, Results: matches}, nil
}

// RAGArgs are the arguments of retrieve_rag.
type RAGArgs struct {
	Query string `json:"query" jsonschema:"question to retrieve documentation passages for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of passages, default 5"`
}

// RAGResult is the result of retrieve_rag.
type RAGResult struct {
	Status   string        `json:"status"`
	Contexts []rag.Context `json:"contexts"`
	Error    string        `json:"error,omitempty"`
}

func (tb *Toolbox) retrieveRAG(ctx context.Context, args RAGArgs) (RAGResult, error) {
	if tb.RAG == nil || len(tb.Corpora) == 0 {
		return RAGResult{Status: StatusUnavailable, Error: "no RAG corpus is configured"}, nil
	}
	if args.Query == "" {
		return RAGResult{Status: StatusError, Error: "query is required"}, nil
	}
	topK := args.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	opts := rag.RetrieveOptions{TopK: int32(topK), Threshold: tb.RAGThreshold}
	key := cache.Key(ToolRetrieveRAG, args.Query, tb.Corpora, opts)
	contexts, err := cached(ctx, tb.cache(cache.Document), key, func(ctx context.Context) ([]rag.Context, error) {
		return tb.RAG.RetrieveContexts(ctx, args.Query, tb.Corpora, opts)
	})
	if err != nil {
		return RAGResult{Status: StatusError, Error: err.Error()}, nil
	}
	return RAGResult{Status: StatusSuccess, Contexts: contexts}, nil
}

// PlanArgs are the arguments of plan_task.
type PlanArgs struct {
	Task string `json:"task" jsonschema:"the task to decompose"`
}

// PlanResult is the result of plan_task.
type PlanResult struct {
	Status   string       `json:"status"`
	Plan     planner.Plan `json:"plan"`
	Route    string       `json:"route"`
	Markdown string       `json:"markdown"`
	Error    string       `json:"error,omitempty"`
}

func (tb *Toolbox) planTask(ctx context.Context, args PlanArgs) (PlanResult, error) {
	if tb.Planner == nil {
		return PlanResult{Status: StatusUnavailable, Error: "the task planner is not configured"}, nil
	}
	if args.Task == "" {
		return PlanResult{Status: StatusError, Error: "task is required"}, nil
	}

	return cached(ctx, tb.cache(cache.Analysis), cache.Key(ToolPlanTask, args.Task), func(context.Context) (PlanResult, error) {
		plan := tb.Planner.Decompose(args.Task)
		return PlanResult{
			Status:   StatusSuccess,
			Plan:     plan,
			Route:    tb.Planner.Route(args.Task),
			Markdown: plan.Markdown(),
		}, nil
	})
}

// CodeArgs are the arguments of execute_code.
type CodeArgs struct {
	Language       string `json:"language,omitempty" jsonschema:"python, bash or javascript; default python"`
	Code           string `json:"code" jsonschema:"source code to run"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"wall clock limit in seconds"`
}

// CodeResult is the result of execute_code.
type CodeResult struct {
	Status          string  `json:"status"`
	Stdout          string  `json:"stdout,omitempty"`
	Stderr          string  `json:"stderr,omitempty"`
	ExitCode        int     `json:"exit_code"`
	DurationMS      int64   `json:"duration_ms"`
	PeakMemoryBytes uint64  `json:"peak_memory_bytes,omitempty"`
	PeakCPUPercent  float64 `json:"peak_cpu_percent,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func (tb *Toolbox) executeCode(ctx context.Context, args CodeArgs) (CodeResult, error) {
	if tb.Executor == nil {
		return CodeResult{Status: StatusUnavailable, Error: "code execution is disabled"}, nil
	}

	res, err := tb.Executor.Execute(ctx, &sandbox.Request{
		Language: args.Language,
		Code:     args.Code,
		Timeout:  time.Duration(args.TimeoutSeconds) * time.Second,
	})
	out := CodeResult{Status: StatusSuccess}
	if res != nil {
		out.Stdout = res.Stdout
		out.Stderr = res.Stderr
		out.ExitCode = res.ExitCode
		out.DurationMS = res.Duration.Milliseconds()
		out.PeakMemoryBytes = res.Usage.MemoryBytes
		out.PeakCPUPercent = res.Usage.CPUPercent
	}
	if err != nil {
		out.Status = StatusError
		out.Error = err.Error()
		tb.logger().InfoContext(ctx, "code execution failed", slog.String("error", err.Error()))
	}
	return out, nil
}

// CacheStatsResult is the result of cache_stats.
type CacheStatsResult struct {
	Status string                 `json:"status"`
	Caches map[string]cache.Stats `json:"caches"`
}

func (tb *Toolbox) cacheStats(context.Context, NoArgs) (CacheStatsResult, error) {
	if tb.Caches == nil {
		return CacheStatsResult{Status: StatusUnavailable}, nil
	}
	return CacheStatsResult{Status: StatusSuccess, Caches: tb.Caches.Stats()}, nil
}

// ListAgentsResult is the result of list_agents.
type ListAgentsResult struct {
	Status string      `json:"status"`
	Agents []AgentInfo `json:"agents"`
}

func (tb *Toolbox) listAgents(context.Context, NoArgs) (ListAgentsResult, error) {
	if tb.agents == nil {
		return ListAgentsResult{Status: StatusUnavailable}, nil
	}
	return ListAgentsResult{Status: StatusSuccess, Agents: tb.agents()}, nil
}

// bind adapts a handler taking a plain context to the function tool signature.
func bind[A, R any](fn func(context.Context, A) (R, error)) func(tool.Context, A) (R, error) {
	return func(ctx tool.Context, args A) (R, error) {
		return fn(ctx, args)
	}
}

// Tools builds every built-in tool keyed by name.
func (tb *Toolbox) Tools() (map[string]tool.Tool, error) {
	type def struct {
		name, desc string
		build      func(functiontool.Config) (tool.Tool, error)
	}
	defs := []def{
		{ToolEcho, "Echo a message back. Useful to check that tool calling works.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.echo))
		}},
		{ToolHealthStatus, "Report the health of the VANA deployment and its dependencies.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.health))
		}},
		{ToolSearchKnowledge, "Search the VANA knowledge base for passages relevant to a query.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.searchKnowledge))
		}},
		{ToolVectorSearch, "Similarity search over a named vector collection.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.vectorSearch))
		}},
		{ToolRetrieveRAG, "Retrieve documentation passages from the Vertex AI RAG corpus.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.retrieveRAG))
		}},
		{ToolPlanTask, "Decompose a task into ordered subtasks assigned to specialists.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.planTask))
		}},
		{ToolExecuteCode, "Run a short program in the resource-limited sandbox and return its output.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.executeCode))
		}},
		{ToolCacheStats, "Report hit rates and sizes of the search, document and analysis caches.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.cacheStats))
		}},
		{ToolListAgents, "List the agents of the VANA team with their tools.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, bind(tb.listAgents))
		}},
	}

	tools := make(map[string]tool.Tool, len(defs))
	for _, d := range defs {
		t, err := d.build(functiontool.Config{Name: d.name, Description: d.desc})
		if err != nil {
			return nil, fmt.Errorf("build tool %s: %w", d.name, err)
		}
		tools[d.name] = t
	}
	return tools, nil
}

// ToolNames returns the names of the built-in tools, sorted.
func ToolNames() []string {
	names := []string{
		ToolEcho, ToolHealthStatus, ToolSearchKnowledge, ToolVectorSearch, ToolRetrieveRAG,
		ToolPlanTask, ToolExecuteCode, ToolCacheStats, ToolListAgents,
	}
	slices.Sort(names)
	return names
}
