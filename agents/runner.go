// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/NickB03/vana/internal/pool"
	"github.com/NickB03/vana/pkg/logging"
)

// DefaultAppName is the application name sessions are stored under.
const DefaultAppName = "vana"

// Reply is the outcome of one conversational turn.
type Reply struct {
	SessionID string   `json:"session_id"`
	Text      string   `json:"response"`
	Agent     string   `json:"agent"`
	Authors   []string `json:"authors"`
	Events    int      `json:"events"`
}

// Runner runs conversations against a root agent with in-memory sessions.
type Runner struct {
	appName  string
	runner   *runner.Runner
	sessions session.Service
}

// NewRunner returns a Runner for root.
func NewRunner(appName string, root agent.Agent) (*Runner, error) {
	if appName == "" {
		appName = DefaultAppName
	}
	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          root,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	return &Runner{appName: appName, runner: r, sessions: sessions}, nil
}

// ensureSession returns sessionID, creating the session when it does not exist yet. An empty
// sessionID starts a new session with a random ID.
func (r *Runner) ensureSession(ctx context.Context, userID, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := r.sessions.Get(ctx, &session.GetRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err == nil {
		return sessionID, nil
	}

	resp, err := r.sessions.Create(ctx, &session.CreateRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return resp.Session.ID(), nil
}

// Chat sends message as userID and returns the final reply of the turn.
func (r *Runner) Chat(ctx context.Context, userID, sessionID, message string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("message is empty")
	}
	if userID == "" {
		userID = "user"
	}

	sessionID, err := r.ensureSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	reply := &Reply{SessionID: sessionID}
	var final []string
	msg := genai.NewContentFromText(message, genai.RoleUser)
	for ev, err := range r.runner.Run(ctx, userID, sessionID, msg, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return nil, fmt.Errorf("run agent: %w", err)
		}
		reply.Events++
		if ev.Author != "" && ev.Author != "user" {
			if n := len(reply.Authors); n == 0 || reply.Authors[n-1] != ev.Author {
				reply.Authors = append(reply.Authors, ev.Author)
			}
		}
		if ev.Partial || !ev.IsFinalResponse() {
			continue
		}
		if text := contentText(ev.Content); text != "" {
			final = append(final, text)
			reply.Agent = ev.Author
		}
	}
	reply.Text = strings.Join(final, "\n")

	logging.FromContext(ctx).InfoContext(ctx, "chat turn completed",
		slog.String("session_id", sessionID),
		slog.String("agent", reply.Agent),
		slog.Int("events", reply.Events),
	)
	return reply, nil
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	sb := pool.String.Get()
	defer pool.String.Put(sb)
	for _, p := range c.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
