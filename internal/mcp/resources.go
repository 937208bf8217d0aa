// ABOUTME: MCP resource implementations for the workout session.
// ABOUTME: Provides fitcore://session, fitcore://history, and fitcore://summary resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/fitcore/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	sessionURI = "fitcore://session"
	historyURI = "fitcore://history"
	summaryURI = "fitcore://summary"
)

func (s *Server) registerResources() {
	// fitcore://session - live session snapshot
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         sessionURI,
		Name:        "Live Session",
		Description: "Current session state, workout and rest countdown",
		MIMEType:    "application/json",
	}, s.handleSessionResource)

	// fitcore://history - last 10 archived workouts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         historyURI,
		Name:        "Recent Workouts",
		Description: "Last 10 archived workouts",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)

	// fitcore://summary - stats, template count and sync traffic
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         summaryURI,
		Name:        "Training Summary",
		Description: "Workout stats, weekly progress, templates and sync counters",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

// Resource handlers

func (s *Server) handleSessionResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	var result map[string]interface{}
	if err := s.do(ctx, func() {
		snap := s.dev.Session.Snapshot()
		result = map[string]interface{}{
			"state":   snap.State.String(),
			"elapsed": session.FormatElapsed(snap.Elapsed),
			"session": snap,
			"rest":    s.dev.Rest.Status(),
		}
		if snap.Workout != nil {
			result["progress"] = snap.Workout.Progress()
		}
	}); err != nil {
		return nil, err
	}
	return jsonResource(sessionURI, result)
}

func (s *Server) handleHistoryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	var result map[string]interface{}
	if err := s.do(ctx, func() {
		workouts := s.dev.Archive.List(10)
		result = map[string]interface{}{
			"workouts": workouts,
			"count":    len(workouts),
			"total":    s.dev.Archive.Len(),
		}
	}); err != nil {
		return nil, err
	}
	return jsonResource(historyURI, result)
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	var result map[string]interface{}
	if err := s.do(ctx, func() {
		now := s.dev.Clock.Now()
		direct, queued := s.dev.Channels()
		result = map[string]interface{}{
			"generated_at": now.Format(time.RFC3339),
			"state":        s.dev.Session.State().String(),
			"stats":        s.dev.Archive.StatsAt(now),
			"templates":    s.dev.Templates.Len(),
			"sync": map[string]interface{}{
				"direct": direct,
				"queued": queued,
				"stats":  s.dev.Bridge.Stats(),
			},
		}
	}); err != nil {
		return nil, err
	}
	return jsonResource(summaryURI, result)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
