package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/claude/freelift/internal/stats"
	"github.com/mark3labs/mcp-go/mcp"
)

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) progress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)

	st, err := h.ds.GetUserStats(ctx, uid)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	periods, err := h.ds.GetTrainingSummary(ctx, monthStart, now.Add(time.Minute), stats.BucketMonth, uid)
	if err != nil {
		h.log.Warn("progress: training summary failed", "error", err)
	}

	return jsonResource(req.Params.URI, map[string]any{
		"date":       now.Format("2006-01-02"),
		"stats":      st,
		"this_month": periods,
	})
}

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sessions, err := h.ds.RecentSessions(ctx, UserIDFromContext(ctx), 10)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, sessions)
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	exercises, err := h.ds.ListExercises(ctx, "", "")
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, exercises)
}
