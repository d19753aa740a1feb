package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/freecoach/internal/analytics"
)

func (h *handlers) students(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	infos, err := h.studentInfos(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req, infos)
}

func (h *handlers) finance(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	report, err := h.loader.Finance(ctx, analytics.PeriodOf(time.Now()), analytics.DefaultRevenueMonths)
	if err != nil {
		return nil, err
	}
	return jsonContents(req, report)
}

func jsonContents(req mcp.ReadResourceRequest, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
