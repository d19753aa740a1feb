// Package mcp exposes the analytics engine as Model Context Protocol tools
// and resources, for assistants that help coaches read their students' data.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/freecoach/internal/dashboard"
)

// New creates an MCP server with all tools and resources registered.
func New(loader *dashboard.Loader, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FreeCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FreeCoach training analytics. Look up students, then query their training volume, monthly adherence, lesson-package credits and payment status. Months are written MM/YYYY."),
	)

	h := &handlers{loader: loader, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListStudents, Handler: h.listStudents},
		server.ServerTool{Tool: toolGetVolumeSeries, Handler: h.getVolumeSeries},
		server.ServerTool{Tool: toolGetAdherence, Handler: h.getAdherence},
		server.ServerTool{Tool: toolGetAdherenceHistory, Handler: h.getAdherenceHistory},
		server.ServerTool{Tool: toolGetCreditBalance, Handler: h.getCreditBalance},
		server.ServerTool{Tool: toolGetStudentReport, Handler: h.getStudentReport},
		server.ServerTool{Tool: toolGetSessions, Handler: h.getSessions},
		server.ServerTool{Tool: toolGetFinanceSummary, Handler: h.getFinanceSummary},
	)

	s.AddResources(
		server.ServerResource{Resource: resStudents, Handler: h.students},
		server.ServerResource{Resource: resFinance, Handler: h.finance},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	loader *dashboard.Loader
	log    *slog.Logger
}

// --- Resource definitions ---

var resStudents = mcp.NewResource(
	"coach://students",
	"Students",
	mcp.WithResourceDescription("Every student with weekly frequency and payment due day"),
	mcp.WithMIMEType("application/json"),
)

var resFinance = mcp.NewResource(
	"coach://finance/current",
	"Current Month Finance",
	mcp.WithResourceDescription("Revenue, average ticket and delinquency for the current month"),
	mcp.WithMIMEType("application/json"),
)
