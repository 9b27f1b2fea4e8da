package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/aireach/internal/config"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/pipeline"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"work_extract_text": {
		def:     extractTextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExtractText },
	},
	"work_identify": {
		def:     identifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentify },
	},
	"work_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"work_recommend": {
		def:     recommendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecommend },
	},
	"shelf_analyze": {
		def:     shelfToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShelf },
	},
	"history_list": {
		def:     historyListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryList },
	},
	"history_add": {
		def:     historyAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryAdd },
	},
	"history_clear": {
		def:     historyClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryClear },
	},
	"history_export": {
		def:     historyExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps are the collaborators the tool handlers run against.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Store        *history.Store
	Config       *config.Config
	BaseDir      string
}

// NewServer creates an MCP server with the aireach tools registered.
// Tools listed in cfg.DisabledTools are excluded.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"aireach",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range deps.Config.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	return server.ServeStdio(NewServer(deps, version))
}
