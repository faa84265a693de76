// Package mcp serves the search and rules operations as MCP tools over stdio.
package mcp

import (
	"database/sql"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/trail/internal/config"
	"github.com/hpungsan/trail/internal/extract"
	"github.com/hpungsan/trail/internal/logging"
	"github.com/hpungsan/trail/internal/rules"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"search_fulltext": {
		def:     searchFulltextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchFulltext },
	},
	"search_by_date": {
		def:     searchByDateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchByDate },
	},
	"search_by_date_range": {
		def:     searchByDateRangeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchByDateRange },
	},
	"search_by_app": {
		def:     searchByAppToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchByApp },
	},
	"search_combined": {
		def:     searchCombinedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearchCombined },
	},
	"list_apps": {
		def:     listAppsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListApps },
	},
	"list_dates": {
		def:     listDatesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListDates },
	},
	"get_index_stats": {
		def:     getIndexStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetIndexStats },
	},
	"rules_show": {
		def:     rulesShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRulesShow },
	},
	"rules_feedback": {
		def:     rulesFeedbackToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRulesFeedback },
	},
	"rules_undo": {
		def:     rulesUndoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRulesUndo },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
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

// Deps are the stores the tools operate on.
type Deps struct {
	DB     *sql.DB
	Config *config.Config
	Rules  *rules.Store

	// Interpreter serves rules_feedback; nil makes that tool fail with
	// INVALID_REQUEST.
	Interpreter extract.Interpreter

	Logger *log.Logger
}

// NewServer creates an MCP server with the trail tools registered, minus
// those listed in cfg.DisabledTools.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"trail",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)
	logger := logging.OrDiscard(deps.Logger)

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range ValidateDisabledTools(deps.Config.DisabledTools) {
			logger.Warn("unknown tool in disabled_tools", "tool", name)
		}
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

// Run serves the tools on stdin/stdout until the client disconnects.
func Run(deps Deps, version string) error {
	return server.ServeStdio(NewServer(deps, version))
}
