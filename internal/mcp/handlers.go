package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// SearchFulltextRequest represents the arguments for search_fulltext.
type SearchFulltextRequest struct {
	Query      string `json:"query"`
	Limit      int    `json:"limit,omitempty"`
	Unweighted bool   `json:"unweighted,omitempty"`
}

// SearchByDateRequest represents the arguments for search_by_date.
type SearchByDateRequest struct {
	Date string `json:"date"`
}

// SearchByDateRangeRequest represents the arguments for search_by_date_range.
type SearchByDateRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SearchByAppRequest represents the arguments for search_by_app.
type SearchByAppRequest struct {
	AppName string `json:"app_name"`
}

// SearchCombinedRequest represents the arguments for search_combined.
type SearchCombinedRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Keywords  string `json:"keywords,omitempty"`
	AppName   string `json:"app_name,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// RulesFeedbackRequest represents the arguments for rules_feedback.
type RulesFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// HandleSearchFulltext handles the search_fulltext tool call.
func (h *Handlers) HandleSearchFulltext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchFulltextRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(ops.SearchFulltext(ctx, h.deps.DB, ops.SearchInput{
		Query:      input.Query,
		Limit:      input.Limit,
		Unweighted: input.Unweighted,
	}))
}

// HandleSearchByDate handles the search_by_date tool call.
func (h *Handlers) HandleSearchByDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchByDateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(ops.SearchByDate(ctx, h.deps.DB, input.Date))
}

// HandleSearchByDateRange handles the search_by_date_range tool call.
func (h *Handlers) HandleSearchByDateRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchByDateRangeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(ops.SearchByDateRange(ctx, h.deps.DB, input.StartDate, input.EndDate))
}

// HandleSearchByApp handles the search_by_app tool call.
func (h *Handlers) HandleSearchByApp(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchByAppRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(ops.SearchByApp(ctx, h.deps.DB, input.AppName))
}

// HandleSearchCombined handles the search_combined tool call.
func (h *Handlers) HandleSearchCombined(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchCombinedRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(ops.SearchCombined(ctx, h.deps.DB, ops.CombinedInput{
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Keywords:  input.Keywords,
		AppName:   input.AppName,
		Limit:     input.Limit,
	}))
}

// HandleListApps handles the list_apps tool call.
func (h *Handlers) HandleListApps(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(ops.ListApps(ctx, h.deps.DB))
}

// HandleListDates handles the list_dates tool call.
func (h *Handlers) HandleListDates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(ops.ListDates(ctx, h.deps.DB))
}

// HandleGetIndexStats handles the get_index_stats tool call.
func (h *Handlers) HandleGetIndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(ops.GetIndexStats(ctx, h.deps.DB))
}

// HandleRulesShow handles the rules_show tool call.
func (h *Handlers) HandleRulesShow(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.ShowRules(h.deps.Rules))
}

// HandleRulesFeedback handles the rules_feedback tool call.
func (h *Handlers) HandleRulesFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RulesFeedbackRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(ops.ApplyFeedback(ctx, h.deps.Rules, h.deps.Interpreter, input.Feedback))
}

// HandleRulesUndo handles the rules_undo tool call.
func (h *Handlers) HandleRulesUndo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(ops.UndoRules(h.deps.Rules))
}

// result turns an ops return pair into a tool result. Operation errors are
// reported in the result, never as a protocol error.
func result[T any](data T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(data)
}

// errorResult creates an MCP error result from any error. Details of
// INTERNAL errors are withheld; they may carry paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if trailErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    trailErr.Code,
			"message": trailErr.Message,
			"status":  trailErr.Status,
		}
		if trailErr.Code != errors.ErrInternal && trailErr.Details != nil {
			errorObj["details"] = trailErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
