package mcp

import "github.com/mark3labs/mcp-go/mcp"

const dateHelp = "Date as YYYY-MM-DD; loose forms such as 'today', 'yesterday' or 'Jan 5, 2024' are accepted"

var searchFulltextToolDef = mcp.NewTool("search_fulltext",
	mcp.WithDescription("Search recorded screen activity by keywords. Results are ranked, with matches in the activity and summary weighted highest."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Keywords to search for")),
	mcp.WithNumber("limit", mcp.Description("Maximum results (default 50, max 200)")),
	mcp.WithBoolean("unweighted", mcp.Description("Rank every field equally")),
)

var searchByDateToolDef = mcp.NewTool("search_by_date",
	mcp.WithDescription("List all activity recorded on one day, in time order."),
	mcp.WithString("date", mcp.Required(), mcp.Description(dateHelp)),
)

var searchByDateRangeToolDef = mcp.NewTool("search_by_date_range",
	mcp.WithDescription("List all activity between two dates inclusive, in time order."),
	mcp.WithString("start_date", mcp.Required(), mcp.Description(dateHelp)),
	mcp.WithString("end_date", mcp.Required(), mcp.Description(dateHelp)),
)

var searchByAppToolDef = mcp.NewTool("search_by_app",
	mcp.WithDescription("List activity in one application, most recent first. Suggests close app names when nothing matches."),
	mcp.WithString("app_name", mcp.Required(), mcp.Description("Application name, case-insensitive")),
)

var searchCombinedToolDef = mcp.NewTool("search_combined",
	mcp.WithDescription("Search with any combination of date range, keywords and app. At least one filter is required."),
	mcp.WithString("start_date", mcp.Description(dateHelp)),
	mcp.WithString("end_date", mcp.Description(dateHelp)),
	mcp.WithString("keywords", mcp.Description("Keywords to search for")),
	mcp.WithString("app_name", mcp.Description("Application name, case-insensitive")),
	mcp.WithNumber("limit", mcp.Description("Maximum results (default 50, max 200)")),
)

var listAppsToolDef = mcp.NewTool("list_apps",
	mcp.WithDescription("List every application seen in recorded activity."),
)

var listDatesToolDef = mcp.NewTool("list_dates",
	mcp.WithDescription("List every date with recorded activity, newest first."),
)

var getIndexStatsToolDef = mcp.NewTool("get_index_stats",
	mcp.WithDescription("Report entry, app and date counts and the index size."),
)

var rulesShowToolDef = mcp.NewTool("rules_show",
	mcp.WithDescription("Show the current indexing, search and exclusion rules."),
)

var rulesFeedbackToolDef = mcp.NewTool("rules_feedback",
	mcp.WithDescription("Give free-form feedback about what to record or how to search; it is turned into a rule change."),
	mcp.WithString("feedback", mcp.Required(), mcp.Description("Feedback in plain language")),
)

var rulesUndoToolDef = mcp.NewTool("rules_undo",
	mcp.WithDescription("Revert the most recent rule change."),
)
