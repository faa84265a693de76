package web

import (
	"database/sql"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/trail/internal/config"
	"github.com/hpungsan/trail/internal/logging"
	"github.com/hpungsan/trail/internal/ops"
)

// Handlers contains HTTP route handlers for the activity browser.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	log      *log.Logger
}

func newHandlers(db *sql.DB, cfg *config.Config, version string, logger *log.Logger) *Handlers {
	logger = logging.OrDiscard(logger)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic("template sub-FS: " + err.Error())
	}
	return &Handlers{
		db:       db,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, version, logger),
		log:      logger,
	}
}

// HandleDays handles GET /days, every indexed date, newest first.
func (h *Handlers) HandleDays(w http.ResponseWriter, r *http.Request) {
	dates, err := ops.ListDates(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	stats, err := ops.GetIndexStats(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "days", DaysPageData{
		PageData: h.renderer.page("Days", "days"),
		Dates:    dates.Items,
		Stats:    stats,
	})
}

// HandleDay handles GET /days/{date}, the rendered daily report.
func (h *Handlers) HandleDay(w http.ResponseWriter, r *http.Request) {
	report, err := ops.Report(r.Context(), h.db, ops.ReportInput{Date: r.PathValue("date"), HTML: true})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, report)
		return
	}

	h.renderer.renderPage(w, r, "day", DayPageData{
		PageData: h.renderer.page(report.Date, "days"),
		Date:     report.Date,
		Count:    report.Count,
		// goldmark escapes raw HTML in entry text unless WithUnsafe is set.
		RenderedHTML: template.HTML(report.HTML),
	})
}

// HandleApps handles GET /apps.
func (h *Handlers) HandleApps(w http.ResponseWriter, r *http.Request) {
	apps, err := ops.ListApps(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, r, "apps", AppsPageData{
		PageData: h.renderer.page("Apps", "apps"),
		Apps:     apps.Items,
	})
}

// HandleSearch handles GET /search. With app, from or to set the filters are
// combined; otherwise q is a full-text query.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := SearchPageData{
		PageData: h.renderer.page("Search", "search"),
		Query:    q.Get("q"),
		App:      q.Get("app"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	}
	data.HasQuery = data.Query != "" || data.App != "" || data.From != "" || data.To != ""
	limit := parseIntParam(r, "limit", ops.DefaultSearchLimit)

	if data.HasQuery {
		var (
			list *ops.EntryList
			err  error
		)
		switch {
		case data.App != "" && data.Query == "" && data.From == "" && data.To == "":
			var res *ops.AppEntryList
			res, err = ops.SearchByApp(r.Context(), h.db, data.App)
			if res != nil {
				list = &res.EntryList
				data.Suggestions = res.Suggestions
			}
		case data.App != "" || data.From != "" || data.To != "":
			list, err = ops.SearchCombined(r.Context(), h.db, ops.CombinedInput{
				StartDate: data.From,
				EndDate:   data.To,
				Keywords:  data.Query,
				AppName:   data.App,
				Limit:     limit,
			})
		default:
			list, err = ops.SearchFulltext(r.Context(), h.db, ops.SearchInput{
				Query:      data.Query,
				Limit:      limit,
				Unweighted: parseBoolParam(r, "unweighted"),
			})
		}
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Entries = list.Entries
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"count":       len(data.Entries),
			"entries":     data.Entries,
			"suggestions": data.Suggestions,
		})
		return
	}

	// htmx live search swaps only the results list.
	if isHTMX(r) && r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "results", data)
		return
	}

	h.renderer.renderPage(w, r, "search", data)
}

// HandleDelete handles DELETE /entries/{filename}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(h.db, r.PathValue("filename"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Info("deleted entry", "filename", result.Filename)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/days")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/days", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
