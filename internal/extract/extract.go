// Package extract defines the collaborators that turn screenshots, feedback,
// and entry batches into structured data, and an OpenAI-compatible adapter
// implementing all of them.
package extract

import (
	"context"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/rules"
)

// Request is one screenshot to analyze.
type Request struct {
	Filename string
	Image    []byte
	MIMEType string // image/png when empty

	// Context is the rendered list of the last few processed entries.
	Context string

	// Rules is the rules prompt fragment; may be empty.
	Rules string
}

// AnalysisResult mirrors the optional groups of an entry plus its free text.
type AnalysisResult struct {
	App           *activity.App           `json:"app,omitempty"`
	Browser       *activity.Browser       `json:"browser,omitempty"`
	Video         *activity.Video         `json:"video,omitempty"`
	IDE           *activity.IDE           `json:"ide,omitempty"`
	Terminal      *activity.Terminal      `json:"terminal,omitempty"`
	Communication *activity.Communication `json:"communication,omitempty"`
	Document      *activity.Document      `json:"document,omitempty"`

	Activity       string   `json:"activity"`
	Summary        string   `json:"summary,omitempty"`
	Details        string   `json:"details,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	IsContinuation bool     `json:"isContinuation"`
}

// Entry builds a pruned entry from the result.
func (r *AnalysisResult) Entry(filename string, timestamp int64, date, clock string) *activity.Entry {
	e := &activity.Entry{
		Filename:       filename,
		Timestamp:      timestamp,
		Date:           date,
		Time:           clock,
		App:            r.App,
		Browser:        r.Browser,
		Video:          r.Video,
		IDE:            r.IDE,
		Terminal:       r.Terminal,
		Communication:  r.Communication,
		Document:       r.Document,
		Activity:       activity.Normalize(r.Activity),
		Summary:        r.Summary,
		Details:        r.Details,
		Tags:           append([]string(nil), r.Tags...),
		IsContinuation: r.IsContinuation,
	}
	return e.Prune()
}

// Extractor analyzes one screenshot.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*AnalysisResult, error)
}

// Interpretation is a feedback text turned into a concrete rule edit.
type Interpretation struct {
	Understood   bool           `json:"understood"`
	Action       rules.Action   `json:"action,omitempty"`
	Category     rules.Category `json:"category,omitempty"`
	PreviousRule string         `json:"previousRule,omitempty"`
	NewRule      string         `json:"newRule,omitempty"`
	Updated      rules.RuleSet  `json:"updatedRules"`
	Message      string         `json:"message,omitempty"`
}

// Interpreter turns free-form feedback into a rule edit.
type Interpreter interface {
	Interpret(ctx context.Context, current rules.RuleSet, feedback string) (*Interpretation, error)
}

// RollupKind names a periodic rollup document.
type RollupKind string

const (
	RollupSummary RollupKind = "summary"
	RollupProfile RollupKind = "profile"
)

// Summarizer writes a markdown rollup from recent entries, given the
// previous version of the same document (empty on first run).
type Summarizer interface {
	Summarize(ctx context.Context, kind RollupKind, previous string, entries []activity.Entry) (string, error)
}
