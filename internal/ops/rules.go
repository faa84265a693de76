package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/extract"
	"github.com/hpungsan/trail/internal/rules"
)

// MaxFeedbackLength bounds feedback text sent to the interpreter.
const MaxFeedbackLength = 2000

// RulesOutput is the current rule snapshot.
type RulesOutput struct {
	Rules rules.RuleSet `json:"rules"`
	Count int           `json:"count"`
	Text  string        `json:"text"`
}

// ShowRules returns the current rules.
func ShowRules(store *rules.Store) *RulesOutput {
	rs := store.Load()
	return &RulesOutput{Rules: rs, Count: rs.Len(), Text: renderRules(rs)}
}

// renderRules lists every category, prefixed exclusions included.
func renderRules(rs rules.RuleSet) string {
	if rs.Len() == 0 {
		return "No rules yet."
	}
	var sections []string
	for _, c := range []rules.Category{rules.CategoryIndexing, rules.CategorySearch, rules.CategoryExclude} {
		list := rs.List(c)
		if len(list) == 0 {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s:", c)
		for i, r := range list {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, r)
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n")
}

// HistoryOutput lists rule changes, oldest first.
type HistoryOutput struct {
	Count   int            `json:"count"`
	Changes []rules.Change `json:"changes"`
}

// RuleHistory returns the last limit changes (all when limit <= 0).
func RuleHistory(store *rules.Store, limit int) *HistoryOutput {
	changes := store.History()
	if limit > 0 && len(changes) > limit {
		changes = changes[len(changes)-limit:]
	}
	if changes == nil {
		changes = []rules.Change{}
	}
	return &HistoryOutput{Count: len(changes), Changes: changes}
}

// FeedbackOutput is the result of ApplyFeedback.
type FeedbackOutput struct {
	Understood bool          `json:"understood"`
	Message    string        `json:"message"`
	Change     *rules.Change `json:"change,omitempty"`
	Rules      rules.RuleSet `json:"rules"`
}

// ApplyFeedback asks the interpreter to turn feedback into a rule edit and
// applies it. Feedback the interpreter does not understand changes nothing.
func ApplyFeedback(ctx context.Context, store *rules.Store, interp extract.Interpreter, feedback string) (*FeedbackOutput, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, errors.NewInvalidRequest("feedback is required")
	}
	if len([]rune(feedback)) > MaxFeedbackLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("feedback exceeds maximum length of %d characters", MaxFeedbackLength))
	}
	if interp == nil {
		return nil, errors.NewInvalidRequest("no feedback interpreter configured")
	}

	current := store.Load()
	in, err := interp.Interpret(ctx, current, feedback)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewExtraction("feedback", err)
	}
	if !in.Understood {
		msg := in.Message
		if msg == "" {
			msg = "Feedback was not understood as a rule change"
		}
		return &FeedbackOutput{Understood: false, Message: msg, Rules: current}, nil
	}

	change, err := store.Apply(rules.Edit{
		Feedback:     feedback,
		Action:       in.Action,
		Category:     in.Category,
		Rule:         in.NewRule,
		PreviousRule: in.PreviousRule,
		Updated:      in.Updated,
	})
	if err != nil {
		return nil, err
	}

	msg := in.Message
	if msg == "" {
		msg = fmt.Sprintf("Applied %s %s rule: %s", change.Action, change.Category, change.Rule)
	}
	return &FeedbackOutput{
		Understood: true,
		Message:    msg,
		Change:     change,
		Rules:      in.Updated.Clone(),
	}, nil
}

// UndoRules reverts the most recent rule change.
func UndoRules(store *rules.Store) (*rules.UndoResult, error) {
	return store.Undo()
}
