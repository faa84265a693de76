// Package rules stores the learned indexing, search, and exclusion rules and
// an undoable history of how they changed.
package rules

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	trailerrors "github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/fsutil"
	"github.com/hpungsan/trail/internal/logging"
)

// File names inside the data directory.
const (
	RulesFile   = "rules.json"
	HistoryFile = "rules-history.json"
)

// Category names a rule list.
type Category string

const (
	CategoryIndexing Category = "indexing"
	CategorySearch   Category = "search"
	CategoryExclude  Category = "exclude"
)

// Action is the kind of edit a change made.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionModify Action = "modify"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryIndexing, CategorySearch, CategoryExclude:
		return true
	}
	return false
}

// ValidAction reports whether a is a known action.
func ValidAction(a Action) bool {
	switch a {
	case ActionAdd, ActionRemove, ActionModify:
		return true
	}
	return false
}

// RuleSet is the materialized rule snapshot.
type RuleSet struct {
	Indexing []string `json:"indexing"`
	Search   []string `json:"search"`
	Exclude  []string `json:"exclude"`
}

// Empty returns a rule set with non-nil empty lists.
func Empty() RuleSet {
	return RuleSet{Indexing: []string{}, Search: []string{}, Exclude: []string{}}
}

// Clone returns a deep copy with nil lists normalized to empty.
func (rs RuleSet) Clone() RuleSet {
	return RuleSet{
		Indexing: cloneList(rs.Indexing),
		Search:   cloneList(rs.Search),
		Exclude:  cloneList(rs.Exclude),
	}
}

// Equal reports whether both sets hold the same rules in the same order.
func (rs RuleSet) Equal(other RuleSet) bool {
	return slices.Equal(rs.Indexing, other.Indexing) &&
		slices.Equal(rs.Search, other.Search) &&
		slices.Equal(rs.Exclude, other.Exclude)
}

// List returns the rules of one category.
func (rs RuleSet) List(c Category) []string {
	switch c {
	case CategoryIndexing:
		return rs.Indexing
	case CategorySearch:
		return rs.Search
	case CategoryExclude:
		return rs.Exclude
	}
	return nil
}

// Len is the total number of rules.
func (rs RuleSet) Len() int {
	return len(rs.Indexing) + len(rs.Search) + len(rs.Exclude)
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Change is one entry of the rule history.
type Change struct {
	ID           string   `json:"id"`
	Timestamp    int64    `json:"timestamp"` // epoch ms
	Feedback     string   `json:"feedback"`
	Action       Action   `json:"action"`
	Category     Category `json:"category"`
	Rule         string   `json:"rule"`
	PreviousRule string   `json:"previousRule,omitempty"`
	RuleIndex    *int     `json:"ruleIndex,omitempty"`

	// Before is the snapshot immediately preceding this change.
	Before RuleSet `json:"before"`
}

// Edit is an interpreted feedback result ready to be applied.
type Edit struct {
	Feedback     string
	Action       Action
	Category     Category
	Rule         string
	PreviousRule string
	Updated      RuleSet
}

// UndoResult reports the outcome of Undo. An empty history is not an error.
type UndoResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Undone  *Change `json:"undone,omitempty"`
	Rules   RuleSet `json:"rules"`
}

// Store owns rules.json and rules-history.json in a data directory.
type Store struct {
	dir string
	log *log.Logger
	now func() time.Time

	mu sync.Mutex
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger *log.Logger) *Store {
	return &Store{
		dir: dir,
		log: logging.OrDiscard(logger).WithPrefix("rules"),
		now: time.Now,
	}
}

func (s *Store) rulesPath() string   { return filepath.Join(s.dir, RulesFile) }
func (s *Store) historyPath() string { return filepath.Join(s.dir, HistoryFile) }

// Load returns the current snapshot. A missing or corrupt file yields an
// empty rule set.
func (s *Store) Load() RuleSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() RuleSet {
	data, err := os.ReadFile(s.rulesPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("cannot read rules, using defaults", "err", err)
		}
		return Empty()
	}
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		s.log.Warn("corrupt rules file, using defaults", "path", s.rulesPath(), "err", err)
		return Empty()
	}
	return rs.Clone()
}

// Save overwrites the snapshot without touching history.
func (s *Store) Save(rs RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(rs)
}

func (s *Store) saveLocked(rs RuleSet) error {
	data, err := json.MarshalIndent(rs.Clone(), "", "  ")
	if err != nil {
		return trailerrors.NewIndexWriteFailed("rules", err)
	}
	if err := fsutil.WriteFileAtomic(s.rulesPath(), data, 0600); err != nil {
		return trailerrors.NewIndexWriteFailed("rules", err)
	}
	return nil
}

// History returns the change log, oldest first. A corrupt log reads as empty.
func (s *Store) History() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

func (s *Store) historyLocked() []Change {
	data, err := os.ReadFile(s.historyPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("cannot read rule history, using empty", "err", err)
		}
		return nil
	}
	var changes []Change
	if err := json.Unmarshal(data, &changes); err != nil {
		s.log.Warn("corrupt rule history, using empty", "path", s.historyPath(), "err", err)
		return nil
	}
	return changes
}

func (s *Store) writeHistoryLocked(changes []Change) error {
	if changes == nil {
		changes = []Change{}
	}
	data, err := json.MarshalIndent(changes, "", "  ")
	if err != nil {
		return trailerrors.NewIndexWriteFailed("rule history", err)
	}
	if err := fsutil.WriteFileAtomic(s.historyPath(), data, 0600); err != nil {
		return trailerrors.NewIndexWriteFailed("rule history", err)
	}
	return nil
}

// RecordChange appends c to the history. Callers that also change the
// snapshot should use Apply instead.
func (s *Store) RecordChange(c Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillChange(&c)
	return s.writeHistoryLocked(append(s.historyLocked(), c))
}

func (s *Store) fillChange(c *Change) {
	if c.ID == "" {
		entropy := ulid.Monotonic(rand.Reader, 0)
		c.ID = ulid.MustNew(ulid.Timestamp(s.now()), entropy).String()
	}
	if c.Timestamp == 0 {
		c.Timestamp = s.now().UnixMilli()
	}
	c.Before = c.Before.Clone()
}

// Apply records edit in the history and then replaces the snapshot with
// edit.Updated. If the snapshot write fails the history entry is removed
// again, so neither is persisted.
func (s *Store) Apply(edit Edit) (*Change, error) {
	if !ValidAction(edit.Action) {
		return nil, trailerrors.NewInvalidRequest(fmt.Sprintf("invalid action: %q", edit.Action))
	}
	if !ValidCategory(edit.Category) {
		return nil, trailerrors.NewInvalidRequest(fmt.Sprintf("invalid category: %q", edit.Category))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.loadLocked()
	history := s.historyLocked()

	c := Change{
		Feedback:     edit.Feedback,
		Action:       edit.Action,
		Category:     edit.Category,
		Rule:         edit.Rule,
		PreviousRule: edit.PreviousRule,
		RuleIndex:    ruleIndex(before, edit),
		Before:       before,
	}
	s.fillChange(&c)

	if err := s.writeHistoryLocked(append(slices.Clone(history), c)); err != nil {
		return nil, err
	}
	if err := s.saveLocked(edit.Updated); err != nil {
		if rbErr := s.writeHistoryLocked(history); rbErr != nil {
			s.log.Error("rule history rollback failed", "change", c.ID, "err", rbErr)
		}
		return nil, err
	}

	s.log.Info("rules updated", "action", c.Action, "category", c.Category, "rule", c.Rule)
	return &c, nil
}

// ruleIndex locates the edited rule in the pre-change list, if it is there.
func ruleIndex(before RuleSet, edit Edit) *int {
	target := edit.Rule
	if edit.Action == ActionModify && edit.PreviousRule != "" {
		target = edit.PreviousRule
	}
	if edit.Action == ActionAdd {
		n := len(before.List(edit.Category))
		return &n
	}
	if i := slices.Index(before.List(edit.Category), target); i >= 0 {
		return &i
	}
	return nil
}

// Undo restores the snapshot from before the most recent change and drops
// that change from the history.
func (s *Store) Undo() (*UndoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked()
	if len(history) == 0 {
		return &UndoResult{
			Success: false,
			Message: "No rule changes to undo",
			Rules:   s.loadLocked(),
		}, nil
	}

	last := history[len(history)-1]
	if err := s.saveLocked(last.Before); err != nil {
		return nil, err
	}
	if err := s.writeHistoryLocked(history[:len(history)-1]); err != nil {
		return nil, err
	}

	s.log.Info("rule change undone", "change", last.ID, "action", last.Action, "category", last.Category)
	return &UndoResult{
		Success: true,
		Message: fmt.Sprintf("Undid %s %s rule: %s", last.Action, last.Category, last.Rule),
		Undone:  &last,
		Rules:   last.Before.Clone(),
	}, nil
}

// Format renders the rules that guide extraction into a prompt fragment.
// Prefixed exclude rules are enforced locally and are left out.
func Format(rs RuleSet) string {
	var b strings.Builder
	writeSection := func(title string, rules []string) {
		if len(rules) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## " + title + "\n")
		for _, r := range rules {
			b.WriteString("- " + r + "\n")
		}
	}

	writeSection("Indexing rules", rs.Indexing)
	writeSection("Search rules", rs.Search)

	var prose []string
	for _, r := range rs.Exclude {
		if _, _, ok := parseMatcher(r); !ok {
			prose = append(prose, r)
		}
	}
	writeSection("Do not record", prose)

	return b.String()
}
