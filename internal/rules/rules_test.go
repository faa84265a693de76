package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trailerrors "github.com/hpungsan/trail/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), nil)
}

func TestLoad_MissingAndCorrupt(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.Load().Equal(Empty()))

	require.NoError(t, os.WriteFile(filepath.Join(s.dir, RulesFile), []byte("{{"), 0600))
	rs := s.Load()
	assert.Equal(t, 0, rs.Len())
	assert.NotNil(t, rs.Indexing)

	require.NoError(t, os.WriteFile(filepath.Join(s.dir, HistoryFile), []byte("nope"), 0600))
	assert.Empty(t, s.History())
}

func TestSaveLoad(t *testing.T) {
	s := newTestStore(t)
	want := RuleSet{Indexing: []string{"note the git branch"}, Search: nil, Exclude: []string{"app:1Password"}}
	require.NoError(t, s.Save(want))

	got := s.Load()
	assert.Equal(t, []string{"note the git branch"}, got.Indexing)
	assert.Equal(t, []string{}, got.Search)
	assert.Equal(t, []string{"app:1Password"}, got.Exclude)
}

func TestApplyUndo_RestoresExactSnapshot(t *testing.T) {
	s := newTestStore(t)
	initial := RuleSet{Indexing: []string{"a", "b"}, Search: []string{"s"}, Exclude: []string{}}
	require.NoError(t, s.Save(initial))

	updated := initial.Clone()
	updated.Indexing = append(updated.Indexing, "c")
	change, err := s.Apply(Edit{
		Feedback: "also track c",
		Action:   ActionAdd,
		Category: CategoryIndexing,
		Rule:     "c",
		Updated:  updated,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, change.ID)
	require.NotNil(t, change.RuleIndex)
	assert.Equal(t, 2, *change.RuleIndex)
	assert.True(t, s.Load().Equal(updated))
	require.Len(t, s.History(), 1)

	res, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "add indexing rule: c")
	assert.True(t, s.Load().Equal(initial))
	assert.Empty(t, s.History())

	// Nothing left: recoverable, no mutation.
	res, err = s.Undo()
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No rule changes to undo", res.Message)
	assert.True(t, s.Load().Equal(initial))
}

func TestApply_MultipleUndoInOrder(t *testing.T) {
	s := newTestStore(t)

	first := RuleSet{Indexing: []string{}, Search: []string{"prefer recent"}, Exclude: []string{}}
	_, err := s.Apply(Edit{Action: ActionAdd, Category: CategorySearch, Rule: "prefer recent", Updated: first})
	require.NoError(t, err)

	second := first.Clone()
	second.Search[0] = "prefer recent entries"
	c, err := s.Apply(Edit{
		Action: ActionModify, Category: CategorySearch,
		Rule: "prefer recent entries", PreviousRule: "prefer recent",
		Updated: second,
	})
	require.NoError(t, err)
	require.NotNil(t, c.RuleIndex)
	assert.Equal(t, 0, *c.RuleIndex)

	_, err = s.Undo()
	require.NoError(t, err)
	assert.True(t, s.Load().Equal(first))

	_, err = s.Undo()
	require.NoError(t, err)
	assert.True(t, s.Load().Equal(Empty()))
}

func TestApply_Invalid(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Apply(Edit{Action: "rename", Category: CategorySearch})
	assert.True(t, trailerrors.Is(err, trailerrors.ErrInvalidRequest))

	_, err = s.Apply(Edit{Action: ActionAdd, Category: "misc"})
	assert.True(t, trailerrors.Is(err, trailerrors.ErrInvalidRequest))

	assert.Empty(t, s.History())
}

func TestApply_SnapshotFailureRollsBackHistory(t *testing.T) {
	s := newTestStore(t)
	// A directory where rules.json should be makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(s.dir, RulesFile), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, RulesFile, "keep"), []byte("x"), 0600))

	_, err := s.Apply(Edit{
		Action: ActionAdd, Category: CategoryIndexing, Rule: "x",
		Updated: RuleSet{Indexing: []string{"x"}},
	})
	require.Error(t, err)
	assert.True(t, trailerrors.Is(err, trailerrors.ErrIndexWriteFailed))
	assert.Empty(t, s.History())
}

func TestRecordChange(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordChange(Change{Action: ActionRemove, Category: CategoryExclude, Rule: "app:Slack"}))

	h := s.History()
	require.Len(t, h, 1)
	assert.NotEmpty(t, h[0].ID)
	assert.NotZero(t, h[0].Timestamp)
	assert.NotNil(t, h[0].Before.Exclude)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		rs   RuleSet
		want string
	}{
		{name: "empty", rs: Empty(), want: ""},
		{
			name: "indexing only",
			rs:   RuleSet{Indexing: []string{"record the git branch"}},
			want: "## Indexing rules\n- record the git branch\n",
		},
		{
			name: "all sections",
			rs: RuleSet{
				Indexing: []string{"i1"},
				Search:   []string{"s1", "s2"},
				Exclude:  []string{"app:Signal", "banking pages"},
			},
			want: "## Indexing rules\n- i1\n\n## Search rules\n- s1\n- s2\n\n## Do not record\n- banking pages\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.rs))
		})
	}
}
