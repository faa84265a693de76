package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, errs := NewMatcher(RuleSet{Exclude: []string{
		"app:1Password",
		"domain:bank.example",
		"title:Private",
		`regex:^https://mail\.`,
		"regex:(",
		"anything about health",
	}})
	require.Len(t, errs, 1)
	assert.False(t, m.Empty())

	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{name: "app case-insensitive", target: Target{AppName: "1password"}, want: "app:1password"},
		{name: "domain exact", target: Target{Domain: "bank.example"}, want: "domain:bank.example"},
		{name: "subdomain", target: Target{Domain: "www.bank.example"}, want: "domain:bank.example"},
		{name: "lookalike domain", target: Target{Domain: "notbank.example"}, want: ""},
		{name: "window title", target: Target{WindowTitle: "Firefox - private browsing"}, want: "title:private"},
		{name: "page title", target: Target{PageTitle: "My PRIVATE notes"}, want: "title:private"},
		{name: "regex url", target: Target{URL: "https://mail.example.com/inbox"}, want: `regex:^https://mail\.`},
		{name: "no match", target: Target{AppName: "Code", WindowTitle: "main.go"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.target))
		})
	}
}

func TestMatcher_Empty(t *testing.T) {
	m, errs := NewMatcher(RuleSet{Exclude: []string{"no prefix here", "app:"}})
	assert.Empty(t, errs)
	assert.True(t, m.Empty())
	assert.Equal(t, "", m.Match(Target{AppName: "app:"}))
}
