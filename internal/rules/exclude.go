package rules

import (
	"regexp"
	"strings"
)

// Target holds the fields exclusion rules are matched against.
type Target struct {
	AppName     string
	WindowTitle string
	URL         string
	Domain      string
	PageTitle   string
}

// Matcher applies the prefixed exclude rules of a rule set.
//
//	app:<name>     app name, case-insensitive
//	domain:<d>     domain or any subdomain of it
//	title:<text>   substring of window or page title, case-insensitive
//	regex:<re>     app name, window title, or URL
type Matcher struct {
	apps    []string
	domains []string
	titles  []string
	regexes []*regexp.Regexp
}

var prefixes = []string{"app:", "domain:", "title:", "regex:"}

func parseMatcher(rule string) (kind, value string, ok bool) {
	r := strings.TrimSpace(rule)
	for _, p := range prefixes {
		if len(r) > len(p) && strings.EqualFold(r[:len(p)], p) {
			v := strings.TrimSpace(r[len(p):])
			if v == "" {
				return "", "", false
			}
			return strings.TrimSuffix(p, ":"), v, true
		}
	}
	return "", "", false
}

// NewMatcher compiles the prefixed exclude rules. Invalid regexes are
// returned as errors alongside a matcher built from the rest.
func NewMatcher(rs RuleSet) (*Matcher, []error) {
	m := &Matcher{}
	var errs []error
	for _, rule := range rs.Exclude {
		kind, value, ok := parseMatcher(rule)
		if !ok {
			continue
		}
		switch kind {
		case "app":
			m.apps = append(m.apps, strings.ToLower(value))
		case "domain":
			m.domains = append(m.domains, strings.ToLower(strings.TrimPrefix(value, ".")))
		case "title":
			m.titles = append(m.titles, strings.ToLower(value))
		case "regex":
			re, err := regexp.Compile(value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			m.regexes = append(m.regexes, re)
		}
	}
	return m, errs
}

// Empty reports whether the matcher has no rules.
func (m *Matcher) Empty() bool {
	return len(m.apps)+len(m.domains)+len(m.titles)+len(m.regexes) == 0
}

// Match returns the first rule that excludes t, or "" if none does.
func (m *Matcher) Match(t Target) string {
	app := strings.ToLower(t.AppName)
	for _, a := range m.apps {
		if app != "" && app == a {
			return "app:" + a
		}
	}

	domain := strings.ToLower(t.Domain)
	for _, d := range m.domains {
		if domain != "" && (domain == d || strings.HasSuffix(domain, "."+d)) {
			return "domain:" + d
		}
	}

	window := strings.ToLower(t.WindowTitle)
	page := strings.ToLower(t.PageTitle)
	for _, s := range m.titles {
		if strings.Contains(window, s) || strings.Contains(page, s) {
			return "title:" + s
		}
	}

	for _, re := range m.regexes {
		for _, field := range []string{t.AppName, t.WindowTitle, t.URL} {
			if field != "" && re.MatchString(field) {
				return "regex:" + re.String()
			}
		}
	}
	return ""
}
