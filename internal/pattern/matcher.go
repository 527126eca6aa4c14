package pattern

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnknownKind is returned by ParseKind for names that are not a Kind.
var ErrUnknownKind = errors.New("unknown match kind")

// Default expressions.
//
// The email expression is permissive rather than RFC 5322 strict, the same
// trade-off made for page scraping: false positives are cheap (a blurred
// word), misses leak data. IPv4 accepts any 1-3 digit dotted quad, so
// 999.999.999.999 matches. IPv6 hex digits match in either case.
const (
	EmailExpr = `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`
	IPv4Expr  = `\b(?:\d{1,3}\.){3}\d{1,3}\b`
	IPv6Expr  = `(?i)(?:[A-F0-9]{1,4}:){7}[A-F0-9]{1,4}|(?:[A-F0-9]{1,4}:){1,7}:|:(?::[A-F0-9]{1,4}){1,7}`
)

// Match is one detected substring inside a single text.
// Start and End are byte offsets into the text, End exclusive.
type Match struct {
	Kind  Kind
	Start int
	End   int
	Text  string
}

// Matcher finds emails and IP addresses in text.
// A Matcher holds only compiled expressions and is safe for concurrent use.
type Matcher struct {
	exprs [3]*regexp.Regexp
}

var defaultMatcher = &Matcher{
	exprs: [3]*regexp.Regexp{
		KindEmail: regexp.MustCompile(EmailExpr),
		KindIPv4:  regexp.MustCompile(IPv4Expr),
		KindIPv6:  regexp.MustCompile(IPv6Expr),
	},
}

// Default returns the shared matcher built from the default expressions.
func Default() *Matcher {
	return defaultMatcher
}

// New compiles a matcher from custom expressions.
// An empty expression keeps the default for that kind.
func New(email, ipv4, ipv6 string) (*Matcher, error) {
	m := &Matcher{}
	for i, expr := range []string{email, ipv4, ipv6} {
		if expr == "" {
			m.exprs[i] = defaultMatcher.exprs[i]
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		m.exprs[i] = re
	}
	return m, nil
}

// FindMatches returns the ordered, non-overlapping matches of the first kind
// (in priority order, restricted to kinds) that occurs in text.
// Matches of lower priority kinds in the same text are not reported; the
// caller sees them on a later pass once the winning matches are wrapped and
// the remaining text has been split into separate runs.
func (m *Matcher) FindMatches(text string, kinds KindSet) []Match {
	if text == "" || kinds.Empty() {
		return nil
	}
	for _, kind := range Kinds {
		if !kinds.Has(kind) {
			continue
		}
		locs := m.exprs[kind].FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		matches := make([]Match, 0, len(locs))
		for _, loc := range locs {
			if loc[0] == loc[1] {
				continue
			}
			matches = append(matches, Match{
				Kind:  kind,
				Start: loc[0],
				End:   loc[1],
				Text:  text[loc[0]:loc[1]],
			})
		}
		if len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// Contains reports whether text holds at least one match of any kind in kinds.
func (m *Matcher) Contains(text string, kinds KindSet) bool {
	for _, kind := range Kinds {
		if kinds.Has(kind) && m.exprs[kind].MatchString(text) {
			return true
		}
	}
	return false
}

// Mask replaces every match of every kind in kinds with placeholder.
// Unlike FindMatches it does not stop at the first kind.
func (m *Matcher) Mask(text, placeholder string, kinds KindSet) string {
	if text == "" {
		return text
	}
	for _, kind := range Kinds {
		if !kinds.Has(kind) {
			continue
		}
		if !strings.ContainsAny(text, "@.:") {
			break
		}
		text = m.exprs[kind].ReplaceAllLiteralString(text, placeholder)
	}
	return text
}
