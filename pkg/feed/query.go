package feed

import (
	"strings"
	"unicode/utf8"

	"github.com/kerbaras/mangafeed/pkg/sources"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Query is the search text plus filter values that produce a feed.
type Query struct {
	Text    string
	Filters []sources.FilterValue
}

// Identity is the exact text plus the filters. Two queries with equal
// identities produce the same pages.
func (q Query) Identity() string {
	var b strings.Builder
	b.WriteString(q.Text)
	for _, f := range q.Filters {
		b.WriteByte(0)
		b.WriteString(f.ID)
		b.WriteByte('+')
		b.WriteString(strings.Join(f.Included, ","))
		b.WriteByte('-')
		b.WriteString(strings.Join(f.Excluded, ","))
	}
	return b.String()
}

// NormalizeText composes, case folds and collapses whitespace for matching
// titles against a query.
func NormalizeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}
