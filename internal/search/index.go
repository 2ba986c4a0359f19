// Package search ranks short texts, such as people's names, against typed
// input. Matching ignores case and accents ("Nuñez" matches "nunez"), and a
// query word also matches any longer word it starts ("mar sot" finds
// "María Soto").
//
// A document scores m / (|Q| + |D| - m), where Q and D are the query and
// document word sets and m counts query words found in D.
package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Doc is an entry to rank: an id and the text to match against.
type Doc struct {
	ID   uint
	Text string
}

// Result is a ranked document.
type Result struct {
	ID    uint
	Text  string
	Score float64
}

// Option configures an Index.
type Option func(*Index)

// WithMinPrefixRunes sets the shortest query word that may match by prefix.
// Shorter words must match exactly; 0 turns prefix matching off.
func WithMinPrefixRunes(n int) Option {
	return func(ix *Index) {
		if n >= 0 {
			ix.minPrefix = n
		}
	}
}

type entry struct {
	Doc
	words []string
	runes int
}

// Index is immutable once built and safe for concurrent readers.
type Index struct {
	minPrefix int
	entries   []entry
}

// NewIndex builds an Index over docs, skipping entries without any word.
func NewIndex(docs []Doc, opts ...Option) *Index {
	ix := &Index{minPrefix: 2}
	for _, o := range opts {
		o(ix)
	}
	for _, d := range docs {
		text := strings.Join(strings.Fields(d.Text), " ")
		ws := words(text)
		if len(ws) == 0 {
			continue
		}
		ix.entries = append(ix.entries, entry{
			Doc:   Doc{ID: d.ID, Text: text},
			words: ws,
			runes: utf8.RuneCountInString(text),
		})
	}
	return ix
}

// Len is the number of indexed documents.
func (ix *Index) Len() int { return len(ix.entries) }

// TopK returns up to k matches, best first; k <= 0 means 10. Ties go to the
// shorter text, then by text and id.
func (ix *Index) TopK(q string, k int) []Result {
	query := words(q)
	if len(query) == 0 || len(ix.entries) == 0 {
		return nil
	}
	if k <= 0 {
		k = 10
	}

	type hit struct {
		e     *entry
		score float64
	}
	var hits []hit
	for n := range ix.entries {
		e := &ix.entries[n]
		if m := ix.overlap(query, e.words); m > 0 {
			hits = append(hits, hit{e, float64(m) / float64(len(query)+len(e.words)-m)})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.e.runes, b.e.runes); c != 0 {
			return c
		}
		if c := strings.Compare(a.e.Text, b.e.Text); c != 0 {
			return c
		}
		return cmp.Compare(a.e.ID, b.e.ID)
	})

	if len(hits) == 0 {
		return nil
	}
	out := make([]Result, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		out = append(out, Result{ID: h.e.ID, Text: h.e.Text, Score: h.score})
	}
	return out
}

func (ix *Index) overlap(query, doc []string) int {
	m := 0
	for _, q := range query {
		prefixOK := ix.minPrefix > 0 && utf8.RuneCountInString(q) >= ix.minPrefix
		for _, d := range doc {
			if d == q || (prefixOK && strings.HasPrefix(d, q)) {
				m++
				break
			}
		}
	}
	return m
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

// Fold lowercases s and strips combining marks, so "Ñuñoa" and "NUNOA"
// compare equal.
func Fold(s string) string {
	// transformers carry state, so each call builds its own chain
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// words returns the distinct folded words of s in order of appearance.
func words(s string) []string {
	var out []string
	for _, w := range wordRE.FindAllString(Fold(s), -1) {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}
