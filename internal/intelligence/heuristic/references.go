package heuristic

import (
	"sort"
	"strings"
	"unicode"

	"github.com/loanlens/loanlens/internal/domain/analysis"
)

const defaultReferenceLimit = 3

// References matches a chat question against the analysis catalog and
// returns the items it most plausibly talks about, best first. Scoring is
// plain keyword overlap; no item overlapping the question means no
// references, never a wrong one.
func References(b *analysis.Bundle, message string, limit int) []analysis.Reference {
	if b == nil {
		return nil
	}
	if limit <= 0 {
		limit = defaultReferenceLimit
	}
	tokens := queryTokens(message)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		ref   analysis.Reference
		score int
	}
	var candidates []scored
	add := func(id string, loc analysis.Location, haystack ...string) {
		text := strings.ToLower(strings.Join(haystack, " "))
		n := 0
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				n++
			}
		}
		if n > 0 {
			candidates = append(candidates, scored{
				ref:   analysis.Reference{ClauseID: id, Page: loc.Page, Section: loc.Section},
				score: n,
			})
		}
	}

	for _, f := range b.RedFlags {
		add(f.ID, f.Location, f.Title, f.Description)
	}
	for _, c := range b.Clauses {
		add(c.ID, c.Location, c.Title, c.Summary, c.PlainEnglish)
	}
	for _, t := range b.Terms {
		add(t.ID, t.Location, t.Name, t.FullName, t.Definition)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	refs := make([]analysis.Reference, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, c.ref)
	}
	return refs
}

// queryTokens lowercases the question and keeps the words long enough to be
// discriminating. Short function words score everything equally and would
// only add noise.
func queryTokens(message string) []string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(message)) {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(tok) > 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
