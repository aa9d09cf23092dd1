package highlight

import (
	"strings"
	"unicode/utf8"
)

// Thresholds tunes the three matching tiers. The defaults mirror the
// precision/recall trade-off the product shipped with, but nothing in the
// engine depends on these exact values.
type Thresholds struct {
	// PartialMinWords is the word count a normalized snippet must exceed
	// before the prefix tier is attempted.
	PartialMinWords int
	// PartialPrefixWords is how many leading words the prefix tier keeps.
	PartialPrefixWords int
	// TokenMinLength is the rune count a word must exceed to be a key token.
	TokenMinLength int
	// TokenMaxCount caps how many key tokens are collected.
	TokenMaxCount int
}

// DefaultThresholds returns the shipped tier tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PartialMinWords:    5,
		PartialPrefixWords: 15,
		TokenMinLength:     4,
		TokenMaxCount:      5,
	}
}

// Matcher locates snippets in a PageIndex with a three-tier fallback: exact
// phrase, 15-word prefix, then scattered key tokens. The first tier that
// yields leaves wins; precision degrades tier by tier but some visual
// feedback is produced whenever thematically relevant words exist on the
// page.
type Matcher struct {
	th Thresholds
}

// NewMatcher builds a Matcher. Zero threshold fields fall back to defaults
// so a partially-populated Thresholds is usable.
func NewMatcher(th Thresholds) *Matcher {
	def := DefaultThresholds()
	if th.PartialMinWords <= 0 {
		th.PartialMinWords = def.PartialMinWords
	}
	if th.PartialPrefixWords <= 0 {
		th.PartialPrefixWords = def.PartialPrefixWords
	}
	if th.TokenMinLength <= 0 {
		th.TokenMinLength = def.TokenMinLength
	}
	if th.TokenMaxCount <= 0 {
		th.TokenMaxCount = def.TokenMaxCount
	}
	return &Matcher{th: th}
}

// Match locates snippet inside the page index. An absent snippet, or one
// that normalizes to nothing, yields TierNone immediately; the caller falls
// back to page-level marking. Match never fails.
func (m *Matcher) Match(idx *PageIndex, snippet string) MatchResult {
	none := MatchResult{Tier: TierNone}
	if snippet == "" || idx.Empty() {
		return none
	}

	needle := Normalize(snippet)
	if needle == "" {
		return none
	}

	// Tier 1: the whole normalized snippet as a contiguous substring.
	if leaves := m.phraseMatch(idx, needle); len(leaves) > 0 {
		return MatchResult{Tier: TierFull, LeafIndices: leaves}
	}

	// Tier 2: the leading words of a long snippet. Analyzer output often
	// paraphrases the tail of a clause while quoting its opening.
	words := Words(needle)
	if len(words) > m.th.PartialMinWords {
		prefix := strings.Join(firstN(words, m.th.PartialPrefixWords), " ")
		if leaves := m.phraseMatch(idx, prefix); len(leaves) > 0 {
			return MatchResult{Tier: TierPartial, LeafIndices: leaves}
		}
	}

	// Tier 3: scattered key tokens, no position constraint.
	tokens := m.keyTokens(words)
	if len(tokens) == 0 {
		return none
	}
	if leaves := tokenMatch(idx, tokens); len(leaves) > 0 {
		return MatchResult{Tier: TierToken, LeafIndices: leaves}
	}
	return none
}

// phraseMatch searches for needle as a contiguous substring of the page's
// joined text and returns the overlapping leaves.
func (m *Matcher) phraseMatch(idx *PageIndex, needle string) []int {
	if needle == "" {
		return nil
	}
	at := strings.Index(idx.Concat, needle)
	if at < 0 {
		return nil
	}
	return idx.LeavesOverlapping(at, at+len(needle))
}

// keyTokens picks up to TokenMaxCount words strictly longer than
// TokenMinLength runes, in order of appearance.
func (m *Matcher) keyTokens(words []string) []string {
	var tokens []string
	for _, w := range words {
		if utf8.RuneCountInString(w) > m.th.TokenMinLength {
			tokens = append(tokens, w)
			if len(tokens) == m.th.TokenMaxCount {
				break
			}
		}
	}
	return tokens
}

// tokenMatch marks every leaf whose normalized text contains at least one of
// the tokens.
func tokenMatch(idx *PageIndex, tokens []string) []int {
	var out []int
	for i, text := range idx.Normalized {
		if text == "" {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func firstN(words []string, n int) []string {
	if len(words) <= n {
		return words
	}
	return words[:n]
}
