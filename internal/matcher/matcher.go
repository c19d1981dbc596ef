package matcher

import (
	"sort"

	"github.com/pvdheide/clinform/internal/doc"
)

// Match is an occurrence of a pattern over a token sequence, as a half-open
// token range relative to the sequence passed to FindMatches.
type Match struct {
	PatternID string
	Start     int
	End       int
}

// FindMatches returns all occurrences of the given patterns in the token
// sequence, including overlapping ones. No matches is not an error. Results
// are ordered by start position, then end, then pattern registration order.
func FindMatches(tokens []doc.Token, patterns []*Pattern) []Match {
	var matches []Match

	for _, p := range patterns {
		for start := range tokens {
			for _, end := range p.matchAt(tokens, start) {
				matches = append(matches, Match{PatternID: p.ID, Start: start, End: end})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End < matches[j].End
	})

	return matches
}

// matchAt returns the end positions of all matches of the pattern starting
// at the given token.
func (p *Pattern) matchAt(tokens []doc.Token, start int) []int {
	if p.IsPhrase() {
		if end, ok := p.matchPhraseAt(tokens, start); ok {
			return []int{end}
		}
		return nil
	}
	return p.matchTokensAt(tokens, start)
}

// matchPhraseAt aligns the phrase's words against the token sequence: the
// first word anchors at start, and each subsequent word must match within
// proximity+1 tokens of the previous one. Proximity is a hard bound on the
// inner loop, so matching always terminates.
func (p *Pattern) matchPhraseAt(tokens []doc.Token, start int) (int, bool) {
	if !p.wordMatches(p.words[0], tokens[start]) {
		return 0, false
	}

	last := start
	for _, word := range p.words[1:] {
		matched := false
		for skip := 0; skip <= p.opts.Proximity; skip++ {
			next := last + 1 + skip
			if next >= len(tokens) {
				break
			}
			if p.wordMatches(word, tokens[next]) {
				last = next
				matched = true
				break
			}
		}
		if !matched {
			return 0, false
		}
	}

	return last + 1, true
}

// wordMatches compares a phrase word against a token, fuzzily when the
// pattern allows it and the word is long enough.
func (p *Pattern) wordMatches(word string, tok doc.Token) bool {
	val := tok.Attr(p.opts.Attr)
	if val == word {
		return true
	}
	if p.opts.Fuzzy > 0 && len([]rune(word)) >= p.opts.FuzzyMinLen {
		return withinDistance(word, val, p.opts.Fuzzy)
	}
	return false
}

// matchTokensAt evaluates a structured pattern positionally. Optional
// positions branch into consume and skip, in that order; since every branch
// advances the constraint index, evaluation is bounded by the pattern
// length and needs no general backtracking.
func (p *Pattern) matchTokensAt(tokens []doc.Token, start int) []int {
	var ends []int
	seen := make(map[int]struct{})

	var walk func(ti, ci int)
	walk = func(ti, ci int) {
		if ci == len(p.constraints) {
			if ti > start {
				if _, dup := seen[ti]; !dup {
					seen[ti] = struct{}{}
					ends = append(ends, ti)
				}
			}
			return
		}

		c := &p.constraints[ci]

		if ti < len(tokens) && c.matches(tokens[ti]) {
			walk(ti+1, ci+1)
		}
		if c.Optional {
			walk(ti, ci+1)
		}
	}

	walk(start, 0)
	sort.Ints(ends)

	return ends
}
