package matcher

// levenshtein computes the edit distance between two strings with unit
// insertion, deletion and substitution costs. Transpositions count as two
// edits, matching the distance model used when the rule data was authored.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// withinDistance reports whether the edit distance between two strings is
// at most max. It short-circuits on the length difference, which is a lower
// bound on the distance.
func withinDistance(a, b string, max int) bool {
	la := len([]rune(a))
	lb := len([]rune(b))

	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return false
	}

	return levenshtein(a, b) <= max
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
