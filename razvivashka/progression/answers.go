package progression

import (
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// Verdict classifies a submitted answer. Close answers never complete
// anything; they exist so the front end can nudge a child who almost got it.
type Verdict int

const (
	VerdictWrong Verdict = iota
	VerdictClose
	VerdictCorrect
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "correct"
	case VerdictClose:
		return "close"
	}
	return "wrong"
}

// normalizeAnswer lowercases, trims, collapses inner whitespace and drops
// punctuation so "Кош-ка! " matches "кошка".
func normalizeAnswer(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) && !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// matchAnswer compares a submission against the acceptable answers.
// Exact normalized equality is correct; a fuzzy subsequence hit within two
// runes of the expected length counts as close.
func matchAnswer(expected []string, given string) Verdict {
	norm := normalizeAnswer(given)
	if norm == "" {
		return VerdictWrong
	}

	targets := make([]string, 0, len(expected))
	for _, e := range expected {
		e = normalizeAnswer(e)
		if e == "" {
			continue
		}
		if e == norm {
			return VerdictCorrect
		}
		targets = append(targets, e)
	}

	for _, m := range fuzzy.Find(norm, targets) {
		diff := len([]rune(targets[m.Index])) - len([]rune(norm))
		if diff >= 0 && diff <= 2 {
			return VerdictClose
		}
	}
	return VerdictWrong
}
