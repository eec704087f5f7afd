package resolve

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, folds accented letters to their base form, collapses
// every run of non-alphanumeric characters to a single space, and trims.
// Both queries and candidate names pass through here before any comparison.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		r = foldAccent(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// foldAccent maps accented letters common in Spanish and Portuguese entity
// names to their unaccented base. Other runes pass through unchanged.
func foldAccent(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ä', 'ã':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'ô', 'ö', 'õ':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ñ':
		return 'n'
	case 'ç':
		return 'c'
	}
	return r
}

// digitRuns extracts every maximal run of digits from s, adding a
// zero-stripped variant of each run so that "CNC-05" also matches "5".
// The result preserves first-seen order and contains no duplicates.
func digitRuns(s string) []string {
	var runs []string
	seen := make(map[string]bool)

	add := func(run string) {
		if run != "" && !seen[run] {
			seen[run] = true
			runs = append(runs, run)
		}
	}

	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		run := cur.String()
		cur.Reset()
		add(run)
		if stripped := strings.TrimLeft(run, "0"); stripped != "" && stripped != run {
			add(stripped)
		}
	}

	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return runs
}

// significantWords returns the words of a normalized string with at least
// minLen runes. Short connectives ("de", "la") carry no matching signal.
func significantWords(normalized string, minLen int) []string {
	var words []string
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) >= minLen {
			words = append(words, w)
		}
	}
	return words
}
