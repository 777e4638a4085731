package monitor

import "strings"

// KeywordSet is an immutable list of lower-cased keywords in configured order.
type KeywordSet struct {
	words []string
}

// NewKeywordSet normalises words: trimmed, lower-cased, empties and
// duplicates dropped.
func NewKeywordSet(words []string) KeywordSet {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return KeywordSet{words: out}
}

// Words returns a copy of the keywords.
func (k KeywordSet) Words() []string {
	return append([]string(nil), k.words...)
}

// Len reports the number of keywords.
func (k KeywordSet) Len() int {
	return len(k.words)
}

// Scan returns the keywords contained in text, ignoring case. The result is
// never nil and keeps the set's order.
func Scan(text string, set KeywordSet) []string {
	found := make([]string, 0, len(set.words))
	if len(set.words) == 0 {
		return found
	}
	lowered := strings.ToLower(text)
	for _, w := range set.words {
		if strings.Contains(lowered, w) {
			found = append(found, w)
		}
	}
	return found
}
