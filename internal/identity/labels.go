package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldLabel folds a label for near-duplicate detection: diacritics removed
// ("Jiří" -> "Jiri"), lowercased, dashes and underscores as spaces, runs of
// whitespace collapsed and trimmed.
func FoldLabel(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, _ := transform.String(t, label)
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("-", " ", "_", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// SimilarLabels returns existing labels, other than label itself, that fold to
// the same key. Labels are never merged; callers only warn about these.
func (s *Store) SimilarLabels(label string) []string {
	key := FoldLabel(label)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var similar []string
	for _, e := range s.order {
		if e.label != label && FoldLabel(e.label) == key {
			similar = append(similar, e.label)
		}
	}
	return similar
}
