package compare

import (
	"strings"

	"github.com/chronolens/chronolens/core"
)

// maxChangeTokens caps how many distinguishing tokens are reported per
// change entry.
const maxChangeTokens = 5

// Stop words to filter out when diffing descriptions
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		// Lowercase and trim punctuation
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		// Skip stop words and empty strings
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// classifyChanges diffs the token sets of the two descriptions. Tokens
// present only in the second description are additions, only in the
// first are removals. With no asymmetric tokens the images are
// classified as similar. The heuristic is deterministic and
// order-insensitive per description.
func classifyChanges(desc1, desc2 string) []core.Change {
	tokens1 := tokenizeAndFilter(desc1)
	tokens2 := tokenizeAndFilter(desc2)

	set1 := make(map[string]bool, len(tokens1))
	for _, tok := range tokens1 {
		set1[tok] = true
	}
	set2 := make(map[string]bool, len(tokens2))
	for _, tok := range tokens2 {
		set2[tok] = true
	}

	// Preserve order of first appearance within each description.
	added := uniqueNotIn(tokens2, set1)
	removed := uniqueNotIn(tokens1, set2)

	var changes []core.Change
	if len(added) > 0 {
		changes = append(changes, core.Change{
			Type:        core.ChangeAddition,
			Description: "new elements: " + strings.Join(clip(added), ", "),
		})
	}
	if len(removed) > 0 {
		changes = append(changes, core.Change{
			Type:        core.ChangeRemoval,
			Description: "removed elements: " + strings.Join(clip(removed), ", "),
		})
	}
	if len(changes) == 0 {
		changes = append(changes, core.Change{
			Type:        core.ChangeSimilar,
			Description: "no significant differences detected",
		})
	}
	return changes
}

// uniqueNotIn returns tokens not present in exclude, deduplicated in
// order of first appearance.
func uniqueNotIn(tokens []string, exclude map[string]bool) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if exclude[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func clip(tokens []string) []string {
	if len(tokens) > maxChangeTokens {
		return tokens[:maxChangeTokens]
	}
	return tokens
}

// confidenceFor derives a confidence score from description
// completeness: the fraction of the two descriptions that are
// non-empty, damped so it never reaches 1.0.
func confidenceFor(desc1, desc2 string) float64 {
	nonEmpty := 0
	if strings.TrimSpace(desc1) != "" {
		nonEmpty++
	}
	if strings.TrimSpace(desc2) != "" {
		nonEmpty++
	}

	confidence := float64(nonEmpty) / 2 * 0.9
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
