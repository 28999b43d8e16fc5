package openai

import "strings"

// cleanCaption trims whitespace and the trailing period vision models
// usually append, so captions compose cleanly into summaries.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
