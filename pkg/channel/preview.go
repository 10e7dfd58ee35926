package channel

import "strings"

// PreviewLimit is the number of characters of a message kept in log lines.
const PreviewLimit = 240

// Preview trims text and cuts it to PreviewLimit runes for logging, so
// multi-byte scripts are never split mid-character.
func Preview(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= PreviewLimit {
		return trimmed
	}

	count := 0
	for i := range trimmed {
		if count == PreviewLimit {
			return trimmed[:i] + "..."
		}
		count++
	}

	return trimmed
}
