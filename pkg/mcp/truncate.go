package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxResultBytes caps the tool output sent back to the assistant.
const DefaultMaxResultBytes = 32 << 10

// Truncate cuts content to at most maxBytes, backing off to the last line
// break so indented JSON and tables stay readable. A marker notes the cut.
func Truncate(content string, maxBytes int) string {
	if maxBytes <= 0 || len(content) <= maxBytes {
		return content
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	truncated := content[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + fmt.Sprintf("\n\n[TRUNCATED: original size %s, limit %s]",
		formatSize(len(content)), formatSize(maxBytes))
}

func formatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	return fmt.Sprintf("%dKB", bytes/1024)
}
