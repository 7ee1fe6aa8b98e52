package mcp

import (
	"fmt"
	"regexp"
	"strings"
)

// toolNameRegex matches "server.tool"; both parts start with a word
// character and may contain hyphens.
var toolNameRegex = regexp.MustCompile(`^([\w][\w-]*)\.([\w][\w-]*)$`)

// NormalizeToolName accepts "server__tool" as an alias of "server.tool".
func NormalizeToolName(name string) string {
	if strings.Contains(name, "__") && !strings.Contains(name, ".") {
		return strings.Replace(name, "__", ".", 1)
	}
	return name
}

// SplitToolName splits "server.tool" into its parts.
func SplitToolName(name string) (serverID, toolName string, err error) {
	matches := toolNameRegex.FindStringSubmatch(name)
	if matches == nil {
		return "", "", fmt.Errorf("invalid tool name %q: must be in 'server.tool' format", name)
	}
	return matches[1], matches[2], nil
}

// IsQualified reports whether name carries a server prefix.
func IsQualified(name string) bool {
	return toolNameRegex.MatchString(NormalizeToolName(name))
}
