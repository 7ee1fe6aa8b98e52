package format

import (
	"regexp"
	"strings"
)

// optionPattern matches a quick-option directive: [[option:Label]].
var optionPattern = regexp.MustCompile(`\[\[option:\s*([^\]\n]+?)\s*\]\]`)

// ParseOptions extracts the quick-option directives from assistant text.
// It returns the text with directives removed and the option labels in
// order of appearance, without duplicates.
func ParseOptions(content string) (text string, options []string) {
	seen := make(map[string]bool)
	for _, m := range optionPattern.FindAllStringSubmatch(content, -1) {
		label := m[1]
		if !seen[label] {
			seen[label] = true
			options = append(options, label)
		}
	}
	if len(options) == 0 {
		return content, nil
	}
	text = optionPattern.ReplaceAllString(content, "")
	return strings.TrimRight(collapseBlankLines(text), " \n"), options
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
