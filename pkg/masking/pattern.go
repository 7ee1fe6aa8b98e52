package masking

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/codeready-toolchain/storeassist/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// resolvedPatterns is the masking applied to one server's results.
type resolvedPatterns struct {
	codeMaskerNames []string
	regexPatterns   []*CompiledPattern
}

func (r *resolvedPatterns) empty() bool {
	return len(r.codeMaskerNames) == 0 && len(r.regexPatterns) == 0
}

// compileBuiltinPatterns compiles the built-in regex patterns.
// Invalid patterns are logged and skipped.
func (s *Service) compileBuiltinPatterns() {
	for name, pattern := range s.builtin.Patterns {
		compiled, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			s.logger.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		s.patterns[name] = &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
	}
}

// compileCustomPatterns compiles the custom patterns of every server with
// masking enabled. They are keyed "custom:{serverID}:{index}".
func (s *Service) compileCustomPatterns() {
	for _, serverID := range s.registry.ServerIDs() {
		serverCfg, err := s.registry.Get(serverID)
		if err != nil || serverCfg.DataMasking == nil || !serverCfg.DataMasking.Enabled {
			continue
		}
		for i, pattern := range serverCfg.DataMasking.CustomPatterns {
			name := fmt.Sprintf("custom:%s:%d", serverID, i)
			compiled, err := regexp.Compile(pattern.Pattern)
			if err != nil {
				s.logger.Error("Failed to compile custom masking pattern, skipping",
					"pattern", name, "server", serverID, "error", err)
				continue
			}
			s.patterns[name] = &CompiledPattern{
				Name:        name,
				Regex:       compiled,
				Replacement: pattern.Replacement,
				Description: pattern.Description,
			}
			s.serverCustomPatterns[serverID] = append(s.serverCustomPatterns[serverID], name)
		}
	}
}

// resolvePatterns expands cfg into a deduplicated set: groups first, then
// individual patterns, then the server's custom patterns.
func (s *Service) resolvePatterns(cfg *config.MaskingConfig, serverID string) *resolvedPatterns {
	seen := make(map[string]bool)
	resolved := &resolvedPatterns{}
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		s.addToResolved(resolved, name)
	}

	for _, groupName := range cfg.PatternGroups {
		for _, name := range s.builtin.Groups[groupName] {
			add(name)
		}
	}
	for _, name := range cfg.Patterns {
		add(name)
	}
	for _, name := range s.serverCustomPatterns[serverID] {
		add(name)
	}
	return resolved
}

// addToResolved files name as a code masker or a regex pattern. Unknown
// names are ignored; config validation rejects them at load time.
func (s *Service) addToResolved(resolved *resolvedPatterns, name string) {
	if slices.Contains(s.builtin.CodeMaskers, name) {
		resolved.codeMaskerNames = append(resolved.codeMaskerNames, name)
		return
	}
	if cp, ok := s.patterns[name]; ok {
		resolved.regexPatterns = append(resolved.regexPatterns, cp)
	}
}
