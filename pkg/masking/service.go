// Package masking redacts sensitive data from MCP tool results before they
// are forwarded to the remote assistant service.
package masking

import (
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/storeassist/pkg/config"
)

// RedactedNotice replaces a tool result that could not be masked.
const RedactedNotice = "[REDACTED: data masking failed, tool result withheld]"

// Service applies per-server masking to tool results. It is created once at
// startup and is safe for concurrent use; only compiled patterns are kept.
type Service struct {
	registry             *config.MCPServerRegistry
	builtin              *config.BuiltinMasking
	patterns             map[string]*CompiledPattern
	codeMaskers          map[string]Masker
	serverCustomPatterns map[string][]string
	logger               *slog.Logger
}

// NewService compiles all patterns eagerly. Invalid patterns are logged and
// skipped.
func NewService(registry *config.MCPServerRegistry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		registry:             registry,
		builtin:              config.GetBuiltinMasking(),
		patterns:             make(map[string]*CompiledPattern),
		codeMaskers:          make(map[string]Masker),
		serverCustomPatterns: make(map[string][]string),
		logger:               logger.With("component", "masking"),
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns()
	s.registerMasker(SensitiveFieldsMasker{})

	s.logger.Info("Masking service initialized",
		"builtin_patterns", len(s.builtin.Patterns),
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers))
	return s
}

// MaskToolResult applies serverID's masking to content. Servers without
// masking get content back unchanged. A masking failure returns
// RedactedNotice instead of the content.
func (s *Service) MaskToolResult(content, serverID string) string {
	if content == "" {
		return content
	}

	serverCfg, err := s.registry.Get(serverID)
	if err != nil || serverCfg.DataMasking == nil || !serverCfg.DataMasking.Enabled {
		return content
	}

	resolved := s.resolvePatterns(serverCfg.DataMasking, serverID)
	if resolved.empty() {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		s.logger.Error("Masking failed, redacting tool result",
			"server", serverID, "error", err)
		return RedactedNotice
	}
	return masked
}

// applyMasking runs code maskers first, then the regex sweep.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) (masked string, err error) {
	defer func() {
		if r := recover(); r != nil {
			masked, err = "", fmt.Errorf("masker panicked: %v", r)
		}
	}()

	masked = content
	for _, name := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[name]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}
	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}
	return masked, nil
}

func (s *Service) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
