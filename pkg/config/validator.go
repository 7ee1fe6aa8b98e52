package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ConfigValidator validates configuration with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateRemote(); err != nil {
		return fmt.Errorf("remote validation failed: %w", err)
	}
	if err := v.validateAttachments(); err != nil {
		return fmt.Errorf("attachments validation failed: %w", err)
	}
	if err := v.validateConversation(); err != nil {
		return fmt.Errorf("conversation validation failed: %w", err)
	}
	if err := v.validateBalance(); err != nil {
		return fmt.Errorf("balance validation failed: %w", err)
	}
	if err := v.validateMCPServers(); err != nil {
		return fmt.Errorf("MCP server validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateRemote() error {
	r := v.cfg.Remote
	if r.BaseURL == "" {
		return NewValidationError("remote", "", "base_url", ErrMissingRequiredField)
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError("remote", "", "base_url", fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidValue, r.BaseURL))
	}
	if r.Timeout < 0 {
		return NewValidationError("remote", "", "timeout", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateAttachments() error {
	a := v.cfg.Attachments
	if a.MaxFiles < 1 {
		return NewValidationError("attachments", "", "max_files", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if a.MaxFileBytes < 1 || a.MaxImageBytes < 1 {
		return NewValidationError("attachments", "", "max_file_bytes", fmt.Errorf("%w: size limits must be positive", ErrInvalidValue))
	}
	if a.ResizeAboveBytes > a.MaxImageBytes {
		return NewValidationError("attachments", "", "resize_above_bytes", fmt.Errorf("%w: exceeds max_image_bytes", ErrInvalidValue))
	}
	if a.MaxDimension < 16 {
		return NewValidationError("attachments", "", "max_dimension", fmt.Errorf("%w: must be at least 16", ErrInvalidValue))
	}
	if a.JPEGQuality < 1 || a.JPEGQuality > 100 {
		return NewValidationError("attachments", "", "jpeg_quality", fmt.Errorf("%w: must be between 1 and 100", ErrInvalidValue))
	}
	if len(a.AllowedTypes) == 0 {
		return NewValidationError("attachments", "", "allowed_types", ErrMissingRequiredField)
	}
	for _, t := range a.AllowedTypes {
		if !strings.Contains(t, "/") {
			return NewValidationError("attachments", "", "allowed_types", fmt.Errorf("%w: %q is not a MIME type", ErrInvalidValue, t))
		}
	}
	return nil
}

func (v *ConfigValidator) validateConversation() error {
	if v.cfg.Conversation.MaxToolRounds < 1 {
		return NewValidationError("conversation", "", "max_tool_rounds", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateBalance() error {
	b := v.cfg.Balance
	if b.AnimationDuration < 0 {
		return NewValidationError("balance", "", "animation_duration", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if b.AnimationDuration > 0 && b.FrameInterval <= 0 {
		return NewValidationError("balance", "", "frame_interval", fmt.Errorf("%w: must be positive when animating", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateMCPServers() error {
	for _, id := range v.cfg.MCPServerRegistry.ServerIDs() {
		server, _ := v.cfg.MCPServerRegistry.Get(id)
		if strings.Contains(id, ".") {
			return NewValidationError("mcp_server", id, "", fmt.Errorf("%w: server id must not contain '.'", ErrInvalidValue))
		}
		t := server.Transport
		if !t.Type.IsValid() {
			return NewValidationError("mcp_server", id, "transport.type", fmt.Errorf("%w: %q", ErrInvalidValue, t.Type))
		}
		switch t.Type {
		case TransportTypeStdio:
			if t.Command == "" {
				return NewValidationError("mcp_server", id, "transport.command", ErrMissingRequiredField)
			}
		case TransportTypeHTTP, TransportTypeSSE:
			if t.URL == "" {
				return NewValidationError("mcp_server", id, "transport.url", ErrMissingRequiredField)
			}
		}
		if t.Timeout < 0 {
			return NewValidationError("mcp_server", id, "transport.timeout", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
		if err := validateMasking(id, server.DataMasking); err != nil {
			return err
		}
	}
	return nil
}

func validateMasking(serverID string, m *MaskingConfig) error {
	if m == nil || !m.Enabled {
		return nil
	}
	builtin := GetBuiltinMasking()
	for _, g := range m.PatternGroups {
		if _, ok := builtin.Groups[g]; !ok {
			return NewValidationError("mcp_server", serverID, "data_masking.pattern_groups", fmt.Errorf("%w: unknown group %q", ErrInvalidValue, g))
		}
	}
	for _, p := range m.Patterns {
		if !builtin.Has(p) {
			return NewValidationError("mcp_server", serverID, "data_masking.patterns", fmt.Errorf("%w: unknown pattern %q", ErrInvalidValue, p))
		}
	}
	for i, cp := range m.CustomPatterns {
		if cp.Pattern == "" {
			return NewValidationError("mcp_server", serverID, fmt.Sprintf("data_masking.custom_patterns[%d].pattern", i), ErrMissingRequiredField)
		}
		if _, err := regexp.Compile(cp.Pattern); err != nil {
			return NewValidationError("mcp_server", serverID, fmt.Sprintf("data_masking.custom_patterns[%d].pattern", i), fmt.Errorf("%w: %w", ErrInvalidValue, err))
		}
	}
	return nil
}
