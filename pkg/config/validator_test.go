package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Remote.BaseURL = "https://assist.example.com"
	return cfg
}

func TestValidateAll(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "defaults with base url", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.Remote.BaseURL = "" }, field: "base_url", wantErr: true},
		{name: "non http base url", mutate: func(c *Config) { c.Remote.BaseURL = "ftp://x" }, field: "base_url", wantErr: true},
		{name: "zero slots", mutate: func(c *Config) { c.Attachments.MaxFiles = 0 }, field: "max_files", wantErr: true},
		{name: "quality out of range", mutate: func(c *Config) { c.Attachments.JPEGQuality = 101 }, field: "jpeg_quality", wantErr: true},
		{name: "resize threshold above image cap", mutate: func(c *Config) { c.Attachments.ResizeAboveBytes = c.Attachments.MaxImageBytes + 1 }, field: "resize_above_bytes", wantErr: true},
		{name: "bad allowed type", mutate: func(c *Config) { c.Attachments.AllowedTypes = []string{"pdf"} }, field: "allowed_types", wantErr: true},
		{name: "zero tool rounds", mutate: func(c *Config) { c.Conversation.MaxToolRounds = 0 }, field: "max_tool_rounds", wantErr: true},
		{name: "animation without frame interval", mutate: func(c *Config) { c.Balance.FrameInterval = 0 }, field: "frame_interval", wantErr: true},
		{
			name: "no animation needs no frame interval",
			mutate: func(c *Config) {
				c.Balance.AnimationDuration = 0
				c.Balance.FrameInterval = 0
			},
		},
		{
			name: "sse server without url",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"search": {Transport: TransportConfig{Type: TransportTypeSSE}},
				})
			},
			field:   "transport.url",
			wantErr: true,
		},
		{
			name: "unknown transport",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"search": {Transport: TransportConfig{Type: "grpc"}},
				})
			},
			field:   "transport.type",
			wantErr: true,
		},
		{
			name: "masking with known groups",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"orders": {
						Transport: TransportConfig{Type: TransportTypeStdio, Command: "x"},
						DataMasking: &MaskingConfig{
							Enabled:        true,
							PatternGroups:  []string{"customer"},
							Patterns:       []string{SensitiveFieldsMasker, "token"},
							CustomPatterns: []MaskingPattern{{Pattern: `ORD-\d+`, Replacement: "__ORDER__"}},
						},
					},
				})
			},
		},
		{
			name: "masking with unknown group",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"orders": {
						Transport:   TransportConfig{Type: TransportTypeStdio, Command: "x"},
						DataMasking: &MaskingConfig{Enabled: true, PatternGroups: []string{"kubernetes"}},
					},
				})
			},
			field:   "data_masking.pattern_groups",
			wantErr: true,
		},
		{
			name: "masking with invalid custom regex",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"orders": {
						Transport: TransportConfig{Type: TransportTypeStdio, Command: "x"},
						DataMasking: &MaskingConfig{
							Enabled:        true,
							CustomPatterns: []MaskingPattern{{Pattern: "([", Replacement: "x"}},
						},
					},
				})
			},
			field:   "data_masking.custom_patterns[0].pattern",
			wantErr: true,
		},
		{
			name: "disabled masking is not checked",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"orders": {
						Transport:   TransportConfig{Type: TransportTypeStdio, Command: "x"},
						DataMasking: &MaskingConfig{PatternGroups: []string{"nope"}},
					},
				})
			},
		},
		{
			name: "dotted server id",
			mutate: func(c *Config) {
				c.MCPServerRegistry = NewMCPServerRegistry(map[string]*MCPServerConfig{
					"a.b": {Transport: TransportConfig{Type: TransportTypeStdio, Command: "x"}},
				})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewValidator(cfg).ValidateAll()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.field != "" {
				assert.Contains(t, err.Error(), tt.field)
			}
		})
	}
}

func TestDefaultBalanceTiming(t *testing.T) {
	b := DefaultBalanceConfig()
	assert.Greater(t, b.AnimationDuration, b.FrameInterval)
	assert.Equal(t, 600*time.Millisecond, b.AnimationDuration)
}

func TestBuiltinMaskingGroupsResolve(t *testing.T) {
	b := GetBuiltinMasking()
	for group, members := range b.Groups {
		for _, name := range members {
			assert.True(t, b.Has(name), "group %s references unknown %s", group, name)
		}
	}
	assert.Same(t, b, GetBuiltinMasking())
}
