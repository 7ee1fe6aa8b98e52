// Package config loads storeassist.yaml: remote service settings, attachment
// limits, conversation limits, balance animation and host tool servers.
package config

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	configDir string

	Remote       *RemoteConfig
	Attachments  *AttachmentsConfig
	Conversation *ConversationConfig
	Balance      *BalanceConfig

	MCPServerRegistry *MCPServerRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	MCPServers   int
	AllowedTypes int
}

// Stats returns configuration statistics for logging
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.MCPServerRegistry != nil {
		s.MCPServers = c.MCPServerRegistry.Len()
	}
	if c.Attachments != nil {
		s.AllowedTypes = len(c.Attachments.AllowedTypes)
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetMCPServer retrieves an MCP server configuration by ID.
func (c *Config) GetMCPServer(serverID string) (*MCPServerConfig, error) {
	return c.MCPServerRegistry.Get(serverID)
}

// AllMCPServerIDs returns a sorted list of all configured MCP server IDs.
func (c *Config) AllMCPServerIDs() []string {
	return c.MCPServerRegistry.ServerIDs()
}

// Default returns a configuration built only from built-in defaults.
// Used by tests and by embedders that do not ship a config file.
func Default() *Config {
	return &Config{
		Remote:            DefaultRemoteConfig(),
		Attachments:       DefaultAttachmentsConfig(),
		Conversation:      DefaultConversationConfig(),
		Balance:           DefaultBalanceConfig(),
		MCPServerRegistry: NewMCPServerRegistry(nil),
	}
}
