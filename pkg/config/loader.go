package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "storeassist.yaml"

// StoreAssistYAMLConfig represents the complete storeassist.yaml file structure
type StoreAssistYAMLConfig struct {
	Remote       *RemoteConfig       `yaml:"remote"`
	Attachments  *AttachmentsConfig  `yaml:"attachments"`
	Conversation *ConversationConfig `yaml:"conversation"`
	Balance      *BalanceConfig      `yaml:"balance"`
	Tools        *ToolsYAMLConfig    `yaml:"tools"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Read storeassist.yaml from configDir
//  2. Expand {{.VAR}} environment references
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Build the MCP server registry
//  6. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"remote", cfg.Remote.BaseURL,
		"mcp_servers", stats.MCPServers,
		"allowed_types", stats.AllowedTypes)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	userCfg, err := loader.loadStoreAssistYAML()
	if err != nil {
		return nil, NewLoadError(FileName, err)
	}

	cfg := Default()
	cfg.configDir = configDir

	if userCfg.Remote != nil {
		if err := mergo.Merge(cfg.Remote, userCfg.Remote, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge remote config: %w", err)
		}
	}
	if userCfg.Attachments != nil {
		if err := mergo.Merge(cfg.Attachments, userCfg.Attachments, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge attachments config: %w", err)
		}
	}
	if userCfg.Conversation != nil {
		if err := mergo.Merge(cfg.Conversation, userCfg.Conversation, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge conversation config: %w", err)
		}
	}
	if userCfg.Balance != nil {
		if err := mergo.Merge(cfg.Balance, userCfg.Balance, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge balance config: %w", err)
		}
	}

	servers := make(map[string]*MCPServerConfig)
	if userCfg.Tools != nil {
		for id, server := range userCfg.Tools.MCPServers {
			servers[id] = &server
		}
	}
	cfg.MCPServerRegistry = NewMCPServerRegistry(servers)

	return cfg, nil
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadStoreAssistYAML() (*StoreAssistYAMLConfig, error) {
	var config StoreAssistYAMLConfig
	if err := l.loadYAML(FileName, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
