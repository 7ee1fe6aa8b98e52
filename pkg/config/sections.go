package config

import (
	"os"
	"time"
)

// RemoteConfig describes the remote conversation service.
type RemoteConfig struct {
	// BaseURL is the API root; session routes are appended to it.
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Timeout bounds non-streaming requests. Streaming responses are bounded
	// by the caller's context only.
	Timeout time.Duration `yaml:"timeout"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Token resolves the bearer token from the configured environment variable.
func (c *RemoteConfig) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}

// DefaultRemoteConfig returns the built-in remote defaults.
func DefaultRemoteConfig() *RemoteConfig {
	return &RemoteConfig{
		TokenEnv: "STOREASSIST_API_TOKEN",
		Timeout:  30 * time.Second,
	}
}

// AttachmentsConfig holds the compose-buffer limits.
type AttachmentsConfig struct {
	// MaxFiles is the per-message slot limit.
	MaxFiles int `yaml:"max_files"`

	// MaxFileBytes caps non-image files.
	MaxFileBytes int64 `yaml:"max_file_bytes"`

	// MaxImageBytes caps image files before resizing.
	MaxImageBytes int64 `yaml:"max_image_bytes"`

	// ResizeAboveBytes routes larger images through downsampling.
	ResizeAboveBytes int64 `yaml:"resize_above_bytes"`

	// MaxDimension is the longest side, in pixels, of a resized image.
	MaxDimension int `yaml:"max_dimension"`

	// JPEGQuality is the re-encode quality factor (1-100).
	JPEGQuality int `yaml:"jpeg_quality"`

	AllowedTypes []string `yaml:"allowed_types,omitempty"`
}

// DefaultAttachmentsConfig returns the built-in attachment limits.
func DefaultAttachmentsConfig() *AttachmentsConfig {
	return &AttachmentsConfig{
		MaxFiles:         5,
		MaxFileBytes:     10 << 20,
		MaxImageBytes:    20 << 20,
		ResizeAboveBytes: 1536 << 10,
		MaxDimension:     2048,
		JPEGQuality:      85,
		AllowedTypes: []string{
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
			"application/pdf",
			"text/plain",
			"text/csv",
		},
	}
}

// ConversationConfig holds per-turn limits.
type ConversationConfig struct {
	// MaxToolRounds caps data_request round trips within one turn.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// DefaultTitle names sessions whose entity has no title.
	DefaultTitle string `yaml:"default_title"`
}

// DefaultConversationConfig returns the built-in conversation defaults.
func DefaultConversationConfig() *ConversationConfig {
	return &ConversationConfig{
		MaxToolRounds: 8,
		DefaultTitle:  "Store assistant",
	}
}

// BalanceConfig controls the displayed-balance animation.
type BalanceConfig struct {
	AnimationDuration time.Duration `yaml:"animation_duration"`
	FrameInterval     time.Duration `yaml:"frame_interval"`
}

// DefaultBalanceConfig returns the built-in animation timing.
func DefaultBalanceConfig() *BalanceConfig {
	return &BalanceConfig{
		AnimationDuration: 600 * time.Millisecond,
		FrameInterval:     16 * time.Millisecond,
	}
}
