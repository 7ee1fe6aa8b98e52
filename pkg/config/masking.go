package config

import "sync"

// MaskingConfig selects the masking applied to one MCP server's tool
// results before they are sent to the remote service.
type MaskingConfig struct {
	Enabled        bool             `yaml:"enabled"`
	PatternGroups  []string         `yaml:"pattern_groups,omitempty"`
	Patterns       []string         `yaml:"patterns,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// MaskingPattern defines a regex-based masking pattern
type MaskingPattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// BuiltinMasking holds the built-in masking patterns, the named groups of
// them and the code-based maskers a group may reference.
type BuiltinMasking struct {
	Patterns    map[string]MaskingPattern
	Groups      map[string][]string
	CodeMaskers []string
}

// SensitiveFieldsMasker names the code-based masker that redacts values of
// sensitive keys in JSON results.
const SensitiveFieldsMasker = "sensitive_fields"

var (
	builtinMasking     *BuiltinMasking
	builtinMaskingOnce sync.Once
)

// GetBuiltinMasking returns the built-in masking configuration.
func GetBuiltinMasking() *BuiltinMasking {
	builtinMaskingOnce.Do(func() {
		builtinMasking = &BuiltinMasking{
			Patterns:    initBuiltinMaskingPatterns(),
			Groups:      initBuiltinPatternGroups(),
			CodeMaskers: []string{SensitiveFieldsMasker},
		}
	})
	return builtinMasking
}

// Has reports whether name is a built-in pattern or code masker.
func (b *BuiltinMasking) Has(name string) bool {
	if _, ok := b.Patterns[name]; ok {
		return true
	}
	for _, m := range b.CodeMaskers {
		if m == name {
			return true
		}
	}
	return false
}

func initBuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-]{20,})["\']?`,
			Replacement: `"api_key": "__MASKED_API_KEY__"`,
			Description: "API keys",
		},
		"password": {
			Pattern:     `(?i)(?:password|passwd|pwd)["\']?\s*[:=]\s*["\']?([^"\'\s\n]{6,})["\']?`,
			Replacement: `"password": "__MASKED_PASSWORD__"`,
			Description: "Passwords",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"token": "__MASKED_TOKEN__"`,
			Description: "Access tokens",
		},
		"secret_key": {
			Pattern:     `(?i)(?:secret[_-]?key|client[_-]?secret)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"secret_key": "__MASKED_SECRET_KEY__"`,
			Description: "Secret keys",
		},
		"private_key": {
			Pattern:     `(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`,
			Replacement: `__MASKED_PRIVATE_KEY__`,
			Description: "PEM private keys",
		},
		"payment_key": {
			Pattern:     `\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{16,}\b`,
			Replacement: `__MASKED_PAYMENT_KEY__`,
			Description: "Payment provider secret keys",
		},
		"webhook_secret": {
			Pattern:     `\bwhsec_[A-Za-z0-9]{16,}\b`,
			Replacement: `__MASKED_WEBHOOK_SECRET__`,
			Description: "Webhook signing secrets",
		},
		"card_number": {
			Pattern:     `\b(?:\d[ -]?){12,18}\d\b`,
			Replacement: `__MASKED_CARD_NUMBER__`,
			Description: "Payment card numbers",
		},
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `__MASKED_EMAIL__`,
			Description: "Email addresses",
		},
		"phone": {
			Pattern:     `\+\d{1,3}[ .-]?\(?\d{1,4}\)?(?:[ .-]?\d{2,4}){2,3}\b`,
			Replacement: `__MASKED_PHONE__`,
			Description: "International phone numbers",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of masking patterns.
// Members are pattern names or code masker names.
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"basic":    {"api_key", "password"},
		"secrets":  {SensitiveFieldsMasker, "api_key", "password", "token", "secret_key", "private_key", "payment_key", "webhook_secret"},
		"customer": {"email", "phone", "card_number"},
		"all": {
			SensitiveFieldsMasker, "api_key", "password", "token", "secret_key", "private_key",
			"payment_key", "webhook_secret", "card_number", "email", "phone",
		},
	}
}
