package masking

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/storeassist/pkg/config"
)

// MaskedValue replaces the value of a sensitive JSON key. It is short
// enough that no built-in regex pattern matches it again.
const MaskedValue = "***"

// sensitiveKeys are normalized JSON keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"client_secret": true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
	"auth_token":    true,
	"token":         true,
	"authorization": true,
	"private_key":   true,
	"card_number":   true,
	"cvv":           true,
	"cvc":           true,
	"iban":          true,
}

// sensitiveSuffixes mask keys such as "smtp_password" or "webhook_secret".
var sensitiveSuffixes = []string{"_password", "_secret", "_token", "_api_key"}

// SensitiveFieldsMasker masks the values of sensitive keys anywhere in a
// JSON document, whatever their type.
type SensitiveFieldsMasker struct{}

var _ Masker = SensitiveFieldsMasker{}

// Name implements Masker.
func (SensitiveFieldsMasker) Name() string { return config.SensitiveFieldsMasker }

// AppliesTo implements Masker.
func (SensitiveFieldsMasker) AppliesTo(data string) bool {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, hint := range []string{"pass", "secret", "key", "token", "auth", "card", "cv", "iban"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// Mask implements Masker.
func (SensitiveFieldsMasker) Mask(data string) string {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return data
	}
	if !maskValue(doc) {
		return data
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return data
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// maskValue masks v in place and reports whether anything changed.
func maskValue(v any) bool {
	changed := false
	switch vv := v.(type) {
	case map[string]any:
		for k, child := range vv {
			if isSensitiveKey(k) {
				if child != nil {
					vv[k] = MaskedValue
					changed = true
				}
				continue
			}
			if maskValue(child) {
				changed = true
			}
		}
	case []any:
		for _, child := range vv {
			if maskValue(child) {
				changed = true
			}
		}
	}
	return changed
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(key)))
	if sensitiveKeys[k] {
		return true
	}
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}
