package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
)

// newTestService creates a Service whose "catalog" server masks with the
// given groups and patterns.
func newTestService(t *testing.T, groups []string, patterns []string) *Service {
	t.Helper()
	return NewService(config.NewMCPServerRegistry(map[string]*config.MCPServerConfig{
		"catalog": stdioServer(&config.MaskingConfig{
			Enabled:       true,
			PatternGroups: groups,
			Patterns:      patterns,
		}),
	}), nil)
}

func TestNewService(t *testing.T) {
	svc := NewService(config.NewMCPServerRegistry(nil), nil)
	assert.NotEmpty(t, svc.patterns)
	assert.Contains(t, svc.codeMaskers, config.SensitiveFieldsMasker)
}

func TestMaskToolResult_PassThrough(t *testing.T) {
	content := `api_key: "sk-FAKE-NOT-REAL-API-KEY-XXXX"`
	svc := NewService(config.NewMCPServerRegistry(map[string]*config.MCPServerConfig{
		"plain":    stdioServer(nil),
		"disabled": stdioServer(&config.MaskingConfig{Enabled: false, PatternGroups: []string{"basic"}}),
		"empty":    stdioServer(&config.MaskingConfig{Enabled: true}),
	}), nil)

	for _, server := range []string{"plain", "disabled", "empty", "unknown"} {
		t.Run(server, func(t *testing.T) {
			assert.Equal(t, content, svc.MaskToolResult(content, server))
		})
	}
}

func TestMaskToolResult_EmptyContent(t *testing.T) {
	svc := newTestService(t, []string{"basic"}, nil)
	assert.Empty(t, svc.MaskToolResult("", "catalog"))
}

func TestMaskToolResult_Text(t *testing.T) {
	svc := newTestService(t, []string{"basic", "customer"}, nil)
	content := `Supplier settings:
api_key: "sk-FAKE-NOT-REAL-API-KEY-XXXX"
password: "FAKE-S3CRET-PASS-NOT-REAL"
contact: orders@supplier.example.com
lead_time: 5 days`

	result := svc.MaskToolResult(content, "catalog")

	assert.NotContains(t, result, "sk-FAKE-NOT-REAL-API-KEY-XXXX")
	assert.NotContains(t, result, "FAKE-S3CRET-PASS-NOT-REAL")
	assert.NotContains(t, result, "orders@supplier.example.com")
	assert.Contains(t, result, "__MASKED_API_KEY__")
	assert.Contains(t, result, "__MASKED_PASSWORD__")
	assert.Contains(t, result, "__MASKED_EMAIL__")
	assert.Contains(t, result, "lead_time: 5 days")
}

func TestMaskToolResult_JSONStaysValid(t *testing.T) {
	svc := newTestService(t, []string{"all"}, nil)
	content := `{"customer":{"name":"Ann","email":"ann@example.com","password":"hunter2hunter2"},"total":"42.00"}`

	result := svc.MaskToolResult(content, "catalog")

	assert.JSONEq(t,
		`{"customer":{"name":"Ann","email":"__MASKED_EMAIL__","password":"***"},"total":"42.00"}`,
		result)
}

func TestMaskToolResult_CustomPatterns(t *testing.T) {
	svc := NewService(config.NewMCPServerRegistry(map[string]*config.MCPServerConfig{
		"suppliers": stdioServer(&config.MaskingConfig{
			Enabled: true,
			CustomPatterns: []config.MaskingPattern{
				{Pattern: `ACCT-[0-9]{8}`, Replacement: "__MASKED_ACCOUNT__", Description: "Supplier accounts"},
			},
		}),
		"catalog": stdioServer(nil),
	}), nil)

	content := "billing account ACCT-12345678"
	assert.Equal(t, "billing account __MASKED_ACCOUNT__", svc.MaskToolResult(content, "suppliers"))
	assert.Equal(t, content, svc.MaskToolResult(content, "catalog"))
}

type panicMasker struct{}

func (panicMasker) Name() string { return config.SensitiveFieldsMasker }
func (panicMasker) AppliesTo(string) bool { return true }
func (panicMasker) Mask(string) string { panic("boom") }

func TestMaskToolResult_FailClosed(t *testing.T) {
	svc := newTestService(t, []string{"secrets"}, nil)
	svc.registerMasker(panicMasker{})

	result := svc.MaskToolResult(`{"password":"hunter2hunter2"}`, "catalog")
	require.Equal(t, RedactedNotice, result)
	assert.NotContains(t, result, "hunter2")
}
