package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensitiveFieldsMasker_AppliesTo(t *testing.T) {
	m := SensitiveFieldsMasker{}
	tests := []struct {
		name string
		data string
		want bool
	}{
		{name: "object with password", data: `{"password":"x"}`, want: true},
		{name: "array with token", data: ` [{"token":"x"}]`, want: true},
		{name: "object without hints", data: `{"title":"Mug","price":"12.50"}`, want: false},
		{name: "plain text", data: "password: hunter2", want: false},
		{name: "empty", data: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.AppliesTo(tt.data))
		})
	}
}

func TestSensitiveFieldsMasker_Mask(t *testing.T) {
	m := SensitiveFieldsMasker{}
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "top level and nested keys",
			data: `{"name":"Mug","api_key":"abc","supplier":{"SMTP-Password":"p","url":"https://s.example"}}`,
			want: `{"name":"Mug","api_key":"***","supplier":{"SMTP-Password":"***","url":"https://s.example"}}`,
		},
		{
			name: "non-string values and arrays",
			data: `[{"cvv":123,"card_number":4111111111111111,"amount":10.5},{"webhook_secret":{"v":1}}]`,
			want: `[{"cvv":"***","card_number":"***","amount":10.5},{"webhook_secret":"***"}]`,
		},
		{
			name: "null values are left alone",
			data: `{"token":null,"title":"Mug"}`,
			want: `{"token":null,"title":"Mug"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, m.Mask(tt.data))
		})
	}
}

func TestSensitiveFieldsMasker_Unchanged(t *testing.T) {
	m := SensitiveFieldsMasker{}

	// Byte-identical when nothing is sensitive, even with formatting.
	data := "{\n  \"title\": \"Mug\",\n  \"price\": 12.50\n}"
	assert.Equal(t, data, m.Mask(data))

	broken := `{"password": "hunter2"`
	assert.Equal(t, broken, m.Mask(broken))
}

func TestSensitiveFieldsMasker_KeepsNumbersAndHTML(t *testing.T) {
	m := SensitiveFieldsMasker{}
	got := m.Mask(`{"token":"t","stock":12345678901234567890,"note":"<b>new</b>"}`)
	assert.Contains(t, got, `12345678901234567890`)
	assert.Contains(t, got, `<b>new</b>`)
}
