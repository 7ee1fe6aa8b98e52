package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with id and field",
			err:  NewValidationError("mcp_server", "catalog", "transport.url", ErrMissingRequiredField),
			want: "mcp_server 'catalog': field 'transport.url': missing required field",
		},
		{
			name: "singleton section",
			err:  NewValidationError("remote", "", "base_url", ErrMissingRequiredField),
			want: "remote: field 'base_url': missing required field",
		},
		{
			name: "no field",
			err:  NewValidationError("mcp_server", "a.b", "", errors.New("bad id")),
			want: "mcp_server 'a.b': bad id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	vErr := NewValidationError("attachments", "", "max_files", ErrInvalidValue)
	assert.ErrorIs(t, vErr, ErrInvalidValue)

	lErr := NewLoadError(FileName, ErrConfigNotFound)
	assert.ErrorIs(t, lErr, ErrConfigNotFound)
	assert.Contains(t, lErr.Error(), FileName)
}
