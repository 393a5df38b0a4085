package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/newsdesk/errors"
)

func headlineSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := Compile("headline", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"headline": map[string]any{"type": "string", "minLength": 1},
			"score":    map[string]any{"type": "integer"},
		},
		"required":             []string{"headline"},
		"additionalProperties": false,
	})
	require.NoError(t, err)
	return s
}

func TestValidate(t *testing.T) {
	s := headlineSchema(t)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"headline":"Rates hold steady","score":3}`, false},
		{"missing required", `{"score":3}`, true},
		{"empty string", `{"headline":""}`, true},
		{"extra property", `{"headline":"x","extra":true}`, true},
		{"wrong type", `{"headline":42}`, true},
		{"not json", `headline: x`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate([]byte(tt.payload))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaViolation))
		})
	}
}

func TestCompile_RejectsBadDocument(t *testing.T) {
	_, err := Compile("broken", map[string]any{"type": 12})
	assert.Error(t, err)

	_, err = Compile("", map[string]any{"type": "object"})
	assert.Error(t, err)
}

func TestDocumentIsPreserved(t *testing.T) {
	s := headlineSchema(t)
	assert.Equal(t, "headline", s.Name())
	assert.Equal(t, "object", s.Document()["type"])
}
