// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"whatsapp-sales-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var negotiateSchema = MustCompile(`{
	"type": "object",
	"required": ["productId", "requestedPrice"],
	"properties": {
		"productId": {"type": "string", "minLength": 1},
		"requestedPrice": {"type": "number", "minimum": 0.01}
	}
}`)

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"valid", `{"productId":"p1","requestedPrice":79}`, ""},
		{"missing price", `{"productId":"p1"}`, "requestedPrice"},
		{"negative price", `{"productId":"p1","requestedPrice":-5}`, "requestedPrice"},
		{"wrong type", `{"productId":12,"requestedPrice":5}`, "productId"},
		{"not json", `{`, "unreadable document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := negotiateSchema.ValidateJSON(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateValue(t *testing.T) {
	assert.NoError(t, negotiateSchema.ValidateValue(map[string]interface{}{"productId": "p", "requestedPrice": 1.5}))
	assert.Error(t, negotiateSchema.ValidateValue(map[string]interface{}{"productId": ""}))
}

func TestMustCompile_PanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() { MustCompile(`{"type": 12}`) })
}
