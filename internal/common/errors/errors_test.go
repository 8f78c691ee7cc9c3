// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError_MapsCodesAndRetries(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"not connected", NewNotConnectedError("session closed"), "WHATSAPP_NOT_CONNECTED", 3},
		{"dispatch", NewDispatchError("336@s.whatsapp.net", fmt.Errorf("503")), "DISPATCH_FAILED", 2},
		{"validation", NewValidationError("requestedPrice", "must be positive"), "VALIDATION_ERROR", 0},
		{"configuration", NewConfigurationError("hot_lead_threshold", "not a number"), "CONFIGURATION_ERROR", 0},
		{"llm timeout", NewLLMTimeoutError(fmt.Errorf("deadline")), "LLM_TIMEOUT", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	bpmn := ConvertToBPMNError(NewDispatchError("336@s.whatsapp.net", fmt.Errorf("503")))
	vars := bpmn.ToErrorVariables()

	assert.Equal(t, "336@s.whatsapp.net", vars["target"])
	assert.Equal(t, "DISPATCH_FAILED", vars["errorCode"])
	assert.Equal(t, true, vars["retryable"])
}

func TestIsCode_WalksWrappedChain(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	wrapped := fmt.Errorf("send to gateway: %w", NewDispatchError("x", cause))

	assert.True(t, IsCode(wrapped, ErrCodeDispatch))
	assert.False(t, IsCode(wrapped, ErrCodeNotifier))
	assert.ErrorIs(t, wrapped, cause)

	stdErr, ok := AsStandard(wrapped)
	require.True(t, ok)
	assert.Equal(t, "x", stdErr.Metadata["target"])
}

func TestNormalize_PlainError(t *testing.T) {
	stdErr := Normalize(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
	assert.False(t, stdErr.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "TRANSPORT", GetErrorCategory(ErrCodeDispatch))
	assert.Equal(t, "TRANSPORT", GetErrorCategory(ErrCodeNotConnected))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotifier))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeLLMGenerationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeConfiguration))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestStandardError_ErrorString(t *testing.T) {
	assert.Equal(t, "StandardError[NOT_CONNECTED]: WhatsApp transport not connected: session closed",
		NewNotConnectedError("session closed").Error())
	assert.Equal(t, "StandardError[RESOURCE_NOT_FOUND]: product not found",
		NewResourceNotFoundError("product", "").Error())
}
