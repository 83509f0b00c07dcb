package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
		fatal     bool
	}{
		{"store unavailable", ErrStoreUnavailable, true, false},
		{"tenant required", ErrTenantRequired, false, true},
		{"invalid envelope", ErrInvalidEnvelope, false, true},
		{"validation", ErrValidation, false, true},
		{"config missing", ErrConfigMissing, true, false},
		{"wrapped store error keeps class", ErrStoreUnavailable.WithCause(errors.New("dial tcp")), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, tt.fatal, tt.err.IsFatal())
		})
	}
}

func TestErrorsIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("resolve route: %w", Wrap(errors.New("connection refused"), ErrStoreUnavailable))

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, errors.Is(err, ErrConfigMissing))
	assert.True(t, IsStoreUnavailable(err))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrDispatch.WithDetail("rule_id", "001@1.0.0")
	assert.Empty(t, ErrDispatch.Details)
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrTenantRequired.WithDetail("tx_type", "pacs.008.001.10"))
	assert.Equal(t, "TENANT_REQUIRED", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"tx_type": "pacs.008.001.10"}, resp["details"])

	resp = ToErrorResponse(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("producer exploded")
	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
}
