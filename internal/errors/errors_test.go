package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfxlicense/internal/domain"
)

func TestReasonMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrFormatInvalid, domain.ReasonFormatInvalid},
		{ErrKeyNotFound, domain.ReasonKeyNotFound},
		{ErrInactive, domain.ReasonInactive},
		{ErrExpired, domain.ReasonExpired},
		{ErrWrongAccount, domain.ReasonWrongAccount},
		{ErrPaymentUnverified, domain.ReasonPaymentUnverified},
		{stderrors.New("disk io error"), domain.ReasonServerError},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestReasonUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("check failed: %w", ErrExpired)
	assert.Equal(t, domain.ReasonExpired, Reason(wrapped))
	assert.Equal(t, http.StatusGone, StatusCode(wrapped))
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrFormatInvalid, http.StatusBadRequest},
		{ErrKeyNotFound, http.StatusNotFound},
		{ErrNotFound, http.StatusNotFound},
		{ErrPaymentUnverified, http.StatusPaymentRequired},
		{ErrInactive, http.StatusForbidden},
		{ErrWrongAccount, http.StatusForbidden},
		{ErrForbidden, http.StatusForbidden},
		{ErrExpired, http.StatusGone},
		{ErrTrialAlreadyUsed, http.StatusConflict},
		{ErrAlreadyDecided, http.StatusConflict},
		{ErrAlreadyPending, http.StatusConflict},
		{stderrors.New("disk io error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusConflict, "/errors/conflict", "Conflict", "trial already used", "/api/license/trial").
		WithExtension("trace_id", "trace-42").
		WithExtension("status", "should not clobber the reserved member")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "/errors/conflict", got["type"])
	assert.Equal(t, "Conflict", got["title"])
	assert.Equal(t, float64(http.StatusConflict), got["status"], "extensions must not override reserved members")
	assert.Equal(t, "trial already used", got["detail"])
	assert.Equal(t, "/api/license/trial", got["instance"])
	assert.Equal(t, "trace-42", got["trace_id"])
}

func TestProblemFromError(t *testing.T) {
	pd := Problem(ErrTrialAlreadyUsed, "/api/license/trial", "trace-42")

	assert.Equal(t, http.StatusConflict, pd.Status)
	assert.Equal(t, "/errors/trial_already_used", pd.Type)
	assert.Equal(t, "Conflict", pd.Title)
	assert.Equal(t, "trace-42", pd.Extensions["trace_id"])
}
