package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "population_size must be positive, got %d", 0)
	assert.Equal(t, "INVALID_CONFIG: population_size must be positive, got 0", err.Error())
	assert.Equal(t, "population_size must be positive, got 0", UserMessage(err))

	cause := errors.New("connection refused")
	wrapped := Wrap(ErrCodeNetwork, cause, "download %s", "ALL_tsp.tar.gz")
	assert.Equal(t, "NETWORK_ERROR: download ALL_tsp.tar.gz: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}

func TestIs(t *testing.T) {
	missing := Wrap(ErrCodeFileNotFound, errors.New("no such file"), "open burma14.tsp")
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrCodeInvalidModel, "theta is NaN"), ErrCodeInvalidModel, true},
		{"other code", New(ErrCodeInvalidModel, "theta is NaN"), ErrCodeInvalidConfig, false},
		{"outer of nested", Wrap(ErrCodeInternal, missing, "run"), ErrCodeInternal, true},
		{"inner of nested", Wrap(ErrCodeInternal, missing, "run"), ErrCodeFileNotFound, true},
		{"through fmt wrapping", fmt.Errorf("execute: %w", missing), ErrCodeFileNotFound, true},
		{"plain error", errors.New("plain"), ErrCodeInvalidInput, false},
		{"nil", nil, ErrCodeInvalidInput, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.code))
		})
	}
}

func TestGetCode(t *testing.T) {
	inner := New(ErrCodeRunNotFound, "run abc")
	assert.Equal(t, ErrCodeRunNotFound, GetCode(fmt.Errorf("show: %w", inner)))
	assert.Equal(t, ErrCodeInternal, GetCode(Wrap(ErrCodeInternal, inner, "load")))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
	assert.Equal(t, Code(""), GetCode(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(ErrCodeInvalidConfig, "x"), http.StatusBadRequest},
		{New(ErrCodeInvalidSelection, "x"), http.StatusBadRequest},
		{New(ErrCodeInvalidProblem, "x"), http.StatusBadRequest},
		{New(ErrCodeFileNotFound, "x"), http.StatusNotFound},
		{New(ErrCodeRunNotFound, "x"), http.StatusNotFound},
		{Wrap(ErrCodeNetwork, errors.New("dial"), "fetch"), http.StatusBadGateway},
		{New(ErrCodeInstanceMismatch, "x"), http.StatusConflict},
		{New(ErrCodeInstanceUnavailable, "x"), http.StatusConflict},
		{New(ErrCodeTimeout, "x"), http.StatusGatewayTimeout},
		{New(ErrCodeInternal, "x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "HTTPStatus(%v)", tt.err)
	}
}

func TestValidateProblemName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"burma14", false},
		{"a280", false},
		{"gr17.opt", false},
		{"my-instance_2", false},

		{"", true},
		{strings.Repeat("x", 200), true},
		{"../etc/passwd", true},
		{"gr..17", true},
		{"tsp/burma14", true},
		{"tsp\\burma14", true},
		{"burma\x0114", true},
		{".hidden", true},
	}
	for _, tt := range tests {
		err := ValidateProblemName(tt.input)
		if !tt.wantErr {
			assert.NoError(t, err, "ValidateProblemName(%q)", tt.input)
			continue
		}
		assert.True(t, Is(err, ErrCodeInvalidProblem), "ValidateProblemName(%q) = %v", tt.input, err)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"http://comopt.ifi.uni-heidelberg.de/software/TSPLIB95/tsp/ALL_tsp.tar.gz", false},
		{"https://example.com/data.tar.gz", false},
		{"", true},
		{"ftp://example.com/data", true},
		{"file:///etc/passwd", true},
		{"https://", true},
		{"http://[::1", true},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.input)
		if tt.wantErr {
			assert.True(t, Is(err, ErrCodeInvalidInput), "ValidateURL(%q) = %v", tt.input, err)
		} else {
			assert.NoError(t, err, "ValidateURL(%q)", tt.input)
		}
	}
}
