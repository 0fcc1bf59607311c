package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/feederr"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(LoadOutput{Op: "refresh", Rows: 3, TopID: "5", BottomID: "3"}))

	resp := decodeResponse(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{
		"op":                "refresh",
		"end_of_pagination": false,
		"rows":              float64(3),
		"top_id":            "5",
		"bottom_id":         "3",
	}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		details any
		want    any
	}{
		{"without details", CodeNetwork, "refresh failed", nil, nil},
		{"with details", CodeProtocol, "bad gateway", map[string]int{"http_status": 502}, map[string]any{"http_status": float64(502)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			require.NoError(t, formatter.Error(tt.code, tt.message, tt.details))

			resp := decodeResponse(t, buf)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Equal(t, tt.want, resp.Error.Details)
		})
	}
}

func TestOutputFormatter_TextSuccessUsesStringer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(WatchOutput{Succeeded: 2, Skipped: 1}))
	assert.Equal(t, "jobs: 2 succeeded, 0 failed, 1 skipped\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, ErrWriter: errBuf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(CodeStore, "disk full", []string{"database is locked"}))

			assert.Empty(t, buf.String(), "text errors never go to stdout")
			assert.Contains(t, errBuf.String(), "Error [STORE]: disk full")
			if tt.wantDetails {
				assert.Contains(t, errBuf.String(), "Details: [database is locked]")
			} else {
				assert.NotContains(t, errBuf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_ErrWriterFallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	assert.Same(t, buf, formatter.GetErrWriter())
	require.NoError(t, formatter.Error(CodeCommand, "no account configured", nil))
	assert.Equal(t, "Error [COMMAND]: no account configured\n", buf.String())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"network", feederr.Network("fetch newest", errors.New("connection refused")), CodeNetwork},
		{"protocol", feederr.Protocol("fetch newest", 502, errors.New("bad gateway")), CodeProtocol},
		{"store", feederr.Store("upsert page", errors.New("locked")), CodeStore},
		{"wrapped", WrapExitError(ExitFailure, "refresh failed", feederr.Store("upsert page", errors.New("locked"))), CodeStore},
		{"command", NewExitError(ExitCommandError, "bad flag"), CodeCommand},
		{"other", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestOutputFormatter_FailIncludesHTTPStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := fmt.Errorf("refresh: %w", feederr.Protocol("fetch newest", 502, errors.New("bad gateway")))
	require.NoError(t, formatter.Fail(err))

	resp := decodeResponse(t, buf)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeProtocol, resp.Error.Code)
	assert.Equal(t, map[string]any{"http_status": float64(502)}, resp.Error.Details)
}

func TestOutputFormatter_FailWithoutStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Fail(feederr.Network("fetch newest", errors.New("timeout"))))

	resp := decodeResponse(t, buf)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNetwork, resp.Error.Code)
	assert.Nil(t, resp.Error.Details)
}

func TestExitError(t *testing.T) {
	cause := errors.New("permission denied")

	wrapped := WrapExitError(ExitCommandError, "failed to open database", cause)
	assert.Equal(t, "failed to open database: permission denied", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	plain := NewExitError(ExitFailure, "sync failed")
	assert.Equal(t, "sync failed", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "sync", errors.New("x")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
