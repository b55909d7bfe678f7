package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/config"
	"github.com/roach88/isaac/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("UNMERGEABLE", "primordial UUIDs differ", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "UNMERGEABLE", resp.Error.Code)
	assert.Equal(t, "primordial UUIDs differ", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "a.chronicle", "offset": "42"}
	err := formatter.Error("CORRUPT_RECORD", "truncated record", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("merged 3 versions")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "merged 3 versions")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("UNMERGEABLE", "primordial UUIDs differ", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [UNMERGEABLE]")
	assert.Contains(t, buf.String(), "primordial UUIDs differ")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "a.chronicle"}
	err := formatter.Error("CORRUPT_RECORD", "truncated record", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [CORRUPT_RECORD]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Read %d bytes from %s", 120, "a.chronicle")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Read 120 bytes from a.chronicle")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    ErrCodeConfig,
		Message: "invalid configuration",
		Details: []string{"defaults.path: path \"nowhere\" is not defined"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, ErrCodeConfig, decoded.Code)
	assert.Equal(t, "invalid configuration", decoded.Message)
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("diagnostic")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "diagnostic")
	assert.Equal(t, errOut, formatter.GetErrWriter())
}

func TestErrorCode(t *testing.T) {
	_, readErr := os.ReadFile("/nonexistent/a.chronicle")
	require.Error(t, readErr)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ir error", ir.Errorf(ir.ErrCodeUnmergeable, "primordial UUIDs differ"), "UNMERGEABLE"},
		{"wrapped ir error", fmt.Errorf("merge: %w", ir.Errorf(ir.ErrCodeCorruptRecord, "short")), "CORRUPT_RECORD"},
		{"file error", readErr, ErrCodeFileRead},
		{"config error", errors.Join(&config.ValidationError{Field: "store.backend", Message: "bad"}), ErrCodeConfig},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err, ErrCodeGeneric))
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitFailure, exitCodeFor(ir.Errorf(ir.ErrCodeUnmergeable, "x")))
	assert.Equal(t, ExitFailure, exitCodeFor(ir.Errorf(ir.ErrCodeCorruptRecord, "x")))
	assert.Equal(t, ExitFailure, exitCodeFor(ir.Errorf(ir.ErrCodeUnsupportedFormat, "x")))
	assert.Equal(t, ExitCommandError, exitCodeFor(ir.Errorf(ir.ErrCodeUnknownIdentifier, "x")))
	assert.Equal(t, ExitCommandError, exitCodeFor(errors.New("boom")))
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail("failed to merge", ir.Errorf(ir.ErrCodeUnmergeable, "primordial UUIDs differ"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, ir.IsUnmergeable(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNMERGEABLE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "failed to merge")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "inner: cause", WrapExitError(ExitCommandError, "inner", errors.New("cause")).Error())
}
