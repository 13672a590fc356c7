package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guildkeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeValidate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_Valid(t *testing.T) {
	out, err := executeValidate(t, "text", "../config/testdata/guildkeeper.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ../config/testdata/guildkeeper.yaml is valid")
}

func TestValidate_ValidJSON(t *testing.T) {
	path := writeConfig(t, "prefix: \"?\"\n")
	out, err := executeValidate(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, path, resp.Data.File)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, "leveling:\n  min_award: 9\n  max_award: 3\ngames:\n  trivia_timeout: 0s\n")

	out, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, out, "is invalid")
	assert.Contains(t, out, "leveling: min_award 9 exceeds max_award 3")
	assert.Contains(t, out, "games.trivia_timeout: must be positive")
}

func TestValidate_SchemaErrorJSON(t *testing.T) {
	path := writeConfig(t, "prefix: \"!\"\nlog_level: loud\n")

	out, err := executeValidate(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	first := resp.Data.Errors[0]
	assert.Contains(t, first.Field+" "+first.Message, "log_level")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigInvalid, resp.Error.Code)
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := executeValidate(t, "text", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
