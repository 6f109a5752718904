package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EntryPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{name: "positional argument", args: []string{"main.ato"}},
		{name: "entry flag", args: []string{"--entry", "main.ato"}},
		{name: "shorthand flag", args: []string{"-e", "main.ato"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg, shouldExit, err := Parse(tc.args, &buf)
			require.NoError(t, err)
			require.False(t, shouldExit)
			assert.Equal(t, "main.ato", cfg.EntryPath)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, shouldExit, err := Parse([]string{"main.ato"}, &buf)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "", cfg.RootName)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "any", cfg.RetypePolicy)
	assert.False(t, cfg.Watch)
	assert.Zero(t, cfg.MaxImportDepth)
}

func TestParse_AllFlags(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, shouldExit, err := Parse([]string{
		"--root", "App",
		"--project", "/proj",
		"--watch",
		"--max-import-depth", "16",
		"--retype", "structural",
		"--log-format", "json",
		"--log-level", "debug",
		"boards/main.ato",
	}, &buf)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "boards/main.ato", cfg.EntryPath)
	assert.Equal(t, "App", cfg.RootName)
	assert.Equal(t, "/proj", cfg.ProjectDir)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 16, cfg.MaxImportDepth)
	assert.Equal(t, "structural", cfg.RetypePolicy)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, shouldExit, err := Parse(nil, &buf)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, buf.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, shouldExit, err := Parse([]string{"-h"}, &buf)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, buf.String(), "ENTRY_PATH")
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "bad log format",
			args:    []string{"--log-format", "xml", "main.ato"},
			wantMsg: "invalid log-format",
		},
		{
			name:    "bad log level",
			args:    []string{"--log-level", "verbose", "main.ato"},
			wantMsg: "invalid log-level",
		},
		{
			name:    "bad retype rule",
			args:    []string{"--retype", "lenient", "main.ato"},
			wantMsg: "invalid retype",
		},
		{
			name:    "unknown flag",
			args:    []string{"--frobnicate", "main.ato"},
			wantMsg: "flag provided but not defined",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg, shouldExit, err := Parse(tc.args, &buf)
			require.Error(t, err)
			assert.False(t, shouldExit)
			assert.Nil(t, cfg)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}

func TestParse_CaseInsensitiveOptions(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg, _, err := Parse([]string{"--log-level", "DEBUG", "--retype", "Structural", "main.ato"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "structural", cfg.RetypePolicy)
}
