// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate_ValidFile(t *testing.T) {
	t.Setenv("LMS_DATA_DIR", t.TempDir())
	path := writeConfigFile(t, "refresh:\n  interval: 20s\n")

	var stdout, stderr bytes.Buffer
	code := configCLI([]string{"validate", path}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "is valid")
}

func TestConfigValidate_UnknownField(t *testing.T) {
	t.Setenv("LMS_DATA_DIR", t.TempDir())
	path := writeConfigFile(t, "refresh:\n  intervall: 20s\n")

	var stdout, stderr bytes.Buffer
	code := configCLI([]string{"validate", "-f", path}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Configuration error")
}

func TestConfigValidate_NoFile(t *testing.T) {
	t.Setenv("LMS_DATA_DIR", t.TempDir())

	var stdout, stderr bytes.Buffer
	code := configCLI([]string{"validate"}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "--file is required")
}

func TestConfigDump_JSONRedactsSecrets(t *testing.T) {
	t.Setenv("LMS_DATA_DIR", t.TempDir())
	t.Setenv("LMS_STORE_BACKEND", "rest")
	t.Setenv("LMS_REST_BASE_URL", "https://db.example.com")
	t.Setenv("LMS_REST_API_KEY", "super-secret")

	var stdout, stderr bytes.Buffer
	code := configCLI([]string{"dump", "--format=json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.NotContains(t, stdout.String(), "super-secret")

	var out struct {
		Store struct {
			Backend string
			REST    struct{ BaseURL, APIKey string }
		}
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "rest", out.Store.Backend)
	assert.Equal(t, "https://db.example.com", out.Store.REST.BaseURL)
	assert.Equal(t, redacted, out.Store.REST.APIKey)
}

func TestConfigDump_YAML(t *testing.T) {
	t.Setenv("LMS_DATA_DIR", t.TempDir())

	var stdout, stderr bytes.Buffer
	code := configCLI([]string{"dump"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "backend: sqlite")
}

func TestConfigCLI_UnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, configCLI([]string{"frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown subcommand")
}
