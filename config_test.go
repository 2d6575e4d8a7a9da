package air

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFileTOML(t *testing.T) {
	path := writeConfigFile(t, "config.toml", `
app_name = "airbench"
debug_mode = true
address = "127.0.0.1:2333"
read_timeout = 200000000
max_header_bytes = 65536
tls_cert_file = "path_to_tls_cert_file"
`)

	a := New()
	require.NoError(t, a.LoadConfigFile(path))
	assert.Equal(t, "airbench", a.AppName)
	assert.True(t, a.DebugMode)
	assert.Equal(t, "127.0.0.1:2333", a.Address)
	assert.Equal(t, 200*time.Millisecond, a.ReadTimeout)
	assert.Equal(t, 65536, a.MaxHeaderBytes)
	assert.Equal(t, "path_to_tls_cert_file", a.TLSCertFile)
}

func TestLoadConfigFileYAML(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", "app_name: airbench\ndebug_mode: true\n")

	a := New()
	require.NoError(t, a.LoadConfigFile(path))
	assert.Equal(t, "airbench", a.AppName)
	assert.True(t, a.DebugMode)
}

func TestLoadConfigFileJSON(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{"app_name":"airbench","max_header_bytes":4096}`)

	a := New()
	require.NoError(t, a.LoadConfigFile(path))
	assert.Equal(t, "airbench", a.AppName)
	assert.Equal(t, 4096, a.MaxHeaderBytes)
}

func TestLoadConfigFileUnsetFieldsUntouched(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{"app_name":"airbench"}`)

	a := New()
	original := a.Address
	require.NoError(t, a.LoadConfigFile(path))
	assert.Equal(t, original, a.Address)
}

func TestLoadConfigFileUnsupportedExtension(t *testing.T) {
	path := writeConfigFile(t, "config.ini", "app_name=airbench")

	a := New()
	assert.Error(t, a.LoadConfigFile(path))
}

func TestLoadConfigFileMissingFile(t *testing.T) {
	a := New()
	assert.Error(t, a.LoadConfigFile(filepath.Join(t.TempDir(), "nonexistent.json")))
}

func TestLoadConfigFileMalformedTOML(t *testing.T) {
	path := writeConfigFile(t, "config.toml", "[air")

	a := New()
	assert.Error(t, a.LoadConfigFile(path))
}
