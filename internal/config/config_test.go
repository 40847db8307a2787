package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Conventions, cfg.Conventions)
	assert.Equal(t, def.DenyList, cfg.DenyList)
	assert.Equal(t, def.Emit.Package, cfg.Emit.Package)
	assert.True(t, cfg.Emit.RuntimeSupport)
	assert.True(t, cfg.Emit.ConvertStatusCodes)
	assert.NotNil(t, cfg.Owners)
	assert.NotNil(t, cfg.ClosePairs)
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	content := `conventions:
  async_marker: _pending_
deny_list:
  - aeron_cnc
owners:
  aeron_image_fragment_assembler_handler: aeron_t
close_pairs:
  aeron_open: aeron_shutdown
emit:
  package: aeron
  lint_directives: false
  preamble:
    - "#cgo LDFLAGS: -laeron"
    - "#include <aeronc.h>"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "_pending_", cfg.Conventions.AsyncMarker)
	assert.Equal(t, "_t", cfg.Conventions.RecordSuffix, "unset keys keep their default")
	assert.Equal(t, []string{"aeron_cnc"}, cfg.DenyList)
	assert.Equal(t, "aeron_t", cfg.Owners["aeron_image_fragment_assembler_handler"])
	assert.Equal(t, "aeron_shutdown", cfg.ClosePairs["aeron_open"])
	assert.Equal(t, "aeron", cfg.Emit.Package)
	assert.False(t, cfg.Emit.LintDirectives)
	assert.True(t, cfg.Emit.RuntimeSupport)
	assert.Equal(t, []string{"#cgo LDFLAGS: -laeron", "#include <aeronc.h>"}, cfg.Emit.Preamble)
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("emit:\n  package: client\n"), 0o644))

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, "client", cfg.Emit.Package)

	_, err = Load(t.TempDir(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("CWRAP_EMIT_PACKAGE", "fromenv")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Emit.Package)
}

func TestLoadRejectsEmptyPackage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("emit:\n  package: \"\"\n"), 0o644))

	_, err := Load(dir, "")
	assert.ErrorContains(t, err, "emit.package")
}

func TestDenied(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Denied("aeron_thread_t"))
	assert.True(t, cfg.Denied("aeron_executor_task_t"))
	assert.False(t, cfg.Denied("aeron_publication_t"))
}
