package assembler

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zachacious/go-cwrap/internal/analyzer"
	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/stretchr/testify/require"
)

// requireCgo skips unless a go toolchain with a working C compiler is on the
// path.
func requireCgo(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("compiles generated bindings")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not found")
	}
	out, err := exec.Command(goBin, "env", "CGO_ENABLED").Output()
	if err != nil || strings.TrimSpace(string(out)) != "1" {
		t.Skip("cgo is disabled")
	}
	return goBin
}

// TestGeneratedBindingsBuildAgainstC generates bindings for the widget
// library in testdata, compiles them with its C sources and runs the tests
// shipped next to them.
func TestGeneratedBindingsBuildAgainstC(t *testing.T) {
	goBin := requireCgo(t)

	dump, err := os.ReadFile(filepath.Join("testdata", "widget", "widget.dump"))
	require.NoError(t, err)
	cfg := config.Default()
	decls, err := analyzer.New(cfg, nil).AnalyzeSource("widget.dump", dump)
	require.NoError(t, err)

	opts := OptionsFromConfig(cfg)
	opts.Package = "widget"
	opts.Preamble = []string{`#cgo CFLAGS: -I${SRCDIR}`, `#include "widget.h"`}
	src, err := BuildFile(decls, opts)
	require.NoError(t, err)

	// The package must live inside the module to import the runtime.
	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	dir, err := os.MkdirTemp(root, "widgetbindings")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bindings.go"), src, 0o644))
	for _, name := range []string{"widget.h", "widget.c", "widget_test.go"} {
		data, err := os.ReadFile(filepath.Join("testdata", "widget", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	cmd := exec.Command(goBin, "test", "-count=1", "./"+filepath.Base(dir))
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "generated bindings:\n%s\n\ngo test:\n%s", src, out)
}
