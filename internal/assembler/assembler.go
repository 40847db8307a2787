// Package assembler turns a binding model into cgo wrapper source.
package assembler

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"
)

// DefaultRuntimeImport is the import path of the runtime package generated
// code depends on.
const DefaultRuntimeImport = "github.com/Zachacious/go-cwrap/cwrap"

// Options control code emission.
type Options struct {
	// IncludeRuntimeSupport emits the shared block (file header, cgo
	// preamble, imports, Error alias and helpers).
	IncludeRuntimeSupport bool
	// IncludeLintDirectives adds a staticcheck file-ignore for the C naming.
	IncludeLintDirectives bool
	// ConvertStatusCodes turns status-code results into (int32, error).
	ConvertStatusCodes bool

	Package string
	// Preamble holds extra cgo preamble lines, typically #include and
	// #cgo directives.
	Preamble      []string
	RuntimeImport string

	Conventions config.Conventions
	ClosePairs  map[string]string
	DenyList    []string

	Logger *zap.Logger
}

// OptionsFromConfig derives the emission options of a configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IncludeRuntimeSupport: cfg.Emit.RuntimeSupport,
		IncludeLintDirectives: cfg.Emit.LintDirectives,
		ConvertStatusCodes:    cfg.Emit.ConvertStatusCodes,
		Package:               cfg.Emit.Package,
		Preamble:              cfg.Emit.Preamble,
		RuntimeImport:         DefaultRuntimeImport,
		Conventions:           cfg.Conventions,
		ClosePairs:            cfg.ClosePairs,
		DenyList:              cfg.DenyList,
	}
}

func (o Options) withDefaults() Options {
	if o.Package == "" {
		o.Package = "bindings"
	}
	if o.RuntimeImport == "" {
		o.RuntimeImport = DefaultRuntimeImport
	}
	def := config.Default().Conventions
	if o.Conventions.RecordSuffix == "" {
		o.Conventions.RecordSuffix = def.RecordSuffix
	}
	if o.Conventions.ClientdType == "" {
		o.Conventions.ClientdType = def.ClientdType
	}
	if o.Conventions.StatusType == "" {
		o.Conventions.StatusType = def.StatusType
	}
	if o.Conventions.CStringType == "" {
		o.Conventions.CStringType = def.CStringType
	}
	if o.Conventions.AsyncMarker == "" {
		o.Conventions.AsyncMarker = def.AsyncMarker
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) denied(typeName string) bool {
	for _, prefix := range o.DenyList {
		if strings.HasPrefix(typeName, prefix) {
			return true
		}
	}
	return false
}

// generator accumulates the source of one emission run.
type generator struct {
	buf    *bytes.Buffer
	indent int

	decls *model.Declarations
	opts  Options
	log   *zap.Logger
}

func newGenerator(decls *model.Declarations, opts Options) *generator {
	opts = opts.withDefaults()
	return &generator{
		buf:   &bytes.Buffer{},
		decls: decls,
		opts:  opts,
		log:   opts.Logger,
	}
}

// writeLine writes a formatted line with proper indentation
func (g *generator) writeLine(format string, args ...interface{}) {
	if format == "" {
		g.buf.WriteString("\n")
		return
	}
	for i := 0; i < g.indent; i++ {
		g.buf.WriteString("\t")
	}
	if len(args) > 0 {
		g.buf.WriteString(fmt.Sprintf(format, args...))
	} else {
		g.buf.WriteString(format)
	}
	g.buf.WriteString("\n")
}

func (g *generator) writeDocs(docs []string) {
	for i, doc := range docs {
		if i > 0 {
			g.writeLine("//")
		}
		for _, line := range strings.Split(doc, "\n") {
			g.writeLine("// %s", line)
		}
	}
}

// BuildWrapperSource emits the Go source of one wrapper. decls supplies the
// other wrappers and the handlers it refers to. With IncludeRuntimeSupport
// the result is a complete, formatted file; otherwise it is a fragment meant
// to be placed in a file that has the runtime support block.
func BuildWrapperSource(w *model.Wrapper, decls *model.Declarations, opts Options) (string, error) {
	g := newGenerator(decls, opts)
	if g.opts.IncludeRuntimeSupport {
		g.writeRuntimeSupport()
	}
	g.writeWrapper(w)
	if !g.opts.IncludeRuntimeSupport {
		return g.buf.String(), nil
	}
	// The trampolines live with the handler source, so no prototypes here.
	src, err := g.file(nil)
	if err != nil {
		return "", fmt.Errorf("wrapper %s: %w", w.TypeName, err)
	}
	return string(src), nil
}

// BuildHandlerSource emits the capability interface and the exported
// trampoline of one callback typedef.
func BuildHandlerSource(h *model.HandlerDecl, decls *model.Declarations, opts Options) string {
	g := newGenerator(decls, opts)
	g.writeHandler(h)
	return g.buf.String()
}

// BuildFile emits one formatted file holding every wrapper that is not
// denied, every free function and every callback.
func BuildFile(decls *model.Declarations, opts Options) ([]byte, error) {
	g := newGenerator(decls, opts)
	if g.opts.IncludeRuntimeSupport {
		g.writeRuntimeSupport()
	}

	for _, w := range decls.SortedWrappers() {
		if g.opts.denied(w.TypeName) {
			g.log.Debug("skipping denied wrapper", zap.String("type", w.TypeName))
			continue
		}
		g.writeWrapper(w)
	}
	g.writeFreeFunctions()
	for _, h := range decls.Handlers {
		g.writeHandler(h)
	}
	return g.file(decls.Handlers)
}

// file puts the file header in front of everything written so far and
// formats the result. The header imports what the body refers to and
// declares the trampolines of handlers to the cgo preamble.
func (g *generator) file(handlers []*model.HandlerDecl) ([]byte, error) {
	body := g.buf.Bytes()
	used, err := g.usedImports(body)
	if err != nil {
		return nil, err
	}
	g.buf = &bytes.Buffer{}
	g.writeFileHeader(used, handlers)
	g.buf.Write(body)
	return format(g.buf.Bytes())
}

// importNames maps the package names generated code refers to onto their
// import paths. Parameters never take these names, see reservedNames.
func (g *generator) importNames() map[string]string {
	return map[string]string{
		"errors":  "errors",
		"runtime": "runtime",
		"atomic":  "sync/atomic",
		"time":    "time",
		"unsafe":  "unsafe",
		"cwrap":   g.opts.RuntimeImport,
	}
}

// usedImports lists the import paths body refers to.
func (g *generator) usedImports(body []byte) ([]string, error) {
	src := append([]byte("package p\n\n"), body...)
	f, err := parser.ParseFile(token.NewFileSet(), "bindings.go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("generated source does not parse: %w", err)
	}

	names := g.importNames()
	used := make(map[string]bool)
	ast.Inspect(f, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok {
			if path, ok := names[id.Name]; ok {
				used[path] = true
			}
		}
		return true
	})

	paths := make([]string, 0, len(used))
	for path := range used {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func format(src []byte) ([]byte, error) {
	out, err := imports.Process("bindings.go", src, &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		return nil, fmt.Errorf("generated source does not parse: %w", err)
	}
	return out, nil
}

// writeFileHeader emits everything up to and including the imports.
func (g *generator) writeFileHeader(imports []string, handlers []*model.HandlerDecl) {
	g.writeLine("// Code generated by cwrap. DO NOT EDIT.")
	g.writeLine("")
	if g.opts.IncludeLintDirectives {
		g.writeLine("//lint:file-ignore ST1003 identifiers mirror the C API")
		g.writeLine("")
	}
	g.writeLine("package %s", g.opts.Package)
	g.writeLine("")

	g.writeLine("/*")
	g.writeLine("#include <stdlib.h>")
	g.writeLine("#include <stdbool.h>")
	for _, line := range g.opts.Preamble {
		g.writeLine("%s", line)
	}
	if len(handlers) > 0 {
		g.writeLine("")
		for _, h := range handlers {
			g.writeLine("%s", externPrototype(h))
		}
	}
	g.writeLine("*/")
	g.writeLine(`import "C"`)
	g.writeLine("")

	if len(imports) == 0 {
		return
	}
	var std, other []string
	for _, path := range imports {
		if path == g.opts.RuntimeImport {
			other = append(other, path)
		} else {
			std = append(std, path)
		}
	}
	g.writeLine("import (")
	g.indent++
	for _, path := range std {
		g.writeLine("%q", path)
	}
	if len(std) > 0 && len(other) > 0 {
		g.writeLine("")
	}
	for _, path := range other {
		g.writeLine("%q", path)
	}
	g.indent--
	g.writeLine(")")
	g.writeLine("")
}

// writeRuntimeSupport emits the declarations every wrapper relies on. It
// must appear once per package.
func (g *generator) writeRuntimeSupport() {
	g.writeLine("// Error is the status-code error returned by the wrappers.")
	g.writeLine("type Error = cwrap.Error")
	g.writeLine("")
	g.writeLine("func goString(p *C.char) string {")
	g.indent++
	g.writeLine("if p == nil {")
	g.indent++
	g.writeLine(`return ""`)
	g.indent--
	g.writeLine("}")
	g.writeLine("return C.GoString(p)")
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}
