package assembler

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// constructor pairs an initializer with the close function its handles are
// released with.
type constructor struct {
	name  string
	init  *model.Method
	close *model.Method
}

// closeName derives the close function of an initializer. The configured
// close pairs win over the textual rules.
func (g *generator) closeName(initName string) (string, bool) {
	if name, ok := g.opts.ClosePairs[initName]; ok {
		return name, true
	}
	name := strings.ReplaceAll(initName, "_init", "_close")
	name = strings.ReplaceAll(name, "_create", "_destroy")
	name = strings.ReplaceAll(name, "_add_", "_remove_")
	return name, name != initName
}

// findClose resolves the close function of w named closeName. An exact match
// is preferred; otherwise functions whose name is contained in closeName are
// considered. Only functions releasing w and returning the status type
// qualify, and the match must be unique.
func (g *generator) findClose(w *model.Wrapper, initName, closeName string) (*model.Method, []string) {
	var candidates []*model.Method
	if m := w.Method(closeName); m != nil {
		candidates = append(candidates, m)
	} else {
		for _, m := range w.Methods {
			if m.FnName != initName && strings.Contains(closeName, m.FnName) {
				candidates = append(candidates, m)
			}
		}
	}

	var matches []*model.Method
	var names []string
	for _, m := range candidates {
		if m.ReturnType != g.opts.Conventions.StatusType || len(m.Arguments) == 0 {
			continue
		}
		if model.Pointee(m.Arguments[0].CType) != w.TypeName || !model.IsPointer(m.Arguments[0].CType) {
			continue
		}
		matches = append(matches, m)
		names = append(names, m.FnName)
	}
	if len(matches) != 1 {
		return nil, names
	}
	return matches[0], names
}

// planConstructors pairs every initializer of p with its close function.
// Initializers without a unique pair get no constructor.
func (g *generator) planConstructors(p *wrapperPlan) {
	w := p.w
	names := make(map[string]bool)

	for _, m := range w.Methods {
		if p.skip[m.FnName] || len(m.Arguments) == 0 {
			continue
		}
		first := m.Arguments[0].CType
		if !model.IsDoublePointer(first) || model.IsDoublePointer(first[1:]) || model.Pointee(first) != w.TypeName {
			continue
		}

		closeName, ok := g.closeName(m.FnName)
		if !ok {
			g.log.Debug("initializer has no close counterpart", zap.String("function", m.FnName))
			continue
		}
		closeFn, candidates := g.findClose(w, m.FnName, closeName)
		if closeFn == nil {
			g.log.Warn("no unique close function, skipping constructor",
				zap.String("init", m.FnName),
				zap.String("close", closeName),
				zap.Strings("candidates", candidates),
			)
			continue
		}

		suffix := strings.Replace(m.StructMethodName, "init", "", 1)
		suffix = strings.Replace(suffix, "create", "", 1)
		name := "New" + w.ClassName + model.GoName(suffix)
		if names[name] {
			name = "New" + model.GoName(m.FnName)
		}
		names[name] = true

		p.ctors = append(p.ctors, constructor{name: name, init: m, close: closeFn})
		p.skip[closeFn.FnName] = true
		if p.cleanup == nil {
			p.cleanup = closeFn
		}
	}
}

// cleanupFunc renders the cleanup closure calling closeFn. Extra close
// arguments take the value of the initializer argument of the same name when
// there is one, the zero value otherwise.
func cleanupFunc(raw string, closeFn *model.Method, initArgs map[string]string) string {
	args := make([]string, len(closeFn.Arguments))
	for i, a := range closeFn.Arguments {
		switch {
		case i == 0 && model.IsDoublePointer(a.CType):
			args[i] = "p"
		case i == 0:
			args[i] = "*p"
		case initArgs[a.Name] != "":
			args[i] = initArgs[a.Name]
		default:
			args[i] = zeroValue(a.CType)
		}
	}
	return "func(p **" + raw + ") int32 { return int32(C." + closeFn.FnName + "(" + strings.Join(args, ", ") + ")) }"
}

func zeroValue(cType string) string {
	if model.IsPointer(cType) || cType == "unsafe.Pointer" {
		return "nil"
	}
	return "*new(" + qualify(cType) + ")"
}

func (g *generator) writeConstructors(p *wrapperPlan) {
	for _, c := range p.ctors {
		g.writeConstructor(p, c)
	}
	if len(p.ctors) > 0 || p.w.Opaque {
		return
	}
	g.writeZeroed(p)
	if g.isPlainData(p.w) {
		g.writePlainData(p)
	}
}

func (g *generator) writeConstructor(p *wrapperPlan, c constructor) {
	class := p.w.ClassName
	lowered := g.lowerArgs(c.init.Arguments[1:], "")

	initArgs := make(map[string]string)
	for i, a := range c.init.Arguments[1:] {
		if expr, ok := lowered.byArg[i]; ok {
			initArgs[a.Name] = expr
		}
	}

	g.writeDocs(c.init.Docs)
	if len(c.init.Docs) > 0 {
		g.writeLine("//")
	}
	g.writeLine("// %s calls %s. The handle is released with %s.", c.name, c.init.FnName, c.close.FnName)
	g.writeLine("func %s(%s) (*%s, error) {", c.name, strings.Join(lowered.params, ", "), class)
	g.indent++
	for _, line := range lowered.pre {
		g.writeLine("%s", line)
	}
	g.writeLine("res, err := cwrap.Acquire(")
	g.indent++
	g.writeLine("func(p **%s) int32 {", p.raw)
	g.indent++
	g.writeLine("return int32(C.%s(%s))", c.init.FnName, strings.Join(append([]string{"p"}, lowered.args...), ", "))
	g.indent--
	g.writeLine("},")
	g.writeLine("%s,", cleanupFunc(p.raw, c.close, initArgs))
	if opt := probeOption(p.raw, p.probe); opt != "" {
		g.writeLine("%s,", opt)
	}
	g.indent--
	g.writeLine(")")
	g.writeKeepAlive(lowered.keep)
	g.writeAcquireTail(class, lowered.deps)
}

// writeAcquireTail finishes a constructor body after the Acquire call.
func (g *generator) writeAcquireTail(class string, deps []string) {
	g.writeLine("if err != nil {")
	g.indent++
	g.writeLine("return nil, err")
	g.indent--
	g.writeLine("}")
	for _, dep := range deps {
		g.writeLine("res.RetainDependency(%s)", dep)
	}
	g.writeLine("return &%s{res: res}, nil", class)
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}

// writeZeroed emits the fallback constructor of records without a C-side
// lifecycle: a zeroed C allocation freed on release.
func (g *generator) writeZeroed(p *wrapperPlan) {
	class := p.w.ClassName
	g.writeLine("// New%sZeroed allocates a zeroed %s, freed on Close.", class, p.w.TypeName)
	g.writeLine("func New%sZeroed() (*%s, error) {", class, class)
	g.indent++
	g.writeLine("res, err := cwrap.Acquire(")
	g.indent++
	g.writeLine("func(p **%s) int32 {", p.raw)
	g.indent++
	g.writeLine("*p = (*%s)(C.calloc(1, C.size_t(unsafe.Sizeof(%s{}))))", p.raw, p.raw)
	g.writeLine("return 0")
	g.indent--
	g.writeLine("},")
	g.writeLine("nil,")
	g.writeLine("cwrap.WithStructCleanup(func(p *%s) { C.free(unsafe.Pointer(p)) }),", p.raw)
	g.indent--
	g.writeLine(")")
	g.writeAcquireTail(class, nil)
}

// isPlainData reports whether w is a value holder: every field public, no
// initializer and at least one field.
func (g *generator) isPlainData(w *model.Wrapper) bool {
	if w.Private || len(w.Fields) == 0 {
		return false
	}
	for _, m := range w.Methods {
		if m.HasDoublePointerArg() {
			return false
		}
	}
	return true
}

// settable reports whether a field can be assigned from its Go type.
func settable(t goType) bool {
	switch t.kind {
	case kindPrimitive, kindPrimitivePtr, kindWrapper, kindPassThrough:
		return true
	}
	return false
}

// writePlainData emits a field-driven constructor and per-field setters.
func (g *generator) writePlainData(p *wrapperPlan) {
	class := p.w.ClassName

	type setter struct {
		field model.Field
		name  string
		param string
		t     goType
	}
	var setters []setter
	for _, f := range p.w.Fields {
		t := g.resolve(f.CType, false)
		if !settable(t) {
			continue
		}
		name := "Set" + model.GoName(f.Name)
		if !p.claim(name) {
			continue
		}
		setters = append(setters, setter{field: f, name: name, param: paramName(f.Name), t: t})
	}
	if len(setters) == 0 {
		return
	}

	params := make([]string, len(setters))
	for i, s := range setters {
		params[i] = s.param + " " + s.t.name
	}
	g.writeLine("// New%s allocates a %s and sets its fields.", class, p.w.TypeName)
	g.writeLine("func New%s(%s) (*%s, error) {", class, strings.Join(params, ", "), class)
	g.indent++
	g.writeLine("w, err := New%sZeroed()", class)
	g.writeLine("if err != nil {")
	g.indent++
	g.writeLine("return nil, err")
	g.indent--
	g.writeLine("}")
	for _, s := range setters {
		g.writeLine("w.%s(%s)", s.name, s.param)
	}
	g.writeLine("return w, nil")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	for _, s := range setters {
		g.writeLine("func (w *%s) %s(v %s) {", class, s.name, s.t.name)
		g.indent++
		g.writeLine("w.Raw().%s = %s", s.field.Name, s.t.toC("v"))
		g.writeLine("runtime.KeepAlive(w)")
		g.indent--
		g.writeLine("}")
		g.writeLine("")
	}
}
