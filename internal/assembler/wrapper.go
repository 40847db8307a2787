package assembler

import (
	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// glueNames are the methods every wrapper gets.
var glueNames = []string{"Raw", "Close", "IsClosed", "Resource", "String"}

// wrapperPlan is everything decided about a wrapper before emission.
type wrapperPlan struct {
	w *model.Wrapper
	// raw is the qualified C type of the handle, e.g. "C.aeron_t".
	raw   string
	ctors []constructor
	// cleanup is the close function adopted handles are released with.
	cleanup *model.Method
	probe   *model.Method
	// async is set when w is an asynchronous operation handle, targets lists
	// the async handles that produce w.
	async   *asyncPlan
	targets []*asyncPlan

	// skip holds functions that are not emitted as methods.
	skip  map[string]bool
	names map[string]bool
}

func (g *generator) planWrapper(w *model.Wrapper) *wrapperPlan {
	p := &wrapperPlan{
		w:     w,
		raw:   qualify(w.TypeName),
		skip:  make(map[string]bool),
		names: make(map[string]bool),
	}
	for _, name := range glueNames {
		p.names[name] = true
	}

	p.async = g.planAsync(w, true)
	if p.async != nil {
		p.skip[p.async.initiator.FnName] = true
		p.names["Poll"] = true
		p.names["PollBlocking"] = true
	}
	for _, other := range g.decls.SortedWrappers() {
		if other == w || g.opts.denied(other.TypeName) {
			continue
		}
		if a := g.planAsync(other, false); a != nil && a.target == w {
			p.targets = append(p.targets, a)
			p.skip[a.poll.FnName] = true
		}
	}

	p.probe = g.closedProbe(w)
	if p.probe != nil {
		p.skip[p.probe.FnName] = true
	}
	g.planConstructors(p)
	if p.cleanup == nil && len(p.targets) > 0 {
		p.cleanup = p.targets[0].targetClose
		p.skip[p.cleanup.FnName] = true
	}
	return p
}

// closedProbe finds "<base>_is_closed(self) bool".
func (g *generator) closedProbe(w *model.Wrapper) *model.Method {
	m := w.Method(w.Base(g.opts.Conventions.RecordSuffix) + "_is_closed")
	if m == nil || m.ReturnType != "C.bool" || len(m.Arguments) != 1 {
		return nil
	}
	arg := m.Arguments[0].CType
	if model.IsDoublePointer(arg) || !model.IsPointer(arg) || model.Pointee(arg) != w.TypeName {
		return nil
	}
	return m
}

// claim reserves a Go method name on the wrapper. It returns false when the
// name is taken.
func (p *wrapperPlan) claim(name string) bool {
	if name == "" || p.names[name] {
		return false
	}
	p.names[name] = true
	return true
}

func (g *generator) writeWrapper(w *model.Wrapper) {
	p := g.planWrapper(w)
	class := w.ClassName

	g.writeLine("// %s wraps %s.", class, w.TypeName)
	if len(w.Docs) > 0 {
		g.writeLine("//")
		g.writeDocs(w.Docs)
	}
	g.writeLine("type %s struct {", class)
	g.indent++
	g.writeLine("res *cwrap.ManagedResource[*%s]", p.raw)
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeConstructors(p)
	for _, a := range p.targets {
		g.writeAsyncTarget(a)
	}
	if p.async != nil {
		g.writeAsync(p, p.async)
	}
	g.writeGlue(p)

	// Methods are named first so that field accessors yield to them.
	methods := g.nameMethods(p)
	g.writeFields(p)
	for _, m := range methods {
		g.writeMethod(p, m.method, m.name)
	}
}

// probeOption renders the closed-probe option of an Acquire or Own call.
func probeOption(raw string, probe *model.Method) string {
	if probe == nil {
		return ""
	}
	return "cwrap.WithClosedProbe(" + probeFunc(raw, probe) + ")"
}

func probeFunc(raw string, probe *model.Method) string {
	if probe == nil {
		return "nil"
	}
	return "func(p *" + raw + ") bool { return bool(C." + probe.FnName + "(p)) }"
}

func (g *generator) writeGlue(p *wrapperPlan) {
	class := p.w.ClassName

	g.writeLine("// Raw returns the underlying handle, nil for a nil or closed wrapper.")
	g.writeLine("func (w *%s) Raw() *%s {", class, p.raw)
	g.indent++
	g.writeLine("if w == nil {")
	g.indent++
	g.writeLine("return nil")
	g.indent--
	g.writeLine("}")
	g.writeLine("return w.res.Get()")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("// %sFromRaw borrows a handle owned elsewhere. Closing the result never", class)
	g.writeLine("// releases it.")
	g.writeLine("func %sFromRaw(p *%s) *%s {", class, p.raw, class)
	g.indent++
	g.writeLine("if p == nil {")
	g.indent++
	g.writeLine("return nil")
	g.indent--
	g.writeLine("}")
	g.writeLine("return &%s{res: cwrap.Borrow(p, %s)}", class, probeFunc(p.raw, p.probe))
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	cleanup := "nil"
	if p.cleanup != nil {
		g.writeLine("// %sFromRawOwned takes ownership of a handle, releasing it with %s.", class, p.cleanup.FnName)
		cleanup = cleanupFunc(p.raw, p.cleanup, nil)
	} else {
		g.writeLine("// %sFromRawOwned takes ownership of a handle. No close function is known,", class)
		g.writeLine("// so releasing it only drops the reference.")
	}
	g.writeLine("func %sFromRawOwned(p *%s) *%s {", class, p.raw, class)
	g.indent++
	g.writeLine("if p == nil {")
	g.indent++
	g.writeLine("return nil")
	g.indent--
	g.writeLine("}")
	call := "cwrap.Own(p, " + cleanup
	if opt := probeOption(p.raw, p.probe); opt != "" {
		call += ", " + opt
	}
	g.writeLine("return &%s{res: %s)}", class, call)
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("// Resource exposes the managed handle.")
	g.writeLine("func (w *%s) Resource() *cwrap.ManagedResource[*%s] {", class, p.raw)
	g.indent++
	g.writeLine("return w.res")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("// Close releases the handle. Later calls are no-ops.")
	g.writeLine("func (w *%s) Close() error {", class)
	g.indent++
	g.writeLine("if w == nil {")
	g.indent++
	g.writeLine("return nil")
	g.indent--
	g.writeLine("}")
	g.writeLine("return w.res.Release()")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("func (w *%s) IsClosed() bool {", class)
	g.indent++
	g.writeLine("return w == nil || w.res.IsClosed()")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("func (w *%s) String() string {", class)
	g.indent++
	g.writeLine("if w == nil {")
	g.indent++
	g.writeLine(`return "%s(nil)"`, class)
	g.indent--
	g.writeLine("}")
	g.writeLine("return w.res.String()")
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}

// writeFields emits a read accessor per field that no method shadows.
func (g *generator) writeFields(p *wrapperPlan) {
	shadowed := make(map[string]bool)
	for _, m := range p.w.Methods {
		shadowed[m.StructMethodName] = true
	}

	for _, f := range p.w.Fields {
		if shadowed[f.Name] {
			continue
		}
		name := model.GoName(f.Name)
		if !p.claim(name) {
			name += "Field"
			if !p.claim(name) {
				g.log.Debug("no free name for field accessor", zap.String("type", p.w.TypeName), zap.String("field", f.Name))
				continue
			}
		}

		t := g.resolve(f.CType, true)
		g.writeLine("func (w *%s) %s() %s {", p.w.ClassName, name, resultType(t))
		g.indent++
		g.writeResult("w.Raw()."+f.Name, []string{"w"}, t)
		g.indent--
		g.writeLine("}")
		g.writeLine("")
	}
}
