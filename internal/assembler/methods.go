package assembler

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// call is a lowered argument list: the Go parameters, the statements that
// prepare the C values and the C call arguments.
type call struct {
	params []string
	// names are the Go parameter names, in params order.
	names []string
	pre   []string
	args  []string
	// deps are wrapper parameters a constructed handle must keep alive.
	deps []string
	// keep are the wrappers whose handles the call uses. They must stay
	// reachable until it returns, or their cleanup could close the handle
	// mid-call.
	keep []string
	// byArg maps an argument index to its C expression when that expression
	// stays valid after the call returns.
	byArg map[int]string
}

func (c *call) param(name, typ string) {
	c.params = append(c.params, name+" "+typ)
	c.names = append(c.names, name)
}

// lowerArgs converts C arguments into Go parameters. When self names a
// wrapper type, the first argument pointing at it is bound to the receiver.
func (g *generator) lowerArgs(args []model.Arg, self string) call {
	c := call{byArg: make(map[int]string)}
	selfBound := self == ""

	for i := 0; i < len(args); i++ {
		a := args[i]

		if !selfBound && model.IsPointer(a.CType) && !model.IsDoublePointer(a.CType) && model.Pointee(a.CType) == self {
			selfBound = true
			c.args = append(c.args, "w.Raw()")
			c.keep = append(c.keep, "w")
			continue
		}

		if i+1 < len(args) && a.Processing.Kind != model.Default && len(a.Processing.Pair) == 2 && a.Processing.Pair[0] == a.Name {
			switch a.Processing.Kind {
			case model.Handler:
				if h := g.decls.Handler(a.CType); h != nil {
					g.lowerHandler(&c, a, h)
					i++
					continue
				}
			case model.Buffer:
				g.lowerBuffer(&c, a, args[i+1])
				i++
				continue
			}
		}

		name := paramName(a.Name)
		t := g.resolve(a.CType, false)
		switch t.kind {
		case kindCString:
			c.param(name, "string")
			c.pre = append(c.pre,
				name+"C := C.CString("+name+")",
				"defer C.free(unsafe.Pointer("+name+"C))",
			)
			c.args = append(c.args, name+"C")
		case kindCharArray:
			c.param(name, t.cType)
			c.args = append(c.args, name)
			c.byArg[i] = name
		default:
			c.param(name, t.name)
			expr := t.toC(name)
			c.args = append(c.args, expr)
			c.byArg[i] = expr
			if t.kind == kindWrapper {
				c.deps = append(c.deps, name)
				c.keep = append(c.keep, name)
			}
		}
	}
	return c
}

// lowerHandler binds a (handler, clientd) pair to a registered Go
// implementation and the exported trampoline of its callback type.
func (g *generator) lowerHandler(c *call, a model.Arg, h *model.HandlerDecl) {
	name := paramName(a.Name)
	fn := name + "Fn"
	cType := qualify(a.CType)

	c.param(name, "*cwrap.Handler["+g.handlerInterface(h)+"]")
	c.pre = append(c.pre,
		"var "+fn+" "+cType,
		"if "+name+" != nil {",
		"\t"+fn+" = "+cType+"(C."+callbackName(h)+")",
		"}",
	)
	c.args = append(c.args, fn, name+".ClientData()")
}

// lowerBuffer passes a byte slice as a (pointer, length) pair.
func (g *generator) lowerBuffer(c *call, ptr, length model.Arg) {
	name := paramName(ptr.Name)
	p := name + "Ptr"
	cType := qualify(ptr.CType)

	c.param(name, "[]byte")
	c.pre = append(c.pre,
		"var "+p+" "+cType,
		"if len("+name+") > 0 {",
		"\t"+p+" = ("+cType+")(unsafe.Pointer(&"+name+"[0]))",
		"}",
	)
	c.args = append(c.args, p, qualify(length.CType)+"(len("+name+"))")
}

type namedMethod struct {
	method *model.Method
	name   string
}

// nameMethods picks the Go name of every method emitted on p. Initializers
// are only reachable through constructors.
func (g *generator) nameMethods(p *wrapperPlan) []namedMethod {
	var out []namedMethod
	for _, m := range p.w.Methods {
		if p.skip[m.FnName] || m.HasDoublePointerArg() {
			continue
		}
		name := model.GoName(m.StructMethodName)
		if !p.claim(name) {
			name = model.GoName(m.FnName)
			if !p.claim(name) {
				g.log.Warn("method name is taken, skipping",
					zap.String("type", p.w.TypeName),
					zap.String("function", m.FnName),
				)
				continue
			}
		}
		out = append(out, namedMethod{method: m, name: name})
	}
	return out
}

// signature renders a parameter list followed by an optional result.
func signature(params []string, result string) string {
	if result == "" {
		return "(" + strings.Join(params, ", ") + ")"
	}
	return "(" + strings.Join(params, ", ") + ") " + result
}

// resultType is the Go result list of a function returning t.
func resultType(t goType) string {
	switch t.kind {
	case kindVoid:
		return ""
	case kindStatus:
		return "(int32, error)"
	}
	return t.name
}

// writeKeepAlive keeps the named wrappers reachable up to this point.
func (g *generator) writeKeepAlive(names []string) {
	for _, name := range names {
		g.writeLine("runtime.KeepAlive(%s)", name)
	}
}

// writeBody emits the statements of a wrapped call to fn. Results reading C
// memory are converted before the wrappers in keep are released.
func (g *generator) writeBody(fn string, c call, ret goType) {
	for _, line := range c.pre {
		g.writeLine("%s", line)
	}
	g.writeResult("C."+fn+"("+strings.Join(c.args, ", ")+")", c.keep, ret)
}

// writeResult returns expr converted to ret, keeping the wrappers in keep
// alive until expr has been evaluated.
func (g *generator) writeResult(expr string, keep []string, ret goType) {
	switch {
	case ret.kind == kindVoid:
		g.writeLine("%s", expr)
		g.writeKeepAlive(keep)
	case len(keep) == 0:
		g.writeLine("return %s", ret.toGo(expr))
	case ret.kind == kindStatus:
		g.writeLine("result := %s", expr)
		g.writeKeepAlive(keep)
		g.writeLine("return %s", ret.toGo("result"))
	default:
		g.writeLine("result := %s", ret.toGo(expr))
		g.writeKeepAlive(keep)
		g.writeLine("return result")
	}
}

func (g *generator) writeMethod(p *wrapperPlan, m *model.Method, name string) {
	class := p.w.ClassName
	c := g.lowerArgs(m.Arguments, p.w.TypeName)
	ret := g.resolve(m.ReturnType, true)

	g.writeDocs(m.Docs)
	g.writeLine("func (w *%s) %s%s {", class, name, signature(c.params, resultType(ret)))
	g.indent++
	g.writeBody(m.FnName, c, ret)
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	// Counter addresses are also exposed as atomics over the C memory.
	if m.ReturnType == "*C.int64_t" && strings.HasSuffix(m.StructMethodName, "addr") && len(c.params) == 0 && len(c.pre) == 0 {
		atomicName := name + "Atomic"
		if !p.claim(atomicName) {
			return
		}
		g.writeLine("// %s returns the value behind %s as an atomic.", atomicName, m.FnName)
		g.writeLine("func (w *%s) %s() *atomic.Int64 {", class, atomicName)
		g.indent++
		expr := "cwrap.AtomicInt64At(unsafe.Pointer(C." + m.FnName + "(" + strings.Join(c.args, ", ") + ")))"
		g.writeResult(expr, c.keep, goType{kind: kindPassThrough})
		g.indent--
		g.writeLine("}")
		g.writeLine("")
	}
}

// packageNames are the package-level identifiers of the generated file that
// free functions must not take.
func (g *generator) packageNames() map[string]bool {
	names := map[string]bool{"Error": true, "goString": true}
	for _, w := range g.decls.Wrappers {
		names[w.ClassName] = true
		names[w.ClassName+"FromRaw"] = true
		names[w.ClassName+"FromRawOwned"] = true
	}
	for _, h := range g.decls.Handlers {
		names[g.handlerInterface(h)] = true
		names[callbackName(h)] = true
	}
	return names
}

// writeFreeFunctions emits the functions no wrapper owns as package-level
// functions.
func (g *generator) writeFreeFunctions() {
	taken := g.packageNames()
	for _, m := range g.decls.Methods {
		name := model.GoName(m.FnName)
		if taken[name] || strings.HasPrefix(name, "New") {
			g.log.Warn("free function name is taken, skipping", zap.String("function", m.FnName))
			continue
		}
		taken[name] = true

		c := g.lowerArgs(m.Arguments, "")
		ret := g.resolve(m.ReturnType, true)
		g.writeDocs(m.Docs)
		g.writeLine("func %s%s {", name, signature(c.params, resultType(ret)))
		g.indent++
		g.writeBody(m.FnName, c, ret)
		g.indent--
		g.writeLine("}")
		g.writeLine("")
	}
}
