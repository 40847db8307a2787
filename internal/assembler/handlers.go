package assembler

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
)

// handlerInterface is the Go interface callbacks of h are implemented with.
func (g *generator) handlerInterface(h *model.HandlerDecl) string {
	return model.ClassName(h.TypeName, g.opts.Conventions.RecordSuffix) + "Handler"
}

func (g *generator) handlerMethod(h *model.HandlerDecl) string {
	return "Handle" + model.ClassName(h.TypeName, g.opts.Conventions.RecordSuffix)
}

// callbackName is the C symbol of the exported trampoline of h.
func callbackName(h *model.HandlerDecl) string {
	return strings.TrimPrefix(h.TypeName, "C.") + "_callback"
}

// externPrototype declares the trampoline of h to the cgo preamble so it can
// be installed as a function pointer.
func externPrototype(h *model.HandlerDecl) string {
	params := make([]string, len(h.Args))
	for i, a := range h.Args {
		params[i] = cPrototype(a.CType)
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return "extern " + cPrototype(h.ReturnType) + " " + callbackName(h) + "(" + strings.Join(params, ", ") + ");"
}

// handlerResult is the Go result of a callback: scalars are converted, other
// results are handed back to C as is.
func (g *generator) handlerResult(h *model.HandlerDecl) goType {
	t := g.resolve(h.ReturnType, false)
	switch t.kind {
	case kindVoid, kindPrimitive:
		return t
	}
	return goType{kind: kindPassThrough, cType: t.cType, name: qualify(h.ReturnType)}
}

// writeHandler emits the capability interface of h and the exported
// trampoline that dispatches to it through the clientd registration.
func (g *generator) writeHandler(h *model.HandlerDecl) {
	iface := g.handlerInterface(h)
	method := g.handlerMethod(h)
	ret := g.handlerResult(h)

	params := make([]string, 0, len(h.Args))
	for _, a := range h.Args[1:] {
		t := g.resolve(a.CType, false)
		params = append(params, paramName(a.Name)+" "+t.name)
	}

	g.writeLine("// %s implements %s callbacks.", iface, h.TypeName)
	if len(h.Docs) > 0 {
		g.writeLine("//")
		g.writeDocs(h.Docs)
	}
	g.writeLine("type %s interface {", iface)
	g.indent++
	g.writeLine("%s%s", method, signature(params, ret.name))
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	raw := make([]string, len(h.Args))
	names := make([]string, len(h.Args))
	for i, a := range h.Args {
		names[i] = rawParamName(a.Name)
		raw[i] = names[i] + " " + qualify(a.CType)
	}
	rawResult := ""
	if ret.kind != kindVoid {
		rawResult = qualify(h.ReturnType)
	}

	callArgs := make([]string, 0, len(h.Args))
	for i, a := range h.Args[1:] {
		callArgs = append(callArgs, g.resolve(a.CType, false).toGo(names[i+1]))
	}
	invoke := "impl." + method + "(" + strings.Join(callArgs, ", ") + ")"

	g.writeLine("//export %s", callbackName(h))
	g.writeLine("func %s%s {", callbackName(h), signature(raw, rawResult))
	g.indent++
	g.writeLine("impl, ok := cwrap.Lookup[%s](%s)", iface, names[0])
	g.writeLine("if !ok {")
	g.indent++
	if ret.kind == kindVoid {
		g.writeLine("return")
	} else {
		g.writeLine("var zero %s", rawResult)
		g.writeLine("return zero")
	}
	g.indent--
	g.writeLine("}")
	if ret.kind == kindVoid {
		g.writeLine("%s", invoke)
	} else {
		g.writeLine("return %s", ret.toC(invoke))
	}
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}
