package assembler

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
	"golang.org/x/tools/go/ast/astutil"
)

// primitives maps cgo scalar types to the Go type exposed by wrappers. long
// is taken as 64 bits, the LP64 layout of every platform cgo targets here.
var primitives = map[string]string{
	"C.char":      "int8",
	"C.schar":     "int8",
	"C.uchar":     "uint8",
	"C.short":     "int16",
	"C.ushort":    "uint16",
	"C.int":       "int32",
	"C.uint":      "uint32",
	"C.long":      "int64",
	"C.ulong":     "uint64",
	"C.longlong":  "int64",
	"C.ulonglong": "uint64",
	"C.float":     "float32",
	"C.double":    "float64",
	"C.size_t":    "uint64",
	"C.int8_t":    "int8",
	"C.uint8_t":   "uint8",
	"C.int16_t":   "int16",
	"C.uint16_t":  "uint16",
	"C.int32_t":   "int32",
	"C.uint32_t":  "uint32",
	"C.int64_t":   "int64",
	"C.uint64_t":  "uint64",
	"C.uintptr_t": "uintptr",
	"C.bool":      "bool",
}

// cNames spells cgo scalar types the way C prototypes need them.
var cNames = map[string]string{
	"C.schar":     "signed char",
	"C.uchar":     "unsigned char",
	"C.ushort":    "unsigned short",
	"C.uint":      "unsigned int",
	"C.ulong":     "unsigned long",
	"C.longlong":  "long long",
	"C.ulonglong": "unsigned long long",
}

type typeKind int

const (
	kindVoid typeKind = iota
	kindStatus
	kindCString
	kindCharArray
	kindWrapper
	kindPrimitive
	kindPrimitivePtr
	kindPassThrough
)

// goType is the result of looking a dump type up in the conversion table.
type goType struct {
	kind typeKind
	// cType is the qualified C type, e.g. "*C.aeron_t".
	cType string
	// name is the type used in the Go API, empty for void.
	name    string
	wrapper *model.Wrapper
}

// resolve looks a dump type up in the conversion table. Status conversion
// only applies to results and field reads, so it is requested explicitly.
func (g *generator) resolve(cType string, status bool) goType {
	conv := g.opts.Conventions
	qualified := qualify(cType)

	switch {
	case cType == model.VoidType:
		return goType{kind: kindVoid}
	case status && g.opts.ConvertStatusCodes && cType == conv.StatusType:
		return goType{kind: kindStatus, cType: qualified, name: "int32"}
	case cType == conv.CStringType:
		return goType{kind: kindCString, cType: qualified, name: "string"}
	case strings.HasPrefix(cType, "[") && strings.HasSuffix(cType, "]C.char"):
		return goType{kind: kindCharArray, cType: qualified, name: "string"}
	}

	if model.IsPointer(cType) && !model.IsDoublePointer(cType) {
		if w := g.decls.WrapperFor(cType); w != nil && !g.opts.denied(w.TypeName) {
			return goType{kind: kindWrapper, cType: qualified, name: "*" + w.ClassName, wrapper: w}
		}
		if prim, ok := primitives[qualify(g.resolveAlias(model.Pointee(cType)))]; ok {
			return goType{kind: kindPrimitivePtr, cType: qualified, name: "*" + prim}
		}
	}
	if prim, ok := primitives[qualify(g.resolveAlias(cType))]; ok {
		return goType{kind: kindPrimitive, cType: qualified, name: prim}
	}
	return goType{kind: kindPassThrough, cType: qualified, name: qualified}
}

// resolveAlias follows plain aliases to their final target.
func (g *generator) resolveAlias(name string) string {
	for i := 0; i < 16; i++ {
		target, ok := g.decls.Aliases[name]
		if !ok {
			break
		}
		name = target
	}
	return name
}

// toGo converts a C value expression into the Go API type.
func (t goType) toGo(expr string) string {
	switch t.kind {
	case kindStatus:
		return "cwrap.CheckStatus(int32(" + expr + "))"
	case kindCString:
		return "goString(" + expr + ")"
	case kindCharArray:
		return "goString(&" + expr + "[0])"
	case kindWrapper:
		return t.wrapper.ClassName + "FromRaw(" + expr + ")"
	case kindPrimitive:
		return t.name + "(" + expr + ")"
	case kindPrimitivePtr:
		return "(" + t.name + ")(unsafe.Pointer(" + expr + "))"
	}
	return expr
}

// toC converts a Go API value expression into the C type.
func (t goType) toC(expr string) string {
	switch t.kind {
	case kindWrapper:
		return expr + ".Raw()"
	case kindPrimitive, kindStatus:
		return t.cType + "(" + expr + ")"
	case kindPrimitivePtr:
		return "(" + t.cType + ")(unsafe.Pointer(" + expr + "))"
	}
	return expr
}

// qualify rewrites the bare C identifiers of a dump type into cgo
// references: "*aeron_t" -> "*C.aeron_t", "[8]C.char" stays as is.
func qualify(cType string) string {
	if cType == "" || cType == model.VoidType {
		return cType
	}
	expr, err := parser.ParseExpr(cType)
	if err != nil {
		return cType
	}
	out := astutil.Apply(expr, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.SelectorExpr:
			return false
		case *ast.Ident:
			if _, builtin := types.Universe.Lookup(n.Name).(*types.TypeName); builtin {
				return false
			}
			c.Replace(&ast.SelectorExpr{X: ast.NewIdent("C"), Sel: ast.NewIdent(n.Name)})
			return false
		}
		return true
	}, nil)
	return types.ExprString(out.(ast.Expr))
}

// cPrototype spells a dump type in C for extern declarations.
func cPrototype(cType string) string {
	switch {
	case cType == model.VoidType:
		return "void"
	case cType == "unsafe.Pointer":
		return "void*"
	case model.IsPointer(cType):
		return cPrototype(cType[1:]) + "*"
	case strings.HasPrefix(cType, "["):
		if i := strings.Index(cType, "]"); i > 0 {
			return cPrototype(cType[i+1:]) + "*"
		}
	}
	if name, ok := cNames[cType]; ok {
		return name
	}
	return strings.TrimPrefix(cType, "C.")
}

// reservedNames are identifiers generated code uses itself, so parameters
// must not shadow them.
var reservedNames = map[string]bool{
	"C": true, "unsafe": true, "cwrap": true, "errors": true, "time": true, "atomic": true, "runtime": true,
	"goString": true, "w": true, "p": true, "res": true, "result": true, "resource": true,
	"err": true, "ctx": true, "impl": true, "ok": true, "zero": true, "timeout": true, "v": true,
}

// paramName turns a C parameter name into a Go parameter name that does not
// clash with keywords, predeclared identifiers or generated locals.
func paramName(name string) string {
	n := model.GoParamName(name)
	if n == "" {
		n = "arg"
	}
	for token.IsKeyword(n) || reservedNames[n] || types.Universe.Lookup(n) != nil {
		n += "Arg"
	}
	return n
}

// rawParamName keeps a C parameter name for raw signatures, renaming only
// clashes.
func rawParamName(name string) string {
	for token.IsKeyword(name) || reservedNames[name] || types.Universe.Lookup(name) != nil {
		name += "_"
	}
	return name
}
