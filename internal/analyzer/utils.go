package analyzer

import (
	"fmt"
	"go/ast"
	"go/types"
	"sort"
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
)

// typeString renders a dump type expression after checking that it only
// uses the forms a C declaration can produce: identifiers, C.x selectors,
// unsafe.Pointer, pointers and fixed-size arrays of those.
func (s *State) typeString(expr ast.Expr) (string, error) {
	if err := s.checkTypeExpr(expr); err != nil {
		return "", err
	}
	return types.ExprString(expr), nil
}

func (s *State) checkTypeExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.Ident:
		return nil
	case *ast.SelectorExpr:
		if _, ok := e.X.(*ast.Ident); ok {
			return nil
		}
	case *ast.StarExpr:
		return s.checkTypeExpr(e.X)
	case *ast.ArrayType:
		if e.Len == nil {
			return s.errorf(e, "slice type %s is not a C type", types.ExprString(e))
		}
		if _, ok := e.Len.(*ast.Ellipsis); ok {
			return s.errorf(e, "array length must be explicit in %s", types.ExprString(e))
		}
		return s.checkTypeExpr(e.Elt)
	case nil:
		return &ExtractionError{Msg: "missing type expression"}
	}
	return s.errorf(expr, "unsupported type expression %s", types.ExprString(expr))
}

// argList flattens a parameter list. Unnamed parameters are named argN.
func (s *State) argList(fields *ast.FieldList) ([]model.Arg, error) {
	if fields == nil {
		return nil, nil
	}
	var args []model.Arg
	for _, field := range fields.List {
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return nil, s.errorf(field, "variadic parameters are not supported")
		}
		cType, err := s.typeString(field.Type)
		if err != nil {
			return nil, err
		}
		if len(field.Names) == 0 {
			args = append(args, model.Arg{Name: fmt.Sprintf("arg%d", len(args)), CType: cType})
			continue
		}
		for _, name := range field.Names {
			args = append(args, model.Arg{Name: name.Name, CType: cType})
		}
	}
	return args, nil
}

// resultType returns the single result type of a signature, VoidType when
// there is none.
func (s *State) resultType(results *ast.FieldList) (string, error) {
	if results == nil || len(results.List) == 0 {
		return model.VoidType, nil
	}
	if len(results.List) > 1 || len(results.List[0].Names) > 1 {
		return "", s.errorf(results, "C functions have at most one result")
	}
	return s.typeString(results.List[0].Type)
}

// normalizeRecord maps a struct tag to its record type name:
// "aeron_context_stct" -> "aeron_context_t". The cgo spellings
// "C.struct_x" and "C.x" are accepted as well.
func (s *State) normalizeRecord(name string) string {
	conv := s.conventions()
	name = strings.TrimPrefix(name, "C.struct_")
	name = strings.TrimPrefix(name, "C.")
	if conv.StructSuffix != "" && strings.HasSuffix(name, conv.StructSuffix) {
		return strings.TrimSuffix(name, conv.StructSuffix) + conv.RecordSuffix
	}
	return name
}

// isStructTag reports whether a type refers to a raw struct tag.
func (s *State) isStructTag(name string) bool {
	suffix := s.conventions().StructSuffix
	return suffix != "" && strings.HasSuffix(name, suffix)
}

// mergeDocs adds doc to docs keeping the set sorted and free of duplicates.
func mergeDocs(docs []string, doc string) []string {
	if doc == "" {
		return docs
	}
	for _, d := range docs {
		if d == doc {
			return docs
		}
	}
	docs = append(docs, doc)
	sort.Strings(docs)
	return docs
}
