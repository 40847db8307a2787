package analyzer

import (
	"go/ast"
	"go/token"

	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// discoverUniverse is Phase 1 of the analysis. It scans every file and
// records all type and function declarations in source order, checking each
// type expression on the way.
func (s *State) discoverUniverse() error {
	s.log.Debug("Phase 1: Discovering declarations...")

	for _, file := range s.files {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if err := s.registerFunction(d); err != nil {
					return err
				}
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					continue
				}
				for _, spec := range d.Specs {
					ts := spec.(*ast.TypeSpec)
					doc := ts.Doc
					if doc == nil && len(d.Specs) == 1 {
						doc = d.Doc
					}
					if err := s.registerType(ts, doc); err != nil {
						return err
					}
				}
			}
		}
	}

	u := s.Universe
	s.log.Debug("discovered declarations",
		zap.Int("records", len(u.Records)),
		zap.Int("typedefs", len(u.Typedefs)),
		zap.Int("aliases", len(u.Aliases)),
		zap.Int("functions", len(u.Functions)),
	)
	return nil
}

func (s *State) registerType(ts *ast.TypeSpec, doc *ast.CommentGroup) error {
	if ts.TypeParams != nil {
		return s.errorf(ts, "generic type %s is not a C type", ts.Name.Name)
	}
	name := ts.Name.Name

	switch t := ts.Type.(type) {
	case *ast.StructType:
		rec := &recordDecl{Name: name, Doc: parseDocComment(doc)}
		for _, field := range t.Fields.List {
			if len(field.Names) == 0 {
				return s.errorf(field, "embedded field in %s", name)
			}
			cType, err := s.typeString(field.Type)
			if err != nil {
				return err
			}
			for _, n := range field.Names {
				rec.Fields = append(rec.Fields, model.Field{Name: n.Name, CType: cType})
			}
		}
		s.Universe.Records = append(s.Universe.Records, rec)

	case *ast.FuncType:
		args, err := s.argList(t.Params)
		if err != nil {
			return err
		}
		ret, err := s.resultType(t.Results)
		if err != nil {
			return err
		}
		s.Universe.Typedefs = append(s.Universe.Typedefs, &typedefDecl{
			Name:       name,
			Args:       args,
			ReturnType: ret,
			Doc:        parseDocComment(doc),
		})

	default:
		target, err := s.typeString(ts.Type)
		if err != nil {
			return err
		}
		s.Universe.Aliases = append(s.Universe.Aliases, &aliasDecl{
			Name:   name,
			Target: target,
			Doc:    parseDocComment(doc),
		})
	}
	return nil
}

// registerFunction records an extern declaration. Functions with a body or a
// receiver are helpers of the dump itself and are skipped.
func (s *State) registerFunction(fn *ast.FuncDecl) error {
	if fn.Body != nil || fn.Recv != nil {
		s.log.Debug("skipping non-extern function", zap.String("name", fn.Name.Name))
		return nil
	}
	if fn.Type.TypeParams != nil {
		return s.errorf(fn, "generic function %s is not a C function", fn.Name.Name)
	}
	args, err := s.argList(fn.Type.Params)
	if err != nil {
		return err
	}
	ret, err := s.resultType(fn.Type.Results)
	if err != nil {
		return err
	}
	s.Universe.Functions = append(s.Universe.Functions, &funcDecl{
		Name:       fn.Name.Name,
		Args:       args,
		ReturnType: ret,
		Doc:        parseDocComment(fn.Doc),
	})
	return nil
}
