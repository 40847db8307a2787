package analyzer

import (
	"go/ast"
	"go/token"

	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// recordDecl is a struct declaration found in the dump.
type recordDecl struct {
	Name   string
	Fields []model.Field
	Doc    string
}

// typedefDecl is a function type declaration found in the dump.
type typedefDecl struct {
	Name       string
	Args       []model.Arg
	ReturnType string
	Doc        string
}

// aliasDecl is any other type declaration: `type a_t = b` or `type a_t b`.
type aliasDecl struct {
	Name   string
	Target string
	Doc    string
}

// funcDecl is a body-less extern function declaration.
type funcDecl struct {
	Name       string
	Args       []model.Arg
	ReturnType string
	Doc        string
}

// Universe contains every relevant top-level declaration of the dump, in
// source order. It is filled in Phase 1 and only read afterwards.
type Universe struct {
	Records   []*recordDecl
	Typedefs  []*typedefDecl
	Aliases   []*aliasDecl
	Functions []*funcDecl
}

// State is the central data structure that holds all information gathered
// during the multi-phase analysis of one dump.
type State struct {
	fset  *token.FileSet
	files []*ast.File

	Config   *config.Config
	Universe *Universe

	// Decls is the model under construction.
	Decls *model.Declarations

	resolvers []OwnerResolver
	log       *zap.Logger
}

// NewState prepares the analysis of the parsed dump files.
func NewState(fset *token.FileSet, files []*ast.File, cfg *config.Config, resolvers []OwnerResolver, log *zap.Logger) *State {
	return &State{
		fset:      fset,
		files:     files,
		Config:    cfg,
		Universe:  &Universe{},
		Decls:     model.New(),
		resolvers: resolvers,
		log:       log,
	}
}

func (s *State) conventions() config.Conventions {
	return s.Config.Conventions
}

// wrapper returns the wrapper for typeName, creating it when needed. The
// second result reports whether it was created.
func (s *State) wrapper(typeName string) (*model.Wrapper, bool) {
	if w, ok := s.Decls.Wrappers[typeName]; ok {
		return w, false
	}
	w := &model.Wrapper{
		TypeName:  typeName,
		ClassName: model.ClassName(typeName, s.conventions().RecordSuffix),
	}
	s.Decls.Wrappers[typeName] = w
	return w, true
}
