// Package analyzer recovers a binding model from a declaration dump: which
// functions belong to which record, which argument pairs are callback
// registrations and which typedefs are callbacks.
package analyzer

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"

	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// ExtractionError reports a dump that cannot be turned into a model. No
// partial model is ever returned alongside it.
type ExtractionError struct {
	Pos token.Position
	Msg string
	Err error
}

func (e *ExtractionError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (s *State) errorf(node ast.Node, format string, args ...any) error {
	return &ExtractionError{Pos: s.fset.Position(node.Pos()), Msg: fmt.Sprintf(format, args...)}
}

func parseError(err error) error {
	perr := &ExtractionError{Msg: "failed to parse declaration dump", Err: err}
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		perr.Pos = list[0].Pos
		perr.Err = errors.New(list[0].Msg)
	}
	return perr
}

// Analyzer holds the settings of extraction runs. It keeps no state between
// runs, so one Analyzer can serve several dumps.
type Analyzer struct {
	config    *config.Config
	resolvers []OwnerResolver
	log       *zap.Logger
}

// New creates an Analyzer. A nil config selects the defaults and a nil logger
// disables logging.
func New(cfg *config.Config, logger *zap.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		config:    cfg,
		resolvers: DefaultResolvers(cfg),
		log:       logger,
	}
}

// WithResolvers replaces the owner resolution chain.
func (a *Analyzer) WithResolvers(resolvers ...OwnerResolver) *Analyzer {
	a.resolvers = resolvers
	return a
}

// AnalyzeFiles parses the dump files and extracts their combined model.
func (a *Analyzer) AnalyzeFiles(paths ...string) (*model.Declarations, error) {
	fset := token.NewFileSet()
	files := make([]*ast.File, 0, len(paths))
	for _, path := range paths {
		f, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil, parseError(err)
		}
		files = append(files, f)
	}
	return a.analyze(fset, files)
}

// AnalyzeSource extracts the model of an in-memory dump.
func (a *Analyzer) AnalyzeSource(name string, src []byte) (*model.Declarations, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return nil, parseError(err)
	}
	return a.analyze(fset, []*ast.File{f})
}

func (a *Analyzer) analyze(fset *token.FileSet, files []*ast.File) (*model.Declarations, error) {
	s := NewState(fset, files, a.config, a.resolvers, a.log)

	if err := s.discoverUniverse(); err != nil {
		return nil, err
	}
	s.collectRecords()
	s.collectHandlers()
	s.collectFunctions()
	s.demoteHandlerArgs()
	s.applyDenyList()

	if err := s.Decls.Validate(); err != nil {
		return nil, err
	}
	s.log.Info("extracted binding model",
		zap.Int("wrappers", len(s.Decls.Wrappers)),
		zap.Int("handlers", len(s.Decls.Handlers)),
		zap.Int("unassociated", len(s.Decls.Methods)),
	)
	return s.Decls, nil
}
