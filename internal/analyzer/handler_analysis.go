package analyzer

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// collectHandlers is Phase 3. A function type is a callback when it is named
// like a record type and takes the clientd context pointer first.
func (s *State) collectHandlers() {
	s.log.Debug("Phase 3: Detecting callback typedefs...")
	conv := s.conventions()

	for _, td := range s.Universe.Typedefs {
		if !strings.HasSuffix(td.Name, conv.RecordSuffix) || len(td.Args) == 0 || td.Args[0].CType != conv.ClientdType {
			s.log.Debug("function typedef is not a callback", zap.String("type", td.Name))
			continue
		}
		s.Decls.Handlers = append(s.Decls.Handlers, &model.HandlerDecl{
			TypeName:   td.Name,
			Args:       td.Args,
			ReturnType: td.ReturnType,
			Docs:       mergeDocs(nil, td.Doc),
		})
	}
	s.log.Debug("detected callbacks", zap.Int("count", len(s.Decls.Handlers)))
}

// isHandlerPair matches the callback registration convention: a by-value
// record-typed callback immediately followed by the clientd pointer.
func (s *State) isHandlerPair(handler, clientd model.Arg) bool {
	conv := s.conventions()
	return clientd.CType == conv.ClientdType &&
		!model.IsPointer(handler.CType) &&
		strings.HasSuffix(handler.CType, conv.RecordSuffix)
}

// demoteHandlerArgs is Phase 5. Handler pairs whose callback type was not
// recognised in Phase 3 are turned back into plain arguments so no
// trampoline is emitted for a signature that cannot be wrapped.
func (s *State) demoteHandlerArgs() {
	s.log.Debug("Phase 5: Validating callback arguments...")
	for _, w := range s.Decls.SortedWrappers() {
		for _, m := range w.Methods {
			s.demoteMethod(m)
		}
	}
	for _, m := range s.Decls.Methods {
		s.demoteMethod(m)
	}
}

func (s *State) demoteMethod(m *model.Method) {
	for i := 0; i+1 < len(m.Arguments); i++ {
		handler := &m.Arguments[i]
		if handler.Processing.Kind != model.Handler || handler.Processing.Pair[0] != handler.Name {
			continue
		}
		if s.Decls.Handler(handler.CType) != nil {
			continue
		}
		s.log.Warn("callback type is not a recognised handler, passing it through",
			zap.String("function", m.FnName),
			zap.String("arg", handler.Name),
			zap.String("type", handler.CType),
		)
		handler.Processing = model.Processing{}
		m.Arguments[i+1].Processing = model.Processing{}
	}
}
