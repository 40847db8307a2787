package analyzer

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

var lengthTypes = map[string]bool{
	"C.size_t":   true,
	"C.int":      true,
	"C.int32_t":  true,
	"C.uint32_t": true,
	"C.int64_t":  true,
	"C.uint64_t": true,
}

var bufferTypes = map[string]bool{
	"*C.char":    true,
	"*C.uchar":   true,
	"*C.uint8_t": true,
}

// collectRecords is Phase 2. Every struct named by the record convention
// becomes a wrapper. Aliases of struct tags become opaque wrappers, other
// aliases are kept for type resolution.
func (s *State) collectRecords() {
	s.log.Debug("Phase 2: Collecting records...")
	conv := s.conventions()

	for _, rec := range s.Universe.Records {
		name := s.normalizeRecord(rec.Name)
		if !strings.HasSuffix(name, conv.RecordSuffix) {
			s.log.Debug("struct does not follow the record convention", zap.String("name", rec.Name))
			continue
		}
		w, _ := s.wrapper(name)
		w.Opaque = false
		for _, f := range rec.Fields {
			if strings.HasPrefix(f.Name, "_") {
				w.Private = true
				continue
			}
			w.Fields = append(w.Fields, f)
		}
		w.Docs = mergeDocs(w.Docs, rec.Doc)
	}

	for _, al := range s.Universe.Aliases {
		if !s.isStructTag(al.Target) || !strings.HasSuffix(al.Name, conv.RecordSuffix) {
			s.Decls.Aliases[al.Name] = al.Target
			continue
		}
		target := s.normalizeRecord(al.Target)
		if _, known := s.Decls.Wrappers[target]; known && target != al.Name {
			s.Decls.Aliases[al.Name] = target
			continue
		}
		w, created := s.wrapper(al.Name)
		if created {
			w.Opaque = true
		}
		w.Docs = mergeDocs(w.Docs, al.Doc)
	}
	s.log.Debug("collected records", zap.Int("wrappers", len(s.Decls.Wrappers)))
}

// collectFunctions is Phase 4: tag argument conventions and attach each
// extern function to its owner, if any. It runs after every record is known
// so the result does not depend on declaration order.
func (s *State) collectFunctions() {
	s.log.Debug("Phase 4: Associating functions...")

	for _, fn := range s.Universe.Functions {
		m := &model.Method{
			FnName:     fn.Name,
			ReturnType: fn.ReturnType,
			Arguments:  s.tagArgs(fn.Args),
			Docs:       mergeDocs(nil, fn.Doc),
		}

		owner := s.resolveOwner(fn.Name, m.Arguments)
		if owner == nil {
			s.log.Debug("function has no owner", zap.String("function", fn.Name))
			s.Decls.Methods = append(s.Decls.Methods, m)
			continue
		}
		m.StructMethodName = s.structMethodName(fn.Name, owner)
		owner.Methods = append(owner.Methods, m)
	}
}

// tagArgs marks (handler, clientd) callback registrations and
// (pointer, length) buffers. The input slice is not modified.
func (s *State) tagArgs(in []model.Arg) []model.Arg {
	args := make([]model.Arg, len(in))
	copy(args, in)

	for i := 0; i+1 < len(args); i++ {
		first, second := &args[i], &args[i+1]
		var kind model.ProcessingKind
		switch {
		case s.isHandlerPair(*first, *second):
			kind = model.Handler
		case isBufferPair(*first, *second):
			kind = model.Buffer
		default:
			continue
		}
		first.Processing = model.Processing{Kind: kind, Pair: []string{first.Name, second.Name}}
		second.Processing = model.Processing{Kind: kind, Pair: []string{first.Name, second.Name}}
		i++
	}
	return args
}

func isBufferPair(ptr, length model.Arg) bool {
	if !bufferTypes[ptr.CType] || !lengthTypes[length.CType] {
		return false
	}
	switch length.Name {
	case ptr.Name + "_length", ptr.Name + "_len", "length", "len":
		return true
	}
	return false
}

// applyDenyList is Phase 6. Wrappers of subsystems that do not follow the
// lifecycle conventions are removed together with their methods.
func (s *State) applyDenyList() {
	s.log.Debug("Phase 6: Applying deny-list...")
	for _, w := range s.Decls.SortedWrappers() {
		if !s.Config.Denied(w.TypeName) {
			continue
		}
		s.log.Debug("excluding denied wrapper", zap.String("type", w.TypeName), zap.Int("methods", len(w.Methods)))
		delete(s.Decls.Wrappers, w.TypeName)
	}
}
