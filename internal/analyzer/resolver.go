package analyzer

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/Zachacious/go-cwrap/internal/model"
)

// OwnerResolver decides which wrapper a free function belongs to. Resolvers
// are consulted in order and the first non-nil answer wins.
type OwnerResolver interface {
	ResolveOwner(fnName string, args []model.Arg, decls *model.Declarations) *model.Wrapper
}

// OwnerResolverFunc adapts a function to OwnerResolver.
type OwnerResolverFunc func(fnName string, args []model.Arg, decls *model.Declarations) *model.Wrapper

func (f OwnerResolverFunc) ResolveOwner(fnName string, args []model.Arg, decls *model.Declarations) *model.Wrapper {
	return f(fnName, args, decls)
}

// DefaultResolvers is the configured override table, then the first argument
// type, then the function name.
func DefaultResolvers(cfg *config.Config) []OwnerResolver {
	return []OwnerResolver{
		OverrideResolver(cfg.Owners),
		FirstArgResolver(),
		SuffixResolver(cfg.Conventions.RecordSuffix),
	}
}

// OverrideResolver looks the function up in an explicit fn -> type table.
// Entries naming an unknown type are ignored.
func OverrideResolver(owners map[string]string) OwnerResolver {
	return OwnerResolverFunc(func(fnName string, _ []model.Arg, decls *model.Declarations) *model.Wrapper {
		typeName, ok := owners[fnName]
		if !ok {
			return nil
		}
		return decls.Wrappers[typeName]
	})
}

// FirstArgResolver picks the wrapper the first argument points to, at any
// level of indirection.
func FirstArgResolver() OwnerResolver {
	return OwnerResolverFunc(func(_ string, args []model.Arg, decls *model.Declarations) *model.Wrapper {
		if len(args) == 0 || !model.IsPointer(args[0].CType) {
			return nil
		}
		return decls.WrapperFor(args[0].CType)
	})
}

// SuffixResolver drops trailing "_word" segments from the function name until
// "<candidate><recordSuffix>" names a wrapper. The longest candidate is tried
// first, so the most specific entity wins.
func SuffixResolver(recordSuffix string) OwnerResolver {
	return OwnerResolverFunc(func(fnName string, _ []model.Arg, decls *model.Declarations) *model.Wrapper {
		candidate := fnName
		for {
			if w, ok := decls.Wrappers[candidate+recordSuffix]; ok {
				return w
			}
			i := strings.LastIndex(candidate, "_")
			if i <= 0 {
				return nil
			}
			candidate = candidate[:i]
		}
	})
}

func (s *State) resolveOwner(fnName string, args []model.Arg) *model.Wrapper {
	for _, r := range s.resolvers {
		if w := r.ResolveOwner(fnName, args, s.Decls); w != nil {
			return w
		}
	}
	return nil
}

// structMethodName strips the owner's "<base>_" prefix from a function name.
// Names that do not carry the prefix are kept whole.
func (s *State) structMethodName(fnName string, owner *model.Wrapper) string {
	prefix := owner.Base(s.conventions().RecordSuffix) + "_"
	if name := strings.TrimPrefix(fnName, prefix); name != "" {
		return name
	}
	return fnName
}
