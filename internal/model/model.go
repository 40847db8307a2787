package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInconsistentModel is returned by Validate when a wrapper is stored under a
// key other than its own type name. It always indicates an extractor bug.
var ErrInconsistentModel = errors.New("inconsistent declaration model")

// ProcessingKind tags how an argument is lowered by the generator.
type ProcessingKind int

const (
	// Default arguments are converted one by one.
	Default ProcessingKind = iota
	// Handler marks a (handler, clientd) callback registration pair.
	Handler
	// Buffer marks a (pointer, length) byte buffer pair.
	Buffer
)

func (k ProcessingKind) String() string {
	switch k {
	case Handler:
		return "handler"
	case Buffer:
		return "buffer"
	default:
		return "default"
	}
}

// MarshalYAML renders the kind by name in `cwrap inspect` output.
func (k ProcessingKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// Processing describes the lowering of one argument. Pair holds the names of
// both arguments taking part in a Handler or Buffer convention.
type Processing struct {
	Kind ProcessingKind `yaml:"kind"`
	Pair []string       `yaml:"pair,omitempty"`
}

// Arg is one function parameter, one record field or one callback parameter.
type Arg struct {
	Name       string     `yaml:"name"`
	CType      string     `yaml:"ctype"`
	Processing Processing `yaml:"processing"`
}

// Method is a free C function, associated with a wrapper or not.
type Method struct {
	FnName string `yaml:"fn"`
	// StructMethodName is FnName with the owning wrapper's prefix stripped.
	StructMethodName string   `yaml:"structMethod,omitempty"`
	ReturnType       string   `yaml:"returns"`
	Arguments        []Arg    `yaml:"args,omitempty"`
	Docs             []string `yaml:"docs,omitempty"`
}

// HasDoublePointerArg reports whether any argument is a pointer-to-pointer,
// the signature of an initializer.
func (m *Method) HasDoublePointerArg() bool {
	for _, arg := range m.Arguments {
		if IsDoublePointer(arg.CType) {
			return true
		}
	}
	return false
}

// Field is a record member.
type Field struct {
	Name  string `yaml:"name"`
	CType string `yaml:"ctype"`
}

// Wrapper describes a C record that becomes a resource-managed Go type.
type Wrapper struct {
	TypeName  string    `yaml:"type"`
	ClassName string    `yaml:"class"`
	Fields    []Field   `yaml:"fields,omitempty"`
	Methods   []*Method `yaml:"methods,omitempty"`
	Docs      []string  `yaml:"docs,omitempty"`
	// Opaque is set when only a forward declaration was seen.
	Opaque bool `yaml:"opaque,omitempty"`
	// Private is set when the record has reserved fields left out of Fields.
	Private bool `yaml:"private,omitempty"`
}

// Base is the type name without its record suffix, e.g. "aeron_context" for
// "aeron_context_t".
func (w *Wrapper) Base(recordSuffix string) string {
	if len(w.TypeName) > len(recordSuffix) && w.TypeName[len(w.TypeName)-len(recordSuffix):] == recordSuffix {
		return w.TypeName[:len(w.TypeName)-len(recordSuffix)]
	}
	return w.TypeName
}

// Method returns the associated method with the given C name.
func (w *Wrapper) Method(fnName string) *Method {
	for _, m := range w.Methods {
		if m.FnName == fnName {
			return m
		}
	}
	return nil
}

// HandlerDecl is a function-pointer typedef recognised as a callback.
type HandlerDecl struct {
	TypeName   string   `yaml:"type"`
	Args       []Arg    `yaml:"args"`
	ReturnType string   `yaml:"returns"`
	Docs       []string `yaml:"docs,omitempty"`
}

// Declarations is the root of the binding model.
type Declarations struct {
	Wrappers map[string]*Wrapper `yaml:"wrappers"`
	// Methods are free functions that could not be associated to a wrapper.
	Methods  []*Method      `yaml:"methods,omitempty"`
	Handlers []*HandlerDecl `yaml:"handlers,omitempty"`
	// Aliases maps plain type aliases to their target type.
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// New returns an empty model.
func New() *Declarations {
	return &Declarations{
		Wrappers: make(map[string]*Wrapper),
		Aliases:  make(map[string]string),
	}
}

// Validate checks that every wrapper is keyed by its own type name.
func (d *Declarations) Validate() error {
	for _, key := range sortedKeys(d.Wrappers) {
		if w := d.Wrappers[key]; w == nil || w.TypeName != key {
			return fmt.Errorf("%w: wrapper key %q", ErrInconsistentModel, key)
		}
	}
	return nil
}

// SortedWrappers returns the wrappers ordered by class name, then type name.
func (d *Declarations) SortedWrappers() []*Wrapper {
	out := make([]*Wrapper, 0, len(d.Wrappers))
	for _, w := range d.Wrappers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassName != out[j].ClassName {
			return out[i].ClassName < out[j].ClassName
		}
		return out[i].TypeName < out[j].TypeName
	})
	return out
}

// Handler looks up a callback typedef by name.
func (d *Declarations) Handler(typeName string) *HandlerDecl {
	for _, h := range d.Handlers {
		if h.TypeName == typeName {
			return h
		}
	}
	return nil
}

// WrapperFor returns the wrapper a (possibly pointer) type refers to.
func (d *Declarations) WrapperFor(cType string) *Wrapper {
	return d.Wrappers[Pointee(cType)]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
