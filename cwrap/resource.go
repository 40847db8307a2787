// Package cwrap is the runtime imported by generated bindings. It manages the
// lifetime of raw C handles, converts library status codes into errors and
// carries Go callback implementations across the C boundary.
package cwrap

import (
	"fmt"
	"runtime"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Option configures a ManagedResource at acquisition time.
type Option[P comparable] func(*resourceState[P])

// WithStructCleanup registers free to run after cleanup on release. It is used
// for memory the wrapper allocated itself rather than the C library.
func WithStructCleanup[P comparable](free func(P)) Option[P] {
	return func(s *resourceState[P]) { s.free = free }
}

// WithClosedProbe registers a predicate that reports whether the C library
// already released the handle on its own.
func WithClosedProbe[P comparable](probe func(P) bool) Option[P] {
	return func(s *resourceState[P]) { s.probe = probe }
}

// resourceState is kept apart from ManagedResource so the end-of-scope cleanup
// can reach it without keeping the resource itself alive.
type resourceState[P comparable] struct {
	resource  P
	cleanup   func(*P) int32
	free      func(P)
	probe     func(P) bool
	borrowed  bool
	autoClose bool
	closed    atomic.Bool
	deps      []any
}

// ManagedResource owns or borrows one raw handle. P is the handle pointer
// type, e.g. *C.widget_t, so opaque C types never appear as type arguments.
//
// An owned handle is released exactly once: explicitly through Release or
// implicitly once the ManagedResource becomes unreachable. A borrowed handle
// is never released by this wrapper. Release is not safe for concurrent use
// on the same resource.
type ManagedResource[P comparable] struct {
	state *resourceState[P]
}

// Acquire runs init with an out-pointer slot and takes ownership of the handle
// it produces. A negative status or a nil handle is a failure: no resource is
// created and cleanup is not called, init owns any partial allocation.
func Acquire[P comparable](init func(*P) int32, cleanup func(*P) int32, opts ...Option[P]) (*ManagedResource[P], error) {
	var handle, null P
	code := init(&handle)
	if code < 0 {
		return nil, NewError(code)
	}
	if handle == null {
		return nil, &Error{Code: code, null: true}
	}

	state := &resourceState[P]{resource: handle, cleanup: cleanup}
	for _, opt := range opts {
		opt(state)
	}
	m := newManaged(state)
	logger().Debug("acquired resource", zap.String("type", typeName[P]()), zap.Stringer("resource", m))
	return m, nil
}

// Borrow wraps a handle owned elsewhere. Release never calls into C for it.
func Borrow[P comparable](value P, probe func(P) bool) *ManagedResource[P] {
	return &ManagedResource[P]{state: &resourceState[P]{
		resource: value,
		probe:    probe,
		borrowed: true,
	}}
}

// Own adopts a raw handle that was not produced through Acquire, forcing its
// release with cleanup. A nil cleanup only drops the handle.
func Own[P comparable](value P, cleanup func(*P) int32, opts ...Option[P]) *ManagedResource[P] {
	state := &resourceState[P]{resource: value, cleanup: cleanup, autoClose: true}
	for _, opt := range opts {
		opt(state)
	}
	return newManaged(state)
}

func newManaged[P comparable](state *resourceState[P]) *ManagedResource[P] {
	m := &ManagedResource[P]{state: state}
	runtime.AddCleanup(m, releaseImplicit[P], state)
	return m
}

// releaseImplicit runs on the runtime cleanup goroutine. There is no caller to
// report to, so failures are logged.
func releaseImplicit[P comparable](s *resourceState[P]) {
	if s.borrowed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger().Error("panic during implicit release", zap.String("type", typeName[P]()), zap.Any("panic", r))
		}
	}()
	if err := s.release(); err != nil {
		logger().Warn("implicit release failed", zap.String("type", typeName[P]()), zap.Error(err))
	}
}

// Get returns the raw handle, nil once released. Callers passing it to C
// must keep m reachable until the call returns.
func (m *ManagedResource[P]) Get() P {
	if m == nil || m.state == nil {
		var null P
		return null
	}
	return m.state.resource
}

// IsBorrowed reports whether the handle is owned elsewhere.
func (m *ManagedResource[P]) IsBorrowed() bool {
	return m.state.borrowed
}

// IsClosed reports whether the handle was released, is nil, or the closed
// probe says the library already freed it.
func (m *ManagedResource[P]) IsClosed() bool {
	var null P
	s := m.state
	if s.closed.Load() || s.resource == null {
		return true
	}
	closed := s.probe != nil && s.probe(s.resource)
	runtime.KeepAlive(m)
	return closed
}

// RetainDependency keeps v reachable for at least as long as the resource.
// It must only be called while the resource is still private to one goroutine.
func (m *ManagedResource[P]) RetainDependency(v any) {
	m.state.deps = append(m.state.deps, v)
}

// Dependency returns the first retained dependency of type V.
func Dependency[V any, P comparable](m *ManagedResource[P]) (V, bool) {
	for _, d := range m.state.deps {
		if v, ok := d.(V); ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Release calls the cleanup procedure once. Later calls, calls on borrowed
// resources and calls after the library closed the handle itself return nil
// without calling into C. A cleanup failure is returned but not retried.
func (m *ManagedResource[P]) Release() error {
	if m == nil || m.state == nil {
		return nil
	}
	if m.state.borrowed {
		m.state.closed.Store(true)
		return nil
	}
	err := m.state.release()
	runtime.KeepAlive(m)
	return err
}

func (s *resourceState[P]) release() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer func() { s.deps = nil }()

	var null P
	if s.resource == null {
		return nil
	}
	if s.probe != nil && s.probe(s.resource) {
		logger().Debug("resource already closed by library", zap.String("type", typeName[P]()))
		s.resource = null
		return nil
	}

	var err error
	resource := s.resource
	if s.cleanup != nil {
		if code := s.cleanup(&s.resource); code < 0 {
			err = NewError(code)
		}
	}
	if s.free != nil {
		s.free(resource)
	}
	s.resource = null
	return err
}

// String describes the resource without dereferencing a released handle.
func (m *ManagedResource[P]) String() string {
	if m == nil || m.state == nil {
		return "ManagedResource(nil)"
	}
	kind := "owned"
	switch {
	case m.state.borrowed:
		kind = "borrowed"
	case m.state.autoClose:
		kind = "adopted"
	}
	if m.IsClosed() {
		return fmt.Sprintf("ManagedResource[%s](%s, closed)", typeName[P](), kind)
	}
	return fmt.Sprintf("ManagedResource[%s](%s, %v)", typeName[P](), kind, m.state.resource)
}

func typeName[P any]() string {
	var zero P
	return fmt.Sprintf("%T", zero)
}
