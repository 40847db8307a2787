package cwrap

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// The arena holds Go callback implementations registered with the C library.
// C code only ever sees a registration token: the address of a small C
// allocation, passed as the clientd pointer. Being C memory, the token is a
// valid pointer wherever Go code holds it as unsafe.Pointer.
var arena = struct {
	sync.RWMutex
	entries map[uintptr]any
}{entries: make(map[uintptr]any)}

// Handler is a registration of a callback implementation. The C library
// holds its token for as long as the callback stays installed; call Release
// once the library can no longer invoke it.
type Handler[T any] struct {
	token unsafe.Pointer
}

// Leak registers value and hands ownership of the registration to the caller.
func Leak[T any](value T) *Handler[T] {
	token := newToken()
	arena.Lock()
	arena.entries[uintptr(token)] = value
	arena.Unlock()
	return &Handler[T]{token: token}
}

// ClientData is the context pointer to pass next to the trampoline. A nil
// or released handler yields a nil pointer.
func (h *Handler[T]) ClientData() unsafe.Pointer {
	if h == nil {
		return nil
	}
	return h.token
}

// Value returns the registered implementation.
func (h *Handler[T]) Value() (T, bool) {
	if h == nil {
		var zero T
		return zero, false
	}
	return lookup[T](uintptr(h.token))
}

// IsNone reports whether the handler is nil or released.
func (h *Handler[T]) IsNone() bool {
	_, ok := h.Value()
	return !ok
}

// Release drops the registration and frees its token. Callbacks arriving
// through the registration afterwards are ignored.
func (h *Handler[T]) Release() {
	if h == nil || h.token == nil {
		return
	}
	id := uintptr(h.token)
	arena.Lock()
	delete(arena.entries, id)
	arena.Unlock()
	freeToken(h.token)
	h.token = nil
	logger().Debug("released handler", zap.Uintptr("token", id))
}

// Lookup resolves a clientd pointer received by a trampoline. It returns false
// for nil, released or differently typed registrations.
func Lookup[T any](clientd unsafe.Pointer) (T, bool) {
	return lookup[T](uintptr(clientd))
}

func lookup[T any](id uintptr) (T, bool) {
	if id == 0 {
		var zero T
		return zero, false
	}
	arena.RLock()
	v, ok := arena.entries[id]
	arena.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Handlers returns the number of live registrations.
func Handlers() int {
	arena.RLock()
	defer arena.RUnlock()
	return len(arena.entries)
}
