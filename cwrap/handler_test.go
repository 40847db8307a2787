package cwrap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fragmentHandler interface {
	HandleFragment(length int32) int32
}

type countingHandler struct {
	total int32
}

func (c *countingHandler) HandleFragment(length int32) int32 {
	c.total += length
	return c.total
}

// trampoline mirrors the shape of a generated export: resolve the
// registration from clientd and forward, returning the zero value otherwise.
func trampoline(clientd unsafe.Pointer, length int32) int32 {
	h, ok := Lookup[fragmentHandler](clientd)
	if !ok {
		return 0
	}
	return h.HandleFragment(length)
}

func TestHandlerRoundTripThroughClientData(t *testing.T) {
	impl := &countingHandler{}
	h := Leak[fragmentHandler](impl)
	defer h.Release()

	clientd := h.ClientData()
	require.NotNil(t, clientd)

	assert.Equal(t, int32(3), trampoline(clientd, 3))
	assert.Equal(t, int32(7), trampoline(clientd, 4))
	assert.Equal(t, int32(7), impl.total)

	v, ok := h.Value()
	require.True(t, ok)
	assert.Same(t, impl, v)
	assert.False(t, h.IsNone())
}

func TestReleasedHandlerIsIgnored(t *testing.T) {
	before := Handlers()
	impl := &countingHandler{}
	h := Leak[fragmentHandler](impl)
	clientd := h.ClientData()
	assert.Equal(t, before+1, Handlers())

	h.Release()
	h.Release()

	assert.Equal(t, before, Handlers())
	assert.Equal(t, int32(0), trampoline(clientd, 9))
	assert.Zero(t, impl.total)
	assert.True(t, h.IsNone())
	assert.Nil(t, h.ClientData())
}

func TestNilHandler(t *testing.T) {
	var h *Handler[fragmentHandler]
	assert.Nil(t, h.ClientData())
	assert.True(t, h.IsNone())
	h.Release()

	assert.Equal(t, int32(0), trampoline(nil, 1))
}

func TestLookupRejectsMismatchedType(t *testing.T) {
	h := Leak("not a handler")
	defer h.Release()

	_, ok := Lookup[fragmentHandler](h.ClientData())
	assert.False(t, ok)

	s, ok := Lookup[string](h.ClientData())
	require.True(t, ok)
	assert.Equal(t, "not a handler", s)
}

func TestRegistrationsAreDistinct(t *testing.T) {
	a := Leak[fragmentHandler](&countingHandler{})
	b := Leak[fragmentHandler](&countingHandler{})
	defer a.Release()
	defer b.Release()

	assert.NotEqual(t, a.ClientData(), b.ClientData())
}

// growStack forces the goroutine stack to be copied several times.
//
//go:noinline
func growStack(depth int) byte {
	var frame [2048]byte
	frame[depth%len(frame)] = byte(depth)
	if depth == 0 {
		return frame[0]
	}
	return growStack(depth-1) + frame[depth%len(frame)]
}

type stackGrowingHandler struct {
	calls int
}

func (s *stackGrowingHandler) HandleFragment(length int32) int32 {
	growStack(64)
	s.calls++
	return length
}

func TestClientDataSurvivesStackGrowth(t *testing.T) {
	impl := &stackGrowingHandler{}
	h := Leak[fragmentHandler](impl)
	defer h.Release()

	clientd := h.ClientData()
	done := make(chan int32)
	go func() {
		growStack(64)
		done <- trampoline(clientd, 5)
	}()

	assert.Equal(t, int32(5), <-done)
	growStack(64)
	assert.Equal(t, int32(6), trampoline(clientd, 6))
	assert.Equal(t, 2, impl.calls)
}
