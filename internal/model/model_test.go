package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"aeron_t":                       "Aeron",
		"aeron_context_t":               "AeronContext",
		"aeron_on_new_publication_t":    "AeronNewPublication",
		"aeron_async_add_publication_t": "AeronAsyncAddPublication",
		"plain":                         "Plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassName(in, "_t"), in)
	}
}

func TestTypeHelpers(t *testing.T) {
	assert.True(t, IsPointer("*aeron_t"))
	assert.False(t, IsPointer("aeron_t"))
	assert.True(t, IsDoublePointer("**aeron_t"))
	assert.False(t, IsDoublePointer("*aeron_t"))
	assert.Equal(t, "aeron_t", Pointee("**aeron_t"))
	assert.Equal(t, "StreamId", GoName("stream_id"))
	assert.Equal(t, "streamId", GoParamName("stream_id"))
}

func TestWrapperBase(t *testing.T) {
	w := &Wrapper{TypeName: "aeron_context_t"}
	assert.Equal(t, "aeron_context", w.Base("_t"))
	assert.Equal(t, "aeron_context_t", w.Base("_stct"))
}

func TestValidate(t *testing.T) {
	d := New()
	d.Wrappers["aeron_t"] = &Wrapper{TypeName: "aeron_t"}
	require.NoError(t, d.Validate())

	d.Wrappers["aeron_context_t"] = &Wrapper{TypeName: "aeron_t"}
	err := d.Validate()
	assert.ErrorIs(t, err, ErrInconsistentModel)
	assert.Contains(t, err.Error(), "aeron_context_t")
}

func TestSortedWrappers(t *testing.T) {
	d := New()
	d.Wrappers["b_t"] = &Wrapper{TypeName: "b_t", ClassName: "B"}
	d.Wrappers["a_t"] = &Wrapper{TypeName: "a_t", ClassName: "A"}
	d.Wrappers["c_t"] = &Wrapper{TypeName: "c_t", ClassName: "A"}

	var order []string
	for _, w := range d.SortedWrappers() {
		order = append(order, w.TypeName)
	}
	assert.Equal(t, []string{"a_t", "c_t", "b_t"}, order)
}

func TestMethodLookups(t *testing.T) {
	initFn := &Method{FnName: "aeron_init", Arguments: []Arg{{Name: "client", CType: "**aeron_t"}}}
	closeFn := &Method{FnName: "aeron_close", Arguments: []Arg{{Name: "client", CType: "*aeron_t"}}}
	w := &Wrapper{TypeName: "aeron_t", Methods: []*Method{initFn, closeFn}}

	assert.Same(t, closeFn, w.Method("aeron_close"))
	assert.Nil(t, w.Method("aeron_start"))
	assert.True(t, initFn.HasDoublePointerArg())
	assert.False(t, closeFn.HasDoublePointerArg())

	d := New()
	d.Wrappers["aeron_t"] = w
	d.Handlers = []*HandlerDecl{{TypeName: "aeron_idle_t"}}
	assert.Same(t, w, d.WrapperFor("**aeron_t"))
	assert.Nil(t, d.WrapperFor("*C.int"))
	assert.NotNil(t, d.Handler("aeron_idle_t"))
	assert.Nil(t, d.Handler("aeron_other_t"))
}

func TestProcessingKindYAML(t *testing.T) {
	out, err := yaml.Marshal(Arg{Name: "buffer", CType: "*C.uint8_t", Processing: Processing{Kind: Buffer, Pair: []string{"buffer", "length"}}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "kind: buffer")
	assert.Contains(t, string(out), "- length")
}
