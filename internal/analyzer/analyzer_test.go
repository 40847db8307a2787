package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/Zachacious/go-cwrap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const clientDump = `package aeron

import (
	"C"
	"unsafe"
)

type aeron_context_stct struct {
	aeron_dir [384]C.char
	driver_timeout_ms C.uint64_t
	_reserved unsafe.Pointer
}

type aeron_t = aeron_stct

// The publication handle.
type aeron_publication_t = aeron_publication_stct

type aeron_async_add_publication_t = aeron_async_add_publication_stct

type aeron_header_values_frame_stct struct {
	frame_length C.int32_t
	session_id C.int32_t
}

type aeron_thread_t = C.uint64_t

type aeron_executor_t = aeron_executor_stct

// Called when a new publication is seen.
//
// @param clientd user data
// @param channel the channel
type aeron_on_new_publication_t func(clientd unsafe.Pointer, async *aeron_async_add_publication_t, channel *C.char, stream_id C.int32_t)

type aeron_reserved_value_supplier_t func(clientd unsafe.Pointer, buffer *C.uint8_t, frame_length C.size_t) C.int64_t

type aeron_idle_strategy_func_t func(state unsafe.Pointer, work_count C.int)

type aeron_not_a_callback_t func(count C.int) C.int

// Initialise a context.
// @return 0 for success and -1 for error.
func aeron_context_init(context **aeron_context_t) C.int

func aeron_context_close(context *aeron_context_t) C.int

func aeron_context_set_dir(context *aeron_context_t, value *C.char) C.int

func aeron_context_get_dir(context *aeron_context_t) *C.char

func aeron_context_set_on_new_publication(context *aeron_context_t, handler aeron_on_new_publication_t, clientd unsafe.Pointer) C.int

func aeron_context_set_idle(context *aeron_context_t, handler aeron_not_a_callback_t, clientd unsafe.Pointer) C.int

func aeron_init(client **aeron_t, context *aeron_context_t) C.int

func aeron_close(client *aeron_t) C.int

func aeron_async_add_publication(async **aeron_async_add_publication_t, client *aeron_t, uri *C.char, stream_id C.int32_t) C.int

func aeron_async_add_publication_poll(publication **aeron_publication_t, async *aeron_async_add_publication_t) C.int

func aeron_publication_offer(publication *aeron_publication_t, buffer *C.uint8_t, length C.size_t, reserved_value_supplier aeron_reserved_value_supplier_t, clientd unsafe.Pointer) C.int64_t

func aeron_publication_is_closed(publication *aeron_publication_t) C.bool

func aeron_executor_start(executor *aeron_executor_t) C.int

func aeron_version_full() *C.char

func clock_now_ns() C.int64_t

func helper() int { return 0 }
`

func analyze(t *testing.T, src string) *model.Declarations {
	t.Helper()
	decls, err := New(nil, nil).AnalyzeSource("dump.go", []byte(src))
	require.NoError(t, err)
	return decls
}

func argKinds(m *model.Method) []model.ProcessingKind {
	kinds := make([]model.ProcessingKind, len(m.Arguments))
	for i, a := range m.Arguments {
		kinds[i] = a.Processing.Kind
	}
	return kinds
}

func TestRecordsAndAliases(t *testing.T) {
	decls := analyze(t, clientDump)

	ctx := decls.Wrappers["aeron_context_t"]
	require.NotNil(t, ctx)
	assert.Equal(t, "AeronContext", ctx.ClassName)
	assert.False(t, ctx.Opaque)
	assert.True(t, ctx.Private)
	assert.Equal(t, []model.Field{
		{Name: "aeron_dir", CType: "[384]C.char"},
		{Name: "driver_timeout_ms", CType: "C.uint64_t"},
	}, ctx.Fields, "private fields are excluded, order is kept")

	pub := decls.Wrappers["aeron_publication_t"]
	require.NotNil(t, pub)
	assert.True(t, pub.Opaque)
	assert.Equal(t, []string{"The publication handle."}, pub.Docs)

	require.Contains(t, decls.Wrappers, "aeron_header_values_frame_t")
	assert.False(t, decls.Wrappers["aeron_header_values_frame_t"].Private)
	assert.Equal(t, "C.uint64_t", decls.Aliases["aeron_thread_t"])
}

func TestMethodAssociation(t *testing.T) {
	decls := analyze(t, clientDump)

	ctx := decls.Wrappers["aeron_context_t"]
	var names []string
	for _, m := range ctx.Methods {
		names = append(names, m.StructMethodName)
	}
	assert.Equal(t, []string{"init", "close", "set_dir", "get_dir", "set_on_new_publication", "set_idle"}, names)

	client := decls.Wrappers["aeron_t"]
	require.NotNil(t, client.Method("aeron_init"))
	require.NotNil(t, client.Method("aeron_close"))
	assert.Equal(t, "init", client.Method("aeron_init").StructMethodName)

	// The initiator belongs to the async handle it creates, the poll to the
	// publication it produces.
	async := decls.Wrappers["aeron_async_add_publication_t"]
	require.NotNil(t, async.Method("aeron_async_add_publication"))
	poll := decls.Wrappers["aeron_publication_t"].Method("aeron_async_add_publication_poll")
	require.NotNil(t, poll)
	assert.Equal(t, "aeron_async_add_publication_poll", poll.StructMethodName)

	// Without a pointer argument the name decides.
	version := client.Method("aeron_version_full")
	require.NotNil(t, version)
	assert.Equal(t, "version_full", version.StructMethodName)

	var free []string
	for _, m := range decls.Methods {
		free = append(free, m.FnName)
	}
	assert.Equal(t, []string{"clock_now_ns"}, free)
}

func TestSuffixResolverPrefersLongestMatch(t *testing.T) {
	src := `package dump

type aeron_t = aeron_stct
type aeron_counter_t = aeron_counter_stct
type aeron_counter_metadata_t = aeron_counter_metadata_stct

func aeron_counter_metadata_key_length() C.int
func aeron_counter_id() C.int32_t
func aeron_main_loop() C.int
`
	decls := analyze(t, src)

	require.NotNil(t, decls.Wrappers["aeron_counter_metadata_t"].Method("aeron_counter_metadata_key_length"))
	require.NotNil(t, decls.Wrappers["aeron_counter_t"].Method("aeron_counter_id"))
	m := decls.Wrappers["aeron_t"].Method("aeron_main_loop")
	require.NotNil(t, m)
	assert.Equal(t, "main_loop", m.StructMethodName)
}

func TestOwnerOverride(t *testing.T) {
	src := `package dump

type aeron_t = aeron_stct
type aeron_image_t = aeron_image_stct

func aeron_image_fragment_assembler_handler(clientd unsafe.Pointer, length C.size_t)
`
	cfg := config.Default()
	cfg.Owners["aeron_image_fragment_assembler_handler"] = "aeron_t"

	decls, err := New(cfg, nil).AnalyzeSource("dump.go", []byte(src))
	require.NoError(t, err)

	assert.Empty(t, decls.Wrappers["aeron_image_t"].Methods)
	m := decls.Wrappers["aeron_t"].Method("aeron_image_fragment_assembler_handler")
	require.NotNil(t, m)
	assert.Equal(t, "image_fragment_assembler_handler", m.StructMethodName)
}

func TestCustomResolverChain(t *testing.T) {
	src := `package dump

type aeron_t = aeron_stct

func aeron_close(client *aeron_t) C.int
`
	a := New(nil, nil).WithResolvers(OwnerResolverFunc(func(string, []model.Arg, *model.Declarations) *model.Wrapper {
		return nil
	}))
	decls, err := a.AnalyzeSource("dump.go", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, decls.Wrappers["aeron_t"].Methods)
	require.Len(t, decls.Methods, 1)
}

func TestHandlerDetection(t *testing.T) {
	decls := analyze(t, clientDump)

	var types []string
	for _, h := range decls.Handlers {
		types = append(types, h.TypeName)
	}
	assert.Equal(t, []string{"aeron_on_new_publication_t", "aeron_reserved_value_supplier_t", "aeron_idle_strategy_func_t"}, types,
		"typedefs without a leading clientd pointer are not callbacks")

	h := decls.Handler("aeron_on_new_publication_t")
	require.NotNil(t, h)
	assert.Equal(t, model.VoidType, h.ReturnType)
	require.Len(t, h.Args, 4)
	assert.Equal(t, "unsafe.Pointer", h.Args[0].CType)
	assert.Equal(t, "*aeron_async_add_publication_t", h.Args[1].CType)
	require.Len(t, h.Docs, 1)
	assert.Contains(t, h.Docs[0], "Parameter channel: the channel")

	assert.Equal(t, "C.int64_t", decls.Handler("aeron_reserved_value_supplier_t").ReturnType)
}

func TestHandlerPairTagging(t *testing.T) {
	decls := analyze(t, clientDump)
	ctx := decls.Wrappers["aeron_context_t"]

	m := ctx.Method("aeron_context_set_on_new_publication")
	assert.Equal(t, []model.ProcessingKind{model.Default, model.Handler, model.Handler}, argKinds(m))
	assert.Equal(t, []string{"handler", "clientd"}, m.Arguments[1].Processing.Pair)
	assert.Equal(t, []string{"handler", "clientd"}, m.Arguments[2].Processing.Pair)

	offer := decls.Wrappers["aeron_publication_t"].Method("aeron_publication_offer")
	assert.Equal(t,
		[]model.ProcessingKind{model.Default, model.Buffer, model.Buffer, model.Handler, model.Handler},
		argKinds(offer))
	assert.Equal(t, []string{"buffer", "length"}, offer.Arguments[1].Processing.Pair)
}

func TestUnknownHandlerIsDemoted(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	decls, err := New(nil, zap.New(core)).AnalyzeSource("dump.go", []byte(clientDump))
	require.NoError(t, err)

	m := decls.Wrappers["aeron_context_t"].Method("aeron_context_set_idle")
	assert.Equal(t, []model.ProcessingKind{model.Default, model.Default, model.Default}, argKinds(m))
	assert.Nil(t, m.Arguments[1].Processing.Pair)

	warnings := logs.FilterField(zap.String("type", "aeron_not_a_callback_t")).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "aeron_context_set_idle", warnings[0].ContextMap()["function"])
}

func TestDenyListRemovesWrappers(t *testing.T) {
	decls := analyze(t, clientDump)
	assert.NotContains(t, decls.Wrappers, "aeron_executor_t")
	for _, w := range decls.Wrappers {
		assert.Nil(t, w.Method("aeron_executor_start"), "denied methods are dropped with their wrapper")
	}
	for _, m := range decls.Methods {
		assert.NotEqual(t, "aeron_executor_start", m.FnName)
	}

	cfg := config.Default()
	cfg.DenyList = nil
	decls, err := New(cfg, nil).AnalyzeSource("dump.go", []byte(clientDump))
	require.NoError(t, err)
	require.Contains(t, decls.Wrappers, "aeron_executor_t")
	assert.NotNil(t, decls.Wrappers["aeron_executor_t"].Method("aeron_executor_start"))
}

func TestExtractionIsDeterministic(t *testing.T) {
	first := analyze(t, clientDump)
	for i := 0; i < 5; i++ {
		again := analyze(t, clientDump)
		assert.Equal(t, first, again)
	}
}

func TestAssociationIgnoresDeclarationOrder(t *testing.T) {
	functionsFirst := `package dump

func aeron_counter_id(counter *aeron_counter_t) C.int32_t

type aeron_counter_t = aeron_counter_stct
`
	decls := analyze(t, functionsFirst)
	assert.NotNil(t, decls.Wrappers["aeron_counter_t"].Method("aeron_counter_id"))
	assert.Empty(t, decls.Methods)
}

func TestExtractionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{
			name: "unterminated type reference",
			src:  "package dump\n\nfunc aeron_close(client *aeron_t C.int\n",
			msg:  "failed to parse declaration dump",
		},
		{
			name: "slice type",
			src:  "package dump\n\nfunc aeron_offer(data []C.uint8_t) C.int\n",
			msg:  "slice type",
		},
		{
			name: "map field",
			src:  "package dump\n\ntype foo_stct struct {\n\tvalues map[C.int]C.int\n}\n",
			msg:  "unsupported type expression",
		},
		{
			name: "multiple results",
			src:  "package dump\n\nfunc aeron_pair() (C.int, C.int)\n",
			msg:  "at most one result",
		},
		{
			name: "variadic",
			src:  "package dump\n\nfunc aeron_printf(format *C.char, args ...C.int) C.int\n",
			msg:  "variadic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decls, err := New(nil, nil).AnalyzeSource("dump.go", []byte(tt.src))
			assert.Nil(t, decls)

			var extractionErr *ExtractionError
			require.ErrorAs(t, err, &extractionErr)
			assert.Contains(t, err.Error(), tt.msg)
			assert.True(t, extractionErr.Pos.IsValid())
			assert.Equal(t, "dump.go", extractionErr.Pos.Filename)
		})
	}
}

func TestAnalyzeFiles(t *testing.T) {
	dir := t.TempDir()
	types := filepath.Join(dir, "types.go")
	funcs := filepath.Join(dir, "funcs.go")
	require.NoError(t, os.WriteFile(types, []byte("package dump\n\ntype aeron_t = aeron_stct\n"), 0o644))
	require.NoError(t, os.WriteFile(funcs, []byte("package dump\n\nfunc aeron_close(client *aeron_t) C.int\n"), 0o644))

	decls, err := New(nil, nil).AnalyzeFiles(funcs, types)
	require.NoError(t, err)
	assert.NotNil(t, decls.Wrappers["aeron_t"].Method("aeron_close"))

	_, err = New(nil, nil).AnalyzeFiles(filepath.Join(dir, "missing.go"))
	var extractionErr *ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestParseDocComment(t *testing.T) {
	assert.Empty(t, parseDocComment(nil))
}
