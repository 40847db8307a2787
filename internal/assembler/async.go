package assembler

import (
	"strings"

	"github.com/Zachacious/go-cwrap/internal/model"
	"go.uber.org/zap"
)

// asyncPlan links a two-phase operation handle to the resource it produces.
// The initiator creates the async handle, poll turns it into the target once
// the operation completed.
type asyncPlan struct {
	async     *model.Wrapper
	target    *model.Wrapper
	initiator *model.Method
	poll      *model.Method

	targetClose *model.Method
	targetProbe *model.Method
}

// planAsync recognises "aeron_async_add_publication_t" style handles. log is
// false when the plan is only looked up from the target side, so each
// rejection is reported once.
func (g *generator) planAsync(w *model.Wrapper, log bool) *asyncPlan {
	conv := g.opts.Conventions
	if !strings.Contains(w.TypeName, conv.AsyncMarker) {
		return nil
	}
	reject := func(reason string) *asyncPlan {
		if log {
			g.log.Debug("not an async handle: "+reason, zap.String("type", w.TypeName))
		}
		return nil
	}

	base := w.Base(conv.RecordSuffix)
	initiator := w.Method(base)
	if initiator == nil || len(initiator.Arguments) == 0 || initiator.ReturnType != conv.StatusType {
		return reject("no initiator")
	}
	if first := initiator.Arguments[0].CType; !model.IsDoublePointer(first) || model.Pointee(first) != w.TypeName {
		return reject("initiator does not create the handle")
	}

	targetName := strings.ReplaceAll(w.TypeName, conv.AsyncMarker, "_")
	targetName = strings.ReplaceAll(targetName, "_add_", "_")
	target := g.decls.Wrappers[targetName]
	if target == nil || g.opts.denied(targetName) {
		return reject("unknown target " + targetName)
	}

	poll := target.Method(base + "_poll")
	if poll == nil || len(poll.Arguments) < 2 || poll.ReturnType != conv.StatusType {
		return reject("no poll function")
	}
	if first := poll.Arguments[0].CType; !model.IsDoublePointer(first) || model.Pointee(first) != targetName {
		return reject("poll does not produce the target")
	}
	if second := poll.Arguments[1].CType; model.IsDoublePointer(second) || model.Pointee(second) != w.TypeName {
		return reject("poll does not take the handle")
	}

	targetBase := target.Base(conv.RecordSuffix)
	closeFn := target.Method(targetBase + "_close")
	if closeFn == nil || closeFn.ReturnType != conv.StatusType || len(closeFn.Arguments) == 0 ||
		model.Pointee(closeFn.Arguments[0].CType) != targetName {
		return reject("target has no close function")
	}

	return &asyncPlan{
		async:       w,
		target:      target,
		initiator:   initiator,
		poll:        poll,
		targetClose: closeFn,
		targetProbe: g.closedProbe(target),
	}
}

// writeAsyncTarget emits the constructor that completes an async operation.
// A nil handle from the poll function means the operation is still pending
// and surfaces as cwrap.ErrNullHandle.
func (g *generator) writeAsyncTarget(a *asyncPlan) {
	class := a.target.ClassName
	raw := qualify(a.target.TypeName)
	c := g.lowerArgs(a.poll.Arguments[1:], "")

	g.writeDocs(a.poll.Docs)
	if len(a.poll.Docs) > 0 {
		g.writeLine("//")
	}
	g.writeLine("// New%sFromAsync polls %s once.", class, a.async.TypeName)
	g.writeLine("func New%sFromAsync(%s) (*%s, error) {", class, strings.Join(c.params, ", "), class)
	g.indent++
	for _, line := range c.pre {
		g.writeLine("%s", line)
	}
	g.writeLine("res, err := cwrap.Acquire(")
	g.indent++
	g.writeLine("func(p **%s) int32 {", raw)
	g.indent++
	g.writeLine("return int32(C.%s(%s))", a.poll.FnName, strings.Join(append([]string{"p"}, c.args...), ", "))
	g.indent--
	g.writeLine("},")
	g.writeLine("%s,", cleanupFunc(raw, a.targetClose, nil))
	if opt := probeOption(raw, a.targetProbe); opt != "" {
		g.writeLine("%s,", opt)
	}
	g.indent--
	g.writeLine(")")
	g.writeKeepAlive(c.keep)
	g.writeAcquireTail(class, nil)
}

// writeAsync emits the initiating constructor of an async handle together
// with Poll and PollBlocking.
func (g *generator) writeAsync(p *wrapperPlan, a *asyncPlan) {
	class := p.w.ClassName
	target := a.target.ClassName

	c := g.lowerArgs(a.initiator.Arguments[1:], "")
	g.writeDocs(a.initiator.Docs)
	if len(a.initiator.Docs) > 0 {
		g.writeLine("//")
	}
	g.writeLine("// New%s starts the operation. Poll the result for completion.", class)
	g.writeLine("func New%s(%s) (*%s, error) {", class, strings.Join(c.params, ", "), class)
	g.indent++
	for _, line := range c.pre {
		g.writeLine("%s", line)
	}
	g.writeLine("res, err := cwrap.Acquire(")
	g.indent++
	g.writeLine("func(p **%s) int32 {", p.raw)
	g.indent++
	g.writeLine("return int32(C.%s(%s))", a.initiator.FnName, strings.Join(append([]string{"p"}, c.args...), ", "))
	g.indent--
	g.writeLine("},")
	g.writeLine("nil,")
	g.indent--
	g.writeLine(")")
	g.writeKeepAlive(c.keep)
	g.writeAcquireTail(class, c.deps)

	// The first poll parameter is the async handle itself.
	poll := g.lowerArgs(a.poll.Arguments[1:], "")
	params := strings.Join(poll.params[1:], ", ")
	names := strings.Join(poll.names[1:], ", ")
	fromAsync := append([]string{"w"}, poll.names[1:]...)

	g.writeLine("// Poll returns the %s once the operation completed, nil while it is", target)
	g.writeLine("// still pending.")
	g.writeLine("func (w *%s) Poll(%s) (*%s, error) {", class, params, target)
	g.indent++
	g.writeLine("v, err := New%sFromAsync(%s)", target, strings.Join(fromAsync, ", "))
	g.writeLine("if errors.Is(err, cwrap.ErrNullHandle) {")
	g.indent++
	g.writeLine("return nil, nil")
	g.indent--
	g.writeLine("}")
	g.writeLine("return v, err")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	blockingParams := "timeout time.Duration"
	if params != "" {
		blockingParams += ", " + params
	}
	g.writeLine("// PollBlocking polls until the operation completes, fails or timeout elapses.")
	g.writeLine("func (w *%s) PollBlocking(%s) (*%s, error) {", class, blockingParams, target)
	g.indent++
	g.writeLine("return cwrap.PollBlocking(timeout, cwrap.DefaultPollInterval, func() (*%s, error) {", target)
	g.indent++
	g.writeLine("return w.Poll(%s)", names)
	g.indent--
	g.writeLine("})")
	g.indent--
	g.writeLine("}")
	g.writeLine("")
}
