// Package exec implements the execution engine: it runs CTRL, MAC, and
// VAR-action targets drawn from queued EXECSETs, one set at a time per
// ingress queue entry, with per-target parameter binding and a
// Pending/Running/Waiting/Terminal state machine.
package exec

import (
	"context"
	"sync"
	"time"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/store"
)

// AccessChecker gates every externally-triggered CTRL execution and EDD
// production per spec section 4.10; internally-triggered operations
// (rule firings, hello) bypass it by carrying an internal marker on ctx
// that the checker itself recognizes (the engine never special-cases
// this; the agent facade's checker implementation does).
type AccessChecker func(ctx context.Context, target ari.ObjectPath, permission string) error

// Engine runs execution sets against an object store. Grounded in the
// teacher's kernel.LifecycleManager + kernel.ProcessControlBlock +
// validTransitions state machine, directly repurposed: an exec.Record
// plays the role of a kernel.ProcessControlBlock.
type Engine struct {
	Store    *store.Store
	Resolver *StoreResolver
	ExprReg  *expr.Registry
	Access   AccessChecker

	// OnSuspend is invoked whenever a record transitions to a Waiting
	// state; the rule engine subscribes to add the record to its
	// timeline (spec section 4.9's "Suspended execution record" entry).
	OnSuspend func(rec *Record)
	// OnTerminal is invoked whenever a record reaches a terminal state,
	// grounded in the teacher's emitEvent fan-out.
	OnTerminal func(rec *Record)

	mu      sync.Mutex
	pending map[PID]*Record
}

// NewEngine builds an execution engine over s. reg is retained on the
// engine for callers that need the registry directly (e.g. registering
// its operators as store OPER objects); expression evaluation itself
// always resolves OPER references through the store, via Resolver, so
// an OPER must be cataloged there (ammbase.Register does this for the
// builtin registry) for any expression to reference it.
func NewEngine(s *store.Store, reg *expr.Registry) *Engine {
	res := &StoreResolver{Store: s}
	return &Engine{
		Store:    s,
		Resolver: res,
		ExprReg:  reg,
		pending:  make(map[PID]*Record),
	}
}

// EvalExpr evaluates an expression AC using this engine's resolver; any
// OPER reference it encounters resolves through Resolver.Operator,
// i.e. a store lookup, not e.ExprReg.
func (e *Engine) EvalExpr(items []ari.ARI) (ari.ARI, error) {
	return expr.Eval(items, e.Resolver)
}

// Submit runs one execution set's targets sequentially, per spec
// section 4.6: "each set's targets are executed sequentially (no
// intra-set parallelism)". Returns one Record per top-level target, in
// submission order.
func (e *Engine) Submit(ctx context.Context, es *ari.ExecSet) []*Record {
	return e.runTargets(ctx, es.Nonce, es.Targets)
}

func (e *Engine) runTargets(ctx context.Context, nonce ari.ARI, targets []ari.ARI) []*Record {
	recs := make([]*Record, len(targets))
	for i, t := range targets {
		rec := newRecord(PID{SetNonce: nonce, Index: i}, t)
		recs[i] = rec
		e.runOne(ctx, rec)
	}
	return recs
}

// runOne drives a single record from Pending to its next observable
// state (Running, then a terminal state, or a Waiting state if the
// target's CTRL callback requests suspension).
func (e *Engine) runOne(ctx context.Context, rec *Record) {
	rec.transition(StateRunning)
	result, err := e.dispatch(ctx, rec)
	switch {
	case err != nil:
		rec.Err = err
		rec.transition(StateFailed)
		e.terminal(rec)
	case rec.State == StateWaitingForTime || rec.State == StateWaitingForCond:
		e.suspend(rec)
	default:
		rec.Result = result
		rec.transition(StateSucceeded)
		e.terminal(rec)
	}
}

func (e *Engine) suspend(rec *Record) {
	e.mu.Lock()
	e.pending[rec.PID] = rec
	e.mu.Unlock()
	if e.OnSuspend != nil {
		e.OnSuspend(rec)
	}
}

func (e *Engine) terminal(rec *Record) {
	if e.OnTerminal != nil {
		e.OnTerminal(rec)
	}
}

// dispatch executes one target per spec section 4.6's target-kind
// table: a CTRL reference, a MAC-typed CONST/VAR reference, an inline
// AC of targets, or (left as an ADM-specific extension point) a VAR
// reference with action semantics.
func (e *Engine) dispatch(ctx context.Context, rec *Record) (ari.ARI, error) {
	target := rec.Target
	switch {
	case target.Kind == ari.KindLiteral && target.Lit.Type == ari.LitAC:
		return e.runInline(ctx, rec, target.Lit.AC.Items)
	case target.Kind == ari.KindObjectRef:
		return e.dispatchRef(ctx, rec, *target.Ref)
	default:
		return ari.ARI{}, amperr.New(amperr.KindInvalidArguments, "target is neither an object reference nor an inline AC")
	}
}

// runInline executes a nested target list in place (used for both
// literal inline ACs and MAC expansion), returning the last target's
// result as the parent record's nominal result. A nested target that
// requests suspension is rejected: only a top-level execution-set
// target may wait, so the rule engine's timeline always resumes a
// record the engine itself submitted, never one buried inside a MAC
// expansion it would have no independent way to re-enter.
func (e *Engine) runInline(ctx context.Context, rec *Record, items []ari.ARI) (ari.ARI, error) {
	children := e.runTargets(ctx, rec.PID.SetNonce, items)
	var last ari.ARI
	for _, c := range children {
		if c.State == StateFailed {
			return ari.ARI{}, amperr.Wrap(amperr.KindInternal, c.Err, "nested target failed")
		}
		if c.State == StateWaitingForTime || c.State == StateWaitingForCond {
			return ari.ARI{}, amperr.New(amperr.KindInvalidArguments, "a CTRL nested inside a MAC or inline AC may not suspend execution")
		}
		last = c.Result
	}
	return last, nil
}

func (e *Engine) dispatchRef(ctx context.Context, rec *Record, path ari.ObjectPath) (ari.ARI, error) {
	obj, err := e.Store.Lookup(path)
	if err != nil {
		return ari.ARI{}, err
	}
	switch obj.Type {
	case ari.ObjCtrl:
		return e.dispatchCtrl(ctx, rec, path, obj)
	case ari.ObjConst, ari.ObjVar:
		if obj.ResultType != nil && obj.ResultType.Name == "mac" {
			var items []ari.ARI
			if obj.Type == ari.ObjConst {
				cd := obj.Descriptor.(*store.ConstDescriptor)
				items = cd.Value.Lit.AC.Items
			} else {
				items = obj.GetVar().Lit.AC.Items
			}
			return e.runInline(ctx, rec, items)
		}
		return ari.ARI{}, amperr.New(amperr.KindInvalidArguments, "%s %s is not MAC-typed and has no ADM-defined action semantics as a bare execution target", obj.Type, path.Obj)
	default:
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "%s cannot be an execution target", obj.Type)
	}
}

func (e *Engine) dispatchCtrl(ctx context.Context, rec *Record, path ari.ObjectPath, obj *store.Object) (ari.ARI, error) {
	if e.Access != nil {
		if err := e.Access(ctx, path, "execute"); err != nil {
			if amperr.Is(err, amperr.KindAccessDenied) {
				// Spec section 7: "Access-denied before execution
				// replaces the whole target's result with UNDEFINED and
				// records the denial" -- the denial itself is already
				// logged by the checker; rec.Err carries it through to
				// a terminal Succeeded state rather than failing the
				// target outright, so callers can still tell a denied
				// target apart from an ordinary UNDEFINED result.
				rec.Err = err
				return ari.Undefined(), nil
			}
			return ari.ARI{}, err
		}
	}
	cd, ok := obj.Descriptor.(*CtrlDescriptor)
	if !ok {
		return ari.ARI{}, amperr.New(amperr.KindInternal, "CTRL %s has no execution descriptor", path.Obj)
	}
	actuals, err := ActualsFromParams(path.Params)
	if err != nil {
		return ari.ARI{}, err
	}
	env, err := Bind(cd.Formals, actuals)
	if err != nil {
		return ari.ARI{}, err
	}
	rec.Env = env

	cctx := &Ctx{Context: ctx, Env: env, Resumed: rec.State == StateRunning && len(rec.transitions) > 2, Nonce: rec.PID.SetNonce}
	cd.Execute(cctx)
	if cctx.err != nil {
		return ari.ARI{}, cctx.err
	}
	if cctx.waiting {
		if !cctx.waitUntil.IsZero() {
			rec.WaitUntil = cctx.waitUntil
			rec.transition(StateWaitingForTime)
		} else {
			rec.WaitCond = cctx.waitCond
			rec.transition(StateWaitingForCond)
		}
		rec.resumeCtrl = func(resumeCtx context.Context) (ari.ARI, error) {
			rctx := &Ctx{Context: resumeCtx, Env: env, Resumed: true, Nonce: rec.PID.SetNonce}
			cd.Execute(rctx)
			if rctx.err != nil {
				return ari.ARI{}, rctx.err
			}
			if rctx.waiting {
				if !rctx.waitUntil.IsZero() {
					rec.WaitUntil = rctx.waitUntil
				} else {
					rec.WaitCond = rctx.waitCond
				}
				return ari.ARI{}, errStillWaiting
			}
			if rctx.hasResult {
				return rctx.result, nil
			}
			return ari.Undefined(), nil
		}
		return ari.ARI{}, nil
	}
	if cctx.hasResult {
		return cctx.result, nil
	}
	return ari.Undefined(), nil
}

var errStillWaiting = amperr.New(amperr.KindInternal, "control still waiting after resume")

// PendingCond returns the wait-cond expression of a record still
// suspended on a condition, or the UNDEFINED sentinel if pid is not
// currently pending a condition wait (it resolved, failed, or was
// cancelled since the rule timeline last scheduled a re-check).
func (e *Engine) PendingCond(pid PID) ari.ARI {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.pending[pid]
	if !ok || rec.State != StateWaitingForCond {
		return ari.Undefined()
	}
	return rec.WaitCond
}

// ResumeTime resumes a record suspended on wait-for/wait-until. It is
// safe to call from the rule timeline worker goroutine.
func (e *Engine) ResumeTime(ctx context.Context, pid PID) {
	e.resume(ctx, pid, StateWaitingForTime)
}

// ResumeCond resumes a record suspended on wait-cond once the condition
// has been observed true.
func (e *Engine) ResumeCond(ctx context.Context, pid PID) {
	e.resume(ctx, pid, StateWaitingForCond)
}

func (e *Engine) resume(ctx context.Context, pid PID, from RecordState) {
	e.mu.Lock()
	rec, ok := e.pending[pid]
	if ok {
		delete(e.pending, pid)
	}
	e.mu.Unlock()
	if !ok || rec.State != from {
		return
	}
	rec.transition(StateRunning)
	if rec.resumeCtrl == nil {
		rec.Result = ari.Undefined()
		rec.transition(StateSucceeded)
		e.terminal(rec)
		return
	}
	result, err := rec.resumeCtrl(ctx)
	switch {
	case err == errStillWaiting:
		e.suspend(rec)
	case err != nil:
		rec.Err = err
		rec.transition(StateFailed)
		e.terminal(rec)
	default:
		rec.Result = result
		rec.transition(StateSucceeded)
		e.terminal(rec)
	}
}

// EvalTarget executes a single target synchronously and returns its
// result, for control-flow CTRLs (if-then-else, catch) whose own
// parameters are themselves nested targets. The same restriction as
// runInline applies: a target that requests suspension fails rather
// than leaving the enclosing CTRL's invocation half-finished.
func (e *Engine) EvalTarget(ctx context.Context, target ari.ARI) (ari.ARI, error) {
	rec := newRecord(PID{}, target)
	rec.transition(StateRunning)
	result, err := e.dispatch(ctx, rec)
	if err != nil {
		return ari.ARI{}, err
	}
	if rec.State == StateWaitingForTime || rec.State == StateWaitingForCond {
		return ari.ARI{}, amperr.New(amperr.KindInvalidArguments, "a target nested inside if-then-else or catch may not suspend execution")
	}
	return result, nil
}

// PendingRecords returns a snapshot of every record currently suspended
// (WaitingForTime or WaitingForCond), for the running-executions
// catalogue EDD.
func (e *Engine) PendingRecords() []*Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Record, 0, len(e.pending))
	for _, rec := range e.pending {
		out = append(out, rec)
	}
	return out
}

// CancelAll cancels every record still pending suspension, per spec
// section 5: "Outstanding execution records at shutdown are abandoned
// (Cancelled); no best-effort completion."
func (e *Engine) CancelAll() {
	e.mu.Lock()
	pending := make([]*Record, 0, len(e.pending))
	for _, rec := range e.pending {
		pending = append(pending, rec)
	}
	e.pending = make(map[PID]*Record)
	e.mu.Unlock()
	for _, rec := range pending {
		rec.transition(StateCancelled)
		e.terminal(rec)
	}
}

// Now exposes the engine's notion of the current time, overridable in
// tests; it underlies wait-for's relative-duration arithmetic.
var Now = time.Now
