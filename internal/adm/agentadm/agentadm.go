// Package agentadm registers the ietf/dtnma-agent ADM: the agent's
// self-description (vendor, version, capabilities, hello), its
// operational counters and object-catalogue EDDs, and the built-in
// control-flow CTRL repertoire (if-then-else, catch, the wait family,
// inspect, report-on, and the VAR lifecycle controls) from spec
// sections 4.6.2 and 6.5.
//
// Grounded in the teacher's kernel service-registration constructors:
// Register takes every subsystem it closes over as a parameter (store,
// exec engine, agent facade) the same way kernel.RegisterHealthService
// takes the kernel and a logger, rather than reaching for ambient
// globals.
package agentadm

import (
	"context"

	"github.com/dtn-amp/agent/internal/agent"
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/report"
	"github.com/dtn-amp/agent/internal/store"
)

const (
	Org   = "ietf"
	Model = "dtnma-agent"

	// Vendor and Version are the agent's self-reported identity, surfaced
	// by the vendor/version CONSTs and the hello report.
	Vendor  = "dtn-amp/agent"
	Version = "1.0.0"
)

// ctrlID enumerates this ADM's CTRLs by stable int-id, for compact
// wire references.
type ctrlID int64

const (
	ctrlIfThenElse ctrlID = iota
	ctrlCatch
	ctrlWaitFor
	ctrlWaitUntil
	ctrlWaitCond
	ctrlInspect
	ctrlReportOn
	ctrlVarStore
	ctrlVarReset
	ctrlEnsureVar
	ctrlDiscardVar
)

// Register populates the ietf/dtnma-agent namespace: CONSTs, EDDs, and
// CTRLs. Call once during bring-up, after ammbase/netbase have
// registered and before store.Bind.
func Register(s *store.Store, execEngine *exec.Engine, a *agent.Agent) *store.Namespace {
	ns := s.AddNamespace(ari.NameIdent(Org), ari.NameIdent(Model), "1.0")

	registerConsts(s, ns)
	registerEDDs(s, ns, execEngine, a)
	registerCtrls(s, ns, execEngine, a)
	return ns
}

func registerConsts(s *store.Store, ns *store.Namespace) {
	_ = s.Register(ns, &store.Object{
		Type: ari.ObjConst, Name: "vendor", HasIntID: true, IntID: 0,
		ResultType: types.Use(ari.LitTextstr),
		Descriptor: &store.ConstDescriptor{Value: ari.TextLiteral(Vendor)},
	})
	_ = s.Register(ns, &store.Object{
		Type: ari.ObjConst, Name: "version", HasIntID: true, IntID: 1,
		ResultType: types.Use(ari.LitTextstr),
		Descriptor: &store.ConstDescriptor{Value: ari.TextLiteral(Version)},
	})
	capabilities := ari.ACLiteral([]ari.ARI{
		ari.TextLiteral("execset"), ari.TextLiteral("rptset"),
		ari.TextLiteral("tbr"), ari.TextLiteral("sbr"),
		ari.TextLiteral("acl"),
	})
	_ = s.Register(ns, &store.Object{
		Type: ari.ObjConst, Name: "capabilities", HasIntID: true, IntID: 2,
		ResultType: types.Use(ari.LitAC),
		Descriptor: &store.ConstDescriptor{Value: capabilities},
	})
	_ = s.Register(ns, &store.Object{
		Type: ari.ObjConst, Name: "hello", HasIntID: true, IntID: 3,
		ResultType: types.Use(ari.LitTextstr),
		Descriptor: &store.ConstDescriptor{Value: ari.TextLiteral(Vendor + " " + Version)},
	})
}

func registerEDDs(s *store.Store, ns *store.Namespace, execEngine *exec.Engine, a *agent.Agent) {
	counter := func(name string, id int64, get func() int64) {
		_ = s.Register(ns, &store.Object{
			Type: ari.ObjEDD, Name: name, HasIntID: true, IntID: id,
			ResultType: types.Use(ari.LitVast),
			Descriptor: &store.EDDDescriptor{
				Produce: func(ctx context.Context) (ari.ARI, error) {
					return ari.VastLiteral(get()), nil
				},
			},
		})
	}
	counter("num-msg-rx", 0, func() int64 { return a.Counters.MsgRx.Load() })
	counter("num-msg-rx-failed", 1, func() int64 { return a.Counters.MsgRxFailed.Load() })
	counter("num-msg-tx", 2, func() int64 { return a.Counters.MsgTx.Load() })
	counter("num-exec-started", 3, func() int64 { return a.Counters.ExecStarted.Load() })
	counter("num-exec-succeeded", 4, func() int64 { return a.Counters.ExecSucceeded.Load() })
	counter("num-exec-failed", 5, func() int64 { return a.Counters.ExecFailed.Load() })
	counter("num-access-denied", 6, func() int64 { return a.Counters.AccessDenied.Load() })

	_ = s.Register(ns, &store.Object{
		Type: ari.ObjEDD, Name: "running-execs", HasIntID: true, IntID: 7,
		ResultType: types.Use(ari.LitTBL),
		Descriptor: &store.EDDDescriptor{
			Produce: func(ctx context.Context) (ari.ARI, error) {
				recs := execEngine.PendingRecords()
				cells := make([]ari.ARI, 0, len(recs)*2)
				for _, r := range recs {
					cells = append(cells, ari.VastLiteral(int64(r.PID.Index)), ari.TextLiteral(string(r.State)))
				}
				return ari.TblLiteral(&ari.Table{Columns: 2, Cells: cells}), nil
			},
		},
	})

	catalogue := func(name string, id int64, t ari.ObjType) {
		_ = s.Register(ns, &store.Object{
			Type: ari.ObjEDD, Name: name, HasIntID: true, IntID: id,
			ResultType: types.Use(ari.LitTBL),
			Descriptor: &store.EDDDescriptor{
				Produce: func(ctx context.Context) (ari.ARI, error) {
					var cells []ari.ARI
					for _, namespace := range s.Namespaces() {
						namespace.Iterate(func(ot ari.ObjType, obj *store.Object) {
							if ot == t {
								cells = append(cells, ari.TextLiteral(namespace.OrgName), ari.TextLiteral(namespace.ModelName), ari.TextLiteral(obj.Name))
							}
						})
					}
					return ari.TblLiteral(&ari.Table{Columns: 3, Cells: cells}), nil
				},
			},
		})
	}
	catalogue("typedef-list", 8, ari.ObjTypedef)
	catalogue("var-list", 9, ari.ObjVar)
	catalogue("sbr-list", 10, ari.ObjSBR)
	catalogue("tbr-list", 11, ari.ObjTBR)
}

func registerCtrls(s *store.Store, ns *store.Namespace, execEngine *exec.Engine, a *agent.Agent) {
	reg := func(name string, id ctrlID, formals []store.Param, resultType *types.SemType, fn exec.CtrlFunc) {
		_ = s.Register(ns, &store.Object{
			Type: ari.ObjCtrl, Name: name, HasIntID: true, IntID: int64(id),
			Params:     formals,
			ResultType: resultType,
			Descriptor: &exec.CtrlDescriptor{Formals: formals, ResultType: resultType, Execute: fn},
		})
	}

	undefinedDefault := ari.Undefined()

	reg("if-then-else", ctrlIfThenElse,
		[]store.Param{
			{Name: "cond", Type: types.Use(ari.LitAC)},
			{Name: "then"},
			{Name: "else", Default: &undefinedDefault},
		},
		nil,
		func(c *exec.Ctx) { ifThenElse(c, execEngine) },
	)

	reg("catch", ctrlCatch,
		[]store.Param{
			{Name: "action"},
			{Name: "handler", Default: &undefinedDefault},
		},
		nil,
		func(c *exec.Ctx) { catchCtrl(c, execEngine) },
	)

	reg("wait-for", ctrlWaitFor,
		[]store.Param{{Name: "td", Type: types.Use(ari.LitTD)}},
		nil,
		func(c *exec.Ctx) {
			if c.Resumed {
				c.SetResult(ari.Undefined())
				return
			}
			td, _ := c.Env.Get("td")
			c.WaitFor(td.Lit.TD)
		},
	)

	reg("wait-until", ctrlWaitUntil,
		[]store.Param{{Name: "tp", Type: types.Use(ari.LitTP)}},
		nil,
		func(c *exec.Ctx) {
			if c.Resumed {
				c.SetResult(ari.Undefined())
				return
			}
			tp, _ := c.Env.Get("tp")
			c.WaitUntilTime(tp.Lit.TP)
		},
	)

	reg("wait-cond", ctrlWaitCond,
		[]store.Param{{Name: "expr", Type: types.Use(ari.LitAC)}},
		nil,
		func(c *exec.Ctx) {
			if c.Resumed {
				c.SetResult(ari.Undefined())
				return
			}
			expr, _ := c.Env.Get("expr")
			c.WaitCond(expr)
		},
	)

	reg("inspect", ctrlInspect,
		[]store.Param{{Name: "value"}},
		nil,
		func(c *exec.Ctx) {
			v, _ := c.Env.Get("value")
			c.SetResult(v)
		},
	)

	reg("report-on", ctrlReportOn,
		[]store.Param{{Name: "rptt", Type: types.Use(ari.LitAC)}},
		nil,
		func(c *exec.Ctx) { reportOn(c, a) },
	)

	reg("var-store", ctrlVarStore,
		[]store.Param{{Name: "var-ref"}, {Name: "value"}},
		nil,
		func(c *exec.Ctx) { varStore(c, s) },
	)

	reg("var-reset", ctrlVarReset,
		[]store.Param{{Name: "var-ref"}},
		nil,
		func(c *exec.Ctx) { varReset(c, s) },
	)

	reg("ensure-var", ctrlEnsureVar,
		[]store.Param{{Name: "ref"}, {Name: "type"}, {Name: "init"}},
		nil,
		func(c *exec.Ctx) { ensureVar(c, s) },
	)

	reg("discard-var", ctrlDiscardVar,
		[]store.Param{{Name: "ref"}},
		nil,
		func(c *exec.Ctx) { discardVar(c, s) },
	)
}

func ifThenElse(c *exec.Ctx, e *exec.Engine) {
	condV, _ := c.Env.Get("cond")
	if condV.Kind != ari.KindLiteral || condV.Lit.Type != ari.LitAC {
		c.Fail(amperr.New(amperr.KindInvalidArguments, "if-then-else: cond must be an expression AC"))
		return
	}
	result, err := e.EvalExpr(condV.Lit.AC.Items)
	if err != nil {
		c.Fail(err)
		return
	}
	branch := "else"
	if result.Kind == ari.KindLiteral && result.Lit.Type == ari.LitBool && result.Lit.Bool {
		branch = "then"
	}
	target, _ := c.Env.Get(branch)
	if target.IsUndefined() {
		c.SetResult(ari.Undefined())
		return
	}
	v, err := e.EvalTarget(c.Context, target)
	if err != nil {
		c.Fail(err)
		return
	}
	c.SetResult(v)
}

func catchCtrl(c *exec.Ctx, e *exec.Engine) {
	action, _ := c.Env.Get("action")
	v, err := e.EvalTarget(c.Context, action)
	if err == nil {
		c.SetResult(v)
		return
	}
	handler, _ := c.Env.Get("handler")
	if handler.IsUndefined() {
		c.SetResult(ari.Undefined())
		return
	}
	hv, herr := e.EvalTarget(c.Context, handler)
	if herr != nil {
		c.Fail(herr)
		return
	}
	c.SetResult(hv)
}

func reportOn(c *exec.Ctx, a *agent.Agent) {
	rptt, _ := c.Env.Get("rptt")
	if rptt.Kind != ari.KindLiteral || rptt.Lit.Type != ari.LitAC {
		c.Fail(amperr.New(amperr.KindInvalidArguments, "report-on: rptt must be an AC of template items"))
		return
	}
	items := make([]report.TemplateItem, 0, len(rptt.Lit.AC.Items))
	for _, it := range rptt.Lit.AC.Items {
		isExpr := it.Kind == ari.KindLiteral && it.Lit.Type == ari.LitAC
		items = append(items, report.TemplateItem{Source: it, IsExpr: isExpr})
	}
	tmpl := report.Template{Source: ari.ACLiteral(rptt.Lit.AC.Items), Items: items}

	dest := agent.ManagerEID(c.Context)
	if dest == "" {
		dest = a.DefaultReportDest
	}
	if dest != "" {
		a.QueueReport(dest, c.Nonce, tmpl)
	}
	c.SetResult(ari.Undefined())
}

func varRefPath(v ari.ARI) (ari.ObjectPath, error) {
	if v.Kind != ari.KindObjectRef {
		return ari.ObjectPath{}, amperr.New(amperr.KindInvalidArguments, "expected a VAR object reference")
	}
	return *v.Ref, nil
}

func varStore(c *exec.Ctx, s *store.Store) {
	refV, _ := c.Env.Get("var-ref")
	path, err := varRefPath(refV)
	if err != nil {
		c.Fail(err)
		return
	}
	obj, err := s.Lookup(path)
	if err != nil {
		c.Fail(err)
		return
	}
	if obj.Type != ari.ObjVar {
		c.Fail(amperr.New(amperr.KindTypeMismatch, "var-store: %s is not a VAR", path.Obj))
		return
	}
	value, _ := c.Env.Get("value")
	if obj.ResultType != nil {
		coerced, err := types.Convert(obj.ResultType, value)
		if err != nil {
			c.Fail(amperr.Wrap(amperr.KindInvalidArguments, err, "var-store"))
			return
		}
		value = coerced
	}
	obj.SetVar(value)
	c.SetResult(ari.Undefined())
}

func varReset(c *exec.Ctx, s *store.Store) {
	refV, _ := c.Env.Get("var-ref")
	path, err := varRefPath(refV)
	if err != nil {
		c.Fail(err)
		return
	}
	obj, err := s.Lookup(path)
	if err != nil {
		c.Fail(err)
		return
	}
	if obj.Type != ari.ObjVar {
		c.Fail(amperr.New(amperr.KindTypeMismatch, "var-reset: %s is not a VAR", path.Obj))
		return
	}
	obj.ResetVar()
	c.SetResult(ari.Undefined())
}

func typeTagToSemType(s *store.Store, v ari.ARI) (*types.SemType, error) {
	if v.Kind != ari.KindLiteral || v.Lit.Type != ari.LitARITYPE {
		return nil, amperr.New(amperr.KindInvalidArguments, "ensure-var: type must be an ARITYPE value")
	}
	tag := v.Lit.Type_
	if tag.Builtin {
		return types.Use(tag.Lit), nil
	}
	if tag.TypedefAt == nil {
		return nil, amperr.New(amperr.KindInvalidArguments, "ensure-var: type references no TYPEDEF")
	}
	obj, err := s.Lookup(*tag.TypedefAt)
	if err != nil {
		return nil, err
	}
	st, ok := obj.Descriptor.(*types.SemType)
	if !ok {
		return nil, amperr.New(amperr.KindInternal, "TYPEDEF %s has no semantic type descriptor", tag.TypedefAt.Obj)
	}
	return st, nil
}

func ensureVar(c *exec.Ctx, s *store.Store) {
	refV, _ := c.Env.Get("ref")
	path, err := varRefPath(refV)
	if err != nil {
		c.Fail(err)
		return
	}
	typeV, _ := c.Env.Get("type")
	semType, err := typeTagToSemType(s, typeV)
	if err != nil {
		c.Fail(err)
		return
	}
	init, _ := c.Env.Get("init")
	if _, err := s.EnsureVar(path, semType, init); err != nil {
		c.Fail(err)
		return
	}
	c.SetResult(ari.Undefined())
}

func discardVar(c *exec.Ctx, s *store.Store) {
	refV, _ := c.Env.Get("ref")
	path, err := varRefPath(refV)
	if err != nil {
		c.Fail(err)
		return
	}
	if err := s.DiscardVar(path); err != nil {
		c.Fail(err)
		return
	}
	c.SetResult(ari.Undefined())
}

// Path builds a reference into this namespace, used by cmd/ startup
// scripting and tests.
func Path(t ari.ObjType, name string) ari.ObjectPath {
	return ari.ObjectPath{Org: ari.NameIdent(Org), Model: ari.NameIdent(Model), Type: t, Obj: ari.NameIdent(name)}
}
