package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/store"
)

func ctrlPath(name string) ari.ObjectPath {
	return ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("test-mod"),
		Type: ari.ObjCtrl, Obj: ari.NameIdent(name),
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *store.Namespace) {
	s := store.New()
	ns := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	e := NewEngine(s, expr.NewBuiltinRegistry())
	return e, s, ns
}

func TestSubmitSucceedingCtrl(t *testing.T) {
	e, s, ns := newTestEngine(t)
	require.NoError(t, s.Register(ns, &store.Object{
		Type: ari.ObjCtrl, Name: "echo",
		Descriptor: &CtrlDescriptor{
			Execute: func(c *Ctx) { c.SetResult(ari.TextLiteral("ok")) },
		},
	}))

	es := &ari.ExecSet{Nonce: ari.IntLiteral(1), Targets: []ari.ARI{ari.ObjRef(ctrlPath("echo"))}}
	recs := e.Submit(context.Background(), es)
	require.Len(t, recs, 1)
	recs[0].Wait()
	require.Equal(t, StateSucceeded, recs[0].State)
	require.True(t, recs[0].Result.Equal(ari.TextLiteral("ok")))
}

func TestSubmitFailingCtrl(t *testing.T) {
	e, s, ns := newTestEngine(t)
	require.NoError(t, s.Register(ns, &store.Object{
		Type: ari.ObjCtrl, Name: "boom",
		Descriptor: &CtrlDescriptor{
			Execute: func(c *Ctx) { c.Fail(require.AnError) },
		},
	}))

	es := &ari.ExecSet{Nonce: ari.IntLiteral(2), Targets: []ari.ARI{ari.ObjRef(ctrlPath("boom"))}}
	recs := e.Submit(context.Background(), es)
	require.Len(t, recs, 1)
	recs[0].Wait()
	require.Equal(t, StateFailed, recs[0].State)
	require.Error(t, recs[0].Err)
}

func TestSubmitThreadsExecSetNonceIntoCtx(t *testing.T) {
	e, s, ns := newTestEngine(t)
	var seen ari.ARI
	require.NoError(t, s.Register(ns, &store.Object{
		Type: ari.ObjCtrl, Name: "echo",
		Descriptor: &CtrlDescriptor{
			Execute: func(c *Ctx) {
				seen = c.Nonce
				c.SetResult(ari.TextLiteral("ok"))
			},
		},
	}))

	es := &ari.ExecSet{Nonce: ari.UvastLiteral(7), Targets: []ari.ARI{ari.ObjRef(ctrlPath("echo"))}}
	recs := e.Submit(context.Background(), es)
	recs[0].Wait()
	require.True(t, seen.Equal(ari.UvastLiteral(7)))
}

func TestSubmitAccessDenied(t *testing.T) {
	e, s, ns := newTestEngine(t)
	require.NoError(t, s.Register(ns, &store.Object{
		Type: ari.ObjCtrl, Name: "echo",
		Descriptor: &CtrlDescriptor{
			Execute: func(c *Ctx) { c.SetResult(ari.TextLiteral("ok")) },
		},
	}))
	e.Access = func(ctx context.Context, target ari.ObjectPath, permission string) error {
		return amperr.New(amperr.KindAccessDenied, "%s denied", permission)
	}

	es := &ari.ExecSet{Nonce: ari.IntLiteral(3), Targets: []ari.ARI{ari.ObjRef(ctrlPath("echo"))}}
	recs := e.Submit(context.Background(), es)
	require.Len(t, recs, 1)
	recs[0].Wait()
	// Spec section 7: access-denied substitutes UNDEFINED rather than
	// failing the target outright; the denial is still recorded on the
	// record's Err for the agent facade to surface as a report.
	require.Equal(t, StateSucceeded, recs[0].State)
	require.True(t, recs[0].Result.IsUndefined())
	require.True(t, amperr.Is(recs[0].Err, amperr.KindAccessDenied))
}

func TestSubmitNonAccessDeniedErrorStillFails(t *testing.T) {
	e, s, ns := newTestEngine(t)
	require.NoError(t, s.Register(ns, &store.Object{
		Type: ari.ObjCtrl, Name: "echo",
		Descriptor: &CtrlDescriptor{
			Execute: func(c *Ctx) { c.SetResult(ari.TextLiteral("ok")) },
		},
	}))
	e.Access = func(ctx context.Context, target ari.ObjectPath, permission string) error {
		return require.AnError
	}

	es := &ari.ExecSet{Nonce: ari.IntLiteral(3), Targets: []ari.ARI{ari.ObjRef(ctrlPath("echo"))}}
	recs := e.Submit(context.Background(), es)
	require.Len(t, recs, 1)
	recs[0].Wait()
	require.Equal(t, StateFailed, recs[0].State)
}

func TestRecordTransitionValidity(t *testing.T) {
	require.True(t, IsValidTransition(StatePending, StateRunning))
	require.True(t, IsValidTransition(StateRunning, StateWaitingForTime))
	require.False(t, IsValidTransition(StateSucceeded, StateRunning))
	require.False(t, IsValidTransition(StatePending, StateSucceeded))
}

func TestInlineACRunsSequentially(t *testing.T) {
	e, s, ns := newTestEngine(t)
	var order []string
	mk := func(name string) {
		n := name
		require.NoError(t, s.Register(ns, &store.Object{
			Type: ari.ObjCtrl, Name: n,
			Descriptor: &CtrlDescriptor{
				Execute: func(c *Ctx) {
					order = append(order, n)
					c.SetResult(ari.TextLiteral(n))
				},
			},
		}))
	}
	mk("first")
	mk("second")

	items := []ari.ARI{ari.ObjRef(ctrlPath("first")), ari.ObjRef(ctrlPath("second"))}
	es := &ari.ExecSet{Nonce: ari.IntLiteral(4), Targets: []ari.ARI{ari.ACLiteral(items)}}
	recs := e.Submit(context.Background(), es)
	require.Len(t, recs, 1)
	recs[0].Wait()
	require.Equal(t, StateSucceeded, recs[0].State)
	require.True(t, recs[0].Result.Equal(ari.TextLiteral("second")))
	require.Equal(t, []string{"first", "second"}, order)
}
