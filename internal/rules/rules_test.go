package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/store"
)

func ctrlPath(name string) ari.ObjectPath {
	return ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("test-mod"),
		Type: ari.ObjCtrl, Obj: ari.NameIdent(name),
	}
}

func rulePath(name string) ari.ObjectPath {
	return ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("test-mod"),
		Type: ari.ObjTBR, Obj: ari.NameIdent(name),
	}
}

func newHarness(t *testing.T) (*store.Store, *exec.Engine, *Engine, *int) {
	s := store.New()
	ns := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	fireCount := 0
	require.NoError(t, s.Register(ns, &store.Object{
		Type: ari.ObjCtrl, Name: "tick",
		Descriptor: &exec.CtrlDescriptor{
			Execute: func(c *exec.Ctx) { fireCount++; c.SetResult(ari.Undefined()) },
		},
	}))

	ee := exec.NewEngine(s, expr.NewBuiltinRegistry())
	re := NewEngine(s, ee, func(ctx context.Context, es *ari.ExecSet) {
		ee.Submit(ctx, es)
	})
	return s, ee, re, &fireCount
}

func TestTBRFiresRepeatedlyUntilMaxFire(t *testing.T) {
	_, _, re, fireCount := newHarness(t)
	d := &store.TBRDescriptor{
		Start:   time.Now(),
		Period:  10 * time.Millisecond,
		MaxFire: 3,
		Action:  []ari.ARI{ari.ObjRef(ctrlPath("tick"))},
	}
	re.RegisterTBR(rulePath("r1"), d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go re.Run(ctx)

	require.Eventually(t, func() bool {
		enabled, count, _ := d.Snapshot()
		return !enabled && count == 3
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return *fireCount == 3 }, time.Second, 5*time.Millisecond)
}

func TestSBRFiresWhenConditionTrue(t *testing.T) {
	_, _, re, fireCount := newHarness(t)
	d := &store.SBRDescriptor{
		Condition:   []ari.ARI{ari.BoolLiteral(true)},
		MinInterval: 10 * time.Millisecond,
		MaxEval:     3,
		Action:      []ari.ARI{ari.ObjRef(ctrlPath("tick"))},
	}
	re.RegisterSBR(rulePath("r2"), d, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go re.Run(ctx)

	require.Eventually(t, func() bool {
		enabled, evalCount, fireCount, _ := d.Snapshot()
		return !enabled && evalCount == 3 && fireCount == 3
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return *fireCount == 3 }, time.Second, 5*time.Millisecond)
}

func TestSBRDoesNotFireWhenConditionFalse(t *testing.T) {
	_, _, re, fireCount := newHarness(t)
	d := &store.SBRDescriptor{
		Condition:   []ari.ARI{ari.BoolLiteral(false)},
		MinInterval: 10 * time.Millisecond,
		MaxEval:     2,
		Action:      []ari.ARI{ari.ObjRef(ctrlPath("tick"))},
	}
	re.RegisterSBR(rulePath("r3"), d, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go re.Run(ctx)

	require.Eventually(t, func() bool {
		enabled, evalCount, _, _ := d.Snapshot()
		return !enabled && evalCount == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 0, *fireCount)
}
