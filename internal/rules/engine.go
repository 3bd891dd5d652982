package rules

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/store"
)

// ruleRef is what the engine needs to evaluate and re-schedule one rule
// object without going back through a full store.Lookup on every tick.
type ruleRef struct {
	path ari.ObjectPath
	tbr  *store.TBRDescriptor
	sbr  *store.SBRDescriptor
}

// Engine runs the shared TBR/SBR/suspended-record timeline described in
// spec section 4.9, on one dedicated worker goroutine.
type Engine struct {
	Store *store.Store
	Exec  *exec.Engine

	// Submit is how a fired rule's action re-enters the execution
	// pipeline; wired to the agent facade's ingress queue rather than
	// called as exec.Engine.Submit directly, so a fired rule competes
	// fairly with manager-originated execution sets.
	Submit func(ctx context.Context, es *ari.ExecSet)

	mu    sync.Mutex
	rules map[string]*ruleRef
	h     timelineHeap
	wake  chan struct{}

	nonceSeq int64
}

// NewEngine returns a rule engine bound to s and an execution engine
// exec for re-entrant action submission.
func NewEngine(s *store.Store, execEngine *exec.Engine, submit func(ctx context.Context, es *ari.ExecSet)) *Engine {
	e := &Engine{
		Store:  s,
		Exec:   execEngine,
		Submit: submit,
		rules:  make(map[string]*ruleRef),
		wake:   make(chan struct{}, 1),
	}
	execEngine.OnSuspend = e.onSuspend
	return e
}

func ruleKey(path ari.ObjectPath) string {
	return fmt.Sprintf("%s/%s/%s/%s", path.Org, path.Model, path.Type, path.Obj)
}

// RegisterTBR installs (or re-installs) a TBR into the timeline, per
// spec section 3.4: initial eval-time is its configured start.
func (e *Engine) RegisterTBR(path ari.ObjectPath, d *store.TBRDescriptor) {
	d.Lock()
	if d.EvalTime.IsZero() {
		d.EvalTime = d.Start
	}
	d.Enabled = true
	at := d.EvalTime
	d.Unlock()

	key := ruleKey(path)
	e.mu.Lock()
	e.rules[key] = &ruleRef{path: path, tbr: d}
	e.h.removeRule(key)
	heap.Push(&e.h, &entry{kind: KindTBR, at: at, ruleKey: key})
	e.mu.Unlock()
	e.signal()
}

// RegisterSBR installs (or re-installs) an SBR into the timeline.
func (e *Engine) RegisterSBR(path ari.ObjectPath, d *store.SBRDescriptor, start time.Time) {
	d.Lock()
	if d.EvalTime.IsZero() {
		d.EvalTime = start
	}
	d.Enabled = true
	at := d.EvalTime
	d.Unlock()

	key := ruleKey(path)
	e.mu.Lock()
	e.rules[key] = &ruleRef{path: path, sbr: d}
	e.h.removeRule(key)
	heap.Push(&e.h, &entry{kind: KindSBR, at: at, ruleKey: key})
	e.mu.Unlock()
	e.signal()
}

// onSuspend is the exec.Engine.OnSuspend hook: a suspended record joins
// the same timeline so a single worker drives both rule firings and
// execution resumption in time order.
func (e *Engine) onSuspend(rec *exec.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch rec.State {
	case exec.StateWaitingForTime:
		heap.Push(&e.h, &entry{kind: KindSuspendedTime, at: rec.WaitUntil, pid: rec.PID})
	case exec.StateWaitingForCond:
		// Condition waits are re-checked on every tick rather than
		// scheduled for a specific time; they share the timeline by
		// being re-inserted one tick ahead of "now" each time they are
		// found still false.
		heap.Push(&e.h, &entry{kind: KindSuspendedCond, at: time.Now(), pid: rec.PID})
	}
	e.signalLocked()
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) signalLocked() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run drives the timeline until ctx is cancelled. It is meant to run on
// its own goroutine, started by the agent facade alongside the other
// pipeline workers.
func (e *Engine) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		e.mu.Lock()
		next := e.h.peek()
		e.mu.Unlock()

		var wait time.Duration
		if next == nil {
			wait = time.Hour
		} else {
			wait = time.Until(next.at)
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.tick(ctx)
		case <-e.wake:
			// Timeline changed (new registration or suspension); loop
			// around to recompute the sleep duration.
		}
	}
}

// tick pops and dispatches every entry whose time has arrived.
func (e *Engine) tick(ctx context.Context) {
	for {
		e.mu.Lock()
		next := e.h.peek()
		if next == nil || next.at.After(time.Now()) {
			e.mu.Unlock()
			return
		}
		item := heap.Pop(&e.h).(*entry)
		e.mu.Unlock()

		switch item.kind {
		case KindTBR:
			e.fireTBR(ctx, item)
		case KindSBR:
			e.evalSBR(ctx, item)
		case KindSuspendedTime:
			e.Exec.ResumeTime(ctx, item.pid)
		case KindSuspendedCond:
			e.evalSuspendedCond(ctx, item)
		}
	}
}

func (e *Engine) fireTBR(ctx context.Context, item *entry) {
	e.mu.Lock()
	ref := e.rules[item.ruleKey]
	e.mu.Unlock()
	if ref == nil || ref.tbr == nil {
		return
	}
	d := ref.tbr
	d.Lock()
	if !d.Enabled {
		d.Unlock()
		return
	}
	d.EvalTime = d.EvalTime.Add(d.Period)
	d.FireCount++
	disable := d.MaxFire > 0 && d.FireCount >= d.MaxFire
	if disable {
		d.Enabled = false
	}
	nextAt := d.EvalTime
	action := append([]ari.ARI(nil), d.Action...)
	d.Unlock()

	e.enqueueAction(ctx, action)

	if !disable {
		e.mu.Lock()
		heap.Push(&e.h, &entry{kind: KindTBR, at: nextAt, ruleKey: item.ruleKey})
		e.mu.Unlock()
	}
}

func (e *Engine) evalSBR(ctx context.Context, item *entry) {
	e.mu.Lock()
	ref := e.rules[item.ruleKey]
	e.mu.Unlock()
	if ref == nil || ref.sbr == nil {
		return
	}
	d := ref.sbr
	d.Lock()
	if !d.Enabled {
		d.Unlock()
		return
	}
	cond := append([]ari.ARI(nil), d.Condition...)
	d.Unlock()

	result, err := e.Exec.EvalExpr(cond)
	fired := err == nil && result.Kind == ari.KindLiteral && result.Lit.Type == ari.LitBool && result.Lit.Bool

	d.Lock()
	d.EvalTime = d.EvalTime.Add(d.MinInterval)
	d.EvalCount++
	if fired {
		d.FireCount++
	}
	disable := (d.MaxEval > 0 && d.EvalCount >= d.MaxEval) || (d.MaxFire > 0 && d.FireCount >= d.MaxFire)
	if disable {
		d.Enabled = false
	}
	nextAt := d.EvalTime
	action := append([]ari.ARI(nil), d.Action...)
	d.Unlock()

	if fired {
		e.enqueueAction(ctx, action)
	}
	if !disable {
		e.mu.Lock()
		heap.Push(&e.h, &entry{kind: KindSBR, at: nextAt, ruleKey: item.ruleKey})
		e.mu.Unlock()
	}
}

func (e *Engine) evalSuspendedCond(ctx context.Context, item *entry) {
	cond := e.Exec.PendingCond(item.pid)
	if cond.IsUndefined() {
		// The record resolved (or was cancelled) by some other path
		// between suspension and this tick; nothing to do.
		return
	}
	result, err := e.Exec.EvalExpr(cond.Lit.AC.Items)
	if err == nil && result.Kind == ari.KindLiteral && result.Lit.Type == ari.LitBool && result.Lit.Bool {
		e.Exec.ResumeCond(ctx, item.pid)
		return
	}
	e.mu.Lock()
	heap.Push(&e.h, &entry{kind: KindSuspendedCond, at: time.Now().Add(50 * time.Millisecond), pid: item.pid})
	e.mu.Unlock()
}

func (e *Engine) enqueueAction(ctx context.Context, action []ari.ARI) {
	e.nonceSeq++
	es := &ari.ExecSet{Nonce: ari.UvastLiteral(uint64(e.nonceSeq)), Targets: action}
	if e.Submit != nil {
		e.Submit(ctx, es)
	}
}
