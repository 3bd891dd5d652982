package exec

import (
	"context"
	"time"

	"github.com/dtn-amp/agent/internal/ari"
)

// Ctx is passed to a CTRL's execute callback. The callback reads actual
// parameters from it, performs its action, and sets exactly one of a
// result value or an error. Waiting is expressed by calling WaitFor or
// WaitUntilTime (time-based) or WaitCond (condition-based) instead of
// blocking the calling goroutine; the engine then suspends the record
// and re-invokes the same callback once the wait is satisfied, with
// Resumed set to true.
type Ctx struct {
	context.Context

	Env     *ParamEnv
	Resumed bool

	// Nonce is the originating EXECSET's nonce, threaded through so a
	// CTRL like report-on can stamp its produced RPTSET with the same
	// nonce the manager sent, per spec section 8 scenario 1.
	Nonce ari.ARI

	result  ari.ARI
	hasResult bool
	err     error

	waitUntil time.Time
	waitCond  ari.ARI
	waiting   bool
}

// SetResult records the callback's successful result.
func (c *Ctx) SetResult(v ari.ARI) { c.result = v; c.hasResult = true }

// Fail records the callback's failure.
func (c *Ctx) Fail(err error) { c.err = err }

// WaitFor suspends the record until d has elapsed.
func (c *Ctx) WaitFor(d time.Duration) { c.waitUntil = time.Now().Add(d); c.waiting = true }

// WaitUntilTime suspends the record until the given absolute time.
func (c *Ctx) WaitUntilTime(t time.Time) { c.waitUntil = t; c.waiting = true }

// WaitCond suspends the record until expr evaluates to BOOL true.
func (c *Ctx) WaitCond(expr ari.ARI) { c.waitCond = expr; c.waiting = true }

// CtrlFunc is a registered CTRL's execution callback.
type CtrlFunc func(ctx *Ctx)
