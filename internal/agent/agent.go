// Package agent composes the object store, access control, execution
// engine, rule engine, and reporting engine into one running process,
// per spec section 6.1's agent facade: lifecycle, thread set, locking,
// hello, and cross-ADM reference binding.
//
// Grounded in the teacher's kernel.Kernel: one struct composing every
// subsystem behind named accessors, an eventHandlers fan-out, and a
// Shutdown(ctx) that aggregates per-worker errors via ShutdownError.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtn-amp/agent/internal/acl"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/msg"
	"github.com/dtn-amp/agent/internal/report"
	"github.com/dtn-amp/agent/internal/rules"
	"github.com/dtn-amp/agent/internal/store"
	"github.com/dtn-amp/agent/internal/transport"
)

// Config configures a running Agent. Hand-rolled rather than built on a
// config-file library: the teacher's own config surface (KernelConfig)
// is a plain struct with a DefaultX() constructor, and no YAML/viper
// dependency is wired anywhere in the retrieved corpus, so this
// component is deliberately standard-library-only (see DESIGN.md).
type Config struct {
	ListenAddr string
	HelloAddr  string // empty disables the startup hello report
	LogLevel   Severity
}

// EventHandler observes agent-level lifecycle events, grounded in the
// teacher's KernelEventHandler fan-out.
type EventHandler func(Event)

// Event is one agent lifecycle notification.
type Event struct {
	Kind    string
	At      time.Time
	Details string
}

// Agent is the running process: every subsystem plus the worker set
// and queues that move data between them.
type Agent struct {
	Store  *store.Store
	ACL    *acl.Table
	Exec   *exec.Engine
	Rules  *rules.Engine
	Report *report.Engine
	Logger Logger

	recv transport.Receiver
	send transport.Sender

	ingressQ Queue[transport.Datagram]
	execQ    Queue[execTask]
	reportQ  Queue[reportTask]
	egressQ  Queue[egressTask]

	eventHandlers []EventHandler
	eventMu       sync.RWMutex

	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Counters mirror the prometheus counters in metrics.go as plain integers,
	// read by the ietf/dtnma-agent reflective catalogue EDDs without
	// reaching into the metrics registry.
	Counters Counters

	// DefaultReportDest is where report-on sends a report produced by an
	// internally-triggered target (a rule firing, or startup) that
	// carries no originating manager EID of its own. Set from the -m
	// hello-addr flag by cmd/refda-agent.
	DefaultReportDest string
}

// Counters holds the agent's operational counts, per spec section 6.5's
// catalogue EDD list. Updated alongside (never instead of) the
// Prometheus counters in metrics.go.
type Counters struct {
	MsgRx         atomic.Int64
	MsgRxFailed   atomic.Int64
	MsgTx         atomic.Int64
	ExecStarted   atomic.Int64
	ExecSucceeded atomic.Int64
	ExecFailed    atomic.Int64
	AccessDenied  atomic.Int64
}

type reportTask struct {
	dest      string
	nonce     ari.ARI
	templates []report.Template
}

type egressTask struct {
	dest string
	data []byte
}

// New builds an agent over a store that already holds the base ADMs
// (amm-base, network-base) and a bound transport. The agent-specific
// ADMs (agentadm, agentacl) wire onto the agent's execution engine and
// ACL table, so the caller registers them after this call.
func New(s *store.Store, recv transport.Receiver, send transport.Sender, logger Logger) *Agent {
	execEngine := exec.NewEngine(s, expr.NewBuiltinRegistry())
	aclTable := acl.NewTable()

	reportEngine := report.NewEngine(execEngine)
	a := &Agent{
		Store:    s,
		ACL:      aclTable,
		Exec:     execEngine,
		Report:   reportEngine,
		Logger:   logger,
		recv:     recv,
		send:     send,
		ingressQ: NewQueue[transport.Datagram](),
		execQ:    NewQueue[execTask](),
		reportQ:  NewQueue[reportTask](),
		egressQ:  NewQueue[egressTask](),
	}
	execEngine.Access = func(ctx context.Context, path ari.ObjectPath, permission string) error {
		return a.CheckAccess(managerOf(ctx), isInternal(ctx), acl.Permission(permission), path)
	}
	a.Rules = rules.NewEngine(s, execEngine, func(ctx context.Context, es *ari.ExecSet) {
		a.execQ.Push(execTask{es: es, internal: true})
	})
	return a
}

type ctxKey string

const (
	ctxKeyManager  ctxKey = "amp_manager_eid"
	ctxKeyInternal ctxKey = "amp_internal"
)

// WithManager attaches the originating manager EID to ctx, read back by
// the agent's AccessChecker.
func WithManager(ctx context.Context, eid string) context.Context {
	return context.WithValue(ctx, ctxKeyManager, eid)
}

// WithInternal marks ctx as carrying an internally-triggered operation
// (rule firings, startup, hello), which runs as group 0 and bypasses
// the ACL check per spec section 4.10.
func WithInternal(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyInternal, true)
}

func managerOf(ctx context.Context) string {
	eid, _ := ctx.Value(ctxKeyManager).(string)
	return eid
}

func isInternal(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyInternal).(bool)
	return v
}

// ManagerEID exposes the originating manager EID carried on a CTRL's
// Ctx.Context, used by report-on to pick its reply destination.
func ManagerEID(ctx context.Context) string { return managerOf(ctx) }

// IsInternal exposes whether ctx was marked as an internally-triggered
// operation (rule firing, startup).
func IsInternal(ctx context.Context) bool { return isInternal(ctx) }

// execTask pairs a queued execution set with the identity it should run
// under: the originating manager EID for datagram-triggered sets, or
// internal=true for rule-injected and startup sets.
type execTask struct {
	es       *ari.ExecSet
	mgrEID   string
	internal bool
}

// OnEvent registers an event handler, per the teacher's Kernel.OnEvent.
func (a *Agent) OnEvent(h EventHandler) {
	a.eventMu.Lock()
	defer a.eventMu.Unlock()
	a.eventHandlers = append(a.eventHandlers, h)
}

func (a *Agent) emit(kind, details string) {
	a.eventMu.RLock()
	handlers := append([]EventHandler(nil), a.eventHandlers...)
	a.eventMu.RUnlock()
	ev := Event{Kind: kind, At: time.Now(), Details: details}
	for _, h := range handlers {
		h(ev)
	}
}

// Run starts every worker goroutine (ingress, execution, rule timeline,
// reporting, egress) and blocks until ctx is cancelled, per spec
// section 5's fixed worker set. Exit code mapping lives in cmd/.
func (a *Agent) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.startedAt = time.Now()

	a.wg.Add(5)
	go a.runIngress(runCtx)
	go a.runExecution(runCtx)
	go func() { defer a.wg.Done(); a.Rules.Run(runCtx) }()
	go a.runReporting(runCtx)
	go a.runEgress(runCtx)

	a.emit("agent_started", a.startedAt.Format(time.RFC3339))
	<-runCtx.Done()
	a.wg.Wait()
	return nil
}

// Shutdown cancels every worker and waits for them to exit, aggregating
// per-worker failures via amperr.AggregateError, grounded in the
// teacher's kernel.Shutdown/ShutdownError pattern.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return &amperr.AggregateError{Errors: []error{ctx.Err()}}
	}
	a.Exec.CancelAll()
	if a.recv != nil {
		a.recv.Close()
	}
	if a.send != nil {
		a.send.Close()
	}
	a.emit("agent_shutdown", "")
	return nil
}

func (a *Agent) runIngress(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		dg, err := a.recv.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logAt(a.Logger, SevWarning, "ingress recv failed: %v", err)
			continue
		}
		msgRxTotal.Inc()
		a.Counters.MsgRx.Add(1)
		items, err := msg.Decode(dg.Data)
		if err != nil {
			msgRxFailedTotal.Inc()
			a.Counters.MsgRxFailed.Add(1)
			logAt(a.Logger, SevErr, "decode error from %s: %v", dg.From, err)
			continue
		}
		for _, item := range items {
			if item.Kind == ari.KindLiteral && item.Lit.Type == ari.LitEXECSET {
				a.execQ.Push(execTask{es: item.Lit.ExecSet, mgrEID: dg.From})
			}
		}
	}
}

func (a *Agent) runExecution(ctx context.Context) {
	defer a.wg.Done()
	for {
		task, ok := a.execQ.Pop()
		if !ok {
			return
		}
		var taskCtx context.Context
		if task.internal {
			taskCtx = WithInternal(ctx)
		} else {
			taskCtx = WithManager(ctx, task.mgrEID)
		}
		execStartedTotal.Add(float64(len(task.es.Targets)))
		a.Counters.ExecStarted.Add(int64(len(task.es.Targets)))
		recs := a.Exec.Submit(taskCtx, task.es)
		for _, r := range recs {
			switch r.State {
			case exec.StateSucceeded:
				execSucceededTotal.Inc()
				a.Counters.ExecSucceeded.Add(1)
				// Spec section 7: an access-denied target is replaced
				// with an UNDEFINED result rather than failed outright,
				// but the originating manager still must see a report
				// for it (section 8 scenario 5), not just the log
				// record CheckAccess already emitted.
				if !task.internal && task.mgrEID != "" && r.Err != nil && amperr.Is(r.Err, amperr.KindAccessDenied) {
					a.QueueReport(task.mgrEID, task.es.Nonce, report.Template{
						Source: r.Target,
						Items:  []report.TemplateItem{{Source: r.Target, Resolved: true, Value: ari.Undefined()}},
					})
				}
			case exec.StateFailed:
				execFailedTotal.Inc()
				a.Counters.ExecFailed.Add(1)
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (a *Agent) runReporting(ctx context.Context) {
	defer a.wg.Done()
	for {
		task, ok := a.reportQ.Pop()
		if !ok {
			return
		}
		rs := a.Report.Produce(task.nonce, task.templates...)
		data := msg.Encode([]ari.ARI{ari.RptSetLiteral(rs)})
		a.egressQ.Push(egressTask{dest: task.dest, data: data})
	}
}

func (a *Agent) runEgress(ctx context.Context) {
	defer a.wg.Done()
	for {
		task, ok := a.egressQ.Pop()
		if !ok {
			return
		}
		if err := a.send.Send(ctx, task.dest, task.data); err != nil {
			logAt(a.Logger, SevErr, "egress send to %s failed: %v", task.dest, err)
			continue
		}
		msgTxTotal.Inc()
		a.Counters.MsgTx.Add(1)
	}
}

// QueueReport enqueues a report-production task for a destination
// manager EID, used by report-on CTRLs and the hello/startup paths.
// nonce is stamped onto the produced RPTSET; pass ari.Undefined() to
// let the reporting engine synthesize one (rule-injected or other
// nonce-less callers).
func (a *Agent) QueueReport(dest string, nonce ari.ARI, templates ...report.Template) {
	a.reportQ.Push(reportTask{dest: dest, nonce: nonce, templates: templates})
}

// CheckAccess evaluates the ACL per spec section 4.10 and, on denial,
// records an AccessDenied log entry and increments the denial counter.
func (a *Agent) CheckAccess(mgrEID string, internal bool, perm acl.Permission, path ari.ObjectPath) error {
	if internal {
		return nil
	}
	if a.ACL.Allowed(mgrEID, internal, perm, acl.ObjPathString(path)) {
		return nil
	}
	accessDeniedTotal.Inc()
	a.Counters.AccessDenied.Add(1)
	logAt(a.Logger, SevWarning, "access denied: %s %s on %s", mgrEID, perm, path)
	return amperr.New(amperr.KindAccessDenied, "%s is not permitted to %s %s", mgrEID, perm, path)
}

// RunStartup executes the -s startup-file targets under group 0 (no
// ACL check), per spec section 6.2. Any UNDEFINED result aborts startup
// with an error the caller should map to exit code 3.
func RunStartup(ctx context.Context, a *Agent, targets []ari.ARI) error {
	es := &ari.ExecSet{Nonce: ari.TextLiteral("startup"), Targets: targets}
	recs := a.Exec.Submit(WithInternal(ctx), es)
	for i, r := range recs {
		if r.State == exec.StateFailed || (r.State == exec.StateSucceeded && r.Result.IsUndefined()) {
			return fmt.Errorf("startup target %d did not produce a value: %v", i, r.Err)
		}
	}
	return nil
}
