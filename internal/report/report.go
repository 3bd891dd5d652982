// Package report implements the reporting engine: it materializes
// report templates into RPTSET values, per spec section 4.8.
//
// Grounded in the teacher's observability package: the engine emits
// real Prometheus counters/histograms (amp_reports_produced_total,
// amp_report_production_duration_seconds) via the same
// promauto.NewCounterVec/NewHistogramVec idiom used for
// jeeves_pipeline_executions_total/jeeves_pipeline_duration_seconds,
// applied to a genuinely new concern (report production) rather than
// reusing the teacher's pipeline labels.
package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
)

var (
	reportsProducedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amp_reports_produced_total",
			Help: "Total number of RPTSETs produced by the reporting engine",
		},
		[]string{"status"},
	)

	reportProductionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amp_report_production_duration_seconds",
			Help:    "Time taken to materialize one RPTSET from its report templates",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{},
	)
)

// Template is one report template: the reference that produced it
// (recorded as the resulting report's source ARI) and an ordered list
// of items, each either a value-object reference or an expression AC,
// per spec section 4.8 ("a reference... or an expression... or an AC
// of such items").
type Template struct {
	Source ari.ARI
	Items  []TemplateItem
}

// TemplateItem is one entry of a report template.
type TemplateItem struct {
	// Source is what gets recorded as the produced item's source ARI:
	// the reference itself, or the expression AC for an expression item.
	Source ari.ARI
	// IsExpr distinguishes an expression item (Source is an AC to
	// evaluate) from a value-object reference item (Source is looked up
	// directly).
	IsExpr bool
	// Resolved marks an item whose value is already known (e.g. an
	// UNDEFINED substituted for a denied target) rather than something
	// to look up or evaluate; Value is used as-is when set.
	Resolved bool
	Value    ari.ARI
}

// Now is the engine's notion of current time, overridable in tests.
var Now = time.Now

// Engine produces RPTSETs from report templates against the current
// agent state.
type Engine struct {
	Exec *exec.Engine

	nonceSeq int64
}

// NewEngine returns a reporting engine bound to an execution engine's
// resolver (for dereferencing value-object items) and expression
// evaluator (for expression items).
func NewEngine(execEngine *exec.Engine) *Engine {
	return &Engine{Exec: execEngine}
}

// Produce materializes one or more report templates into a single
// RPTSET sharing one reference-time, per spec section 4.8. A failure to
// produce a single item leaves that item's value UNDEFINED rather than
// aborting the whole report; a failure never aborts sibling templates
// either.
//
// nonce is the RPTSET's nonce. Spec section 8 scenario 1 requires a
// manager-triggered report to echo back the originating EXECSET's
// nonce; callers pass that nonce through here. An UNDEFINED nonce
// (internal, rule-injected, or otherwise nonce-less callers) gets a
// freshly synthesized one instead.
func (e *Engine) Produce(nonce ari.ARI, tmpls ...Template) *ari.RptSet {
	start := Now()
	defer func() {
		reportProductionDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	}()

	refTime := start
	reports := make([]ari.ReportItem, len(tmpls))
	ok := true
	for t, tmpl := range tmpls {
		items := make([]ari.ARI, len(tmpl.Items))
		for i, ti := range tmpl.Items {
			v, err := e.produceOne(ti)
			if err != nil {
				v = ari.Undefined()
				ok = false
			}
			items[i] = v
		}
		reports[t] = ari.ReportItem{RelTime: Now().Sub(refTime), Source: tmpl.Source, Items: items}
	}

	if nonce.IsUndefined() {
		e.nonceSeq++
		nonce = ari.UvastLiteral(uint64(e.nonceSeq))
	}
	rs := &ari.RptSet{
		Nonce:   nonce,
		RefTime: refTime,
		Reports: reports,
	}

	status := "success"
	if !ok {
		status = "partial"
	}
	reportsProducedTotal.WithLabelValues(status).Inc()
	return rs
}

func (e *Engine) produceOne(ti TemplateItem) (ari.ARI, error) {
	if ti.Resolved {
		return ti.Value, nil
	}
	if ti.IsExpr {
		return e.Exec.EvalExpr(ti.Source.Lit.AC.Items)
	}
	return e.Exec.Resolver.Value(*ti.Source.Ref)
}
