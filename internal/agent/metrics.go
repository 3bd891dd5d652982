package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the catalogue EDD counters from ietf/dtnma-agent
// (rx/tx/exec-started/succeeded/failed) as real Prometheus counters,
// grounded in the teacher's jeeves_agent_executions_total /
// jeeves_pipeline_executions_total CounterVec idiom.
var (
	msgRxTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_msg_rx_total",
		Help: "Total number of datagrams received",
	})
	msgRxFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_msg_rx_failed_total",
		Help: "Total number of inbound datagrams dropped (framing/decode error)",
	})
	msgTxTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_msg_tx_total",
		Help: "Total number of datagrams sent",
	})

	execStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_exec_started_total",
		Help: "Total number of execution targets started",
	})
	execSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_exec_succeeded_total",
		Help: "Total number of execution targets that reached Succeeded",
	})
	execFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_exec_failed_total",
		Help: "Total number of execution targets that reached Failed",
	})

	accessDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amp_access_denied_total",
		Help: "Total number of permission checks that denied an operation",
	})
)
