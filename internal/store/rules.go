package store

import (
	"sync"
	"time"

	"github.com/dtn-amp/agent/internal/ari"
)

// TBRDescriptor is the Descriptor payload of a TBR object: a time-based
// rule's schedule and runtime counters, per spec section 3.4. Start and
// EvalTime are held as absolute time.Time values and Period as a
// time.Duration, rather than as ari.ARI so the rule timeline can compare them
// directly with time.Time without going back through the type system on
// every tick.
type TBRDescriptor struct {
	Start   time.Time
	Period  time.Duration
	MaxFire int64 // 0 means unlimited
	Action  []ari.ARI

	// mu guards the runtime fields below: the rule timeline worker is
	// the sole writer, but reflective catalogue EDDs (internal/adm/agentadm)
	// read them concurrently.
	mu        sync.Mutex
	Enabled   bool
	FireCount int64
	EvalTime  time.Time
}

func (d *TBRDescriptor) BindRefs(TypeResolver) error { return nil }

// Snapshot returns a copy of the runtime-mutable fields under lock.
func (d *TBRDescriptor) Snapshot() (enabled bool, fireCount int64, evalTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Enabled, d.FireCount, d.EvalTime
}

// Lock/Unlock expose the descriptor's mutex directly to the rule
// timeline worker, which needs to read-modify-write several fields
// atomically per tick.
func (d *TBRDescriptor) Lock()   { d.mu.Lock() }
func (d *TBRDescriptor) Unlock() { d.mu.Unlock() }

// SBRDescriptor is the Descriptor payload of an SBR object: a
// state-based rule's condition expression, schedule, and runtime
// counters, per spec section 3.4.
type SBRDescriptor struct {
	Condition   []ari.ARI
	MinInterval time.Duration
	MaxEval     int64 // 0 means unlimited
	MaxFire     int64 // 0 means unlimited
	Action      []ari.ARI

	mu        sync.Mutex
	Enabled   bool
	EvalCount int64
	FireCount int64
	EvalTime  time.Time
}

func (d *SBRDescriptor) BindRefs(TypeResolver) error { return nil }

// Snapshot returns a copy of the runtime-mutable fields under lock.
func (d *SBRDescriptor) Snapshot() (enabled bool, evalCount, fireCount int64, evalTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Enabled, d.EvalCount, d.FireCount, d.EvalTime
}

func (d *SBRDescriptor) Lock()   { d.mu.Lock() }
func (d *SBRDescriptor) Unlock() { d.mu.Unlock() }
