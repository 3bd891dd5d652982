package exec

import (
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/store"
)

// CtrlDescriptor is the Descriptor payload of a CTRL object: its formal
// parameters, declared result type (nil if the control never returns a
// value), and execution callback.
type CtrlDescriptor struct {
	Formals    []store.Param
	ResultType *types.SemType
	Execute    CtrlFunc
}

// BindRefs is a no-op: formal parameter types are already *types.SemType
// pointers set at registration; a dedicated Bindable wrapper is used by
// ADMs whose formal types are themselves forward references.
func (d *CtrlDescriptor) BindRefs(store.TypeResolver) error { return nil }
