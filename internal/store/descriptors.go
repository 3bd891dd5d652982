package store

import (
	"context"

	"github.com/dtn-amp/agent/internal/ari"
)

// ConstDescriptor is the Descriptor payload of a CONST object: a fixed
// value set once at registration time and never mutated.
type ConstDescriptor struct {
	Value ari.ARI
}

// EDDDescriptor is the Descriptor payload of an EDD object: a producer
// callback invoked on demand, grounded in the teacher's ServiceHandler
// callback-registration shape (kernel/services.go) narrowed to a single
// no-argument producer.
type EDDDescriptor struct {
	Produce func(ctx context.Context) (ari.ARI, error)
}

// BindRefs is a no-op for CONST: its value carries no embedded type
// reference requiring resolution.
func (d *ConstDescriptor) BindRefs(TypeResolver) error { return nil }

// BindRefs is a no-op for EDD by default; ADMs whose EDD production type
// needs resolution wrap EDDDescriptor in their own Bindable type instead.
func (d *EDDDescriptor) BindRefs(TypeResolver) error { return nil }
