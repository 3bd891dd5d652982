package exec

import (
	"context"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/store"
)

// StoreResolver implements expr.Resolver directly over the object store,
// grounded in the store's own Lookup/GetVar contract: CONST/VAR/EDD
// references dereference to their current value, OPER references
// dereference to the registered expr.Operator held in the object's
// Descriptor.
type StoreResolver struct {
	Store *store.Store
}

func (r *StoreResolver) ObjType(path ari.ObjectPath) (ari.ObjType, error) {
	obj, err := r.Store.Lookup(path)
	if err != nil {
		return 0, err
	}
	return obj.Type, nil
}

func (r *StoreResolver) Value(path ari.ObjectPath) (ari.ARI, error) {
	obj, err := r.Store.Lookup(path)
	if err != nil {
		return ari.ARI{}, err
	}
	switch obj.Type {
	case ari.ObjConst:
		cd, ok := obj.Descriptor.(*store.ConstDescriptor)
		if !ok {
			return ari.ARI{}, amperr.New(amperr.KindInternal, "CONST %s has no value descriptor", path.Obj)
		}
		return cd.Value.DeepCopy(), nil
	case ari.ObjVar:
		return obj.GetVar().DeepCopy(), nil
	case ari.ObjEDD:
		ed, ok := obj.Descriptor.(*store.EDDDescriptor)
		if !ok {
			return ari.ARI{}, amperr.New(amperr.KindInternal, "EDD %s has no producer descriptor", path.Obj)
		}
		return ed.Produce(context.Background())
	}
	return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "reference %s is not a value object", path.Obj)
}

func (r *StoreResolver) Operator(path ari.ObjectPath) (expr.Operator, error) {
	obj, err := r.Store.Lookup(path)
	if err != nil {
		return nil, err
	}
	if obj.Type != ari.ObjOper {
		return nil, amperr.New(amperr.KindTypeMismatch, "reference %s is not an OPER", path.Obj)
	}
	op, ok := obj.Descriptor.(expr.Operator)
	if !ok {
		return nil, amperr.New(amperr.KindInternal, "OPER %s has no operator descriptor", path.Obj)
	}
	return op, nil
}
