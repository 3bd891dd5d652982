package store

import (
	"fmt"

	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// TypeResolver looks up a TYPEDEF object's semantic type by object path.
type TypeResolver func(path ari.ObjectPath) (*types.SemType, error)

// Bindable is implemented by object descriptors that embed type
// references (EDD production types, CTRL/OPER parameter and result
// types, TYPEDEF bodies, IDENT bases) needing resolution into direct
// pointers-by-identity after every ADM has registered.
type Bindable interface {
	BindRefs(resolve TypeResolver) error
}

// BindResult summarizes one binding pass.
type BindResult struct {
	Resolved   int
	Unresolved []string
}

// RequiredBase names a base typedef the agent cannot start without.
type RequiredBase struct {
	Org, Model, Name string
}

// Bind walks every registered object once and resolves embedded type
// references into direct pointers. Binding never mutates the referenced
// objects themselves; unresolved references are counted and returned,
// not treated as fatal, except for the caller-supplied required base
// types, which are checked explicitly afterward.
func Bind(s *Store, required []RequiredBase) (BindResult, error) {
	resolve := func(path ari.ObjectPath) (*types.SemType, error) {
		obj, err := s.Lookup(path)
		if err != nil {
			return nil, err
		}
		if obj.Type != ari.ObjTypedef {
			return nil, amperr.New(amperr.KindTypeMismatch, "type reference %s is not a TYPEDEF", path.Obj)
		}
		st, ok := obj.Descriptor.(*types.SemType)
		if !ok {
			return nil, amperr.New(amperr.KindInternal, "TYPEDEF %s has no semantic type descriptor", path.Obj)
		}
		return st, nil
	}

	var result BindResult
	s.Iterate(func(ns *Namespace, t ari.ObjType, obj *Object) {
		bindable, ok := obj.Descriptor.(Bindable)
		if !ok {
			return
		}
		if err := bindable.BindRefs(resolve); err != nil {
			result.Unresolved = append(result.Unresolved, fmt.Sprintf("%s/%s %s %s: %v", ns.OrgName, ns.ModelName, t, obj.Name, err))
			return
		}
		result.Resolved++
	})

	for _, req := range required {
		path := ari.ObjectPath{Org: ari.NameIdent(req.Org), Model: ari.NameIdent(req.Model), Type: ari.ObjTypedef, Obj: ari.NameIdent(req.Name)}
		if _, err := resolve(path); err != nil {
			return result, amperr.Wrap(amperr.KindInternal, err, "required base typedef %s/%s/%s could not be bound", req.Org, req.Model, req.Name)
		}
	}
	return result, nil
}
