// Package store implements the agent's object store: a two-level
// namespace map (org -> model -> object-type -> ordered object list)
// guarded by a single coarse mutex, per the agent facade's "lock the
// whole store for structural changes, lock individual VARs for value
// updates" discipline.
package store

import (
	"sync"

	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// Param is one formal parameter of a CTRL, OPER, TYPEDEF, or MAC: a name,
// a declared semantic type, and an optional default value.
type Param struct {
	Name    string
	Type    *types.SemType
	Default *ari.ARI // nil if the parameter is required
}

// Object is one entry registered in the store under some (namespace,
// object-type). Descriptor carries the object-type-specific payload
// (e.g. a *types.SemType for TYPEDEF, a CTRL callback registration for
// CTRL) and is populated by the owning package (exec, rules, adm) rather
// than by store itself.
type Object struct {
	Type       ari.ObjType
	Name       string
	HasIntID   bool
	IntID      int64
	Params     []Param
	ResultType *types.SemType // for CTRL/OPER/EDD; nil otherwise
	Descriptor any

	// VAR runtime state, guarded by its own mutex rather than the store
	// lock, so reading/writing a VAR's value never blocks unrelated
	// store traffic.
	varMu    sync.RWMutex
	varValue ari.ARI
	varInit  ari.ARI // value to restore on var-reset
}

// GetVar returns a VAR object's current value.
func (o *Object) GetVar() ari.ARI {
	o.varMu.RLock()
	defer o.varMu.RUnlock()
	return o.varValue
}

// SetVar replaces a VAR object's current value.
func (o *Object) SetVar(v ari.ARI) {
	o.varMu.Lock()
	defer o.varMu.Unlock()
	o.varValue = v
}

// ResetVar restores a VAR object to the value it was given at
// ensure-var time.
func (o *Object) ResetVar() {
	o.varMu.Lock()
	defer o.varMu.Unlock()
	o.varValue = o.varInit
}

// Namespace is one (org, model) pair's object collection.
type Namespace struct {
	OrgName    string
	OrgID      int64
	HasOrgID   bool
	ModelName  string
	ModelID    int64
	HasModelID bool
	Revision   string

	objects map[ari.ObjType][]*Object
	byName  map[ari.ObjType]map[string]*Object
	byID    map[ari.ObjType]map[int64]*Object
}

func newNamespace(org, model ari.Ident, revision string) *Namespace {
	ns := &Namespace{
		Revision: revision,
		objects:  make(map[ari.ObjType][]*Object),
		byName:   make(map[ari.ObjType]map[string]*Object),
		byID:     make(map[ari.ObjType]map[int64]*Object),
	}
	ns.OrgName, ns.OrgID, ns.HasOrgID = identParts(org)
	ns.ModelName, ns.ModelID, ns.HasModelID = identParts(model)
	return ns
}

func identParts(id ari.Ident) (name string, intID int64, hasInt bool) {
	if id.IsInt {
		return "", id.IntID, true
	}
	return id.Name, 0, false
}

func identMatches(name string, intID int64, hasInt bool, id ari.Ident) bool {
	if id.IsInt {
		return hasInt && intID == id.IntID
	}
	return name == id.Name
}

// Iterate calls visit once per registered object, in registration order,
// grouped by namespace then object type.
func (ns *Namespace) Iterate(visit func(ari.ObjType, *Object)) {
	for _, t := range orderedObjTypes {
		for _, o := range ns.objects[t] {
			visit(t, o)
		}
	}
}

var orderedObjTypes = []ari.ObjType{
	ari.ObjTypedef, ari.ObjIdent, ari.ObjConst, ari.ObjVar,
	ari.ObjEDD, ari.ObjCtrl, ari.ObjOper, ari.ObjSBR, ari.ObjTBR,
}

// Store is the agent-wide object store.
type Store struct {
	mu  sync.RWMutex
	nss []*Namespace
}

// New returns an empty store.
func New() *Store { return &Store{} }

func (s *Store) findNamespace(org, model ari.Ident) *Namespace {
	for _, ns := range s.nss {
		if identMatches(ns.OrgName, ns.OrgID, ns.HasOrgID, org) && identMatches(ns.ModelName, ns.ModelID, ns.HasModelID, model) {
			return ns
		}
	}
	return nil
}

// AddNamespace adds or updates a namespace. Idempotent on (org, model):
// a second call with the same identity replaces only metadata (the
// revision string), never the object lists already registered.
func (s *Store) AddNamespace(org, model ari.Ident, revision string) *Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns := s.findNamespace(org, model); ns != nil {
		ns.Revision = revision
		return ns
	}
	ns := newNamespace(org, model, revision)
	s.nss = append(s.nss, ns)
	return ns
}

// Register appends a new object to its namespace's type-specific list.
// A later registration with a duplicate int-id or text name within the
// same (namespace, object-type) is rejected.
func (s *Store) Register(ns *Namespace, obj *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns.byName[obj.Type] == nil {
		ns.byName[obj.Type] = make(map[string]*Object)
		ns.byID[obj.Type] = make(map[int64]*Object)
	}
	if obj.Name != "" {
		if _, dup := ns.byName[obj.Type][obj.Name]; dup {
			return amperr.New(amperr.KindInvalidArguments, "duplicate %s name %q in %s/%s", obj.Type, obj.Name, ns.OrgName, ns.ModelName)
		}
	}
	if obj.HasIntID {
		if _, dup := ns.byID[obj.Type][obj.IntID]; dup {
			return amperr.New(amperr.KindInvalidArguments, "duplicate %s int-id %d in %s/%s", obj.Type, obj.IntID, ns.OrgName, ns.ModelName)
		}
	}
	ns.objects[obj.Type] = append(ns.objects[obj.Type], obj)
	if obj.Name != "" {
		ns.byName[obj.Type][obj.Name] = obj
	}
	if obj.HasIntID {
		ns.byID[obj.Type][obj.IntID] = obj
	}
	return nil
}

// Lookup resolves an object path to its object. int-id wins when an
// object carries both an int-id and a name and the path supplies one
// that happens to collide lexically (it never does in practice since
// the two index spaces are disjoint; int-id is simply tried first).
func (s *Store) Lookup(path ari.ObjectPath) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.findNamespace(path.Org, path.Model)
	if ns == nil {
		return nil, amperr.New(amperr.KindNotFound, "unknown namespace %s/%s", path.Org, path.Model)
	}
	var obj *Object
	if path.Obj.IsInt {
		obj = ns.byID[path.Type][path.Obj.IntID]
	} else {
		obj = ns.byName[path.Type][path.Obj.Name]
	}
	if obj == nil {
		return nil, amperr.New(amperr.KindNotFound, "object %s not found in %s/%s", path.Obj, ns.OrgName, ns.ModelName)
	}
	if obj.Type != path.Type {
		return nil, amperr.New(amperr.KindTypeMismatch, "object %s is %s, reference asked for %s", path.Obj, obj.Type, path.Type)
	}
	return obj, nil
}

// Iterate visits every namespace's objects in registration order, under
// the store's read lock, as required for the one-shot binding pass.
func (s *Store) Iterate(visit func(ns *Namespace, t ari.ObjType, obj *Object)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ns := range s.nss {
		ns.Iterate(func(t ari.ObjType, o *Object) { visit(ns, t, o) })
	}
}

// Namespaces returns every registered namespace, in registration order.
func (s *Store) Namespaces() []*Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Namespace, len(s.nss))
	copy(out, s.nss)
	return out
}

// EnsureVar creates a VAR object at path if none exists yet, or resets
// an existing one's value and semantic type, per the ensure-var CTRL's
// create-or-reinitialize semantics.
func (s *Store) EnsureVar(path ari.ObjectPath, typ *types.SemType, init ari.ARI) (*Object, error) {
	s.mu.Lock()
	ns := s.findNamespace(path.Org, path.Model)
	if ns == nil {
		s.mu.Unlock()
		return nil, amperr.New(amperr.KindNotFound, "unknown namespace %s/%s", path.Org, path.Model)
	}
	if ns.byName[ari.ObjVar] == nil {
		ns.byName[ari.ObjVar] = make(map[string]*Object)
		ns.byID[ari.ObjVar] = make(map[int64]*Object)
	}
	var obj *Object
	if path.Obj.IsInt {
		obj = ns.byID[ari.ObjVar][path.Obj.IntID]
	} else {
		obj = ns.byName[ari.ObjVar][path.Obj.Name]
	}
	if obj == nil {
		obj = &Object{Type: ari.ObjVar, Name: path.Obj.Name, HasIntID: path.Obj.IsInt, IntID: path.Obj.IntID, ResultType: typ}
		ns.objects[ari.ObjVar] = append(ns.objects[ari.ObjVar], obj)
		if path.Obj.IsInt {
			ns.byID[ari.ObjVar][path.Obj.IntID] = obj
		} else {
			ns.byName[ari.ObjVar][path.Obj.Name] = obj
		}
	} else {
		obj.ResultType = typ
	}
	s.mu.Unlock()
	obj.varMu.Lock()
	obj.varValue = init
	obj.varInit = init
	obj.varMu.Unlock()
	return obj, nil
}

// DiscardVar removes a VAR object from its namespace; a reference held
// by an in-flight execution record is unaffected since the object
// itself (not just the namespace slot) is what the reference resolves
// through at dereference time.
func (s *Store) DiscardVar(path ari.ObjectPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.findNamespace(path.Org, path.Model)
	if ns == nil {
		return amperr.New(amperr.KindNotFound, "unknown namespace %s/%s", path.Org, path.Model)
	}
	var name string
	var hasInt bool
	var intID int64
	if path.Obj.IsInt {
		obj := ns.byID[ari.ObjVar][path.Obj.IntID]
		if obj == nil {
			return amperr.New(amperr.KindNotFound, "VAR %s not found in %s/%s", path.Obj, ns.OrgName, ns.ModelName)
		}
		hasInt, intID, name = true, path.Obj.IntID, obj.Name
	} else {
		obj := ns.byName[ari.ObjVar][path.Obj.Name]
		if obj == nil {
			return amperr.New(amperr.KindNotFound, "VAR %s not found in %s/%s", path.Obj, ns.OrgName, ns.ModelName)
		}
		name = obj.Name
	}
	list := ns.objects[ari.ObjVar]
	for i, o := range list {
		sameInt := hasInt && o.HasIntID && o.IntID == intID
		sameName := name != "" && o.Name == name
		if sameInt || sameName {
			ns.objects[ari.ObjVar] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if name != "" {
		delete(ns.byName[ari.ObjVar], name)
	}
	if hasInt {
		delete(ns.byID[ari.ObjVar], intID)
	}
	return nil
}
