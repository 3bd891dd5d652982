// Package ammbase registers the ietf/amm-base and ietf/amm-semtype
// reflective ADMs: a TYPEDEF for every built-in literal type plus an
// IDENT per composite semantic-type kind (use, ulist, dlist, umap,
// tblt, union, seq), so every other ADM's formal-parameter and
// result-type declarations can reference them by object path instead of
// constructing an anonymous *types.SemType inline.
//
// Grounded in the teacher's service-registration pattern
// (kernel.RegisterService): one constructor that populates a namespace
// in a fixed order and returns nothing, called once during agent
// bring-up before the store's bind pass runs.
package ammbase

import (
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/store"
)

// Org and Model name the namespace every builtin type lives under.
const (
	Org   = "ietf"
	Model = "amm-base"
)

var builtins = []struct {
	name string
	lit  ari.LitType
}{
	{"null", ari.LitNull},
	{"bool", ari.LitBool},
	{"byte", ari.LitByte},
	{"int", ari.LitInt},
	{"uint", ari.LitUint},
	{"vast", ari.LitVast},
	{"uvast", ari.LitUvast},
	{"real32", ari.LitReal32},
	{"real64", ari.LitReal64},
	{"textstr", ari.LitTextstr},
	{"bytestr", ari.LitBytestr},
	{"label", ari.LitLabel},
	{"cbor", ari.LitCBOR},
	{"tp", ari.LitTP},
	{"td", ari.LitTD},
	{"aritype", ari.LitARITYPE},
	{"ac", ari.LitAC},
	{"am", ari.LitAM},
	{"tbl", ari.LitTBL},
	{"execset", ari.LitEXECSET},
	{"rptset", ari.LitRPTSET},
}

// semtypeKinds names the composite semantic-type shapes from the type
// system's grammar, registered as IDENT objects so a TYPEDEF body
// anywhere in the agent can cite "this is a umap-shaped type" by
// reference rather than repeating the shape's definition in prose.
var semtypeKinds = []string{"use", "ulist", "dlist", "umap", "tblt", "union", "seq"}

// requiredBases names the named typedefs spec section 4.5 calls out as
// required: the agent refuses to start if any of these cannot be bound.
// Each is AC-shaped (a macro, an expression, and a report template are
// all "an ordered list of ARI" at the type-system level; what makes a
// CONST/VAR MAC-typed is that its ResultType is this named SemType, which
// internal/exec recognizes by its Name "mac"; neither internal/exec nor
// internal/report checks a value against expr or rptt).
var requiredBases = []string{"mac", "expr", "rptt"}

// Register populates the ietf/amm-base namespace in s, and the
// ietf/amm-semtype namespace with the semantic-type-kind IDENTs. Safe to call
// exactly once during agent bring-up, before store.Bind.
func Register(s *store.Store) *store.Namespace {
	ns := s.AddNamespace(ari.NameIdent(Org), ari.NameIdent(Model), "1.0")
	for i, b := range builtins {
		obj := &store.Object{
			Type:       ari.ObjTypedef,
			Name:       b.name,
			HasIntID:   true,
			IntID:      int64(i),
			Descriptor: types.Use(b.lit),
		}
		_ = s.Register(ns, obj)
	}
	semNS := s.AddNamespace(ari.NameIdent(Org), ari.NameIdent("amm-semtype"), "1.0")
	for i, k := range semtypeKinds {
		obj := &store.Object{
			Type:     ari.ObjIdent,
			Name:     k,
			HasIntID: true,
			IntID:    int64(i),
		}
		_ = s.Register(semNS, obj)
	}
	for i, name := range requiredBases {
		obj := &store.Object{
			Type:       ari.ObjTypedef,
			Name:       name,
			HasIntID:   true,
			IntID:      int64(len(builtins) + i),
			Descriptor: types.UseTypedef(name, types.Use(ari.LitAC)),
		}
		_ = s.Register(ns, obj)
	}
	registerOperators(s, ns)
	return ns
}

// registerOperators catalogues the built-in arithmetic/bitwise/boolean/
// comparison/table operators as OPER objects, so expression ACs can
// reference them by object path the same way they reference any other
// store object (spec section 4.7's OPER reference resolves through
// store.Lookup exactly like a CONST/EDD/VAR reference does).
func registerOperators(s *store.Store, ns *store.Namespace) {
	reg := expr.NewBuiltinRegistry()
	names := reg.Names()
	for i, name := range names {
		op, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		formals := make([]store.Param, len(op.OperandTypes()))
		for j, t := range op.OperandTypes() {
			formals[j] = store.Param{Name: name, Type: t}
		}
		obj := &store.Object{
			Type:       ari.ObjOper,
			Name:       name,
			HasIntID:   true,
			IntID:      int64(i),
			Params:     formals,
			ResultType: op.ResultType(),
			Descriptor: op,
		}
		_ = s.Register(ns, obj)
	}
}

// MacType, ExprType, and ReportTemplateType return the named SemType
// registered above, for ADMs that declare a CONST/VAR/formal-parameter
// of one of these kinds. Callers must invoke Register first.
func MacType(s *store.Store) *types.SemType    { return namedType(s, "mac") }
func ExprType(s *store.Store) *types.SemType   { return namedType(s, "expr") }
func ReportTemplateType(s *store.Store) *types.SemType { return namedType(s, "rptt") }

func namedType(s *store.Store, name string) *types.SemType {
	obj, err := s.Lookup(Typedef(name))
	if err != nil {
		return types.Use(ari.LitAC)
	}
	st, _ := obj.Descriptor.(*types.SemType)
	return st
}

// Typedef builds a path referencing one of this namespace's built-in
// TYPEDEFs, for other ADMs' formal-parameter declarations.
func Typedef(name string) ari.ObjectPath {
	return ari.ObjectPath{Org: ari.NameIdent(Org), Model: ari.NameIdent(Model), Type: ari.ObjTypedef, Obj: ari.NameIdent(name)}
}
