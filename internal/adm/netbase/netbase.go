// Package netbase registers the ietf/network-base ADM: the endpoint,
// URI, and UUID TYPEDEFs and the endpoint-pattern IDENT used by the
// access control layer's group member patterns.
//
// Grounded the same way as ammbase: a single Register(store.Store)
// populating one namespace, called once during bring-up.
package netbase

import (
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/store"
)

const (
	Org   = "ietf"
	Model = "network-base"
)

// Register populates the ietf/network-base namespace in s.
func Register(s *store.Store) *store.Namespace {
	ns := s.AddNamespace(ari.NameIdent(Org), ari.NameIdent(Model), "1.0")

	uri := types.Use(ari.LitTextstr)
	_ = s.Register(ns, &store.Object{Type: ari.ObjTypedef, Name: "uri", HasIntID: true, IntID: 0, Descriptor: uri})

	uuid := types.UList(types.Use(ari.LitByte), 16, 16)
	_ = s.Register(ns, &store.Object{Type: ari.ObjTypedef, Name: "uuid", HasIntID: true, IntID: 1, Descriptor: uuid})

	endpointID := types.Use(ari.LitTextstr)
	_ = s.Register(ns, &store.Object{Type: ari.ObjTypedef, Name: "endpoint-id", HasIntID: true, IntID: 2, Descriptor: endpointID})

	// endpoint-pattern is a TEXTSTR carrying a "*"/"**" glob, the same
	// grammar internal/acl.compilePattern compiles; it has no tighter
	// regex constraint here since the glob alphabet is a superset of
	// plain text and the ACL layer itself rejects a malformed pattern
	// at ensure-group time.
	endpointPattern := types.Use(ari.LitTextstr)
	_ = s.Register(ns, &store.Object{Type: ari.ObjTypedef, Name: "endpoint-pattern", HasIntID: true, IntID: 3, Descriptor: endpointPattern})

	_ = s.Register(ns, &store.Object{Type: ari.ObjIdent, Name: "node-id", HasIntID: true, IntID: 0})
	_ = s.Register(ns, &store.Object{Type: ari.ObjIdent, Name: "endpoint-pattern", HasIntID: true, IntID: 1})
	return ns
}

// Typedef builds a path referencing one of this namespace's TYPEDEFs.
func Typedef(name string) ari.ObjectPath {
	return ari.ObjectPath{Org: ari.NameIdent(Org), Model: ari.NameIdent(Model), Type: ari.ObjTypedef, Obj: ari.NameIdent(name)}
}
