package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

func testPath(objType ari.ObjType, name string) ari.ObjectPath {
	return ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("test-mod"),
		Type: objType, Obj: ari.NameIdent(name),
	}
}

func TestRegisterAndLookup(t *testing.T) {
	s := New()
	ns := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	obj := &Object{Type: ari.ObjTypedef, Name: "widget"}
	require.NoError(t, s.Register(ns, obj))

	got, err := s.Lookup(testPath(ari.ObjTypedef, "widget"))
	require.NoError(t, err)
	require.Same(t, obj, got)
}

func TestRegisterDuplicateNameRejected(t *testing.T) {
	s := New()
	ns := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	require.NoError(t, s.Register(ns, &Object{Type: ari.ObjTypedef, Name: "widget"}))
	err := s.Register(ns, &Object{Type: ari.ObjTypedef, Name: "widget"})
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindInvalidArguments))
}

func TestLookupUnknownNamespace(t *testing.T) {
	s := New()
	_, err := s.Lookup(testPath(ari.ObjTypedef, "widget"))
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindNotFound))
}

// A name registered under one object type is invisible under another:
// each object type has its own name index, so asking for the right name
// under the wrong type misses entirely rather than finding the object
// and rejecting it by type.
func TestLookupWrongTypeIsNotFound(t *testing.T) {
	s := New()
	ns := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	require.NoError(t, s.Register(ns, &Object{Type: ari.ObjTypedef, Name: "widget"}))
	_, err := s.Lookup(testPath(ari.ObjConst, "widget"))
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindNotFound))
}

func TestEnsureVarCreatesThenResets(t *testing.T) {
	s := New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	path := testPath(ari.ObjVar, "counter")
	typ := types.Use(ari.LitInt)

	obj, err := s.EnsureVar(path, typ, ari.IntLiteral(0))
	require.NoError(t, err)
	require.True(t, obj.GetVar().Equal(ari.IntLiteral(0)))

	obj.SetVar(ari.IntLiteral(5))
	require.True(t, obj.GetVar().Equal(ari.IntLiteral(5)))

	obj.ResetVar()
	require.True(t, obj.GetVar().Equal(ari.IntLiteral(0)))

	// Calling EnsureVar again re-initializes rather than duplicating.
	obj2, err := s.EnsureVar(path, typ, ari.IntLiteral(3))
	require.NoError(t, err)
	require.Same(t, obj, obj2)
	require.True(t, obj2.GetVar().Equal(ari.IntLiteral(3)))
}

func TestDiscardVar(t *testing.T) {
	s := New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	path := testPath(ari.ObjVar, "counter")
	_, err := s.EnsureVar(path, types.Use(ari.LitInt), ari.IntLiteral(0))
	require.NoError(t, err)

	require.NoError(t, s.DiscardVar(path))
	_, err = s.Lookup(path)
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindNotFound))
}

func TestAddNamespaceIdempotent(t *testing.T) {
	s := New()
	ns1 := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	require.NoError(t, s.Register(ns1, &Object{Type: ari.ObjTypedef, Name: "widget"}))

	ns2 := s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "2.0")
	require.Same(t, ns1, ns2)
	require.Equal(t, "2.0", ns2.Revision)

	got, err := s.Lookup(testPath(ari.ObjTypedef, "widget"))
	require.NoError(t, err)
	require.Equal(t, "widget", got.Name)
}
