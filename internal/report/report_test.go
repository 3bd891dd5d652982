package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/adm/ammbase"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/expr"
	"github.com/dtn-amp/agent/internal/store"
)

func varPath(name string) ari.ObjectPath {
	return ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("test-mod"),
		Type: ari.ObjVar, Obj: ari.NameIdent(name),
	}
}

func TestProduceValueItem(t *testing.T) {
	s := store.New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	_, err := s.EnsureVar(varPath("answer"), nil, ari.IntLiteral(42))
	require.NoError(t, err)
	ee := exec.NewEngine(s, expr.NewBuiltinRegistry())
	eng := NewEngine(ee)

	rs := eng.Produce(ari.Undefined(), Template{
		Source: ari.ObjRef(varPath("hello")),
		Items:  []TemplateItem{{Source: ari.ObjRef(varPath("answer"))}},
	})
	require.Len(t, rs.Reports, 1)
	require.Len(t, rs.Reports[0].Items, 1)
	require.True(t, rs.Reports[0].Items[0].Equal(ari.IntLiteral(42)))
}

func TestProduceExpressionItem(t *testing.T) {
	s := store.New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	ammbase.Register(s)
	ee := exec.NewEngine(s, expr.NewBuiltinRegistry())
	eng := NewEngine(ee)

	opRef := ari.ObjRef(ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("amm-base"),
		Type: ari.ObjOper, Obj: ari.NameIdent("add"),
	})
	expression := ari.ACLiteral([]ari.ARI{ari.VastLiteral(2), ari.VastLiteral(3), opRef})

	rs := eng.Produce(ari.Undefined(), Template{
		Source: ari.ObjRef(varPath("hello")),
		Items:  []TemplateItem{{Source: expression, IsExpr: true}},
	})
	require.Len(t, rs.Reports[0].Items, 1)
	require.True(t, rs.Reports[0].Items[0].Equal(ari.VastLiteral(5)))
}

func TestProduceMissingItemIsUndefinedNotFatal(t *testing.T) {
	s := store.New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	ee := exec.NewEngine(s, expr.NewBuiltinRegistry())
	eng := NewEngine(ee)

	rs := eng.Produce(ari.Undefined(), Template{
		Source: ari.ObjRef(varPath("hello")),
		Items:  []TemplateItem{{Source: ari.ObjRef(varPath("missing"))}},
	})
	require.Len(t, rs.Reports[0].Items, 1)
	require.True(t, rs.Reports[0].Items[0].IsUndefined())
}

func TestProduceEchoesGivenNonce(t *testing.T) {
	s := store.New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	_, err := s.EnsureVar(varPath("answer"), nil, ari.IntLiteral(42))
	require.NoError(t, err)
	ee := exec.NewEngine(s, expr.NewBuiltinRegistry())
	eng := NewEngine(ee)

	rs := eng.Produce(ari.UvastLiteral(7), Template{
		Source: ari.ObjRef(varPath("hello")),
		Items:  []TemplateItem{{Source: ari.ObjRef(varPath("answer"))}},
	})
	require.True(t, rs.Nonce.Equal(ari.UvastLiteral(7)))
}

func TestProduceResolvedItemSkipsLookup(t *testing.T) {
	s := store.New()
	s.AddNamespace(ari.NameIdent("ietf"), ari.NameIdent("test-mod"), "1.0")
	ee := exec.NewEngine(s, expr.NewBuiltinRegistry())
	eng := NewEngine(ee)

	target := ari.ObjRef(ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("test-mod"),
		Type: ari.ObjCtrl, Obj: ari.NameIdent("denied-ctrl"),
	})
	rs := eng.Produce(ari.Undefined(), Template{
		Source: target,
		Items:  []TemplateItem{{Source: target, Resolved: true, Value: ari.Undefined()}},
	})
	require.Len(t, rs.Reports[0].Items, 1)
	require.True(t, rs.Reports[0].Items[0].IsUndefined())
}
