package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// operResolver resolves every object reference as an OPER lookup
// against a builtin registry, enough to exercise Eval's operator
// dispatch without needing a real object store.
type operResolver struct {
	reg *Registry
}

func (r operResolver) ObjType(path ari.ObjectPath) (ari.ObjType, error) {
	return ari.ObjOper, nil
}

func (r operResolver) Value(path ari.ObjectPath) (ari.ARI, error) {
	return ari.ARI{}, amperr.New(amperr.KindNotFound, "no values in this fixture")
}

func (r operResolver) Operator(path ari.ObjectPath) (Operator, error) {
	op, ok := r.reg.Lookup(path.Obj.Name)
	if !ok {
		return nil, amperr.New(amperr.KindNotFound, "operator %s not registered", path.Obj.Name)
	}
	return op, nil
}

func operRef(name string) ari.ARI {
	return ari.ObjRef(ari.ObjectPath{
		Org: ari.NameIdent("ietf"), Model: ari.NameIdent("amm-base"),
		Type: ari.ObjOper, Obj: ari.NameIdent(name),
	})
}

func TestEvalArithmetic(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	// (2 + 3) * 4 == 20, in postfix: 2 3 add 4 multiply
	items := []ari.ARI{
		ari.VastLiteral(2), ari.VastLiteral(3), operRef("add"),
		ari.VastLiteral(4), operRef("multiply"),
	}
	got, err := Eval(items, res)
	require.NoError(t, err)
	require.True(t, got.Equal(ari.VastLiteral(20)))
}

func TestEvalNegate(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{ari.VastLiteral(7), operRef("negate")}
	got, err := Eval(items, res)
	require.NoError(t, err)
	require.True(t, got.Equal(ari.VastLiteral(-7)))
}

func TestEvalLeavesMultipleValuesIsError(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{ari.VastLiteral(1), ari.VastLiteral(2)}
	_, err := Eval(items, res)
	require.Error(t, err)
}

func TestEvalUnknownOperator(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{ari.VastLiteral(1), operRef("not-a-real-operator")}
	_, err := Eval(items, res)
	require.Error(t, err)
}

func TestEvalDivideByZeroIsEvalError(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{ari.VastLiteral(1), ari.VastLiteral(0), operRef("divide")}
	_, err := Eval(items, res)
	require.True(t, amperr.Is(err, amperr.KindEval))
}

func TestEvalAddOverflowIsEvalError(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{
		ari.VastLiteral(math.MaxInt64), ari.VastLiteral(1), operRef("add"),
	}
	_, err := Eval(items, res)
	require.True(t, amperr.Is(err, amperr.KindEval))
}

func TestEvalSubUnderflowIsEvalError(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{
		ari.VastLiteral(math.MinInt64), ari.VastLiteral(1), operRef("sub"),
	}
	_, err := Eval(items, res)
	require.True(t, amperr.Is(err, amperr.KindEval))
}

func TestEvalMultiplyOverflowIsEvalError(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{
		ari.VastLiteral(math.MaxInt64), ari.VastLiteral(2), operRef("multiply"),
	}
	_, err := Eval(items, res)
	require.True(t, amperr.Is(err, amperr.KindEval))
}

func TestEvalMultiplyMinInt64ByNegOneOverflows(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{
		ari.VastLiteral(math.MinInt64), ari.VastLiteral(-1), operRef("multiply"),
	}
	_, err := Eval(items, res)
	require.True(t, amperr.Is(err, amperr.KindEval))
}

func TestEvalNegateMinInt64Overflows(t *testing.T) {
	res := operResolver{reg: NewBuiltinRegistry()}
	items := []ari.ARI{ari.VastLiteral(math.MinInt64), operRef("negate")}
	_, err := Eval(items, res)
	require.True(t, amperr.Is(err, amperr.KindEval))
}
