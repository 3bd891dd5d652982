package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

func TestCheckUseExactType(t *testing.T) {
	require.True(t, Check(Use(ari.LitVast), ari.VastLiteral(7)))
	require.False(t, Check(Use(ari.LitVast), ari.TextLiteral("7")))
}

func TestConvertWidensNumericTypes(t *testing.T) {
	out, err := Convert(Use(ari.LitVast), ari.IntLiteral(7))
	require.NoError(t, err)
	require.True(t, out.Equal(ari.VastLiteral(7)))

	out, err = Convert(Use(ari.LitReal64), ari.Real32Literal(1.5))
	require.NoError(t, err)
	require.True(t, out.Equal(ari.Real64Literal(1.5)))
}

func TestConvertRejectsNarrowing(t *testing.T) {
	_, err := Convert(Use(ari.LitInt), ari.TextLiteral("7"))
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindCoercion))
}

func TestConvertRangeConstraint(t *testing.T) {
	typ := Use(ari.LitVast)
	typ.NumRange = Range{HasMin: true, Min: 0, HasMax: true, Max: 10}
	require.True(t, Check(typ, ari.VastLiteral(5)))
	require.False(t, Check(typ, ari.VastLiteral(11)))
}

func TestConvertPatternConstraint(t *testing.T) {
	typ := Use(ari.LitTextstr)
	typ.Pattern = "amp"
	require.True(t, Check(typ, ari.TextLiteral("dtn-amp")))
	require.False(t, Check(typ, ari.TextLiteral("other")))
}

func TestUseTypedefResolvesThroughChain(t *testing.T) {
	named := UseTypedef("celsius", Use(ari.LitReal64))
	require.True(t, Check(named, ari.Real64Literal(20.0)))
}

func TestUListLengthBounds(t *testing.T) {
	typ := UList(Use(ari.LitVast), 1, 2)
	ok := ari.ACLiteral([]ari.ARI{ari.VastLiteral(1), ari.VastLiteral(2)})
	require.True(t, Check(typ, ok))

	tooShort := ari.ACLiteral(nil)
	require.False(t, Check(typ, tooShort))

	tooLong := ari.ACLiteral([]ari.ARI{ari.VastLiteral(1), ari.VastLiteral(2), ari.VastLiteral(3)})
	require.False(t, Check(typ, tooLong))
}

func TestUListConvertsEachItem(t *testing.T) {
	typ := UList(Use(ari.LitVast), 0, 0)
	in := ari.ACLiteral([]ari.ARI{ari.IntLiteral(1), ari.IntLiteral(2)})
	out, err := Convert(typ, in)
	require.NoError(t, err)
	require.True(t, out.Lit.AC.Items[0].Equal(ari.VastLiteral(1)))
}

func TestDListRequiresExactSlotCount(t *testing.T) {
	typ := DList(Use(ari.LitVast), Use(ari.LitTextstr))
	ok := ari.ACLiteral([]ari.ARI{ari.VastLiteral(1), ari.TextLiteral("x")})
	require.True(t, Check(typ, ok))

	wrongCount := ari.ACLiteral([]ari.ARI{ari.VastLiteral(1)})
	require.False(t, Check(typ, wrongCount))

	wrongSlotType := ari.ACLiteral([]ari.ARI{ari.TextLiteral("x"), ari.TextLiteral("y")})
	require.False(t, Check(typ, wrongSlotType))
}

func TestUMapKeyAndValueTypes(t *testing.T) {
	typ := UMap(Use(ari.LitTextstr), Use(ari.LitVast))
	m := &ari.AM{}
	m.Set(ari.TextLiteral("a"), ari.VastLiteral(1))
	require.True(t, Check(typ, ari.AMLiteral(m)))

	bad := &ari.AM{}
	bad.Set(ari.VastLiteral(1), ari.VastLiteral(1))
	require.False(t, Check(typ, ari.AMLiteral(bad)))
}

func TestTbltColumnCountAndUniqueness(t *testing.T) {
	typ := Tblt([]Column{
		{Name: "id", Type: Use(ari.LitVast)},
		{Name: "name", Type: Use(ari.LitTextstr)},
	}, []int{0}, true)

	tbl := ari.TblLiteral(&ari.Table{Columns: 2, Cells: []ari.ARI{
		ari.VastLiteral(1), ari.TextLiteral("alice"),
		ari.VastLiteral(2), ari.TextLiteral("bob"),
	}})
	require.True(t, Check(typ, tbl))

	dup := ari.TblLiteral(&ari.Table{Columns: 2, Cells: []ari.ARI{
		ari.VastLiteral(1), ari.TextLiteral("alice"),
		ari.VastLiteral(1), ari.TextLiteral("bob"),
	}})
	require.False(t, Check(typ, dup))

	wrongCols := ari.TblLiteral(&ari.Table{Columns: 1, Cells: []ari.ARI{ari.VastLiteral(1)}})
	require.False(t, Check(typ, wrongCols))
}

func TestUnionTriesAlternativesInOrder(t *testing.T) {
	typ := Union(Use(ari.LitVast), Use(ari.LitTextstr))
	require.True(t, Check(typ, ari.VastLiteral(1)))
	require.True(t, Check(typ, ari.TextLiteral("x")))
	require.False(t, Check(typ, ari.BoolLiteral(true)))
}

func TestSeqDelegatesToItemType(t *testing.T) {
	typ := Seq(Use(ari.LitVast))
	require.True(t, Check(typ, ari.VastLiteral(1)))
	require.False(t, Check(typ, ari.TextLiteral("x")))
}
