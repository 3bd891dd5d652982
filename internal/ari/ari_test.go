package ari

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCBORRoundTrip(t *testing.T) {
	cases := map[string]ARI{
		"null":    NullLiteral(),
		"bool":    BoolLiteral(true),
		"byte":    ByteLiteral(7),
		"int":     IntLiteral(-42),
		"uint":    UintLiteral(42),
		"vast":    VastLiteral(-9000000000),
		"uvast":   UvastLiteral(9000000000),
		"real32":  Real32Literal(1.5),
		"real64":  Real64Literal(-2.25),
		"textstr": TextLiteral("hello world"),
		"bytestr": BytesLiteral([]byte{0x01, 0x02, 0x03}),
		"label":   LabelLiteral("a-label"),
		"cbor":    CBORLiteral([]byte{0xa0}),
		"tp":      TPLiteral(time.Unix(1700000000, 0).UTC()),
		"td":      TDLiteral(5 * time.Second),
		"ac": ACLiteral([]ARI{
			IntLiteral(1), TextLiteral("two"), BoolLiteral(false),
		}),
		"objref": ObjRef(ObjectPath{
			Org: NameIdent("ietf"), Model: NameIdent("amm-base"),
			Type: ObjTypedef, Obj: NameIdent("int"),
		}),
	}

	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			raw := Encode(a)
			got, n, err := Decode(raw)
			require.NoError(t, err)
			require.Equal(t, len(raw), n)
			require.True(t, a.Equal(got), "round trip mismatch for %s: %+v != %+v", name, a, got)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	cases := []ARI{
		NullLiteral(),
		BoolLiteral(true),
		IntLiteral(-7),
		TextLiteral("hi there"),
		ObjRef(ObjectPath{
			Org: NameIdent("ietf"), Model: NameIdent("amm-base"),
			Type: ObjTypedef, Obj: NameIdent("int"),
		}),
	}
	for _, a := range cases {
		text, err := FormatText(a)
		require.NoError(t, err)
		got, err := ParseText(text)
		require.NoError(t, err)
		require.True(t, a.Equal(got), "text round trip mismatch for %q: %+v != %+v", text, a, got)
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	orig := ACLiteral([]ARI{IntLiteral(1), IntLiteral(2)})
	dup := orig.DeepCopy()
	dup.Lit.AC.Items[0] = IntLiteral(99)
	require.Equal(t, int64(1), orig.Lit.AC.Items[0].Lit.Int64)
	require.True(t, orig.Equal(orig.DeepCopy()))
}

func TestLitTypeOf(t *testing.T) {
	require.Equal(t, LitBool, BoolLiteral(true).LitTypeOf())
	require.Equal(t, LitTextstr, TextLiteral("x").LitTypeOf())
}
