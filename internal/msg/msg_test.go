package msg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []ari.ARI{
		ari.IntLiteral(7),
		ari.TextLiteral("hello"),
		ari.BoolLiteral(true),
	}
	raw := Encode(items)
	got, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i := range items {
		require.True(t, items[i].Equal(got[i]))
	}
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindVersion))
}

func TestDecodeWrongVersion(t *testing.T) {
	_, err := Decode([]byte{0x02})
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindVersion))
}

func TestDecodeTruncatedItem(t *testing.T) {
	raw := Encode([]ari.ARI{ari.TextLiteral("hello world")})
	_, err := Decode(raw[:len(raw)-1])
	require.Error(t, err)
	require.True(t, amperr.Is(err, amperr.KindCbor))
}
