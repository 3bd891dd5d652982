// Package msg implements the AMP wire framing: a version tag followed by
// a concatenated sequence of self-delimited CBOR ARI items, per the
// cace_amp_msg_encode/decode pairing this agent is modeled on.
package msg

import (
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// Version is the only wire version this agent emits or accepts.
const Version = 1

// Encode emits one version tag followed by each item's CBOR encoding,
// concatenated without separators.
func Encode(items []ari.ARI) []byte {
	out := make([]byte, 0, 1+len(items)*8)
	out = append(out, 0x01) // CBOR unsigned int 1, single byte head
	for _, item := range items {
		out = append(out, ari.Encode(item)...)
	}
	return out
}

// Decode reads the version tag, then decodes ARIs until the buffer is
// exhausted. A version mismatch is a VersionError; a mid-stream decode
// failure is a CborError reporting how many bytes were consumed before
// the failure.
func Decode(data []byte) ([]ari.ARI, error) {
	if len(data) == 0 {
		return nil, amperr.New(amperr.KindVersion, "empty message, expected version tag")
	}
	ver, verLen, err := decodeVersion(data)
	if err != nil {
		return nil, err
	}
	if ver != Version {
		return nil, amperr.New(amperr.KindVersion, "unsupported message version %d", ver)
	}

	rest := data[verLen:]
	consumed := verLen
	var items []ari.ARI
	for len(rest) > 0 {
		a, n, err := ari.Decode(rest)
		if err != nil {
			return nil, amperr.Wrap(amperr.KindCbor, err, "decoding ARI at offset %d", consumed)
		}
		items = append(items, a)
		rest = rest[n:]
		consumed += n
	}
	return items, nil
}

// decodeVersion reads a single CBOR unsigned integer head from the front
// of data, returning its value and byte length.
func decodeVersion(data []byte) (uint64, int, error) {
	b := data[0]
	major := b >> 5
	addl := b & 0x1f
	if major != 0 {
		return 0, 0, amperr.New(amperr.KindVersion, "expected CBOR unsigned int for version tag")
	}
	switch {
	case addl < 24:
		return uint64(addl), 1, nil
	case addl == 24:
		if len(data) < 2 {
			return 0, 0, amperr.New(amperr.KindVersion, "truncated version tag")
		}
		return uint64(data[1]), 2, nil
	default:
		return 0, 0, amperr.New(amperr.KindVersion, "version tag head too large")
	}
}
