package ari

import (
	"bytes"
	"math"

	"github.com/dtn-amp/agent/internal/amperr"
)

// cborWriter accumulates CBOR bytes. Grounded in the corpus's cursor-style
// binary codec idiom (asdu/codec.go's AppendXxx/DecodeXxx pairs) rather
// than a reflection-based marshaler: the wire format here is a closed,
// small set of shapes, so an explicit byte-level writer is both simpler
// and gives exact control over canonical (smallest-head) encoding.
type cborWriter struct {
	buf bytes.Buffer
}

func (w *cborWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *cborWriter) head(major byte, n uint64) {
	mt := major << 5
	switch {
	case n < 24:
		w.buf.WriteByte(mt | byte(n))
	case n <= 0xff:
		w.buf.WriteByte(mt | 24)
		w.buf.WriteByte(byte(n))
	case n <= 0xffff:
		w.buf.WriteByte(mt | 25)
		w.buf.WriteByte(byte(n >> 8))
		w.buf.WriteByte(byte(n))
	case n <= 0xffffffff:
		w.buf.WriteByte(mt | 26)
		for i := 3; i >= 0; i-- {
			w.buf.WriteByte(byte(n >> (8 * uint(i))))
		}
	default:
		w.buf.WriteByte(mt | 27)
		for i := 7; i >= 0; i-- {
			w.buf.WriteByte(byte(n >> (8 * uint(i))))
		}
	}
}

func (w *cborWriter) WriteUint(n uint64) { w.head(0, n) }

func (w *cborWriter) WriteInt(n int64) {
	if n >= 0 {
		w.head(0, uint64(n))
		return
	}
	w.head(1, uint64(-(n + 1)))
}

func (w *cborWriter) WriteTag(tag uint64) { w.head(6, tag) }

func (w *cborWriter) WriteBytes(b []byte) {
	w.head(2, uint64(len(b)))
	w.buf.Write(b)
}

func (w *cborWriter) WriteText(s string) {
	w.head(3, uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *cborWriter) WriteArrayHeader(n int) { w.head(4, uint64(n)) }

func (w *cborWriter) WriteMapHeader(n int) { w.head(5, uint64(n)) }

func (w *cborWriter) WriteBool(b bool) {
	if b {
		w.buf.WriteByte(0xf5)
	} else {
		w.buf.WriteByte(0xf4)
	}
}

func (w *cborWriter) WriteNull() { w.buf.WriteByte(0xf6) }

func (w *cborWriter) WriteFloat32(f float32) {
	w.buf.WriteByte(0xfa)
	bits := math.Float32bits(f)
	for i := 3; i >= 0; i-- {
		w.buf.WriteByte(byte(bits >> (8 * uint(i))))
	}
}

func (w *cborWriter) WriteFloat64(f float64) {
	w.buf.WriteByte(0xfb)
	bits := math.Float64bits(f)
	for i := 7; i >= 0; i-- {
		w.buf.WriteByte(byte(bits >> (8 * uint(i))))
	}
}

// cborItem is a single decoded CBOR head plus any following raw payload
// already consumed (for byte/text strings).
type cborItem struct {
	Major byte
	Arg   uint64
	Bytes []byte // populated for major 2 (bstr) and 3 (tstr)
}

// cborReader reads definite-length CBOR items from a byte slice. Indefinite
// length items are not supported by this agent's wire format and are
// rejected with a CborError.
type cborReader struct {
	buf []byte
	pos int
}

func newCborReader(b []byte) *cborReader { return &cborReader{buf: b} }

func (r *cborReader) Remaining() int { return len(r.buf) - r.pos }

func (r *cborReader) Consumed() int { return r.pos }

func (r *cborReader) need(n int) error {
	if r.Remaining() < n {
		return amperr.New(amperr.KindCbor, "unexpected end of input, need %d more bytes", n)
	}
	return nil
}

func (r *cborReader) readArg(addl byte) (uint64, error) {
	switch {
	case addl < 24:
		return uint64(addl), nil
	case addl == 24:
		if err := r.need(1); err != nil {
			return 0, err
		}
		v := uint64(r.buf[r.pos])
		r.pos++
		return v, nil
	case addl == 25:
		if err := r.need(2); err != nil {
			return 0, err
		}
		v := uint64(r.buf[r.pos])<<8 | uint64(r.buf[r.pos+1])
		r.pos += 2
		return v, nil
	case addl == 26:
		if err := r.need(4); err != nil {
			return 0, err
		}
		var v uint64
		for i := 0; i < 4; i++ {
			v = v<<8 | uint64(r.buf[r.pos+i])
		}
		r.pos += 4
		return v, nil
	case addl == 27:
		if err := r.need(8); err != nil {
			return 0, err
		}
		var v uint64
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(r.buf[r.pos+i])
		}
		r.pos += 8
		return v, nil
	default:
		return 0, amperr.New(amperr.KindCbor, "indefinite-length items are not supported")
	}
}

// Next decodes the next top-level item's head (and, for strings, its
// payload).
func (r *cborReader) Next() (cborItem, error) {
	if err := r.need(1); err != nil {
		return cborItem{}, err
	}
	b := r.buf[r.pos]
	r.pos++
	major := b >> 5
	addl := b & 0x1f

	if major == 7 {
		switch addl {
		case 20:
			return cborItem{Major: 7, Arg: 0}, nil // false
		case 21:
			return cborItem{Major: 7, Arg: 1}, nil // true
		case 22:
			return cborItem{Major: 7, Arg: 2}, nil // null
		case 26:
			if err := r.need(4); err != nil {
				return cborItem{}, err
			}
			var v uint64
			for i := 0; i < 4; i++ {
				v = v<<8 | uint64(r.buf[r.pos+i])
			}
			r.pos += 4
			return cborItem{Major: 7, Arg: v}, nil
		case 27:
			if err := r.need(8); err != nil {
				return cborItem{}, err
			}
			var v uint64
			for i := 0; i < 8; i++ {
				v = v<<8 | uint64(r.buf[r.pos+i])
			}
			r.pos += 8
			return cborItem{Major: 7, Arg: v}, nil
		default:
			return cborItem{}, amperr.New(amperr.KindCbor, "unsupported simple/float value, addl=%d", addl)
		}
	}

	arg, err := r.readArg(addl)
	if err != nil {
		return cborItem{}, err
	}

	switch major {
	case 2, 3:
		n := int(arg)
		if err := r.need(n); err != nil {
			return cborItem{}, err
		}
		data := r.buf[r.pos : r.pos+n]
		r.pos += n
		return cborItem{Major: major, Arg: arg, Bytes: data}, nil
	default:
		return cborItem{Major: major, Arg: arg}, nil
	}
}
