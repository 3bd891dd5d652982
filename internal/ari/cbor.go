package ari

import (
	"math"
	"time"

	"github.com/dtn-amp/agent/internal/amperr"
)

// tagUndefined is the private-use CBOR tag reserved for the UNDEFINED
// sentinel (encoded as tag(tagUndefined) + CBOR null, per spec section 4.2).
const tagUndefined = 4095

// litTag returns the CBOR tag assigned to a literal type. Tags are offset
// into a private-use range so they never collide with IANA-registered
// tags a transport-layer CBOR item (e.g. a CBOR-typed literal's payload)
// might itself use.
func litTag(t LitType) uint64 { return 4000 + uint64(t) }

func litTypeFromTag(tag uint64) (LitType, bool) {
	if tag < 4000 || tag > 4000+uint64(LitRPTSET) {
		return 0, false
	}
	return LitType(tag - 4000), true
}

// Encode produces the canonical CBOR encoding of a single ARI.
func Encode(a ARI) []byte {
	w := &cborWriter{}
	encodeInto(w, a)
	return w.Bytes()
}

func encodeInto(w *cborWriter, a ARI) {
	switch a.Kind {
	case KindUndefined:
		w.WriteTag(tagUndefined)
		w.WriteNull()
	case KindLiteral:
		encodeLiteral(w, a.Lit)
	case KindObjectRef:
		encodeRef(w, a.Ref)
	}
}

func encodeIdent(w *cborWriter, id Ident) {
	if id.IsInt {
		w.WriteInt(id.IntID)
	} else {
		w.WriteText(id.Name)
	}
}

func encodeRef(w *cborWriter, p *ObjectPath) {
	n := 4
	if p.Params != nil {
		n = 5
	}
	w.WriteArrayHeader(n)
	encodeIdent(w, p.Org)
	encodeIdent(w, p.Model)
	w.WriteUint(uint64(p.Type))
	encodeIdent(w, p.Obj)
	if p.Params != nil {
		encodeAM(w, p.Params)
	}
}

func encodeAM(w *cborWriter, m *AM) {
	w.WriteMapHeader(len(m.Pairs))
	for _, p := range m.Pairs {
		encodeInto(w, p.Key)
		encodeInto(w, p.Val)
	}
}

func encodeLiteral(w *cborWriter, l *Literal) {
	w.WriteTag(litTag(l.Type))
	switch l.Type {
	case LitNull:
		w.WriteNull()
	case LitBool:
		w.WriteBool(l.Bool)
	case LitByte:
		w.WriteUint(uint64(l.Int64))
	case LitInt, LitVast:
		w.WriteInt(l.Int64)
	case LitUint, LitUvast:
		w.WriteUint(l.Uint64)
	case LitReal32:
		w.WriteFloat32(l.Real32)
	case LitReal64:
		w.WriteFloat64(l.Real64)
	case LitTextstr, LitLabel:
		w.WriteText(l.Text)
	case LitBytestr, LitCBOR:
		w.WriteBytes(l.Bytes)
	case LitTP:
		w.WriteInt(int64(l.TP.Sub(DTNEpoch)))
	case LitTD:
		w.WriteInt(int64(l.TD))
	case LitARITYPE:
		if l.Type_.Builtin {
			w.WriteUint(uint64(l.Type_.Lit))
		} else {
			encodeRef(w, l.Type_.TypedefAt)
		}
	case LitAC:
		w.WriteArrayHeader(len(l.AC.Items))
		for _, it := range l.AC.Items {
			encodeInto(w, it)
		}
	case LitAM:
		encodeAM(w, l.AM)
	case LitTBL:
		w.WriteArrayHeader(1 + len(l.Tbl.Cells))
		w.WriteUint(uint64(l.Tbl.Columns))
		for _, c := range l.Tbl.Cells {
			encodeInto(w, c)
		}
	case LitEXECSET:
		w.WriteArrayHeader(2)
		encodeInto(w, l.ExecSet.Nonce)
		w.WriteArrayHeader(len(l.ExecSet.Targets))
		for _, t := range l.ExecSet.Targets {
			encodeInto(w, t)
		}
	case LitRPTSET:
		w.WriteArrayHeader(3)
		encodeInto(w, l.RptSet.Nonce)
		encodeInto(w, TPLiteral(l.RptSet.RefTime))
		w.WriteArrayHeader(len(l.RptSet.Reports))
		for _, r := range l.RptSet.Reports {
			w.WriteArrayHeader(3)
			encodeInto(w, TDLiteral(r.RelTime))
			encodeInto(w, r.Source)
			w.WriteArrayHeader(len(r.Items))
			for _, it := range r.Items {
				encodeInto(w, it)
			}
		}
	}
}

// Decode parses exactly one ARI from the front of data and reports how
// many bytes were consumed.
func Decode(data []byte) (ARI, int, error) {
	r := newCborReader(data)
	a, err := decodeFrom(r)
	if err != nil {
		return ARI{}, r.Consumed(), err
	}
	return a, r.Consumed(), nil
}

func decodeFrom(r *cborReader) (ARI, error) {
	item, err := r.Next()
	if err != nil {
		return ARI{}, err
	}

	switch item.Major {
	case 4:
		return decodeRefBody(r, item.Arg)
	case 6:
		return decodeTagged(r, item.Arg)
	default:
		return ARI{}, amperr.New(amperr.KindCbor, "unexpected top-level CBOR major type %d for ARI", item.Major)
	}
}

func decodeIdentFrom(r *cborReader) (Ident, error) {
	item, err := r.Next()
	if err != nil {
		return Ident{}, err
	}
	switch item.Major {
	case 0:
		return IntIdent(int64(item.Arg)), nil
	case 1:
		return IntIdent(-1 - int64(item.Arg)), nil
	case 3:
		return NameIdent(string(item.Bytes)), nil
	default:
		return Ident{}, amperr.New(amperr.KindCbor, "unexpected CBOR major type %d for identifier", item.Major)
	}
}

func decodeRefBody(r *cborReader, n uint64) (ARI, error) {
	if n != 4 && n != 5 {
		return ARI{}, amperr.New(amperr.KindCbor, "object reference array must have 4 or 5 elements, got %d", n)
	}
	org, err := decodeIdentFrom(r)
	if err != nil {
		return ARI{}, err
	}
	model, err := decodeIdentFrom(r)
	if err != nil {
		return ARI{}, err
	}
	typItem, err := r.Next()
	if err != nil {
		return ARI{}, err
	}
	if typItem.Major != 0 {
		return ARI{}, amperr.New(amperr.KindCbor, "object type must be an unsigned int")
	}
	obj, err := decodeIdentFrom(r)
	if err != nil {
		return ARI{}, err
	}
	p := ObjectPath{Org: org, Model: model, Type: ObjType(typItem.Arg), Obj: obj}
	if n == 5 {
		params, err := decodeAMFrom(r)
		if err != nil {
			return ARI{}, err
		}
		p.Params = params
	}
	return ObjRef(p), nil
}

func decodeAMFrom(r *cborReader) (*AM, error) {
	item, err := r.Next()
	if err != nil {
		return nil, err
	}
	if item.Major != 5 {
		return nil, amperr.New(amperr.KindCbor, "expected CBOR map for AM, got major type %d", item.Major)
	}
	m := &AM{}
	for i := uint64(0); i < item.Arg; i++ {
		key, err := decodeFrom(r)
		if err != nil {
			return nil, err
		}
		val, err := decodeFrom(r)
		if err != nil {
			return nil, err
		}
		m.Pairs = append(m.Pairs, AMPair{Key: key, Val: val})
	}
	return m, nil
}

func decodeTagged(r *cborReader, tag uint64) (ARI, error) {
	if tag == tagUndefined {
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 7 || item.Arg != 2 {
			return ARI{}, amperr.New(amperr.KindCbor, "UNDEFINED tag must be followed by CBOR null")
		}
		return Undefined(), nil
	}

	lt, ok := litTypeFromTag(tag)
	if !ok {
		return ARI{}, amperr.New(amperr.KindCbor, "unknown CBOR tag %d", tag)
	}
	return decodeLiteralBody(r, lt)
}

func decodeLiteralBody(r *cborReader, lt LitType) (ARI, error) {
	switch lt {
	case LitNull:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 7 || item.Arg != 2 {
			return ARI{}, amperr.New(amperr.KindCbor, "NULL literal must encode CBOR null")
		}
		return NullLiteral(), nil
	case LitBool:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 7 || (item.Arg != 0 && item.Arg != 1) {
			return ARI{}, amperr.New(amperr.KindCbor, "BOOL literal must encode CBOR true/false")
		}
		return BoolLiteral(item.Arg == 1), nil
	case LitByte:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 0 {
			return ARI{}, amperr.New(amperr.KindCbor, "BYTE literal must encode CBOR uint")
		}
		return ByteLiteral(uint8(item.Arg)), nil
	case LitInt, LitVast:
		v, err := decodeSignedFrom(r)
		if err != nil {
			return ARI{}, err
		}
		if lt == LitInt {
			return IntLiteral(int32(v)), nil
		}
		return VastLiteral(v), nil
	case LitUint, LitUvast:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 0 {
			return ARI{}, amperr.New(amperr.KindCbor, "unsigned literal must encode CBOR uint")
		}
		if lt == LitUint {
			return UintLiteral(uint32(item.Arg)), nil
		}
		return UvastLiteral(item.Arg), nil
	case LitReal32:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 7 {
			return ARI{}, amperr.New(amperr.KindCbor, "REAL32 literal must encode a CBOR float")
		}
		return Real32Literal(math.Float32frombits(uint32(item.Arg))), nil
	case LitReal64:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 7 {
			return ARI{}, amperr.New(amperr.KindCbor, "REAL64 literal must encode a CBOR float")
		}
		return Real64Literal(math.Float64frombits(item.Arg)), nil
	case LitTextstr, LitLabel:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 3 {
			return ARI{}, amperr.New(amperr.KindCbor, "text literal must encode CBOR text string")
		}
		if lt == LitTextstr {
			return TextLiteral(string(item.Bytes)), nil
		}
		return LabelLiteral(string(item.Bytes)), nil
	case LitBytestr, LitCBOR:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 2 {
			return ARI{}, amperr.New(amperr.KindCbor, "byte-string literal must encode CBOR byte string")
		}
		if lt == LitBytestr {
			return BytesLiteral(item.Bytes), nil
		}
		return CBORLiteral(item.Bytes), nil
	case LitTP:
		v, err := decodeSignedFrom(r)
		if err != nil {
			return ARI{}, err
		}
		return TPLiteral(DTNEpoch.Add(time.Duration(v))), nil
	case LitTD:
		v, err := decodeSignedFrom(r)
		if err != nil {
			return ARI{}, err
		}
		return TDLiteral(time.Duration(v)), nil
	case LitARITYPE:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major == 0 {
			return TypeLiteral(TypeTag{Builtin: true, Lit: LitType(item.Arg)}), nil
		}
		if item.Major == 4 {
			ref, err := decodeRefBody(r, item.Arg)
			if err != nil {
				return ARI{}, err
			}
			return TypeLiteral(TypeTag{TypedefAt: ref.Ref}), nil
		}
		return ARI{}, amperr.New(amperr.KindCbor, "ARITYPE literal has unexpected shape")
	case LitAC:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 4 {
			return ARI{}, amperr.New(amperr.KindCbor, "AC literal must encode a CBOR array")
		}
		items := make([]ARI, 0, item.Arg)
		for i := uint64(0); i < item.Arg; i++ {
			v, err := decodeFrom(r)
			if err != nil {
				return ARI{}, err
			}
			items = append(items, v)
		}
		return ACLiteral(items), nil
	case LitAM:
		m, err := decodeAMFrom(r)
		if err != nil {
			return ARI{}, err
		}
		return AMLiteral(m), nil
	case LitTBL:
		item, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if item.Major != 4 || item.Arg == 0 {
			return ARI{}, amperr.New(amperr.KindCbor, "TBL literal must encode a non-empty CBOR array")
		}
		colItem, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if colItem.Major != 0 {
			return ARI{}, amperr.New(amperr.KindCbor, "TBL column count must be a CBOR uint")
		}
		cells := make([]ARI, 0, item.Arg-1)
		for i := uint64(1); i < item.Arg; i++ {
			v, err := decodeFrom(r)
			if err != nil {
				return ARI{}, err
			}
			cells = append(cells, v)
		}
		if colItem.Arg != 0 && len(cells)%int(colItem.Arg) != 0 {
			return ARI{}, amperr.New(amperr.KindCbor, "TBL cell count %d is not a multiple of column count %d", len(cells), colItem.Arg)
		}
		return TblLiteral(&Table{Columns: int(colItem.Arg), Cells: cells}), nil
	case LitEXECSET:
		arr, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if arr.Major != 4 || arr.Arg != 2 {
			return ARI{}, amperr.New(amperr.KindCbor, "EXECSET literal must encode a 2-element CBOR array")
		}
		nonce, err := decodeFrom(r)
		if err != nil {
			return ARI{}, err
		}
		tgtsHead, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if tgtsHead.Major != 4 {
			return ARI{}, amperr.New(amperr.KindCbor, "EXECSET targets must be a CBOR array")
		}
		targets := make([]ARI, 0, tgtsHead.Arg)
		for i := uint64(0); i < tgtsHead.Arg; i++ {
			v, err := decodeFrom(r)
			if err != nil {
				return ARI{}, err
			}
			targets = append(targets, v)
		}
		return ExecSetLiteral(&ExecSet{Nonce: nonce, Targets: targets}), nil
	case LitRPTSET:
		return decodeRptSet(r)
	}
	return ARI{}, amperr.New(amperr.KindCbor, "unsupported literal type tag %d", lt)
}

func decodeRptSet(r *cborReader) (ARI, error) {
	arr, err := r.Next()
	if err != nil {
		return ARI{}, err
	}
	if arr.Major != 4 || arr.Arg != 3 {
		return ARI{}, amperr.New(amperr.KindCbor, "RPTSET literal must encode a 3-element CBOR array")
	}
	nonce, err := decodeFrom(r)
	if err != nil {
		return ARI{}, err
	}
	refTime, err := decodeFrom(r)
	if err != nil {
		return ARI{}, err
	}
	if refTime.Kind != KindLiteral || refTime.Lit.Type != LitTP {
		return ARI{}, amperr.New(amperr.KindCbor, "RPTSET reference time must be a TP literal")
	}
	reportsHead, err := r.Next()
	if err != nil {
		return ARI{}, err
	}
	if reportsHead.Major != 4 {
		return ARI{}, amperr.New(amperr.KindCbor, "RPTSET reports must be a CBOR array")
	}
	reports := make([]ReportItem, 0, reportsHead.Arg)
	for i := uint64(0); i < reportsHead.Arg; i++ {
		repHead, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if repHead.Major != 4 || repHead.Arg != 3 {
			return ARI{}, amperr.New(amperr.KindCbor, "report must encode a 3-element CBOR array")
		}
		relTime, err := decodeFrom(r)
		if err != nil {
			return ARI{}, err
		}
		if relTime.Kind != KindLiteral || relTime.Lit.Type != LitTD {
			return ARI{}, amperr.New(amperr.KindCbor, "report relative time must be a TD literal")
		}
		source, err := decodeFrom(r)
		if err != nil {
			return ARI{}, err
		}
		itemsHead, err := r.Next()
		if err != nil {
			return ARI{}, err
		}
		if itemsHead.Major != 4 {
			return ARI{}, amperr.New(amperr.KindCbor, "report items must be a CBOR array")
		}
		items := make([]ARI, 0, itemsHead.Arg)
		for j := uint64(0); j < itemsHead.Arg; j++ {
			v, err := decodeFrom(r)
			if err != nil {
				return ARI{}, err
			}
			items = append(items, v)
		}
		reports = append(reports, ReportItem{RelTime: relTime.Lit.TD, Source: source, Items: items})
	}
	return RptSetLiteral(&RptSet{Nonce: nonce, RefTime: refTime.Lit.TP, Reports: reports}), nil
}

// decodeSignedFrom reads a CBOR signed integer (major type 0 or 1).
func decodeSignedFrom(r *cborReader) (int64, error) {
	item, err := r.Next()
	if err != nil {
		return 0, err
	}
	switch item.Major {
	case 0:
		return int64(item.Arg), nil
	case 1:
		return -1 - int64(item.Arg), nil
	default:
		return 0, amperr.New(amperr.KindCbor, "expected CBOR signed integer, got major type %d", item.Major)
	}
}
