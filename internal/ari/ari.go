package ari

import (
	"fmt"
	"time"
)

// DTNEpoch is the reference epoch for TP (timepoint) and TD (duration)
// literals: 2000-01-01T00:00:00Z, per spec section 3.1.
var DTNEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Ident names either an org, a model, or an object within one, by either
// an interned integer id or a text name. Exactly one form is authoritative
// at a time; IsInt selects which.
type Ident struct {
	IsInt bool
	IntID int64
	Name  string
}

// IntIdent builds an integer-form identifier.
func IntIdent(id int64) Ident { return Ident{IsInt: true, IntID: id} }

// NameIdent builds a text-form identifier.
func NameIdent(name string) Ident { return Ident{Name: name} }

func (i Ident) String() string {
	if i.IsInt {
		return fmt.Sprintf("%d", i.IntID)
	}
	return i.Name
}

// ObjectPath identifies an object in the store: (org, model, object-type,
// object-id), plus any actual parameters bound at reference time.
type ObjectPath struct {
	Org    Ident
	Model  Ident
	Type   ObjType
	Obj    Ident
	Params *AM // nil if no parameters were supplied
}

func (p ObjectPath) String() string {
	if p.Params != nil {
		return fmt.Sprintf("//%s/%s/%s/%s(%d params)", p.Org, p.Model, p.Type, p.Obj, len(p.Params.Pairs))
	}
	return fmt.Sprintf("//%s/%s/%s/%s", p.Org, p.Model, p.Type, p.Obj)
}

// TypeTag is the payload of an ARITYPE literal: it names either a built-in
// literal type or a TYPEDEF object, i.e. it is itself a reference to a
// semantic type.
type TypeTag struct {
	Builtin   bool
	Lit       LitType
	TypedefAt *ObjectPath
}

// AMPair is one key/value entry of an AM (ordered map). A slice of pairs
// is used instead of a Go map so that CBOR map-key order round-trips
// exactly, per the spec's round-trip law.
type AMPair struct {
	Key ARI
	Val ARI
}

// AM is an ordered map from ARI to ARI.
type AM struct {
	Pairs []AMPair
}

// Get returns the value for a key using ARI equality, and whether it was
// found.
func (m *AM) Get(key ARI) (ARI, bool) {
	if m == nil {
		return ARI{}, false
	}
	for _, p := range m.Pairs {
		if p.Key.Equal(key) {
			return p.Val, true
		}
	}
	return ARI{}, false
}

// Set inserts or replaces the value for key, preserving insertion order on
// first write.
func (m *AM) Set(key, val ARI) {
	for i, p := range m.Pairs {
		if p.Key.Equal(key) {
			m.Pairs[i].Val = val
			return
		}
	}
	m.Pairs = append(m.Pairs, AMPair{Key: key, Val: val})
}

// Table is a rectangular TBL value: a declared column count and a
// row-major slice of cells, where len(Cells) is always a multiple of
// Columns.
type Table struct {
	Columns int
	Cells   []ARI
}

func (t *Table) rows() int {
	if t == nil || t.Columns == 0 {
		return 0
	}
	return len(t.Cells) / t.Columns
}

// Row returns the cells of row i.
func (t *Table) Row(i int) []ARI {
	return t.Cells[i*t.Columns : (i+1)*t.Columns]
}

// ExecSet is an EXECSET literal: a nonce plus an ordered list of execution
// targets.
type ExecSet struct {
	Nonce   ARI
	Targets []ARI
}

// ReportItem is one entry of a Report: a relative time, a source ARI, and
// an ordered item list.
type ReportItem struct {
	RelTime time.Duration
	Source  ARI
	Items   []ARI
}

// RptSet is an RPTSET literal: a nonce, a reference time, and an ordered
// list of reports.
type RptSet struct {
	Nonce   ARI
	RefTime time.Time
	Reports []ReportItem
}

// Literal holds the payload for KindLiteral ARIs. Only the field(s)
// relevant to Type are meaningful; this mirrors the teacher corpus's
// tagged-struct-with-optional-fields idiom (see envelope.FlowInterrupt)
// rather than a Go interface hierarchy, keeping value-copy semantics
// trivial for the scalar cases.
type Literal struct {
	Type LitType

	Bool  bool
	Int64 int64 // BYTE/INT/VAST widen into here
	Uint64 uint64 // UINT/UVAST widen into here
	Real32 float32
	Real64 float64
	Text   string // TEXTSTR, LABEL
	Bytes  []byte // BYTESTR, CBOR (opaque self-delimited item)
	TP     time.Time
	TD     time.Duration
	Type_  TypeTag // ARITYPE; named Type_ to avoid clashing with Type field

	AC *ExecSetItems // AC
	AM *AM           // AM
	Tbl *Table       // TBL
	ExecSet *ExecSet // EXECSET
	RptSet  *RptSet  // RPTSET
}

// ExecSetItems is the payload of an AC literal: an ordered sequence of ARI.
// Named distinctly from ExecSet (the EXECSET literal) to avoid confusion
// between "a list of ARI" and "a nonce'd execution request".
type ExecSetItems struct {
	Items []ARI
}

// ARI is the universal value: either UNDEFINED, a Literal of exactly one
// type, or an object reference of exactly one object type.
type ARI struct {
	Kind Kind
	Lit  *Literal
	Ref  *ObjectPath
}

// Undefined returns the UNDEFINED sentinel.
func Undefined() ARI { return ARI{Kind: KindUndefined} }

// IsUndefined reports whether a is the UNDEFINED sentinel.
func (a ARI) IsUndefined() bool { return a.Kind == KindUndefined }

func lit(t LitType) *Literal { return &Literal{Type: t} }

func NullLiteral() ARI { return ARI{Kind: KindLiteral, Lit: lit(LitNull)} }

func BoolLiteral(b bool) ARI {
	l := lit(LitBool)
	l.Bool = b
	return ARI{Kind: KindLiteral, Lit: l}
}

func ByteLiteral(v uint8) ARI {
	l := lit(LitByte)
	l.Int64 = int64(v)
	return ARI{Kind: KindLiteral, Lit: l}
}

func IntLiteral(v int32) ARI {
	l := lit(LitInt)
	l.Int64 = int64(v)
	return ARI{Kind: KindLiteral, Lit: l}
}

func UintLiteral(v uint32) ARI {
	l := lit(LitUint)
	l.Uint64 = uint64(v)
	return ARI{Kind: KindLiteral, Lit: l}
}

func VastLiteral(v int64) ARI {
	l := lit(LitVast)
	l.Int64 = v
	return ARI{Kind: KindLiteral, Lit: l}
}

func UvastLiteral(v uint64) ARI {
	l := lit(LitUvast)
	l.Uint64 = v
	return ARI{Kind: KindLiteral, Lit: l}
}

func Real32Literal(v float32) ARI {
	l := lit(LitReal32)
	l.Real32 = v
	return ARI{Kind: KindLiteral, Lit: l}
}

func Real64Literal(v float64) ARI {
	l := lit(LitReal64)
	l.Real64 = v
	return ARI{Kind: KindLiteral, Lit: l}
}

func TextLiteral(v string) ARI {
	l := lit(LitTextstr)
	l.Text = v
	return ARI{Kind: KindLiteral, Lit: l}
}

func BytesLiteral(v []byte) ARI {
	l := lit(LitBytestr)
	l.Bytes = append([]byte(nil), v...)
	return ARI{Kind: KindLiteral, Lit: l}
}

func LabelLiteral(v string) ARI {
	l := lit(LitLabel)
	l.Text = v
	return ARI{Kind: KindLiteral, Lit: l}
}

func CBORLiteral(v []byte) ARI {
	l := lit(LitCBOR)
	l.Bytes = append([]byte(nil), v...)
	return ARI{Kind: KindLiteral, Lit: l}
}

// TPLiteral builds a TP literal from an absolute time; the CBOR codec
// encodes it relative to the DTN epoch.
func TPLiteral(t time.Time) ARI {
	l := lit(LitTP)
	l.TP = t
	return ARI{Kind: KindLiteral, Lit: l}
}

func TDLiteral(d time.Duration) ARI {
	l := lit(LitTD)
	l.TD = d
	return ARI{Kind: KindLiteral, Lit: l}
}

func TypeLiteral(tag TypeTag) ARI {
	l := lit(LitARITYPE)
	l.Type_ = tag
	return ARI{Kind: KindLiteral, Lit: l}
}

func BuiltinTypeLiteral(lt LitType) ARI {
	return TypeLiteral(TypeTag{Builtin: true, Lit: lt})
}

func ACLiteral(items []ARI) ARI {
	l := lit(LitAC)
	l.AC = &ExecSetItems{Items: items}
	return ARI{Kind: KindLiteral, Lit: l}
}

func AMLiteral(m *AM) ARI {
	l := lit(LitAM)
	l.AM = m
	return ARI{Kind: KindLiteral, Lit: l}
}

func TblLiteral(t *Table) ARI {
	l := lit(LitTBL)
	l.Tbl = t
	return ARI{Kind: KindLiteral, Lit: l}
}

func ExecSetLiteral(es *ExecSet) ARI {
	l := lit(LitEXECSET)
	l.ExecSet = es
	return ARI{Kind: KindLiteral, Lit: l}
}

func RptSetLiteral(rs *RptSet) ARI {
	l := lit(LitRPTSET)
	l.RptSet = rs
	return ARI{Kind: KindLiteral, Lit: l}
}

// ObjRef builds an object-reference ARI.
func ObjRef(path ObjectPath) ARI {
	p := path
	return ARI{Kind: KindObjectRef, Ref: &p}
}

// DeepCopy returns an independent copy of a, per the "copies are deep by
// default" lifecycle invariant in spec section 3.1.
func (a ARI) DeepCopy() ARI {
	switch a.Kind {
	case KindUndefined:
		return a
	case KindLiteral:
		out := *a.Lit
		switch a.Lit.Type {
		case LitBytestr, LitCBOR:
			out.Bytes = append([]byte(nil), a.Lit.Bytes...)
		case LitAC:
			items := make([]ARI, len(a.Lit.AC.Items))
			for i, it := range a.Lit.AC.Items {
				items[i] = it.DeepCopy()
			}
			out.AC = &ExecSetItems{Items: items}
		case LitAM:
			pairs := make([]AMPair, len(a.Lit.AM.Pairs))
			for i, p := range a.Lit.AM.Pairs {
				pairs[i] = AMPair{Key: p.Key.DeepCopy(), Val: p.Val.DeepCopy()}
			}
			out.AM = &AM{Pairs: pairs}
		case LitTBL:
			cells := make([]ARI, len(a.Lit.Tbl.Cells))
			for i, c := range a.Lit.Tbl.Cells {
				cells[i] = c.DeepCopy()
			}
			out.Tbl = &Table{Columns: a.Lit.Tbl.Columns, Cells: cells}
		case LitEXECSET:
			targets := make([]ARI, len(a.Lit.ExecSet.Targets))
			for i, t := range a.Lit.ExecSet.Targets {
				targets[i] = t.DeepCopy()
			}
			out.ExecSet = &ExecSet{Nonce: a.Lit.ExecSet.Nonce.DeepCopy(), Targets: targets}
		case LitRPTSET:
			reports := make([]ReportItem, len(a.Lit.RptSet.Reports))
			for i, r := range a.Lit.RptSet.Reports {
				items := make([]ARI, len(r.Items))
				for j, it := range r.Items {
					items[j] = it.DeepCopy()
				}
				reports[i] = ReportItem{RelTime: r.RelTime, Source: r.Source.DeepCopy(), Items: items}
			}
			out.RptSet = &RptSet{Nonce: a.Lit.RptSet.Nonce.DeepCopy(), RefTime: a.Lit.RptSet.RefTime, Reports: reports}
		}
		return ARI{Kind: KindLiteral, Lit: &out}
	case KindObjectRef:
		out := *a.Ref
		if a.Ref.Params != nil {
			pairs := make([]AMPair, len(a.Ref.Params.Pairs))
			for i, p := range a.Ref.Params.Pairs {
				pairs[i] = AMPair{Key: p.Key.DeepCopy(), Val: p.Val.DeepCopy()}
			}
			out.Params = &AM{Pairs: pairs}
		}
		return ARI{Kind: KindObjectRef, Ref: &out}
	}
	return a
}

// Equal reports deep structural equality between two ARIs.
func (a ARI) Equal(b ARI) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUndefined:
		return true
	case KindLiteral:
		return literalEqual(a.Lit, b.Lit)
	case KindObjectRef:
		return refEqual(a.Ref, b.Ref)
	}
	return false
}

func identEqual(x, y Ident) bool {
	if x.IsInt != y.IsInt {
		return false
	}
	if x.IsInt {
		return x.IntID == y.IntID
	}
	return x.Name == y.Name
}

func refEqual(x, y *ObjectPath) bool {
	if (x == nil) != (y == nil) {
		return false
	}
	if x == nil {
		return true
	}
	if !identEqual(x.Org, y.Org) || !identEqual(x.Model, y.Model) || x.Type != y.Type || !identEqual(x.Obj, y.Obj) {
		return false
	}
	if (x.Params == nil) != (y.Params == nil) {
		return false
	}
	if x.Params == nil {
		return true
	}
	if len(x.Params.Pairs) != len(y.Params.Pairs) {
		return false
	}
	for i := range x.Params.Pairs {
		if !x.Params.Pairs[i].Key.Equal(y.Params.Pairs[i].Key) || !x.Params.Pairs[i].Val.Equal(y.Params.Pairs[i].Val) {
			return false
		}
	}
	return true
}

func literalEqual(x, y *Literal) bool {
	if x.Type != y.Type {
		return false
	}
	switch x.Type {
	case LitNull:
		return true
	case LitBool:
		return x.Bool == y.Bool
	case LitByte, LitInt, LitVast:
		return x.Int64 == y.Int64
	case LitUint, LitUvast:
		return x.Uint64 == y.Uint64
	case LitReal32:
		return x.Real32 == y.Real32
	case LitReal64:
		return x.Real64 == y.Real64
	case LitTextstr, LitLabel:
		return x.Text == y.Text
	case LitBytestr, LitCBOR:
		return string(x.Bytes) == string(y.Bytes)
	case LitTP:
		return x.TP.Equal(y.TP)
	case LitTD:
		return x.TD == y.TD
	case LitARITYPE:
		if x.Type_.Builtin != y.Type_.Builtin {
			return false
		}
		if x.Type_.Builtin {
			return x.Type_.Lit == y.Type_.Lit
		}
		return refEqual(x.Type_.TypedefAt, y.Type_.TypedefAt)
	case LitAC:
		if len(x.AC.Items) != len(y.AC.Items) {
			return false
		}
		for i := range x.AC.Items {
			if !x.AC.Items[i].Equal(y.AC.Items[i]) {
				return false
			}
		}
		return true
	case LitAM:
		if len(x.AM.Pairs) != len(y.AM.Pairs) {
			return false
		}
		for i := range x.AM.Pairs {
			if !x.AM.Pairs[i].Key.Equal(y.AM.Pairs[i].Key) || !x.AM.Pairs[i].Val.Equal(y.AM.Pairs[i].Val) {
				return false
			}
		}
		return true
	case LitTBL:
		if x.Tbl.Columns != y.Tbl.Columns || len(x.Tbl.Cells) != len(y.Tbl.Cells) {
			return false
		}
		for i := range x.Tbl.Cells {
			if !x.Tbl.Cells[i].Equal(y.Tbl.Cells[i]) {
				return false
			}
		}
		return true
	case LitEXECSET:
		if !x.ExecSet.Nonce.Equal(y.ExecSet.Nonce) || len(x.ExecSet.Targets) != len(y.ExecSet.Targets) {
			return false
		}
		for i := range x.ExecSet.Targets {
			if !x.ExecSet.Targets[i].Equal(y.ExecSet.Targets[i]) {
				return false
			}
		}
		return true
	case LitRPTSET:
		if !x.RptSet.Nonce.Equal(y.RptSet.Nonce) || !x.RptSet.RefTime.Equal(y.RptSet.RefTime) || len(x.RptSet.Reports) != len(y.RptSet.Reports) {
			return false
		}
		for i := range x.RptSet.Reports {
			rx, ry := x.RptSet.Reports[i], y.RptSet.Reports[i]
			if rx.RelTime != ry.RelTime || !rx.Source.Equal(ry.Source) || len(rx.Items) != len(ry.Items) {
				return false
			}
			for j := range rx.Items {
				if !rx.Items[j].Equal(ry.Items[j]) {
					return false
				}
			}
		}
		return true
	}
	return false
}

// LitTypeOf returns the literal type of a, panicking if a is not a
// literal. Callers should check Kind first.
func (a ARI) LitTypeOf() LitType {
	if a.Kind != KindLiteral {
		panic(fmt.Sprintf("ari: LitTypeOf called on non-literal kind %s", a.Kind))
	}
	return a.Lit.Type
}
