// Package types implements the semantic type system layered over the
// ari package: built-in primitive types, named typedefs, and the
// composite semantic type kinds (use, ulist, dlist, umap, tblt, union,
// seq) along with their check/convert operations.
package types

import (
	"regexp"
	"strings"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// Kind discriminates the semantic type shapes.
type Kind uint8

const (
	KindUse Kind = iota
	KindUList
	KindDList
	KindUMap
	KindTblt
	KindUnion
	KindSeq
)

// Range constrains a numeric value to [Min, Max] when HasMin/HasMax.
type Range struct {
	HasMin, HasMax bool
	Min, Max       int64
}

func (r Range) allows(v int64) bool {
	if r.HasMin && v < r.Min {
		return false
	}
	if r.HasMax && v > r.Max {
		return false
	}
	return true
}

// Column is one named, typed column of a tblt semantic type.
type Column struct {
	Name string
	Type *SemType
}

// SemType is a semantic type descriptor: exactly the fields relevant to
// Kind are populated, mirroring the ari package's tagged-struct idiom.
type SemType struct {
	Kind Kind

	// KindUse
	Builtin    ari.LitType
	Typedef    *SemType // a named alias, for use-of-TYPEDEF
	Pattern    string   // optional regex constraint for TEXTSTR
	NumRange   Range

	// KindUList / KindSeq
	Item   *SemType
	MinLen int
	MaxLen int // 0 means unbounded

	// KindDList
	Slots []*SemType

	// KindUMap
	KeyType, ValType *SemType

	// KindTblt
	Columns    []Column
	KeyColumns []int // indexes into Columns that form the uniqueness key
	Unique     bool

	// KindUnion
	Alts []*SemType

	// Name, if this type is registered under a TYPEDEF, for error
	// messages; empty for anonymous/inline types.
	Name string
}

// Use builds a "use" semantic type referencing a built-in literal type.
func Use(lt ari.LitType) *SemType { return &SemType{Kind: KindUse, Builtin: lt} }

// UseTypedef builds a "use" semantic type referencing a named typedef.
func UseTypedef(name string, target *SemType) *SemType {
	return &SemType{Kind: KindUse, Typedef: target, Name: name}
}

// UList builds a uniform-list semantic type.
func UList(item *SemType, minLen, maxLen int) *SemType {
	return &SemType{Kind: KindUList, Item: item, MinLen: minLen, MaxLen: maxLen}
}

// DList builds a heterogeneous fixed-shape list semantic type.
func DList(slots ...*SemType) *SemType { return &SemType{Kind: KindDList, Slots: slots} }

// UMap builds a uniform-map semantic type.
func UMap(key, val *SemType) *SemType { return &SemType{Kind: KindUMap, KeyType: key, ValType: val} }

// Tblt builds a table-template semantic type.
func Tblt(cols []Column, keyCols []int, unique bool) *SemType {
	return &SemType{Kind: KindTblt, Columns: cols, KeyColumns: keyCols, Unique: unique}
}

// Union builds an ordered-alternative semantic type; Check/Convert try
// alternatives in order and the first match wins.
func Union(alts ...*SemType) *SemType { return &SemType{Kind: KindUnion, Alts: alts} }

// Seq builds a zero-or-more-of-one-type semantic type, valid only inside
// a dlist slot or a parameter list.
func Seq(item *SemType) *SemType { return &SemType{Kind: KindSeq, Item: item} }

// resolved follows a "use" chain down to either a built-in literal type
// or a non-use composite type.
func resolved(t *SemType) *SemType {
	for t.Kind == KindUse && t.Typedef != nil {
		t = t.Typedef
	}
	return t
}

// Check reports whether a conforms to t without performing any coercion.
func Check(t *SemType, a ari.ARI) bool {
	_, err := checkOrConvert(t, a, false)
	return err == nil
}

// Convert coerces a to conform to t, performing well-defined widening
// (BYTE->INT->VAST, BYTE->UINT->UVAST, REAL32->REAL64) and honoring
// constraints (text pattern, numeric range, table-column uniqueness).
// Narrowing conversions such as INT->TEXTSTR are never automatic.
func Convert(t *SemType, a ari.ARI) (ari.ARI, error) {
	return checkOrConvert(t, a, true)
}

func checkOrConvert(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	rt := resolved(t)
	switch rt.Kind {
	case KindUse:
		return checkUse(rt, a, convert)
	case KindUList:
		return checkUList(rt, a, convert)
	case KindDList:
		return checkDList(rt, a, convert)
	case KindUMap:
		return checkUMap(rt, a, convert)
	case KindTblt:
		return checkTblt(rt, a, convert)
	case KindUnion:
		return checkUnion(rt, a, convert)
	case KindSeq:
		return checkOrConvert(rt.Item, a, convert)
	}
	return ari.ARI{}, amperr.New(amperr.KindInternal, "unknown semantic type kind")
}

// widenRank orders the numeric literal types for widening purposes.
// Widening only ever moves to a strictly larger rank of the same
// signedness family; BYTE is unsigned-compatible and widens into either.
var widenRank = map[ari.LitType]int{
	ari.LitByte:  0,
	ari.LitInt:   1,
	ari.LitVast:  2,
	ari.LitUint:  1,
	ari.LitUvast: 2,
}

func checkUse(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	if a.Kind != ari.KindLiteral {
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "expected literal of type %s, got %s", t.Builtin, a.Kind)
	}
	lt := a.LitTypeOf()
	if lt == t.Builtin {
		return applyConstraints(t, a, convert)
	}
	if !convert {
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "expected %s, got %s", t.Builtin, lt)
	}
	widened, err := widen(a, t.Builtin)
	if err != nil {
		return ari.ARI{}, err
	}
	return applyConstraints(t, widened, convert)
}

func widen(a ari.ARI, target ari.LitType) (ari.ARI, error) {
	src := a.LitTypeOf()
	srcRank, srcOK := widenRank[src]
	dstRank, dstOK := widenRank[target]
	if src == ari.LitReal32 && target == ari.LitReal64 {
		return ari.Real64Literal(float64(a.Lit.Real32)), nil
	}
	if !srcOK || !dstOK || dstRank < srcRank {
		return ari.ARI{}, amperr.New(amperr.KindCoercion, "cannot coerce %s to %s", src, target)
	}
	// unsigned source cannot silently widen to a signed destination and
	// vice versa except via the BYTE bridge, which is unsigned.
	unsigned := func(t ari.LitType) bool { return t == ari.LitUint || t == ari.LitUvast }
	if src != ari.LitByte && unsigned(src) != unsigned(target) {
		return ari.ARI{}, amperr.New(amperr.KindCoercion, "cannot coerce %s to %s", src, target)
	}
	switch target {
	case ari.LitInt:
		return ari.IntLiteral(int32(numericValue(a))), nil
	case ari.LitVast:
		return ari.VastLiteral(numericValue(a)), nil
	case ari.LitUint:
		return ari.UintLiteral(uint32(numericValue(a))), nil
	case ari.LitUvast:
		return ari.UvastLiteral(uint64(numericValue(a))), nil
	}
	return ari.ARI{}, amperr.New(amperr.KindCoercion, "cannot coerce %s to %s", src, target)
}

func numericValue(a ari.ARI) int64 {
	switch a.Lit.Type {
	case ari.LitByte, ari.LitInt, ari.LitVast:
		return a.Lit.Int64
	case ari.LitUint, ari.LitUvast:
		return int64(a.Lit.Uint64)
	}
	return 0
}

func applyConstraints(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	if t.Pattern != "" && a.Lit.Type == ari.LitTextstr {
		if ok, err := regexp.MatchString(t.Pattern, a.Lit.Text); err != nil || !ok {
			return ari.ARI{}, amperr.New(amperr.KindConstraintViolation, "text %q does not satisfy pattern %q", a.Lit.Text, t.Pattern)
		}
	}
	if t.NumRange.HasMin || t.NumRange.HasMax {
		if !t.NumRange.allows(numericValue(a)) {
			return ari.ARI{}, amperr.New(amperr.KindConstraintViolation, "value out of range")
		}
	}
	_ = convert
	return a, nil
}

func checkUList(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	if a.Kind != ari.KindLiteral || a.Lit.Type != ari.LitAC {
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "expected AC for ulist")
	}
	items := a.Lit.AC.Items
	if len(items) < t.MinLen || (t.MaxLen > 0 && len(items) > t.MaxLen) {
		return ari.ARI{}, amperr.New(amperr.KindConstraintViolation, "ulist length %d outside [%d,%d]", len(items), t.MinLen, t.MaxLen)
	}
	out := make([]ari.ARI, len(items))
	for i, it := range items {
		v, err := checkOrConvert(t.Item, it, convert)
		if err != nil {
			return ari.ARI{}, amperr.Wrap(amperr.KindTypeMismatch, err, "ulist item %d", i)
		}
		out[i] = v
	}
	return ari.ACLiteral(out), nil
}

func checkDList(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	if a.Kind != ari.KindLiteral || a.Lit.Type != ari.LitAC {
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "expected AC for dlist")
	}
	items := a.Lit.AC.Items
	if len(items) != len(t.Slots) {
		return ari.ARI{}, amperr.New(amperr.KindConstraintViolation, "dlist expects %d slots, got %d", len(t.Slots), len(items))
	}
	out := make([]ari.ARI, len(items))
	for i, slot := range t.Slots {
		v, err := checkOrConvert(slot, items[i], convert)
		if err != nil {
			return ari.ARI{}, amperr.Wrap(amperr.KindTypeMismatch, err, "dlist slot %d", i)
		}
		out[i] = v
	}
	return ari.ACLiteral(out), nil
}

func checkUMap(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	if a.Kind != ari.KindLiteral || a.Lit.Type != ari.LitAM {
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "expected AM for umap")
	}
	out := &ari.AM{}
	for _, p := range a.Lit.AM.Pairs {
		k, err := checkOrConvert(t.KeyType, p.Key, convert)
		if err != nil {
			return ari.ARI{}, amperr.Wrap(amperr.KindTypeMismatch, err, "umap key")
		}
		v, err := checkOrConvert(t.ValType, p.Val, convert)
		if err != nil {
			return ari.ARI{}, amperr.Wrap(amperr.KindTypeMismatch, err, "umap value")
		}
		out.Set(k, v)
	}
	return ari.AMLiteral(out), nil
}

func checkTblt(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	if a.Kind != ari.KindLiteral || a.Lit.Type != ari.LitTBL {
		return ari.ARI{}, amperr.New(amperr.KindTypeMismatch, "expected TBL for tblt")
	}
	tbl := a.Lit.Tbl
	if tbl.Columns != len(t.Columns) {
		return ari.ARI{}, amperr.New(amperr.KindConstraintViolation, "table has %d columns, template expects %d", tbl.Columns, len(t.Columns))
	}
	nrows := 0
	if tbl.Columns > 0 {
		nrows = len(tbl.Cells) / tbl.Columns
	}
	out := make([]ari.ARI, len(tbl.Cells))
	seen := map[string]bool{}
	for r := 0; r < nrows; r++ {
		row := tbl.Cells[r*tbl.Columns : (r+1)*tbl.Columns]
		var keyParts []string
		for c, col := range t.Columns {
			v, err := checkOrConvert(col.Type, row[c], convert)
			if err != nil {
				return ari.ARI{}, amperr.Wrap(amperr.KindTypeMismatch, err, "table row %d column %q", r, col.Name)
			}
			out[r*tbl.Columns+c] = v
			if t.Unique && containsInt(t.KeyColumns, c) {
				keyParts = append(keyParts, string(ari.Encode(v)))
			}
		}
		if t.Unique {
			key := strings.Join(keyParts, "\x00")
			if seen[key] {
				return ari.ARI{}, amperr.New(amperr.KindConstraintViolation, "duplicate key in table row %d", r)
			}
			seen[key] = true
		}
	}
	return ari.TblLiteral(&ari.Table{Columns: tbl.Columns, Cells: out}), nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func checkUnion(t *SemType, a ari.ARI, convert bool) (ari.ARI, error) {
	var lastErr error
	for _, alt := range t.Alts {
		v, err := checkOrConvert(alt, a, convert)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = amperr.New(amperr.KindTypeMismatch, "no union alternative")
	}
	return ari.ARI{}, amperr.Wrap(amperr.KindTypeMismatch, lastErr, "no alternative of union matched")
}
