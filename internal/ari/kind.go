// Package ari implements the Application Management Resource Identifier
// value model: the single tagged value type used both in memory and on the
// wire for every datum the agent produces or consumes.
package ari

// Kind discriminates the three top-level shapes an ARI can take.
type Kind uint8

const (
	// KindUndefined is the sentinel "no value" marker, distinct from NULL.
	KindUndefined Kind = iota
	// KindLiteral carries a primitive or structured literal value.
	KindLiteral
	// KindObjectRef carries a reference to an object in the store.
	KindObjectRef
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindLiteral:
		return "literal"
	case KindObjectRef:
		return "objref"
	default:
		return "unknown"
	}
}

// LitType enumerates every literal and structured-literal type an ARI can
// hold. The wire codec's CBOR tag for each type is 4000 plus its numeric
// value (litTag in cbor.go), so the values must not be renumbered.
type LitType uint8

const (
	LitNull LitType = iota
	LitBool
	LitByte
	LitInt
	LitUint
	LitVast
	LitUvast
	LitReal32
	LitReal64
	LitTextstr
	LitBytestr
	LitLabel
	LitCBOR
	LitTP
	LitTD
	LitARITYPE
	LitAC
	LitAM
	LitTBL
	LitEXECSET
	LitRPTSET
)

var litTypeNames = map[LitType]string{
	LitNull:    "null",
	LitBool:    "bool",
	LitByte:    "byte",
	LitInt:     "int",
	LitUint:    "uint",
	LitVast:    "vast",
	LitUvast:   "uvast",
	LitReal32:  "real32",
	LitReal64:  "real64",
	LitTextstr: "textstr",
	LitBytestr: "bytestr",
	LitLabel:   "label",
	LitCBOR:    "cbor",
	LitTP:      "tp",
	LitTD:      "td",
	LitARITYPE: "aritype",
	LitAC:      "ac",
	LitAM:      "am",
	LitTBL:     "tbl",
	LitEXECSET: "execset",
	LitRPTSET:  "rptset",
}

func (t LitType) String() string {
	if n, ok := litTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// IsStructured reports whether the literal type is a container (AC, AM,
// TBL, EXECSET, RPTSET) rather than a primitive scalar.
func (t LitType) IsStructured() bool {
	switch t {
	case LitAC, LitAM, LitTBL, LitEXECSET, LitRPTSET:
		return true
	default:
		return false
	}
}

// ObjType enumerates the kinds of object the store can hold.
type ObjType uint8

const (
	ObjTypedef ObjType = iota
	ObjIdent
	ObjConst
	ObjVar
	ObjEDD
	ObjCtrl
	ObjOper
	ObjSBR
	ObjTBR
)

var objTypeNames = map[ObjType]string{
	ObjTypedef: "TYPEDEF",
	ObjIdent:   "IDENT",
	ObjConst:   "CONST",
	ObjVar:     "VAR",
	ObjEDD:     "EDD",
	ObjCtrl:    "CTRL",
	ObjOper:    "OPER",
	ObjSBR:     "SBR",
	ObjTBR:     "TBR",
}

func (t ObjType) String() string {
	if n, ok := objTypeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseObjType looks up an ObjType by its textual name, used by the text
// codec and by ADM registration code.
func ParseObjType(name string) (ObjType, bool) {
	for t, n := range objTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}
