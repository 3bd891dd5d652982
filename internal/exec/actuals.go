package exec

import (
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// ActualsFromParams converts an object reference's actual-parameter AM
// into an Actuals value, per spec section 3.1: each key is either a
// TEXTSTR/LABEL naming a formal, or an integer literal giving its
// positional index. Mixed positional/named is allowed by Bind; a name or
// index given as a key twice fails here with InvalidArguments.
func ActualsFromParams(params *ari.AM) (Actuals, error) {
	var out Actuals
	if params == nil {
		return out, nil
	}
	out.Named = make(map[string]ari.ARI)
	positional := map[int64]ari.ARI{}
	var maxIdx int64 = -1
	for _, p := range params.Pairs {
		switch {
		case p.Key.Kind == ari.KindLiteral && (p.Key.Lit.Type == ari.LitTextstr || p.Key.Lit.Type == ari.LitLabel):
			if _, dup := out.Named[p.Key.Lit.Text]; dup {
				return Actuals{}, amperr.New(amperr.KindInvalidArguments, "parameter %q supplied twice", p.Key.Lit.Text)
			}
			out.Named[p.Key.Lit.Text] = p.Val
		case p.Key.Kind == ari.KindLiteral && isIntLit(p.Key.Lit.Type):
			idx := numericOf(p.Key)
			if _, dup := positional[idx]; dup {
				return Actuals{}, amperr.New(amperr.KindInvalidArguments, "positional parameter index %d supplied twice", idx)
			}
			positional[idx] = p.Val
			if idx > maxIdx {
				maxIdx = idx
			}
		default:
			return Actuals{}, amperr.New(amperr.KindInvalidArguments, "parameter key must be a name or an integer index")
		}
	}
	for i := int64(0); i <= maxIdx; i++ {
		v, ok := positional[i]
		if !ok {
			return Actuals{}, amperr.New(amperr.KindInvalidArguments, "positional parameter index %d missing while %d supplied", i, maxIdx+1)
		}
		out.Positional = append(out.Positional, v)
	}
	return out, nil
}

func isIntLit(t ari.LitType) bool {
	switch t {
	case ari.LitByte, ari.LitInt, ari.LitUint, ari.LitVast, ari.LitUvast:
		return true
	}
	return false
}

func numericOf(a ari.ARI) int64 {
	switch a.Lit.Type {
	case ari.LitByte, ari.LitInt, ari.LitVast:
		return a.Lit.Int64
	default:
		return int64(a.Lit.Uint64)
	}
}
