package exec

import (
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/store"
)

// ParamEnv is a bound actual-parameter environment, attached to an
// execution record and readable from its CTRL callback.
type ParamEnv struct {
	byName map[string]ari.ARI
}

// Get returns the bound value for a formal parameter name.
func (e *ParamEnv) Get(name string) (ari.ARI, bool) {
	v, ok := e.byName[name]
	return v, ok
}

// Actuals is the caller-supplied actual parameter list: either ordered
// positional values, or a name->value map, or a mix so long as no name
// is used twice (mixed positional/named binds positional values to the
// formals in declaration order, skipping names already supplied).
type Actuals struct {
	Positional []ari.ARI
	Named      map[string]ari.ARI
}

// Bind resolves actuals against formals, applying defaults for missing
// parameters and coercing each supplied value to its formal type.
// Missing parameters with no default, unknown names, or too many
// positional values fail with InvalidArguments (a repeated key is
// rejected earlier, by ActualsFromParams); a coercion failure also fails with
// InvalidArguments (not Coercion) since the caller-facing contract is
// "your call was malformed", per spec section 4.6.1.
func Bind(formals []store.Param, actual Actuals) (*ParamEnv, error) {
	env := &ParamEnv{byName: make(map[string]ari.ARI, len(formals))}
	used := make(map[string]bool, len(actual.Named))

	for name, v := range actual.Named {
		used[name] = true
		if !formalExists(formals, name) {
			return nil, amperr.New(amperr.KindInvalidArguments, "unknown named parameter %q", name)
		}
		env.byName[name] = v
	}

	pos := 0
	for _, f := range formals {
		if _, already := env.byName[f.Name]; already {
			continue
		}
		if pos < len(actual.Positional) {
			env.byName[f.Name] = actual.Positional[pos]
			pos++
			continue
		}
		if f.Default != nil {
			env.byName[f.Name] = f.Default.DeepCopy()
			continue
		}
		return nil, amperr.New(amperr.KindInvalidArguments, "missing required parameter %q", f.Name)
	}
	if pos < len(actual.Positional) {
		return nil, amperr.New(amperr.KindInvalidArguments, "too many positional parameters: %d supplied, %d formal", len(actual.Positional), len(formals))
	}

	for _, f := range formals {
		v := env.byName[f.Name]
		if f.Type == nil {
			continue
		}
		coerced, err := types.Convert(f.Type, v)
		if err != nil {
			return nil, amperr.Wrap(amperr.KindInvalidArguments, err, "parameter %q", f.Name)
		}
		env.byName[f.Name] = coerced
	}
	return env, nil
}

func formalExists(formals []store.Param, name string) bool {
	for _, f := range formals {
		if f.Name == name {
			return true
		}
	}
	return false
}
