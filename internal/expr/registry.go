package expr

import (
	"math"
	"sync"

	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// EvalFunc is the pure callback backing a builtin Operator.
type EvalFunc func(args []ari.ARI) (ari.ARI, error)

// builtinOperator is the concrete Operator implementation registered for
// every built-in OPER.
type builtinOperator struct {
	name     string
	operands []*types.SemType
	result   *types.SemType
	eval     EvalFunc
}

func (o *builtinOperator) Name() string                     { return o.name }
func (o *builtinOperator) OperandTypes() []*types.SemType    { return o.operands }
func (o *builtinOperator) ResultType() *types.SemType        { return o.result }
func (o *builtinOperator) Eval(args []ari.ARI) (ari.ARI, error) { return o.eval(args) }

// Registry is a name->Operator lookup, registered the same way the
// teacher registers tools in tools.ToolExecutor.Register: a
// sync.RWMutex-guarded map, rejecting a nil handler or empty name.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operator
}

// NewRegistry returns an empty operator registry.
func NewRegistry() *Registry { return &Registry{ops: make(map[string]Operator)} }

// Register adds an operator under its own name.
func (r *Registry) Register(op Operator) error {
	if op == nil || op.Name() == "" {
		return amperr.New(amperr.KindInternal, "operator name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.Name()] = op
	return nil
}

// Lookup resolves an operator by name.
func (r *Registry) Lookup(name string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Names lists every registered operator name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for n := range r.ops {
		names = append(names, n)
	}
	return names
}

// errOverflow is returned by the checked arithmetic helpers below, per
// spec section 4.7: "Division by zero and integer overflow during
// numeric operators fail EvalError."
var errOverflow = amperr.New(amperr.KindEval, "integer overflow")

func checkedNegate(a int64) (int64, error) {
	if a == math.MinInt64 {
		return 0, errOverflow
	}
	return -a, nil
}

func checkedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, errOverflow
	}
	return sum, nil
}

func checkedSub(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, errOverflow
	}
	return diff, nil
}

func checkedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, errOverflow
	}
	result := a * b
	if result/b != a {
		return 0, errOverflow
	}
	return result, nil
}

func vastOp(name string, fn func(a, b int64) (int64, error)) Operator {
	return &builtinOperator{
		name:     name,
		operands: []*types.SemType{types.Use(ari.LitVast), types.Use(ari.LitVast)},
		result:   types.Use(ari.LitVast),
		eval: func(args []ari.ARI) (ari.ARI, error) {
			v, err := fn(args[0].Lit.Int64, args[1].Lit.Int64)
			if err != nil {
				return ari.ARI{}, err
			}
			return ari.VastLiteral(v), nil
		},
	}
}

func boolOp(name string, arity int, fn func(args []bool) bool) Operator {
	operands := make([]*types.SemType, arity)
	for i := range operands {
		operands[i] = types.Use(ari.LitBool)
	}
	return &builtinOperator{
		name:     name,
		operands: operands,
		result:   types.Use(ari.LitBool),
		eval: func(args []ari.ARI) (ari.ARI, error) {
			bs := make([]bool, len(args))
			for i, a := range args {
				bs[i] = a.Lit.Bool
			}
			return ari.BoolLiteral(fn(bs)), nil
		},
	}
}

func cmpOp(name string, fn func(a, b int64) bool) Operator {
	return &builtinOperator{
		name:     name,
		operands: []*types.SemType{types.Use(ari.LitVast), types.Use(ari.LitVast)},
		result:   types.Use(ari.LitBool),
		eval: func(args []ari.ARI) (ari.ARI, error) {
			return ari.BoolLiteral(fn(args[0].Lit.Int64, args[1].Lit.Int64)), nil
		},
	}
}

// NewBuiltinRegistry returns a registry populated with the arithmetic,
// bitwise, boolean, and comparison suites from spec section 4.7, plus
// tbl-filter. Division by zero and the like fail with EvalError.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	ops := []Operator{
		&builtinOperator{
			name:     "negate",
			operands: []*types.SemType{types.Use(ari.LitVast)},
			result:   types.Use(ari.LitVast),
			eval: func(args []ari.ARI) (ari.ARI, error) {
				v, err := checkedNegate(args[0].Lit.Int64)
				if err != nil {
					return ari.ARI{}, err
				}
				return ari.VastLiteral(v), nil
			},
		},
		vastOp("add", checkedAdd),
		vastOp("sub", checkedSub),
		vastOp("multiply", checkedMul),
		vastOp("divide", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, amperr.New(amperr.KindEval, "division by zero")
			}
			return a / b, nil
		}),
		vastOp("remainder", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, amperr.New(amperr.KindEval, "division by zero")
			}
			return a % b, nil
		}),
		&builtinOperator{
			name:     "bit-not",
			operands: []*types.SemType{types.Use(ari.LitVast)},
			result:   types.Use(ari.LitVast),
			eval: func(args []ari.ARI) (ari.ARI, error) {
				return ari.VastLiteral(^args[0].Lit.Int64), nil
			},
		},
		vastOp("bit-and", func(a, b int64) (int64, error) { return a & b, nil }),
		vastOp("bit-or", func(a, b int64) (int64, error) { return a | b, nil }),
		vastOp("bit-xor", func(a, b int64) (int64, error) { return a ^ b, nil }),
		boolOp("bool-not", 1, func(a []bool) bool { return !a[0] }),
		boolOp("bool-and", 2, func(a []bool) bool { return a[0] && a[1] }),
		boolOp("bool-or", 2, func(a []bool) bool { return a[0] || a[1] }),
		boolOp("bool-xor", 2, func(a []bool) bool { return a[0] != a[1] }),
		&builtinOperator{
			name:     "compare-eq",
			operands: []*types.SemType{types.Use(ari.LitVast), types.Use(ari.LitVast)},
			result:   types.Use(ari.LitBool),
			eval: func(args []ari.ARI) (ari.ARI, error) {
				return ari.BoolLiteral(args[0].Equal(args[1])), nil
			},
		},
		&builtinOperator{
			name:     "compare-ne",
			operands: []*types.SemType{types.Use(ari.LitVast), types.Use(ari.LitVast)},
			result:   types.Use(ari.LitBool),
			eval: func(args []ari.ARI) (ari.ARI, error) {
				return ari.BoolLiteral(!args[0].Equal(args[1])), nil
			},
		},
		cmpOp("compare-gt", func(a, b int64) bool { return a > b }),
		cmpOp("compare-ge", func(a, b int64) bool { return a >= b }),
		cmpOp("compare-lt", func(a, b int64) bool { return a < b }),
		cmpOp("compare-le", func(a, b int64) bool { return a <= b }),
		&builtinOperator{
			name:     "tbl-filter",
			operands: []*types.SemType{types.Use(ari.LitTBL), types.Use(ari.LitVast)},
			result:   types.Use(ari.LitTBL),
			eval:     tblFilter,
		},
	}
	for _, op := range ops {
		_ = r.Register(op)
	}
	return r
}

// tblFilter keeps only rows whose first column equals the second operand,
// a minimal but genuine filter predicate exercising the TBL shape.
func tblFilter(args []ari.ARI) (ari.ARI, error) {
	tbl := args[0].Lit.Tbl
	key := args[1]
	if tbl.Columns == 0 {
		return args[0], nil
	}
	var cells []ari.ARI
	rows := len(tbl.Cells) / tbl.Columns
	for r := 0; r < rows; r++ {
		row := tbl.Cells[r*tbl.Columns : (r+1)*tbl.Columns]
		if row[0].Equal(key) {
			cells = append(cells, row...)
		}
	}
	return ari.TblLiteral(&ari.Table{Columns: tbl.Columns, Cells: cells}), nil
}
