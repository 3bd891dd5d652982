// Package expr implements the expression/operator evaluator: a
// left-to-right stack machine over typed ARI operands, per spec
// section 4.7. An expression is an AC whose items are literals, value
// references (CONST/EDD/VAR, dereferenced to their current value),
// typedef references (pushed as the reference itself), labels, or OPER references.
//
// Grounded in the teacher's dispatch-by-type-switch style for walking a
// heterogeneous list (commbus message-type dispatch) combined with a
// plain Go slice used as an explicit operand stack; no third-party
// stack-machine library appears anywhere in the retrieved corpus, so
// this is one of the few components built on the standard library
// alone (recorded in DESIGN.md).
package expr

import (
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// Resolver dereferences a CONST/EDD/VAR object reference to its current
// value, and classifies any object reference by its object type so the
// evaluator can tell an OPER reference from a value reference.
type Resolver interface {
	// ObjType returns the object type of the object the path refers to.
	ObjType(path ari.ObjectPath) (ari.ObjType, error)
	// Value resolves a CONST/EDD/VAR reference to its current ARI value.
	Value(path ari.ObjectPath) (ari.ARI, error)
	// Operator resolves an OPER reference to its registered Operator.
	Operator(path ari.ObjectPath) (Operator, error)
}

// Operator is a pure function over a fixed number of typed operands.
type Operator interface {
	Name() string
	OperandTypes() []*types.SemType
	ResultType() *types.SemType
	Eval(args []ari.ARI) (ari.ARI, error)
}

// Eval evaluates an expression AC against the current agent state,
// returning its single resulting value. Per spec section 4.7: push
// literals/values/labels/types; when an OPER is encountered, pop its
// declared arity from the top of the stack, type-check and coerce each
// operand, invoke its callback, and push the single result. At the end
// of the expression the stack must contain exactly one value.
func Eval(items []ari.ARI, res Resolver) (ari.ARI, error) {
	var stack []ari.ARI
	for i, item := range items {
		switch item.Kind {
		case ari.KindUndefined:
			stack = append(stack, item)
		case ari.KindLiteral:
			stack = append(stack, item)
		case ari.KindObjectRef:
			ot, err := res.ObjType(*item.Ref)
			if err != nil {
				return ari.ARI{}, amperr.Wrap(amperr.KindEval, err, "expression item %d", i)
			}
			switch ot {
			case ari.ObjOper:
				v, err := applyOperator(&stack, *item.Ref, res)
				if err != nil {
					return ari.ARI{}, amperr.Wrap(amperr.KindEval, err, "expression item %d", i)
				}
				stack = append(stack, v)
			case ari.ObjConst, ari.ObjEDD, ari.ObjVar:
				v, err := res.Value(*item.Ref)
				if err != nil {
					return ari.ARI{}, amperr.Wrap(amperr.KindEval, err, "expression item %d", i)
				}
				stack = append(stack, v)
			case ari.ObjTypedef:
				stack = append(stack, item)
			default:
				return ari.ARI{}, amperr.New(amperr.KindEval, "expression item %d: object type %s cannot appear in an expression", i, ot)
			}
		}
	}
	if len(stack) != 1 {
		return ari.ARI{}, amperr.New(amperr.KindEval, "expression left %d values on the stack, expected 1", len(stack))
	}
	return stack[0], nil
}

func applyOperator(stack *[]ari.ARI, path ari.ObjectPath, res Resolver) (ari.ARI, error) {
	op, err := res.Operator(path)
	if err != nil {
		return ari.ARI{}, err
	}
	arity := len(op.OperandTypes())
	if len(*stack) < arity {
		return ari.ARI{}, amperr.New(amperr.KindEval, "operator %s needs %d operands, stack has %d", op.Name(), arity, len(*stack))
	}
	split := len(*stack) - arity
	args := append([]ari.ARI(nil), (*stack)[split:]...)
	*stack = (*stack)[:split]

	operandTypes := op.OperandTypes()
	for i, t := range operandTypes {
		coerced, err := types.Convert(t, args[i])
		if err != nil {
			return ari.ARI{}, amperr.Wrap(amperr.KindEval, err, "operator %s operand %d", op.Name(), i)
		}
		args[i] = coerced
	}
	result, err := op.Eval(args)
	if err != nil {
		return ari.ARI{}, amperr.Wrap(amperr.KindEval, err, "operator %s", op.Name())
	}
	return result, nil
}
