// Package expr is a tagged-variant AST for policy and computed-field
// expressions, together with small predicates (IsLiteral, IsCall, ...) used
// by callers that need to pattern-match without a full visitor.
//
// Nodes are immutable values; transformers return new nodes rather than
// mutate in place, favoring a sum type over an inheritance-based visitor
// hierarchy (see DESIGN.md, "Tagged expression AST").
package expr

// Kind discriminates the variant held by an Expr.
type Kind int

const (
	KindLiteral Kind = iota
	KindField
	KindMember
	KindBinary
	KindUnary
	KindCall
	KindArray
	KindThis
	KindNull
	KindBinding
)

// Expr is the tagged union. Exactly the fields relevant to Kind are
// populated; callers must check Kind before reading a variant's payload.
type Expr struct {
	Kind Kind

	// KindLiteral
	Literal any

	// KindField: a column reference on the current model alias.
	Field string

	// KindMember: base.Member, e.g. auth().organizationId or this.owner.id
	Base   *Expr
	Member string

	// KindBinary
	Op    BinaryOp
	Left  *Expr
	Right *Expr

	// KindUnary
	UnaryOp UnaryOp
	Operand *Expr

	// KindCall: name(Args...), e.g. auth(), now(), cuid()
	Name string
	Args []Expr

	// KindArray
	Elements []Expr

	// KindBinding: a named parameter substituted at compile time (used by
	// collection predicates correlating an outer alias into a subquery).
	Binding string
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpEQ BinaryOp = iota
	OpNEQ
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpAnd
	OpOr
	OpIn
	// OpExists/OpNotExists/OpAll implement collection predicates `?`, `!`, `^`
	// against a to-many relation: exists-any, not-exists-any, for-all.
	OpExists
	OpNotExists
	OpAll
)

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
)

// Literal builds a literal node.
func Literal(v any) Expr { return Expr{Kind: KindLiteral, Literal: v} }

// Field builds a field-reference node.
func Field(name string) Expr { return Expr{Kind: KindField, Field: name} }

// This returns the "this" (current row) node.
func This() Expr { return Expr{Kind: KindThis} }

// Null returns the null literal node.
func Null() Expr { return Expr{Kind: KindNull} }

// Member builds base.member.
func Member(base Expr, member string) Expr {
	return Expr{Kind: KindMember, Base: &base, Member: member}
}

// Call builds name(args...).
func Call(name string, args ...Expr) Expr {
	return Expr{Kind: KindCall, Name: name, Args: args}
}

// Binary builds left OP right.
func Binary(op BinaryOp, left, right Expr) Expr {
	return Expr{Kind: KindBinary, Op: op, Left: &left, Right: &right}
}

// Unary builds OP operand.
func Unary(op UnaryOp, operand Expr) Expr {
	return Expr{Kind: KindUnary, UnaryOp: op, Operand: &operand}
}

// Array builds an array literal of expressions.
func Array(elems ...Expr) Expr { return Expr{Kind: KindArray, Elements: elems} }

// Binding builds a named-parameter placeholder.
func Binding(name string) Expr { return Expr{Kind: KindBinding, Binding: name} }

// And conjuncts a non-empty list of expressions; an empty list is the
// identity `true` per the boundary-behavior invariant in spec.md §8.
func And(exprs ...Expr) Expr {
	if len(exprs) == 0 {
		return Literal(true)
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = Binary(OpAnd, out, e)
	}
	return out
}

// Or disjuncts a non-empty list of expressions; an empty list is the
// identity `false`.
func Or(exprs ...Expr) Expr {
	if len(exprs) == 0 {
		return Literal(false)
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = Binary(OpOr, out, e)
	}
	return out
}

// Not negates an expression.
func Not(e Expr) Expr { return Unary(OpNot, e) }

// IsLiteral reports whether e is a literal node.
func IsLiteral(e Expr) bool { return e.Kind == KindLiteral }

// IsCall reports whether e is a call node, optionally matching name.
func IsCall(e Expr, name string) bool {
	return e.Kind == KindCall && (name == "" || e.Name == name)
}

// IsTrue reports whether e is the literal `true`.
func IsTrue(e Expr) bool {
	b, ok := e.Literal.(bool)
	return IsLiteral(e) && ok && b
}

// IsFalse reports whether e is the literal `false`.
func IsFalse(e Expr) bool {
	b, ok := e.Literal.(bool)
	return IsLiteral(e) && ok && !b
}

// IsThis reports whether e is the `this` node.
func IsThis(e Expr) bool { return e.Kind == KindThis }

// IsAuthCall reports whether e is a bare auth() call (with no member chain
// applied yet — member chains are represented by wrapping Member nodes).
func IsAuthCall(e Expr) bool { return IsCall(e, "auth") && len(e.Args) == 0 }

// Visitor dispatches on an expression's Kind. Each Visit* method returns the
// (possibly new) replacement node; returning the input unchanged is a no-op.
type Visitor interface {
	VisitLiteral(Expr) Expr
	VisitField(Expr) Expr
	VisitMember(Expr) Expr
	VisitBinary(Expr) Expr
	VisitUnary(Expr) Expr
	VisitCall(Expr) Expr
	VisitArray(Expr) Expr
	VisitThis(Expr) Expr
	VisitNull(Expr) Expr
	VisitBinding(Expr) Expr
}

// Walk dispatches e to the matching Visit* method on v.
func Walk(v Visitor, e Expr) Expr {
	switch e.Kind {
	case KindLiteral:
		return v.VisitLiteral(e)
	case KindField:
		return v.VisitField(e)
	case KindMember:
		return v.VisitMember(e)
	case KindBinary:
		return v.VisitBinary(e)
	case KindUnary:
		return v.VisitUnary(e)
	case KindCall:
		return v.VisitCall(e)
	case KindArray:
		return v.VisitArray(e)
	case KindThis:
		return v.VisitThis(e)
	case KindNull:
		return v.VisitNull(e)
	case KindBinding:
		return v.VisitBinding(e)
	default:
		return e
	}
}
