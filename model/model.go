package model

import "github.com/polyquery/accessgraph/schema/expr"

// ModelDef describes a single entity model: its fields, identity, uniqueness
// constraints, delegate-polymorphism relationships, and attached attributes
// (including @@allow/@@deny policy rules).
type ModelDef struct {
	Name string

	// Fields is ordered; iteration order matters for deterministic SQL
	// (column lists, INSERT value lists, join-table participant naming).
	FieldOrder []string
	Fields     map[string]*FieldDef

	// IdFields is the ordered list of fields used for row identity. Single
	// entry for a simple PK, multiple for a compound PK.
	IdFields []string

	// UniqueFields maps a stable key name to the field(s) it covers. A
	// single-field unique constraint's key is conventionally the field
	// name itself; compound keys have a synthesized or explicit name.
	UniqueFields map[string]*UniqueGroup

	// BaseModel names the delegate base model this model descends from,
	// or "" if this model is not a delegate descendant.
	BaseModel string
	// IsDelegate marks this model as a polymorphic base carrying a
	// discriminator column.
	IsDelegate bool
	// Discriminator is the name of the base model's discriminator field,
	// set when IsDelegate is true.
	Discriminator string

	Attributes []Attribute

	// Policies holds the model's extracted @@allow/@@deny rules, in
	// declaration order (deny rules are conventionally declared first, but
	// evaluation order does not depend on it: every matching allow
	// disjuncts, every matching deny conjuncts its negation).
	Policies []PolicyAttribute

	// ComputedFields maps a computed field name to its expression.
	ComputedFields map[string]*ComputedField

	// TableName is the physical table name, defaulting to Name when empty.
	TableName string
}

// UniqueGroup names one or more fields that together uniquely identify a row.
type UniqueGroup struct {
	Name   string
	Fields []string
}

// Field returns the field definition, or nil if undefined.
func (m *ModelDef) Field(name string) *FieldDef {
	if m == nil {
		return nil
	}
	return m.Fields[name]
}

// Table returns the physical table name for the model.
func (m *ModelDef) Table() string {
	if m.TableName != "" {
		return m.TableName
	}
	return m.Name
}

// OrderedFields returns field definitions in declaration order.
func (m *ModelDef) OrderedFields() []*FieldDef {
	out := make([]*FieldDef, 0, len(m.FieldOrder))
	for _, name := range m.FieldOrder {
		if f := m.Fields[name]; f != nil {
			out = append(out, f)
		}
	}
	return out
}

// RelationFields returns fields whose Type references another model.
func (m *ModelDef) RelationFields() []*FieldDef {
	var out []*FieldDef
	for _, f := range m.OrderedFields() {
		if f.Relation != nil {
			out = append(out, f)
		}
	}
	return out
}

// ScalarFields returns fields that are not relations and not computed.
func (m *ModelDef) ScalarFields() []*FieldDef {
	var out []*FieldDef
	for _, f := range m.OrderedFields() {
		if f.Relation == nil && !f.Computed {
			out = append(out, f)
		}
	}
	return out
}

// UniqueGroupFor returns the unique group matching the given set of fields
// exactly (order-independent), or nil.
func (m *ModelDef) UniqueGroupFor(fields ...string) *UniqueGroup {
	for _, g := range m.UniqueFields {
		if sameFieldSet(g.Fields, fields) {
			return g
		}
	}
	return nil
}

func sameFieldSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, f := range a {
		seen[f] = true
	}
	for _, f := range b {
		if !seen[f] {
			return false
		}
	}
	return true
}

// ComputedField pairs a declared field with the expression that realizes it.
type ComputedField struct {
	Name string
	Expr ComputeFunc
}

// ComputeFunc produces a raw SQL fragment for a computed field, given the
// alias the field's owning model is bound to in the current query.
type ComputeFunc func(modelAlias string) (sql string, args []any)

// Attribute is a named attribute application on a model, such as
// @@allow/@@deny/@@id/@@unique/@@index/@@delegate/@@auth.
type Attribute struct {
	Name string
	Args []any
}

// PolicyAttribute is the structured form of an @@allow/@@deny attribute,
// extracted from ModelDef.Attributes by the policy plugin.
type PolicyAttribute struct {
	Kind Kind // Allow or Deny
	// Ops is the comma-separated operation list from the attribute, e.g.
	// "create,update" or "all".
	Ops  []string
	Expr expr.Expr
}

// Kind distinguishes an allow rule from a deny rule.
type Kind int

const (
	Allow Kind = iota
	Deny
)
