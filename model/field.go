package model

import "github.com/polyquery/accessgraph/schema/expr"

// FieldType enumerates builtin scalar types; a FieldDef may instead carry a
// model name (relation), an enum name, or a TypeDef name.
type FieldType string

const (
	TypeString      FieldType = "String"
	TypeBoolean     FieldType = "Boolean"
	TypeInt         FieldType = "Int"
	TypeFloat       FieldType = "Float"
	TypeBigInt      FieldType = "BigInt"
	TypeDecimal     FieldType = "Decimal"
	TypeDateTime    FieldType = "DateTime"
	TypeBytes       FieldType = "Bytes"
	TypeJSON        FieldType = "Json"
	TypeUnsupported FieldType = "Unsupported"
)

// FieldDef describes one field of a model: its declared type, structural
// flags, default-value expression, and — for relation fields — the foreign
// key wiring that connects it to another model.
type FieldDef struct {
	Name string
	// Type is either one of the FieldType constants, or names a model
	// (relation field), an enum, or a TypeDef.
	Type FieldType
	// ReferencedModel/ReferencedEnum/ReferencedTypeDef name the non-builtin
	// type when Type does not match one of the FieldType constants above.
	ReferencedModel   string
	ReferencedEnum    string
	ReferencedTypeDef string

	ID         bool
	Unique     bool
	Array      bool
	Optional   bool
	UpdatedAt  bool
	Computed   bool
	Immutable  bool

	// Default holds either a primitive literal value or a DefaultExpr
	// describing a generator call (cuid(), uuid(v), nanoid(n), ulid(),
	// now(), or a member access on auth()).
	Default *DefaultValue

	Relation *Relation

	// ForeignKeyFor lists the relation field name(s) this scalar column
	// backs when it is an owned-side FK column.
	ForeignKeyFor []string

	// OriginModel names the delegate base model that originally declared
	// this field, when the field is inherited rather than declared
	// directly on the model it appears to belong to.
	OriginModel string
}

// IsRelation reports whether the field represents a relation to another model.
func (f *FieldDef) IsRelation() bool { return f.Relation != nil }

// IsToMany reports whether the relation (if any) returns a collection.
func (f *FieldDef) IsToMany() bool { return f.Relation != nil && f.Array }

// DefaultValue is either a literal or a generator expression.
type DefaultValue struct {
	Literal    any
	Generator  *expr.Expr
}

// IsGenerator reports whether the default is a generator call rather than a
// static literal.
func (d *DefaultValue) IsGenerator() bool { return d != nil && d.Generator != nil }

// RelationAction enumerates onDelete/onUpdate referential actions.
type RelationAction string

const (
	ActionCascade    RelationAction = "CASCADE"
	ActionRestrict   RelationAction = "RESTRICT"
	ActionSetNull    RelationAction = "SET NULL"
	ActionSetDefault RelationAction = "SET DEFAULT"
	ActionNoAction   RelationAction = "NO ACTION"
)

// Relation describes how a field connects to another model.
type Relation struct {
	// Name disambiguates multiple relations between the same two models.
	Name string
	// Model is the name of the related model.
	Model string
	// Fields/References are the FK column pairs on the owned side. Both
	// are empty on the non-owning side of a relation, and on both sides of
	// an implicit many-to-many relation.
	Fields     []string
	References []string
	// Opposite names the field on the related model that mirrors this one.
	Opposite string
	OnDelete RelationAction
	OnUpdate RelationAction
}

// IsOwner reports whether this side of the relation carries the FK columns.
func (r *Relation) IsOwner() bool { return len(r.Fields) > 0 }

// IsManyToMany reports whether neither side owns FK columns and the field is
// an array — i.e. the relation is backed by an implicit join table.
func IsManyToMany(owner, opposite *FieldDef) bool {
	return owner != nil && opposite != nil &&
		owner.Array && opposite.Array &&
		owner.Relation != nil && opposite.Relation != nil &&
		!owner.Relation.IsOwner() && !opposite.Relation.IsOwner()
}
