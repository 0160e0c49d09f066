package edge

import (
	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/schema"
)

// Builder is the fluent, chainable value returned by To and From.
type Builder struct {
	desc *accessgraph.EdgeDescriptor
}

// Descriptor returns the accumulated edge configuration.
func (b Builder) Descriptor() *accessgraph.EdgeDescriptor { return b.desc }

// To defines the forward direction of a relationship to the model produced
// by typ (conventionally a zero-value model.Type reference).
func To(name string, typ any) Builder {
	return Builder{desc: &accessgraph.EdgeDescriptor{Name: name, Type: typeName(typ)}}
}

// From defines the inverse direction of a relationship previously declared
// with To on the referenced model; Ref must name that edge.
func From(name string, typ any) Builder {
	return Builder{desc: &accessgraph.EdgeDescriptor{Name: name, Type: typeName(typ)}}
}

func typeName(typ any) string {
	if s, ok := typ.(string); ok {
		return s
	}
	if n, ok := typ.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

// Unique marks the edge as one-to-one/many-to-one.
func (b Builder) Unique() Builder { b.desc.Unique = true; return b }

// Required marks the edge as mandatory on create.
func (b Builder) Required() Builder { b.desc.Required = true; return b }

// Immutable marks the edge as settable only on create.
func (b Builder) Immutable() Builder { b.desc.Immutable = true; return b }

// Comment attaches a description to the edge.
func (b Builder) Comment(c string) Builder { b.desc.Comment = c; return b }

// Ref names the To-side edge this From edge inverts.
func (b Builder) Ref(name string) Builder { b.desc.RefName = name; return b }

// Field names the local scalar field backing this edge's foreign key,
// exposing it as a settable/readable column alongside the relation.
func (b Builder) Field(name string) Builder { b.desc.Field = name; return b }

// Through routes a many-to-many edge via an explicit join-table model
// instead of an implicit join table.
func (b Builder) Through(name string, typ any) Builder {
	b.desc.ThroughName = name
	b.desc.ThroughType = typeName(typ)
	return b
}

// StorageKeyOption configures the physical storage backing an edge.
type StorageKeyOption func(*accessgraph.EdgeDescriptor)

// Column overrides the foreign-key column name for a to-one/from edge.
func Column(name string) StorageKeyOption {
	return func(d *accessgraph.EdgeDescriptor) { d.StorageKeys = []string{name} }
}

// Table overrides the join-table name for a many-to-many edge.
func Table(name string) StorageKeyOption {
	return func(d *accessgraph.EdgeDescriptor) {
		if len(d.StorageKeys) < 1 {
			d.StorageKeys = make([]string, 1)
		}
		d.StorageKeys[0] = name
	}
}

// Columns overrides the join-table column pair for a many-to-many edge.
func Columns(a, b string) StorageKeyOption {
	return func(d *accessgraph.EdgeDescriptor) { d.StorageKeys = append(d.StorageKeys, a, b) }
}

// StorageKey applies one or more storage-naming overrides to the edge.
func (b Builder) StorageKey(opts ...StorageKeyOption) Builder {
	for _, opt := range opts {
		opt(b.desc)
	}
	return b
}

// Annotations attaches codegen/runtime annotations to the edge.
func (b Builder) Annotations(ants ...schema.Annotation) Builder {
	b.desc.Annotations = append(b.desc.Annotations, ants...)
	return b
}

var _ accessgraph.Edge = Builder{}
