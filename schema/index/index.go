// Package index provides fluent builders for declaring database indexes on
// entity fields and edges.
package index

import (
	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/schema"
)

// Builder is the fluent, chainable value returned by Fields.
type Builder struct {
	desc *accessgraph.IndexDescriptor
}

// Descriptor returns the accumulated index configuration.
func (b Builder) Descriptor() *accessgraph.IndexDescriptor { return b.desc }

// Fields declares an index over the given field names, in order.
func Fields(names ...string) Builder {
	return Builder{desc: &accessgraph.IndexDescriptor{Fields: names}}
}

// Edges adds one or more edge-backed foreign-key columns to the index.
func (b Builder) Edges(names ...string) Builder {
	b.desc.Edges = append(b.desc.Edges, names...)
	return b
}

// Unique marks the index as enforcing uniqueness.
func (b Builder) Unique() Builder { b.desc.Unique = true; return b }

// Annotations attaches codegen/runtime annotations to the index.
func (b Builder) Annotations(ants ...schema.Annotation) Builder {
	b.desc.Annotations = append(b.desc.Annotations, ants...)
	return b
}

var _ accessgraph.Index = Builder{}
