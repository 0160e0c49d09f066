// Package schema provides the building blocks for defining entity schemas:
// the field/edge/index/mixin builders in its subpackages, and the
// Annotation/Merger contracts those builders attach to a FieldDescriptor or
// EdgeDescriptor for consumption by the client-building layer.
package schema

// Annotation is a named, free-form payload attached to a field, edge, or
// whole model to carry adapter-specific configuration, for example the
// struct tag carried by edge.Annotation.
type Annotation interface {
	// Name is used as the annotation's storage key. Two annotations with
	// the same Name on the same descriptor are merged via Merger, or the
	// later one wins if it doesn't implement Merger.
	Name() string
}

// Merger is implemented by annotations that know how to combine with a
// previous value of themselves, instead of simply being overwritten.
type Merger interface {
	Merge(Annotation) Annotation
}

// Annotations is an ordered set of annotations, keyed by Name with later
// entries merged into earlier ones of the same name.
type Annotations map[string]Annotation

// Set adds ants to the set, merging with any existing entry of the same name.
func (a Annotations) Set(ants ...Annotation) {
	for _, ant := range ants {
		name := ant.Name()
		if prev, ok := a[name]; ok {
			if m, ok := prev.(Merger); ok {
				a[name] = m.Merge(ant)
				continue
			}
		}
		a[name] = ant
	}
}
