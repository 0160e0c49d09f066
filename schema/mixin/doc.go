// Package mixin provides reusable schema components.
//
// Mixins allow sharing common fields, edges, hooks, and policies across
// multiple entity schemas. This promotes code reuse and consistency.
//
// # Built-in Mixins
//
// The package provides several ready-to-use mixins:
//
//	// Time mixin: Adds created_at and updated_at timestamps
//	mixin.Time{}
//
//	// CreateTime / UpdateTime mixins: Add only created_at / only updated_at
//	mixin.CreateTime{}
//	mixin.UpdateTime{}
//
//	// SoftDelete mixin: Adds deleted_at for soft deletes
//	mixin.SoftDelete{}
//
//	// TimeSoftDelete: Combines Time and SoftDelete
//	mixin.TimeSoftDelete{}
//
// # Using Mixins
//
// Mixins are applied to schemas via the Mixin() method:
//
//	type User struct{ accessgraph.Schema }
//
//	func (User) Mixin() []accessgraph.Mixin {
//	    return []accessgraph.Mixin{
//	        mixin.Time{},
//	    }
//	}
//
// The Time mixin contributes:
//   - created_at (time.Time, immutable)
//   - updated_at (time.Time, auto-updated)
//
// # Creating Custom Mixins
//
// Custom mixins implement the accessgraph.Mixin interface:
//
//	type AuditMixin struct {
//	    accessgraph.Mixin
//	}
//
//	func (AuditMixin) Fields() []accessgraph.Field {
//	    return []accessgraph.Field{
//	        field.String("created_by"),
//	        field.String("updated_by").Optional(),
//	    }
//	}
//
//	func (AuditMixin) Hooks() []accessgraph.Hook {
//	    return []accessgraph.Hook{
//	        // Hook to set created_by/updated_by from context
//	    }
//	}
//
// # Mixin Order
//
// Mixin returns the mixins in the order they are listed. No code in this
// module merges mixin fields into a schema, so two mixins declaring a field
// of the same name are not reconciled.
//
//	func (User) Mixin() []accessgraph.Mixin {
//	    return []accessgraph.Mixin{
//	        BaseMixin{},      // Applied first
//	        AuditMixin{},     // Applied second
//	        TenantMixin{},    // Applied third
//	    }
//	}
//
// # Mixin Features
//
// Mixins can provide:
//
//   - Fields: Common fields shared across entities
//   - Edges: Common relationships
//   - Indexes: Common database indexes
//   - Hooks: Mutation hooks (before/after create, update, delete)
//   - Interceptors: Query interceptors
//   - Policy: Privacy/authorization rules
//   - Annotations: Custom annotations for generators
//
// # Time Mixin
//
// The Time mixin adds timestamp tracking:
//
//	type Time struct{ Schema }
//
//	func (Time) Fields() []accessgraph.Field {
//	    return []accessgraph.Field{
//	        field.Time("created_at").
//	            Default(time.Now).
//	            Immutable(),
//	        field.Time("updated_at").
//	            Default(time.Now).
//	            UpdateDefault(time.Now),
//	    }
//	}
//
// # SoftDelete Mixin
//
// The SoftDelete mixin enables soft deletion:
//
//	type SoftDelete struct{ Schema }
//
//	func (SoftDelete) Fields() []accessgraph.Field {
//	    return []accessgraph.Field{
//	        field.Time("deleted_at").
//	            Optional().
//	            Nillable(),
//	    }
//	}
package mixin
