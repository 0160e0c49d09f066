// Package schema provides the building blocks for defining entity schemas.
//
// This package holds the Annotation and Merger contracts; the builders live
// in its subpackages:
//
//   - [field]: Field builders for entity attributes
//   - [edge]: Edge builders for entity relationships
//   - [index]: Index builders for database indexes
//   - [mixin]: Reusable schema components
//
// # Quick Start
//
// Define an entity schema by embedding accessgraph.Schema and implementing the
// required methods:
//
//	type User struct{ accessgraph.Schema }
//
//	func (User) Mixin() []accessgraph.Mixin {
//	    return []accessgraph.Mixin{
//	        mixin.Time{}, // created_at and updated_at timestamps
//	    }
//	}
//
//	func (User) Fields() []accessgraph.Field {
//	    return []accessgraph.Field{
//	        field.String("email").Unique().Email().MaxLen(255),
//	        field.String("name").NotEmpty().MaxLen(100),
//	        field.Enum("status").Values("active", "suspended", "deleted"),
//	    }
//	}
//
//	func (User) Edges() []accessgraph.Edge {
//	    return []accessgraph.Edge{
//	        edge.To("posts", Post.Type),                     // O2M: User has many Posts
//	        edge.To("profile", Profile.Type).Unique(),       // O2O: User has one Profile
//	    }
//	}
//
//	func (User) Indexes() []accessgraph.Index {
//	    return []accessgraph.Index{
//	        index.Fields("email").Unique(),
//	        index.Fields("status", "created_at"),
//	    }
//	}
//
// # Field Types
//
// The field package provides builders for all common field types:
//
//	field.String("name")           // VARCHAR
//	field.Text("bio")              // TEXT (unlimited)
//	field.Int64("count")           // BIGINT
//	field.Float64("price")         // DOUBLE PRECISION
//	field.Bool("active")           // BOOLEAN
//	field.Time("created_at")       // TIMESTAMP
//	field.UUID("id", uuid.UUID{})  // UUID
//	field.Enum("status")           // ENUM
//	field.JSON("metadata", M{})    // JSONB
//	field.Bytes("data")            // BYTEA
//
// # Validation
//
// Validator builders record validator tags in the field descriptor's
// Validators list; no code in this module evaluates that list:
//
//	// Built-in validators (self-documenting)
//	field.String("email").NotEmpty().MaxLen(255).Email()
//	field.Int64("age").NonNegative().Max(150)
//	field.Float64("rating").Range(0, 5)
//
//	// Struct tag validators (go-playground/validator syntax)
//	field.String("password").ValidateCreate("required,min=8,max=72")
//
// # Relationships
//
// The edge package defines entity relationships following Ent-style conventions:
//
//	// One-to-Many (default)
//	edge.To("posts", Post.Type)
//
//	// One-to-One
//	edge.To("profile", Profile.Type).Unique()
//
//	// Many-to-One (belongs to)
//	edge.From("author", User.Type).Field("user_id")
//
//	// Many-to-Many (through join table)
//	edge.To("tags", Tag.Type).Through("post_tags", PostTag.Type)
//
// # Mixins
//
// The mixin package provides reusable schema components:
//
//	mixin.Time{}           // created_at, updated_at timestamps
//	mixin.CreateTime{}     // created_at only
//	mixin.UpdateTime{}     // updated_at only
//	mixin.SoftDelete{}     // nillable deleted_at field
//	mixin.TimeSoftDelete{} // created_at, updated_at, deleted_at
//
// # Annotations
//
// Annotations (schema.Annotation) attach named payloads to fields, edges
// and indexes through their Annotations methods. The edge package defines
// one, edge.Annotation, which carries a struct tag:
//
//	edge.To("posts", Post.Type).
//	    Annotations(edge.Annotation{StructTag: `json:"post_edges"`})
//
// For detailed documentation on each subpackage, see their respective package docs.
package schema
