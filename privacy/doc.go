// Package privacy provides privacy layer types and rule implementations.
//
// The privacy layer enables ORM-level authorization that evaluates before queries and
// mutations reach the database. This allows defining access control policies directly
// in the schema.
//
// # Core Concepts
//
// The privacy layer is built around three main concepts:
//
//   - Policy: A collection of rules that determine access to entities
//   - Rule: A function that returns Allow, Deny, or Skip decisions
//   - Viewer: An interface representing the current user/context
//
// # Defining Policies
//
// A Policy pairs an ordered list of query rules with an ordered list of
// mutation rules, and can be returned from a schema type's Policy() method:
//
//	func (User) Policy() accessgraph.Policy {
//	    return privacy.Policy{
//	        Mutation: privacy.MutationPolicy{
//	            privacy.DenyIfNoViewer(),   // Require authentication
//	            privacy.HasRole("admin"),   // Allow admins
//	            privacy.IsOwner("user_id"), // Allow owners
//	            privacy.AlwaysDenyRule(),   // Deny everything else
//	        },
//	        Query: privacy.QueryPolicy{
//	            privacy.AlwaysAllowRule(), // Allow all queries
//	        },
//	    }
//	}
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: Grants access and stops evaluation
//   - Deny: Denies access and stops evaluation
//   - Skip: Continues to the next rule
//
// If all rules return Skip, evaluation returns nil and access is allowed.
//
// # Built-in Rules
//
// The package provides several built-in rules:
//
//   - DenyIfNoViewer: Denies if no viewer is present in context
//   - AlwaysAllowRule: Always allows access
//   - AlwaysDenyRule: Always denies access
//   - HasRole: Allows if viewer has the specified role
//   - HasAnyRole: Allows if viewer has any of the specified roles
//   - IsOwner: Allows if viewer owns the entity
//   - TenantRule: Allows if viewer belongs to the same tenant
//
// # Combining Rules
//
// QueryPolicy and MutationPolicy evaluate their rules in order and return
// the first decision that is not Skip. Policy pairs one of each, and
// Policies evaluates several policies in order, returning nil at the first
// Allow and the error at the first Deny.
//
// # Viewer Interface
//
// The Viewer interface represents the authenticated user:
//
//	type Viewer interface {
//	    GetID() string       // Unique user identifier
//	    GetRoles() []string  // User's roles
//	    GetTenantID() string // Tenant ID for multi-tenancy
//	}
//
// A SimpleViewer implementation is provided for basic use cases:
//
//	viewer := &privacy.SimpleViewer{
//	    UserID:   "user-123",
//	    Roles:    []string{"admin", "user"},
//	    TenantID: "tenant-abc",
//	}
//
// # Context Integration
//
// The viewer is stored in context and retrieved during policy evaluation:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"user"},
//	})
//	users, err := c.Model("User").FindMany(ctx, client.FindArgs{})
//
// # Error Handling
//
// A denying rule returns an error that wraps Deny (see Denyf), so a denial
// is detected with errors.Is:
//
//	if errors.Is(err, privacy.Deny) {
//	    log.Printf("Access denied: %v", err)
//	}
package privacy
