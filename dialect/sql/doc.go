// Package sql provides SQL query building primitives and database dialect abstraction.
//
// This package is the foundation for generating and executing SQL queries across
// different database systems (PostgreSQL, SQLite). It provides a fluent API
// for constructing type-safe SQL statements.
//
// # Builder Types
//
// The package provides specialized builders for different SQL operations:
//
//   - Builder: Low-level SQL string builder with identifier quoting
//   - Selector: SELECT query builder with joins, predicates, and pagination
//   - InsertBuilder: INSERT statement builder with RETURNING support
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE statement builder with WHERE predicates
//
// # Dialect Support
//
// SQL generation adapts to different database dialects:
//
//	import "github.com/polyquery/accessgraph/dialect"
//
//	// PostgreSQL
//	b := sql.Dialect(dialect.Postgres)
//	b.Select("id", "name").From(sql.Table("users")).Where(sql.EQ("status", "active"))
//
//	// SQLite
//	b := sql.Dialect(dialect.SQLite)
//
// # Predicates
//
// The package provides type-safe predicate functions:
//
//	// Equality
//	sql.EQ("name", "john")           // name = 'john'
//	sql.NEQ("status", "deleted")     // status <> 'deleted'
//
//	// Comparison
//	sql.GT("age", 18)                // age > 18
//	sql.LTE("price", 100.0)          // price <= 100.0
//
//	// String matching
//	sql.Contains("name", "john")     // name LIKE '%john%'
//	sql.HasPrefix("email", "admin")  // email LIKE 'admin%'
//
//	// NULL checks
//	sql.IsNull("deleted_at")         // deleted_at IS NULL
//	sql.NotNull("email")             // email IS NOT NULL
//
//	// IN clauses
//	sql.In("status", "active", "pending")  // status IN ('active', 'pending')
//
// # Joins
//
// Join operations are supported through the selector:
//
//	sql.Dialect(dialect.Postgres).Select("u.id", "u.name", "p.title").
//	    From(sql.Table("users").As("u")).
//	    Join(sql.Table("posts").As("p")).On(sql.RawPredicate(func(b *sql.Builder) {
//	        b.WriteString("u.id = p.user_id")
//	    })).
//	    Where(sql.EQ("u.status", "active"))
//
// # Pagination
//
// Selector supports ordering and offset pagination:
//
//	sql.Dialect(dialect.SQLite).Select("*").From(sql.Table("users")).
//	    OrderBy(sql.OrderTerm{Column: "created_at", Desc: true}).
//	    Offset(20).Limit(10)
//
// Selector has no cursor method; cursor pagination is built by package query
// as an ordinary WHERE predicate over the ORDER BY columns.
//
// # Row-Level Locking
//
// Selector renders no row-locking clause (there is no FOR UPDATE support).
//
// # Usage in this module
//
// The query planner (package query) and the mutation orchestrator (package
// mutate) build their statements with this package. Client.QueryBuilder in
// package client returns a DialectBuilder for hand-built statements:
//
//	q, args := c.QueryBuilder().Select("id").From(sql.Table("User")).
//	    Where(sql.GT("age", 18)).Query()
//	rows, err := c.QueryRaw(ctx, q, args)
package sql
