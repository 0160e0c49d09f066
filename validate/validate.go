// Package validate is the input validator (C4): it derives and checks the
// structural shape of caller-supplied operation arguments before any SQL is
// built, raising one accessgraph.InputValidationError that lists every
// violation it finds. Arguments are plain maps (M) rather than generated per-model
// structs — this engine validates shapes dynamically instead of compiling a
// typed facade, per the engine's "thin typed wrapper over a dynamic
// operation(model, op, args) entry point" design.
package validate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/model"
)

// M is a loosely-typed JSON-like argument map.
type M = map[string]any

// RawExpr is a caller-supplied thunk rendering a raw WHERE fragment,
// accepted under the "$expr" where-key.
type RawExpr func(alias string) (sql string, args []any)

// scalarFilterOps are the operator keys accepted inside a scalar field's
// filter object.
var scalarFilterOps = map[string]bool{
	"equals": true, "in": true, "notIn": true,
	"lt": true, "lte": true, "gt": true, "gte": true, "not": true,
	"startsWith": true, "endsWith": true, "contains": true, "mode": true,
}

// arrayFilterOps are the operator keys accepted inside an array-typed
// field's filter object.
var arrayFilterOps = map[string]bool{
	"equals": true, "has": true, "hasEvery": true, "hasSome": true, "isEmpty": true,
}

// relationToOneOps are the operator keys accepted inside a to-one relation
// filter object.
var relationToOneOps = map[string]bool{"is": true, "isNot": true}

// relationToManyOps are the operator keys accepted inside a to-many relation
// filter object.
var relationToManyOps = map[string]bool{"some": true, "every": true, "none": true}

// logicalKeys combine child where clauses.
var logicalKeys = map[string]bool{"AND": true, "OR": true, "NOT": true}

// updateOperatorKeys are the keys accepted inside a scalar update's operator
// object; exactly one must be present.
var updateOperatorKeys = map[string]bool{
	"set": true, "increment": true, "decrement": true,
	"multiply": true, "divide": true, "push": true,
}

// shape caches the structural facts about a model needed to validate any
// operation against it — scalar/relation field sets and unique groups —
// computed once and reused, since it depends only on the model definition.
type shape struct {
	scalar   map[string]*model.FieldDef
	relation map[string]*model.FieldDef
	unique   []*model.UniqueGroup
}

var (
	shapeCacheMu sync.RWMutex
	shapeCache   = map[string]*shape{}
)

func shapeFor(m *model.ModelDef) *shape {
	shapeCacheMu.RLock()
	s, ok := shapeCache[m.Name]
	shapeCacheMu.RUnlock()
	if ok {
		return s
	}
	s = &shape{scalar: map[string]*model.FieldDef{}, relation: map[string]*model.FieldDef{}}
	for _, f := range m.OrderedFields() {
		if f.IsRelation() {
			s.relation[f.Name] = f
		} else {
			s.scalar[f.Name] = f
		}
	}
	for _, g := range m.UniqueFields {
		s.unique = append(s.unique, g)
	}
	if len(m.IdFields) > 0 {
		s.unique = append(s.unique, &model.UniqueGroup{Name: "id", Fields: m.IdFields})
	}
	shapeCacheMu.Lock()
	shapeCache[m.Name] = s
	shapeCacheMu.Unlock()
	return s
}

// issueList accumulates validation failures for a single operation call.
type issueList struct {
	issues []string
}

func (l *issueList) add(format string, args ...any) {
	l.issues = append(l.issues, fmt.Sprintf(format, args...))
}

func (l *issueList) err(model, op string) error {
	if len(l.issues) == 0 {
		return nil
	}
	return accessgraph.NewInputValidationError(model, op, l.issues...)
}

// FindArgs is the argument shape shared by findFirst/findFirstOrThrow/
// findMany/findUnique/findUniqueOrThrow (count uses CountArgs).
type FindArgs struct {
	Where    M
	Select   M
	Include  M
	Omit     M
	OrderBy  []M
	Cursor   M
	Distinct []string
	Skip     *int
	Take     *int
}

// ValidateFind validates arguments for a read operation. unique, when true,
// requires Where to fully pin down an id or unique-group filter (findUnique/
// findUniqueOrThrow).
func ValidateFind(m *model.ModelDef, op string, a *FindArgs, unique bool) error {
	il := &issueList{}
	s := shapeFor(m)
	if len(a.Select) > 0 && len(a.Omit) > 0 {
		il.add("select and omit are mutually exclusive")
	}
	if len(a.Select) > 0 && len(a.Include) > 0 {
		il.add("select and include are mutually exclusive")
	}
	validateWhere(m, s, a.Where, il, "where")
	for k := range a.Select {
		if k == "_count" {
			continue
		}
		if s.scalar[k] == nil && s.relation[k] == nil {
			il.add("select: unknown field %q", k)
		}
	}
	for k := range a.Include {
		if s.relation[k] == nil {
			il.add("include: %q is not a relation", k)
		}
	}
	for k := range a.Omit {
		if s.scalar[k] == nil {
			il.add("omit: %q is not a scalar field", k)
		}
	}
	for i, ord := range a.OrderBy {
		validateOrderByEntry(s, ord, il, i)
	}
	if unique {
		if !uniqueSatisfied(s, a.Where) {
			il.add("where must fully specify a unique identifier (id or a complete @@unique group)")
		}
	}
	if a.Cursor != nil && !uniqueSatisfied(s, a.Cursor) {
		il.add("cursor must fully specify a unique identifier")
	}
	if a.Skip != nil && *a.Skip < 0 {
		il.add("skip must not be negative")
	}
	for _, d := range a.Distinct {
		if s.scalar[d] == nil {
			il.add("distinct: unknown field %q", d)
		}
	}
	return il.err(m.Name, op)
}

func validateOrderByEntry(s *shape, ord M, il *issueList, idx int) {
	if len(ord) != 1 {
		il.add("orderBy[%d]: exactly one field must be ordered per entry", idx)
		return
	}
	for k, v := range ord {
		switch {
		case s.scalar[k] != nil:
			dir, ok := v.(string)
			if !ok || (dir != "asc" && dir != "desc") {
				il.add("orderBy[%d]: %q direction must be \"asc\" or \"desc\"", idx, k)
			}
		case s.relation[k] != nil:
			if nested, ok := v.(M); ok {
				_ = nested // nested relation ordering is delegated to the query planner
			} else {
				il.add("orderBy[%d]: %q requires a nested ordering object", idx, k)
			}
		default:
			il.add("orderBy[%d]: unknown field %q", idx, k)
		}
	}
}

// uniqueSatisfied reports whether where's top-level equality keys cover the
// id fields or a complete unique group, with every covered field given a
// plain (non-operator) value.
func uniqueSatisfied(s *shape, where M) bool {
	if len(where) == 0 {
		return false
	}
	for _, g := range s.unique {
		if allPresent(where, g.Fields) {
			return true
		}
	}
	return false
}

func allPresent(where M, fields []string) bool {
	for _, f := range fields {
		v, ok := where[f]
		if !ok {
			return false
		}
		if _, isOperator := v.(M); isOperator {
			return false
		}
	}
	return true
}

// validateWhere recursively validates a where clause against the model's
// scalar/relation/logical shape.
func validateWhere(m *model.ModelDef, s *shape, where M, il *issueList, path string) {
	for k, v := range where {
		switch {
		case k == "$expr":
			if _, ok := v.(RawExpr); !ok {
				il.add("%s.$expr must be a RawExpr thunk", path)
			}
		case logicalKeys[k]:
			validateLogical(m, s, k, v, il, path)
		case s.scalar[k] != nil:
			validateScalarFilter(s.scalar[k], v, il, path+"."+k)
		case s.relation[k] != nil:
			validateRelationFilter(m, s.relation[k], v, il, path+"."+k)
		default:
			il.add("%s: unknown field %q", path, k)
		}
	}
}

func validateLogical(m *model.ModelDef, s *shape, key string, v any, il *issueList, path string) {
	switch key {
	case "NOT":
		switch vv := v.(type) {
		case M:
			validateWhere(m, s, vv, il, path+".NOT")
		case []M:
			for i, w := range vv {
				validateWhere(m, s, w, il, fmt.Sprintf("%s.NOT[%d]", path, i))
			}
		default:
			il.add("%s.NOT must be a where clause or list of where clauses", path)
		}
	default: // AND / OR
		switch vv := v.(type) {
		case M:
			validateWhere(m, s, vv, il, path+"."+key)
		case []M:
			for i, w := range vv {
				validateWhere(m, s, w, il, fmt.Sprintf("%s.%s[%d]", path, key, i))
			}
		default:
			il.add("%s.%s must be a where clause or list of where clauses", path, key)
		}
	}
}

func validateScalarFilter(f *model.FieldDef, v any, il *issueList, path string) {
	if f.Array {
		obj, ok := v.(M)
		if !ok {
			return // plain equality literal against the array type
		}
		for k := range obj {
			if !arrayFilterOps[k] {
				il.add("%s: unknown array filter operator %q", path, k)
			}
		}
		return
	}
	obj, ok := v.(M)
	if !ok {
		return // plain equality literal
	}
	for k := range obj {
		if !scalarFilterOps[k] {
			il.add("%s: unknown filter operator %q", path, k)
		}
	}
	if mode, ok := obj["mode"]; ok {
		if s, ok := mode.(string); !ok || s != "insensitive" && s != "default" {
			il.add("%s.mode must be \"insensitive\" or \"default\"", path)
		}
	}
}

func validateRelationFilter(m *model.ModelDef, f *model.FieldDef, v any, il *issueList, path string) {
	obj, ok := v.(M)
	if !ok {
		il.add("%s: relation filter must be an object", path)
		return
	}
	if f.IsToMany() {
		for k := range obj {
			if !relationToManyOps[k] {
				il.add("%s: unknown to-many relation operator %q", path, k)
			}
		}
	} else {
		for k := range obj {
			if relationToOneOps[k] {
				continue
			}
			if k == "null" {
				continue
			}
			// direct-field shorthand (equivalent to an implicit "is").
		}
	}
}

// CreateArgs is the argument shape for create/createMany/createManyAndReturn.
type CreateArgs struct {
	Data    M
	Select  M
	Include M
	Omit    M
}

// ValidateCreate validates a single create payload against the model's
// required-field and data-shape rules.
func ValidateCreate(m *model.ModelDef, op string, a *CreateArgs) error {
	il := &issueList{}
	s := shapeFor(m)
	if len(a.Select) > 0 && len(a.Omit) > 0 {
		il.add("select and omit are mutually exclusive")
	}
	validateCreateData(m, s, a.Data, il, "data")
	return il.err(m.Name, op)
}

func validateCreateData(m *model.ModelDef, s *shape, data M, il *issueList, path string) {
	if data == nil {
		il.add("%s must not be empty", path)
		return
	}
	for k := range data {
		if s.scalar[k] == nil && s.relation[k] == nil {
			il.add("%s: unknown field %q", path, k)
		}
	}
	for name, f := range s.scalar {
		if f.ID || f.Optional || f.Default != nil || f.UpdatedAt || f.Computed {
			continue
		}
		if _, ok := data[name]; !ok {
			il.add("%s: missing required field %q", path, name)
		}
	}
	for name, f := range s.relation {
		rel, ok := data[name]
		if !ok {
			if fieldRequired(f) && f.Relation.IsOwner() {
				il.add("%s: missing required relation %q", path, name)
			}
			continue
		}
		validateRelationWrite(f, rel, il, path+"."+name)
	}
}

// fieldRequired reports whether a relation field's non-nullability requires it
// to be set on create.
func fieldRequired(f *model.FieldDef) bool { return !f.Optional && !f.Array }

// relationOpKeys are the keys a nested relation write payload may carry.
var relationOpKeys = map[string]bool{
	"create": true, "createMany": true, "connect": true, "connectOrCreate": true,
	"set": true, "disconnect": true, "update": true, "upsert": true, "delete": true,
}

func validateRelationWrite(f *model.FieldDef, v any, il *issueList, path string) {
	obj, ok := v.(M)
	if !ok {
		il.add("%s: relation write must be an object of operations", path)
		return
	}
	for k := range obj {
		if !relationOpKeys[k] {
			il.add("%s: unknown relation write operation %q", path, k)
		}
	}
	if !f.IsToMany() {
		for _, multi := range []string{"createMany", "set", "disconnect"} {
			if _, ok := obj[multi]; ok {
				il.add("%s: %q is not valid on a to-one relation", path, multi)
			}
		}
	}
}

// UpdateArgs is the argument shape for update/updateMany/updateManyAndReturn.
type UpdateArgs struct {
	Where   M
	Data    M
	Select  M
	Include M
	Omit    M
	Limit   *int
}

// ValidateUpdate validates update arguments. unique requires Where to pin a
// single row (update), as opposed to updateMany's bulk filter.
func ValidateUpdate(m *model.ModelDef, op string, a *UpdateArgs, unique bool) error {
	il := &issueList{}
	s := shapeFor(m)
	if unique && !uniqueSatisfied(s, a.Where) {
		il.add("where must fully specify a unique identifier")
	}
	validateWhere(m, s, a.Where, il, "where")
	validateUpdateData(s, a.Data, il, "data")
	if a.Limit != nil && *a.Limit < 0 {
		il.add("limit must not be negative")
	}
	return il.err(m.Name, op)
}

func validateUpdateData(s *shape, data M, il *issueList, path string) {
	for k, v := range data {
		switch {
		case s.scalar[k] != nil:
			validateScalarUpdate(s.scalar[k], v, il, path+"."+k)
		case s.relation[k] != nil:
			validateRelationWrite(s.relation[k], v, il, path+"."+k)
		default:
			il.add("%s: unknown field %q", path, k)
		}
	}
}

func validateScalarUpdate(f *model.FieldDef, v any, il *issueList, path string) {
	obj, ok := v.(M)
	if !ok {
		return // plain literal assignment
	}
	present := make([]string, 0, 1)
	for k := range obj {
		if !updateOperatorKeys[k] {
			il.add("%s: unknown update operator %q", path, k)
			continue
		}
		present = append(present, k)
	}
	if len(present) != 1 {
		il.add("%s: exactly one update operator must be given, got %s", path, strings.Join(sortedCopy(present), ", "))
	}
	if f.Array {
		if len(present) == 1 && present[0] != "set" && present[0] != "push" {
			il.add("%s: array fields only accept \"set\" or \"push\"", path)
		}
	} else if len(present) == 1 && (present[0] == "push") {
		il.add("%s: \"push\" is only valid on array fields", path)
	}
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

// UpsertArgs is the argument shape for upsert.
type UpsertArgs struct {
	Where   M
	Create  M
	Update  M
	Select  M
	Include M
	Omit    M
}

// ValidateUpsert validates upsert arguments.
func ValidateUpsert(m *model.ModelDef, a *UpsertArgs) error {
	il := &issueList{}
	s := shapeFor(m)
	if !uniqueSatisfied(s, a.Where) {
		il.add("where must fully specify a unique identifier")
	}
	validateCreateData(m, s, a.Create, il, "create")
	validateUpdateData(s, a.Update, il, "update")
	return il.err(m.Name, "upsert")
}

// DeleteArgs is the argument shape for delete/deleteMany.
type DeleteArgs struct {
	Where M
	Limit *int
}

// ValidateDelete validates delete arguments.
func ValidateDelete(m *model.ModelDef, op string, a *DeleteArgs, unique bool) error {
	il := &issueList{}
	s := shapeFor(m)
	if unique && !uniqueSatisfied(s, a.Where) {
		il.add("where must fully specify a unique identifier")
	}
	validateWhere(m, s, a.Where, il, "where")
	if a.Limit != nil && *a.Limit < 0 {
		il.add("limit must not be negative")
	}
	return il.err(m.Name, op)
}

// CountArgs is the argument shape for count.
type CountArgs struct {
	Where   M
	Skip    *int
	Take    *int
	OrderBy []M
	Select  M // field -> true, or nil for a plain row count
}

// ValidateCount validates count arguments.
func ValidateCount(m *model.ModelDef, a *CountArgs) error {
	il := &issueList{}
	s := shapeFor(m)
	validateWhere(m, s, a.Where, il, "where")
	for k := range a.Select {
		if s.scalar[k] == nil && s.relation[k] == nil && k != "_all" {
			il.add("select: unknown field %q", k)
		}
	}
	return il.err(m.Name, "count")
}

// AggregateArgs is the argument shape for aggregate.
type AggregateArgs struct {
	Where M
	Count M
	Avg   M
	Sum   M
	Min   M
	Max   M
}

// ValidateAggregate validates aggregate arguments; every field named under
// Avg/Sum/Min/Max must be a scalar field of the model. The field's type is
// not checked, and the fields named under Count are not checked at all.
func ValidateAggregate(m *model.ModelDef, a *AggregateArgs) error {
	il := &issueList{}
	s := shapeFor(m)
	validateWhere(m, s, a.Where, il, "where")
	for _, group := range []M{a.Avg, a.Sum, a.Min, a.Max} {
		for k := range group {
			if s.scalar[k] == nil {
				il.add("aggregate: unknown field %q", k)
			}
		}
	}
	return il.err(m.Name, "aggregate")
}

// GroupByArgs is the argument shape for groupBy.
type GroupByArgs struct {
	By      []string
	Where   M
	Having  M
	OrderBy []M
}

// ValidateGroupBy validates groupBy arguments; every orderBy key must also
// appear in By, per the spec's groupBy/orderBy coupling.
func ValidateGroupBy(m *model.ModelDef, a *GroupByArgs) error {
	il := &issueList{}
	s := shapeFor(m)
	if len(a.By) == 0 {
		il.add("groupBy: \"by\" must name at least one field")
	}
	byset := map[string]bool{}
	for _, b := range a.By {
		if s.scalar[b] == nil {
			il.add("groupBy: unknown field %q in \"by\"", b)
		}
		byset[b] = true
	}
	validateWhere(m, s, a.Where, il, "where")
	for i, ord := range a.OrderBy {
		if len(ord) != 1 {
			il.add("orderBy[%d]: exactly one field must be ordered per entry", i)
			continue
		}
		for k := range ord {
			if !byset[k] {
				il.add("orderBy[%d]: %q must also appear in \"by\"", i, k)
			}
		}
	}
	return il.err(m.Name, "groupBy")
}
