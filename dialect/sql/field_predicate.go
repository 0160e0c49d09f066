package sql

// The FieldXxx functions adapt the low-level column predicates (EQ, In, ...)
// to the func(*Selector) shape generated per-model predicate types convert
// from, so a model package can define:
//
//	func EmailEQ(v string) predicate.User { return predicate.User(sql.FieldEQ("email", v)) }

// FieldEQ builds a func(*Selector) asserting name equals v.
func FieldEQ(name string, v any) func(*Selector) {
	return func(s *Selector) { s.Where(EQ(s.C(name), v)) }
}

// FieldNEQ builds a func(*Selector) asserting name does not equal v.
func FieldNEQ(name string, v any) func(*Selector) {
	return func(s *Selector) { s.Where(NEQ(s.C(name), v)) }
}

// FieldGT builds a func(*Selector) asserting name is greater than v.
func FieldGT(name string, v any) func(*Selector) {
	return func(s *Selector) { s.Where(GT(s.C(name), v)) }
}

// FieldGTE builds a func(*Selector) asserting name is greater than or equal to v.
func FieldGTE(name string, v any) func(*Selector) {
	return func(s *Selector) { s.Where(GTE(s.C(name), v)) }
}

// FieldLT builds a func(*Selector) asserting name is less than v.
func FieldLT(name string, v any) func(*Selector) {
	return func(s *Selector) { s.Where(LT(s.C(name), v)) }
}

// FieldLTE builds a func(*Selector) asserting name is less than or equal to v.
func FieldLTE(name string, v any) func(*Selector) {
	return func(s *Selector) { s.Where(LTE(s.C(name), v)) }
}

// FieldIn builds a func(*Selector) asserting name is one of vs.
func FieldIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		args := make([]any, len(vs))
		for i := range vs {
			args[i] = vs[i]
		}
		s.Where(In(s.C(name), args...))
	}
}

// FieldNotIn builds a func(*Selector) asserting name is none of vs.
func FieldNotIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		args := make([]any, len(vs))
		for i := range vs {
			args[i] = vs[i]
		}
		s.Where(NotIn(s.C(name), args...))
	}
}

// FieldContains builds a func(*Selector) asserting name contains v.
func FieldContains(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(Contains(s.C(name), v)) }
}

// FieldContainsFold is the case-insensitive form of FieldContains.
func FieldContainsFold(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(ContainsFold(s.C(name), v)) }
}

// FieldHasPrefix builds a func(*Selector) asserting name starts with v.
func FieldHasPrefix(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(HasPrefix(s.C(name), v)) }
}

// FieldHasSuffix builds a func(*Selector) asserting name ends with v.
func FieldHasSuffix(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(HasSuffix(s.C(name), v)) }
}

// FieldEqualFold builds a func(*Selector) asserting name case-insensitively equals v.
func FieldEqualFold(name string, v string) func(*Selector) {
	return func(s *Selector) { s.Where(EqualFold(s.C(name), v)) }
}

// FieldIsNull builds a func(*Selector) asserting name is NULL.
func FieldIsNull(name string) func(*Selector) {
	return func(s *Selector) { s.Where(IsNull(s.C(name))) }
}

// FieldNotNull builds a func(*Selector) asserting name is not NULL.
func FieldNotNull(name string) func(*Selector) {
	return func(s *Selector) { s.Where(NotNull(s.C(name))) }
}
