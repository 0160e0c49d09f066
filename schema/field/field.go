package field

import (
	"strconv"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/schema"
)

// Builder is the fluent, chainable value every field.Xxx constructor
// returns. It accumulates onto a FieldDescriptor and satisfies
// accessgraph.Field via Descriptor.
type Builder struct {
	desc *accessgraph.FieldDescriptor
}

// Descriptor returns the accumulated field configuration.
func (b Builder) Descriptor() *accessgraph.FieldDescriptor { return b.desc }

func newBuilder(name, info string) Builder {
	return Builder{desc: &accessgraph.FieldDescriptor{Name: name, Info: info}}
}

// String declares a VARCHAR/TEXT field.
func String(name string) Builder { return newBuilder(name, "String") }

// Text declares an unbounded text field.
func Text(name string) Builder { return newBuilder(name, "String") }

// Int declares a 32-bit integer field.
func Int(name string) Builder { return newBuilder(name, "Int") }

// Int64 declares a 64-bit integer field.
func Int64(name string) Builder { return newBuilder(name, "BigInt") }

// Float64 declares a double-precision float field.
func Float64(name string) Builder { return newBuilder(name, "Float") }

// Bool declares a boolean field.
func Bool(name string) Builder { return newBuilder(name, "Boolean") }

// Time declares a timestamp field.
func Time(name string) Builder { return newBuilder(name, "DateTime") }

// Bytes declares a binary field.
func Bytes(name string) Builder { return newBuilder(name, "Bytes") }

// UUID declares a UUID-typed field; typ is a zero value of the Go type used
// to scan the column (conventionally uuid.UUID{}).
func UUID(name string, typ any) Builder {
	b := newBuilder(name, "String")
	b.desc.Tag = "uuid"
	return b
}

// Enum declares an enum field; call Values to set its members.
func Enum(name string) Builder { return newBuilder(name, "Enum") }

// JSON declares a JSON/JSONB field; typ is a zero value describing its Go shape.
func JSON(name string, typ any) Builder { return newBuilder(name, "Json") }

// Other declares a field backed by a custom Go type, scanned via SchemaType
// per-dialect column type overrides.
func Other(name string, typ any) Builder {
	b := newBuilder(name, "Unsupported")
	return b
}

// Unique marks the field as carrying a uniqueness constraint.
func (b Builder) Unique() Builder { b.desc.Unique = true; return b }

// Optional marks the field as not required on input.
func (b Builder) Optional() Builder { b.desc.Optional = true; return b }

// Nillable marks the field nullable in storage and pointer-typed in Go.
func (b Builder) Nillable() Builder { b.desc.Nillable = true; return b }

// Immutable marks the field as settable only on create.
func (b Builder) Immutable() Builder { b.desc.Immutable = true; return b }

// Sensitive sets the descriptor's Sensitive flag; no code in this module
// reads it.
func (b Builder) Sensitive() Builder { b.desc.Sensitive = true; return b }

// Comment attaches a human-readable description to the descriptor; the
// dev-only DDL bootstrap does not read it.
func (b Builder) Comment(c string) Builder { b.desc.Comment = c; return b }

// Default sets a literal default value or a zero-arg generator function
// (e.g. time.Now, uuid.New).
func (b Builder) Default(v any) Builder { b.desc.Default = v; return b }

// UpdateDefault sets a generator function invoked on every update.
func (b Builder) UpdateDefault(v any) Builder { b.desc.UpdateDefault = v; return b }

// Values sets the members of an Enum field.
func (b Builder) Values(vs ...string) Builder { b.desc.EnumValues = vs; return b }

// SchemaType overrides the storage column type per-dialect, keyed by
// dialect.SQLite / dialect.Postgres.
func (b Builder) SchemaType(types map[string]string) Builder {
	b.desc.SchemaTypes = types
	return b
}

// NotEmpty adds a non-empty-string validator.
func (b Builder) NotEmpty() Builder { return b.validator("required") }

// MinLen adds a minimum-length validator.
func (b Builder) MinLen(n int) Builder { return b.validator(intValidator("min", n)) }

// MaxLen adds a maximum-length validator.
func (b Builder) MaxLen(n int) Builder { return b.validator(intValidator("max", n)) }

// Match adds a regular-expression validator.
func (b Builder) Match(pattern string) Builder { return b.validator("pattern:" + pattern) }

// Email adds an email-format validator.
func (b Builder) Email() Builder { return b.validator("email") }

// NonNegative adds a >= 0 validator.
func (b Builder) NonNegative() Builder { return b.validator("min=0") }

// Positive adds a > 0 validator.
func (b Builder) Positive() Builder { return b.validator("gt=0") }

// Max adds a maximum-value validator.
func (b Builder) Max(n float64) Builder { return b.validator(floatValidator("max", n)) }

// Range adds a min/max-value validator.
func (b Builder) Range(min, max float64) Builder {
	return b.validator(floatValidator("min", min)).validator(floatValidator("max", max))
}

// ValidateCreate records a go-playground/validator tag for create, as
// "create:<tag>" in Validators; no code in this module evaluates it.
func (b Builder) ValidateCreate(tag string) Builder { return b.validator("create:" + tag) }

// ValidateUpdate records a go-playground/validator tag for update, as
// "update:<tag>" in Validators; no code in this module evaluates it.
func (b Builder) ValidateUpdate(tag string) Builder { return b.validator("update:" + tag) }

func (b Builder) validator(v string) Builder {
	b.desc.Validators = append(b.desc.Validators, v)
	return b
}

func intValidator(name string, n int) string    { return fmtValidator(name, n) }
func floatValidator(name string, n float64) string { return fmtValidator(name, n) }

func fmtValidator(name string, v any) string {
	return name + "=" + fmtAny(v)
}

func fmtAny(v any) string {
	switch t := v.(type) {
	case int:
		return itoa(t)
	case float64:
		return ftoa(t)
	default:
		return ""
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func ftoa(f float64) string {
	// Shortest decimal form that round-trips, e.g. 150 -> "150", 4.7 -> "4.7".
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Annotations attaches codegen/runtime annotations to the field.
func (b Builder) Annotations(ants ...schema.Annotation) Builder {
	b.desc.Annotations = append(b.desc.Annotations, ants...)
	return b
}

var _ accessgraph.Field = Builder{}
