// Package schema implements the field-definition and data-transformation
// engine underlying every entity in the service. Entities are represented as
// data (ordered field maps) rather than structs so that plugins and user
// configuration can extend them at runtime; the merge engine combines the
// built-in tables with plugin fragments and configuration overrides, and the
// parser applies the merged result to raw data on the way in and out.
package schema

import (
	"context"
	"time"
)

// FieldType enumerates the value shapes a field may carry on the wire and in
// storage. Array types are stored as native arrays where the adapter supports
// them and as JSON otherwise.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeBool        FieldType = "boolean"
	TypeDate        FieldType = "date"
	TypeTimezone    FieldType = "timezone"
	TypeJSON        FieldType = "json"
	TypeStringArray FieldType = "string[]"
	TypeNumberArray FieldType = "number[]"
)

// Transform converts a field value on its way into or out of storage. It
// receives a context because transforms may perform I/O (hashing, lookups).
type Transform func(ctx context.Context, value any) (any, error)

// Validator checks or rewrites an input value. Two forms are supported:
//
//   - Func: the current style, a pure check returning an error on invalid data.
//   - Input/Output: the legacy object style, parse functions that rewrite the
//     value and may fail.
//
// When both are set, Func takes precedence and the legacy parsers are ignored.
type Validator struct {
	Func   func(value any) error
	Input  func(value any) (any, error)
	Output func(value any) (any, error)
}

// Default is a lazily evaluated default value: either a literal or a
// zero-argument producer. Producers are invoked only at creation time so
// generated timestamps stay accurate.
type Default struct {
	value    any
	producer func() any
}

// Literal wraps a constant default value.
func Literal(v any) *Default {
	return &Default{value: v}
}

// Producer wraps a function evaluated at each creation.
func Producer(fn func() any) *Default {
	return &Default{producer: fn}
}

// Now is a producer for creation timestamps.
func Now() *Default {
	return Producer(func() any { return time.Now() })
}

// Eval resolves the default to a concrete value.
func (d *Default) Eval() any {
	if d.producer != nil {
		return d.producer()
	}
	return d.value
}

// Reference declares a foreign-key relation to another entity. Entity names
// are symbolic at declaration time and resolved against the merged table set;
// see ResolveReferences for the best-effort resolution policy.
type Reference struct {
	Entity   string
	Field    string
	Required bool
	OnDelete string
}

// Field is the declarative spec for one attribute of an entity. Nothing in a
// Field executes eagerly: defaults, transforms, and validators run only when
// the parser applies the field to data.
type Field struct {
	Type     FieldType
	Required bool
	// Returned controls whether the field appears in output-parsed records.
	Returned bool
	// Input controls whether the field is accepted from untrusted callers.
	// A field with Input=false may still be populated by its default.
	Input  bool
	Unique bool
	// FieldName overrides the storage column name; empty means the field key.
	FieldName string

	Default         *Default
	InputTransform  Transform
	OutputTransform Transform
	Validator       *Validator
	References      *Reference
}

// FieldOption customizes a field built with NewField.
type FieldOption func(*Field)

// NewField builds a field of the given type. Fields default to optional,
// returned, and writable; options flip individual attributes.
func NewField(t FieldType, opts ...FieldOption) *Field {
	f := &Field{Type: t, Returned: true, Input: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Required marks the field mandatory at creation when it has no default.
func Required() FieldOption {
	return func(f *Field) { f.Required = true }
}

// Hidden excludes the field from output-parsed records.
func Hidden() FieldOption {
	return func(f *Field) { f.Returned = false }
}

// SystemOnly rejects the field from request data; only defaults and internal
// writers may populate it.
func SystemOnly() FieldOption {
	return func(f *Field) { f.Input = false }
}

// Unique marks the column unique at the storage layer.
func Unique() FieldOption {
	return func(f *Field) { f.Unique = true }
}

// WithDefault sets the creation-time default.
func WithDefault(d *Default) FieldOption {
	return func(f *Field) { f.Default = d }
}

// WithFieldName overrides the storage column name.
func WithFieldName(name string) FieldOption {
	return func(f *Field) { f.FieldName = name }
}

// WithInputTransform sets the inbound transform.
func WithInputTransform(t Transform) FieldOption {
	return func(f *Field) { f.InputTransform = t }
}

// WithOutputTransform sets the outbound transform.
func WithOutputTransform(t Transform) FieldOption {
	return func(f *Field) { f.OutputTransform = t }
}

// WithValidator attaches a validator.
func WithValidator(v *Validator) FieldOption {
	return func(f *Field) { f.Validator = v }
}

// References declares a foreign key to another entity's id field.
func References(entity string, opts ...func(*Reference)) FieldOption {
	return func(f *Field) {
		ref := &Reference{Entity: entity, Field: "id", OnDelete: "cascade"}
		for _, opt := range opts {
			opt(ref)
		}
		f.References = ref
	}
}

// OnField points the reference at a field other than id.
func OnField(name string) func(*Reference) {
	return func(r *Reference) { r.Field = name }
}

// OnDelete overrides the delete behavior (cascade, restrict, set null).
func OnDelete(action string) func(*Reference) {
	return func(r *Reference) { r.OnDelete = action }
}

// RequiredRef marks the reference column non-nullable.
func RequiredRef() func(*Reference) {
	return func(r *Reference) { r.Required = true }
}

// ColumnName returns the storage column for a field keyed by key.
func (f *Field) ColumnName(key string) string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return key
}

// clone returns a deep copy so merged schemas never alias plugin or
// configuration field structs.
func (f *Field) clone() *Field {
	out := *f
	if f.References != nil {
		ref := *f.References
		out.References = &ref
	}
	return &out
}
