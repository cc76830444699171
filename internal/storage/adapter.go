// Package storage defines the abstract persistence contract the registry is
// built on, plus the in-memory, PostgreSQL, and Redis-cached implementations.
// Adapters are interface-driven so domain logic stays testable and persistence
// can be swapped without rewiring business code.
package storage

import (
	"context"
)

// Operator is a condition comparison operator.
type Operator string

const (
	// OpEqual matches records whose field equals the value.
	OpEqual Operator = "eq"
	// OpIn matches records whose field equals any element of a slice value.
	OpIn Operator = "in"
	// OpContains matches records whose array-typed field contains the value.
	OpContains Operator = "contains"
)

// Condition is one predicate of a where clause. Conditions combine with AND.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: OpEqual, Value: value}
}

// In builds a membership condition over a slice of candidate values.
func In(field string, values any) Condition {
	return Condition{Field: field, Operator: OpIn, Value: values}
}

// Contains builds an array-containment condition.
func Contains(field string, value any) Condition {
	return Condition{Field: field, Operator: OpContains, Value: value}
}

// Adapter is the storage contract consumed by the registry. Records are maps
// keyed by schema field key; adapters translate keys to physical columns
// themselves. Implementations return sentinel.ErrNotFound from FindOne when
// nothing matches and sentinel.ErrConflict on uniqueness violations.
//
// The adapter is shared across requests; any serialization guarantee beyond
// single-row operations is the implementation's concern.
type Adapter interface {
	Create(ctx context.Context, model string, data map[string]any) (map[string]any, error)
	FindOne(ctx context.Context, model string, where []Condition) (map[string]any, error)
	FindMany(ctx context.Context, model string, where []Condition) ([]map[string]any, error)
	Update(ctx context.Context, model string, update map[string]any, where []Condition) (map[string]any, error)
	UpdateMany(ctx context.Context, model string, update map[string]any, where []Condition) (int, error)
}
