package storage

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"consentry/internal/schema"
	"consentry/pkg/platform/sentinel"
)

// Memory is the in-memory adapter. It keeps the initial implementation
// lightweight and testable, intentionally favoring clarity over performance.
// When constructed with a schema set it enforces unique-field constraints the
// way a database would, which is the only backstop against concurrent
// find-then-create races.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]map[string]any
	schemas schema.Set
}

// NewMemory builds an in-memory adapter. schemas may be nil, in which case
// uniqueness is not enforced.
func NewMemory(schemas schema.Set) *Memory {
	return &Memory{
		records: make(map[string][]map[string]any),
		schemas: schemas,
	}
}

func (m *Memory) Create(_ context.Context, model string, data map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(model, data, -1); err != nil {
		return nil, err
	}
	record := cloneRecord(data)
	m.records[model] = append(m.records[model], record)
	return cloneRecord(record), nil
}

func (m *Memory) FindOne(_ context.Context, model string, where []Condition) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, record := range m.records[model] {
		if matches(record, where) {
			return cloneRecord(record), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) FindMany(_ context.Context, model string, where []Condition) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []map[string]any
	for _, record := range m.records[model] {
		if matches(record, where) {
			out = append(out, cloneRecord(record))
		}
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, model string, update map[string]any, where []Condition) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, record := range m.records[model] {
		if !matches(record, where) {
			continue
		}
		merged := cloneRecord(record)
		for key, value := range update {
			merged[key] = value
		}
		if err := m.checkUnique(model, merged, i); err != nil {
			return nil, err
		}
		m.records[model][i] = merged
		return cloneRecord(merged), nil
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) UpdateMany(_ context.Context, model string, update map[string]any, where []Condition) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for i, record := range m.records[model] {
		if !matches(record, where) {
			continue
		}
		merged := cloneRecord(record)
		for key, value := range update {
			merged[key] = value
		}
		m.records[model][i] = merged
		count++
	}
	return count, nil
}

// checkUnique scans for another record holding the same value in any
// unique-marked field. skip is the index of the record being updated, or -1.
func (m *Memory) checkUnique(model string, data map[string]any, skip int) error {
	if m.schemas == nil {
		return nil
	}
	es, ok := m.schemas[model]
	if !ok {
		return nil
	}
	for _, key := range es.Fields.Keys() {
		f, _ := es.Fields.Get(key)
		if !f.Unique {
			continue
		}
		value, present := data[key]
		if !present || value == nil {
			continue
		}
		for i, existing := range m.records[model] {
			if i == skip {
				continue
			}
			if equalValues(existing[key], value) {
				return fmt.Errorf("%w: duplicate value for unique field %q", sentinel.ErrConflict, key)
			}
		}
	}
	for _, group := range es.CompositeUnique {
		values := make([]any, len(group))
		complete := true
		for i, key := range group {
			value, present := data[key]
			if !present || value == nil {
				complete = false
				break
			}
			values[i] = value
		}
		if !complete {
			continue
		}
		for i, existing := range m.records[model] {
			if i == skip {
				continue
			}
			match := true
			for j, key := range group {
				if !equalValues(existing[key], values[j]) {
					match = false
					break
				}
			}
			if match {
				return fmt.Errorf("%w: duplicate value for unique fields %q",
					sentinel.ErrConflict, strings.Join(group, ", "))
			}
		}
	}
	return nil
}

func matches(record map[string]any, where []Condition) bool {
	for _, cond := range where {
		value := record[cond.Field]
		switch cond.Operator {
		case OpEqual:
			if !equalValues(value, cond.Value) {
				return false
			}
		case OpIn:
			if !sliceContains(cond.Value, value) {
				return false
			}
		case OpContains:
			if !sliceContains(value, cond.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// equalValues compares loosely across the numeric and time representations
// that reach the adapter from JSON decoding and schema defaults.
func equalValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// sliceContains reports whether haystack (a slice of any element type)
// contains needle.
func sliceContains(haystack, needle any) bool {
	if haystack == nil {
		return false
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValues(rv.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

func cloneRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = value
	}
	return out
}
