package schema

// FieldMap is an insertion-ordered map of field key to field definition.
// Parse iteration order follows insertion order of the merged map, so output
// of the parser is stable across runs regardless of Go map randomization.
type FieldMap struct {
	keys   []string
	fields map[string]*Field
}

func NewFieldMap() *FieldMap {
	return &FieldMap{fields: make(map[string]*Field)}
}

// Set inserts or replaces a field. A replacement keeps the key's original
// position; new keys append.
func (m *FieldMap) Set(key string, f *Field) {
	if _, ok := m.fields[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.fields[key] = f
}

// Get returns the field for key.
func (m *FieldMap) Get(key string) (*Field, bool) {
	f, ok := m.fields[key]
	return f, ok
}

// Keys returns the field keys in insertion order. The returned slice is
// shared; callers must not mutate it.
func (m *FieldMap) Keys() []string {
	return m.keys
}

// Len returns the number of fields.
func (m *FieldMap) Len() int {
	return len(m.keys)
}

// Clone deep-copies the map, including the fields themselves.
func (m *FieldMap) Clone() *FieldMap {
	out := NewFieldMap()
	for _, key := range m.keys {
		out.Set(key, m.fields[key].clone())
	}
	return out
}
