package schema

import "github.com/google/uuid"

// GenerateID returns a globally unique id carrying the entity's
// human-readable prefix, e.g. "cns_4f9c…".
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// attachIDDefaults gives every entity's id field a lazy generator unless a
// plugin or configuration already supplied one. Ids are produced at creation
// time like any other default, so the parser needs no special casing.
func attachIDDefaults(set Set) {
	for _, es := range set {
		f, ok := es.Fields.Get("id")
		if !ok || f.Default != nil {
			continue
		}
		prefix := es.EntityPrefix
		f.Default = Producer(func() any { return GenerateID(prefix) })
	}
}
