package schema

import (
	"log/slog"
	"sort"
)

// Fragment is a partial entity contributed by a plugin: a set of fields keyed
// by field name. Fragments for entities the core does not know about create
// new entities.
type Fragment struct {
	EntityName   string
	EntityPrefix string
	Fields       map[string]*Field
	// FieldOrder fixes iteration order for the fragment's fields. Keys absent
	// from FieldOrder merge after the listed ones, sorted lexically.
	FieldOrder []string
}

// PluginSchema maps canonical entity keys to fragments.
type PluginSchema map[string]Fragment

// EntityOptions is per-entity user configuration applied after plugins.
type EntityOptions struct {
	// EntityName renames the underlying table.
	EntityName string
	// EntityPrefix overrides the generated-id prefix.
	EntityPrefix string
	// FieldNames remaps field keys to custom column names.
	FieldNames map[string]string
	// AdditionalFields are user-defined fields appended to the entity.
	AdditionalFields map[string]*Field
}

// Options is the user-facing schema configuration.
type Options struct {
	Entities map[string]EntityOptions
}

// BuildSchema merges the built-in tables with plugin fragments and user
// configuration into the effective per-entity schemas.
//
// Precedence, lowest to highest: built-in fields, then each plugin in
// registration order, then configuration. Later sources win per field key;
// collisions replace the field wholesale, they do not merge attributes. Two
// fragments naming the same entity combine their field maps rather than
// overwrite the entity.
//
// Merge is total: nothing here fails. Invalid field shapes surface later when
// data is actually parsed.
func BuildSchema(plugins []PluginSchema, opts Options, logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(Set)

	composites := compositeUniques()
	for _, b := range builtins() {
		set[b.key] = &EntitySchema{
			EntityName:      b.name,
			EntityPrefix:    b.prefix,
			Fields:          b.fields(),
			Order:           b.order,
			CompositeUnique: composites[b.key],
		}
	}

	order := len(set)
	for _, plugin := range plugins {
		for _, key := range sortedKeys(plugin) {
			fragment := plugin[key]
			es, ok := set[key]
			if !ok {
				order++
				es = &EntitySchema{
					EntityName:   key,
					EntityPrefix: "ext",
					Fields:       NewFieldMap(),
					Order:        order,
				}
				set[key] = es
			}
			if fragment.EntityName != "" {
				es.EntityName = fragment.EntityName
			}
			if fragment.EntityPrefix != "" {
				es.EntityPrefix = fragment.EntityPrefix
			}
			for _, fieldKey := range fragmentKeys(fragment) {
				es.Fields.Set(fieldKey, fragment.Fields[fieldKey].clone())
			}
		}
	}

	for _, key := range sortedKeys(opts.Entities) {
		entityOpts := opts.Entities[key]
		es, ok := set[key]
		if !ok {
			logger.Debug("schema options reference unknown entity, skipping", "entity", key)
			continue
		}
		if entityOpts.EntityName != "" {
			es.EntityName = entityOpts.EntityName
		}
		if entityOpts.EntityPrefix != "" {
			es.EntityPrefix = entityOpts.EntityPrefix
		}
		for fieldKey, columnName := range entityOpts.FieldNames {
			if f, ok := es.Fields.Get(fieldKey); ok {
				f.FieldName = columnName
			} else {
				logger.Debug("field name override for unknown field, skipping",
					"entity", key, "field", fieldKey)
			}
		}
		for _, fieldKey := range sortedKeys(entityOpts.AdditionalFields) {
			es.Fields.Set(fieldKey, entityOpts.AdditionalFields[fieldKey].clone())
		}
	}

	resolveReferences(set, logger)
	attachIDDefaults(set)
	return set
}

// resolveReferences materializes symbolic reference targets into the
// configured entity names. Resolution is best-effort: a reference to an
// entity missing from the final set degrades to a plain field, with a debug
// diagnostic rather than an error. Tightening this to a hard failure would
// break configurations that disable optional entities.
func resolveReferences(set Set, logger *slog.Logger) {
	for entityKey, es := range set {
		for _, fieldKey := range es.Fields.Keys() {
			f, _ := es.Fields.Get(fieldKey)
			if f.References == nil {
				continue
			}
			target, ok := set[f.References.Entity]
			if !ok {
				logger.Debug("dropping unresolvable reference",
					"entity", entityKey,
					"field", fieldKey,
					"target", f.References.Entity)
				f.References = nil
				continue
			}
			f.References.Entity = target.EntityName
		}
	}
}

// fragmentKeys returns a fragment's field keys in a deterministic order:
// FieldOrder first, then any remaining keys sorted lexically.
func fragmentKeys(fragment Fragment) []string {
	seen := make(map[string]bool, len(fragment.FieldOrder))
	keys := make([]string, 0, len(fragment.Fields))
	for _, key := range fragment.FieldOrder {
		if _, ok := fragment.Fields[key]; ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	rest := make([]string, 0, len(fragment.Fields))
	for key := range fragment.Fields {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// sortedKeys keeps merge output deterministic when iterating plain maps.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetAllFields returns the merged field map for one entity, for callers that
// need the resolved schema shape (migration generators, the schema endpoint).
func (s Set) GetAllFields(entity string) map[string]*Field {
	es, ok := s[entity]
	if !ok {
		return nil
	}
	out := make(map[string]*Field, es.Fields.Len())
	for _, key := range es.Fields.Keys() {
		f, _ := es.Fields.Get(key)
		out[key] = f
	}
	return out
}
