package httptransport

import (
	"net/http"
	"sort"

	"consentry/internal/schema"
	"consentry/internal/transport/http/shared"
)

// SchemaProvider exposes the merged entity schemas for introspection.
type SchemaProvider interface {
	Schemas() schema.Set
}

type fieldDescriptor struct {
	Type      string          `json:"type"`
	Required  bool            `json:"required"`
	Unique    bool            `json:"unique,omitempty"`
	Returned  bool            `json:"returned"`
	Input     bool            `json:"input"`
	Reference *fieldReference `json:"reference,omitempty"`
}

type fieldReference struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
}

type entityDescriptor struct {
	Key        string                     `json:"key"`
	EntityName string                     `json:"entityName"`
	Prefix     string                     `json:"prefix"`
	FieldOrder []string                   `json:"fieldOrder"`
	Fields     map[string]fieldDescriptor `json:"fields"`
}

// handleSchema renders the merged schema set so integrators can discover the
// resolved shape of every entity, including plugin and config additions.
// Transforms, validators, and defaults are runtime behavior and do not
// appear.
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	set := h.schemas.Schemas()

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if set[keys[i]].Order != set[keys[j]].Order {
			return set[keys[i]].Order < set[keys[j]].Order
		}
		return keys[i] < keys[j]
	})

	entities := make([]entityDescriptor, 0, len(keys))
	for _, key := range keys {
		es := set[key]
		descriptor := entityDescriptor{
			Key:        key,
			EntityName: es.EntityName,
			Prefix:     es.EntityPrefix,
			FieldOrder: es.Fields.Keys(),
			Fields:     make(map[string]fieldDescriptor, es.Fields.Len()),
		}
		for _, name := range es.Fields.Keys() {
			field, _ := es.Fields.Get(name)
			fd := fieldDescriptor{
				Type:     string(field.Type),
				Required: field.Required,
				Unique:   field.Unique,
				Returned: field.Returned,
				Input:    field.Input,
			}
			if field.References != nil {
				fd.Reference = &fieldReference{
					Entity: field.References.Entity,
					Field:  field.References.Field,
				}
			}
			descriptor.Fields[name] = fd
		}
		entities = append(entities, descriptor)
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{"entities": entities})
}
