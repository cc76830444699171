package schema

import (
	"context"

	dErrors "consentry/pkg/domain-errors"
)

// Action distinguishes creation from partial update when parsing input.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
)

// ParseInput applies an entity's merged schema to raw request data.
//
// Only keys the schema knows about survive: extra raw keys are dropped. For
// each field, in schema order:
//
//   - present and Input=false: the default (if any) replaces the raw value,
//     otherwise the key is omitted. Untrusted callers can never set these.
//   - present with a validator: the function form checks the value; the
//     legacy input parser rewrites it and short-circuits the transform.
//   - present with an input transform: the transform result is used.
//   - absent on create: the default applies; a required field with no
//     default fails with a missing-field error naming the field.
//   - absent on update: omitted (partial update semantics).
//
// Transforms and validators run sequentially in schema order; they may
// perform I/O via ctx.
func ParseInput(ctx context.Context, raw map[string]any, es *EntitySchema, action Action) (map[string]any, error) {
	parsed := make(map[string]any, es.Fields.Len())

	for _, key := range es.Fields.Keys() {
		f, _ := es.Fields.Get(key)
		value, present := raw[key]

		if !present {
			if action != ActionCreate {
				continue
			}
			if f.Default != nil {
				parsed[key] = f.Default.Eval()
				continue
			}
			if f.Required {
				return nil, dErrors.Newf(dErrors.CodeMissingField,
					"missing required field %q for %s", key, es.EntityName)
			}
			continue
		}

		if !f.Input {
			if f.Default != nil {
				parsed[key] = f.Default.Eval()
			}
			continue
		}

		if f.Validator != nil {
			if f.Validator.Func != nil {
				if err := f.Validator.Func(value); err != nil {
					return nil, dErrors.Wrap(err, dErrors.CodeValidation,
						"invalid value for field "+key)
				}
			} else if f.Validator.Input != nil {
				rewritten, err := f.Validator.Input(value)
				if err != nil {
					return nil, dErrors.Wrap(err, dErrors.CodeValidation,
						"invalid value for field "+key)
				}
				parsed[key] = rewritten
				continue
			}
		}

		if f.InputTransform != nil {
			transformed, err := f.InputTransform(ctx, value)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation,
					"input transform failed for field "+key)
			}
			parsed[key] = transformed
			continue
		}

		parsed[key] = value
	}

	return parsed, nil
}

// ParseOutput filters a stored record for external consumption. Keys matching
// a schema field with Returned=false are omitted; unknown keys pass through
// unchanged so the parser never silently drops data the schema does not know
// about. ParseOutput is idempotent: once a field is removed it stays removed,
// and nothing is ever re-added.
func ParseOutput(record map[string]any, es *EntitySchema) map[string]any {
	if record == nil {
		return nil
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		if f, ok := es.Fields.Get(key); ok && !f.Returned {
			continue
		}
		out[key] = value
	}
	return out
}

// ApplyOutputTransforms runs field output transforms and legacy output
// parsers over a stored record, returning a new record. It runs before
// ParseOutput on the registry read path, and is kept separate so ParseOutput
// itself stays a pure filter.
func ApplyOutputTransforms(ctx context.Context, record map[string]any, es *EntitySchema) (map[string]any, error) {
	if record == nil {
		return nil, nil
	}
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = value
	}
	for _, key := range es.Fields.Keys() {
		f, _ := es.Fields.Get(key)
		value, present := out[key]
		if !present {
			continue
		}
		if f.Validator != nil && f.Validator.Func == nil && f.Validator.Output != nil {
			rewritten, err := f.Validator.Output(value)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation,
					"output parse failed for field "+key)
			}
			out[key] = rewritten
			continue
		}
		if f.OutputTransform != nil {
			transformed, err := f.OutputTransform(ctx, value)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation,
					"output transform failed for field "+key)
			}
			out[key] = transformed
		}
	}
	return out, nil
}
