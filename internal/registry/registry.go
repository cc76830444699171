// Package registry exposes typed CRUD operations per entity, built atop the
// schema parser and an abstract storage adapter. Every write routes through
// input parsing against the entity's merged schema before reaching storage;
// every read routes results through output parsing. Lifecycle hooks let
// plugins veto or rewrite payloads without the registry knowing about them.
package registry

import (
	"context"
	"errors"
	"log/slog"

	"consentry/internal/platform/metrics"
	"consentry/internal/schema"
	"consentry/internal/storage"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/requestcontext"
)

// Registry is the entity access layer. It is safe for concurrent use as long
// as the underlying adapter is; the schema set is read-only after
// construction.
type Registry struct {
	adapter storage.Adapter
	schemas schema.Set
	hooks   Hooks
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a registry. hookSets come from plugins and are merged in
// registration order; metrics may be nil.
func New(adapter storage.Adapter, schemas schema.Set, hookSets []Hooks, logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapter: adapter,
		schemas: schemas,
		hooks:   mergeHooks(hookSets),
		logger:  logger,
		metrics: m,
	}
}

// Schemas exposes the merged schema set for consumers that need the resolved
// shape (the schema endpoint, migration generators).
func (r *Registry) Schemas() schema.Set {
	return r.schemas
}

// Create parses, hooks, and stores a new record. A nil, nil return means a
// before-hook rejected the write.
func (r *Registry) Create(ctx context.Context, entity string, data map[string]any) (map[string]any, error) {
	es, err := r.entity(entity)
	if err != nil {
		return nil, err
	}

	parsed, err := schema.ParseInput(ctx, data, es, schema.ActionCreate)
	if err != nil {
		r.metrics.IncParseFailure(entity)
		return nil, err
	}

	payload, rejected, err := r.runBefore(ctx, entity, r.hooks[entity].Create.Before, parsed)
	if err != nil {
		return nil, err
	}
	if rejected {
		return nil, nil
	}

	row, err := r.adapter.Create(ctx, entity, payload)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "record violates a uniqueness constraint")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create "+entity)
	}

	r.runAfter(ctx, entity, r.hooks[entity].Create.After, row)
	return r.parseRead(ctx, row, es)
}

// FindByID returns the record or nil when it does not exist.
func (r *Registry) FindByID(ctx context.Context, entity, id string) (map[string]any, error) {
	return r.FindOne(ctx, entity, []storage.Condition{storage.Eq("id", id)})
}

// FindOne returns the first match or nil when nothing matches.
func (r *Registry) FindOne(ctx context.Context, entity string, where []storage.Condition) (map[string]any, error) {
	es, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	row, err := r.adapter.FindOne(ctx, entity, where)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find "+entity)
	}
	return r.parseRead(ctx, row, es)
}

// FindMany returns all matches, output-parsed.
func (r *Registry) FindMany(ctx context.Context, entity string, where []storage.Condition) ([]map[string]any, error) {
	es, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	rows, err := r.adapter.FindMany(ctx, entity, where)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find many "+entity)
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		parsed, err := r.parseRead(ctx, row, es)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// Update applies a partial patch to one record. Returns nil, nil when the
// record does not exist or a before-hook rejected the update.
func (r *Registry) Update(ctx context.Context, entity, id string, patch map[string]any) (map[string]any, error) {
	es, err := r.entity(entity)
	if err != nil {
		return nil, err
	}

	parsed, err := schema.ParseInput(ctx, patch, es, schema.ActionUpdate)
	if err != nil {
		r.metrics.IncParseFailure(entity)
		return nil, err
	}
	if _, ok := es.Fields.Get("updatedAt"); ok {
		parsed["updatedAt"] = requestcontext.Now(ctx)
	}

	payload, rejected, err := r.runBefore(ctx, entity, r.hooks[entity].Update.Before, parsed)
	if err != nil {
		return nil, err
	}
	if rejected {
		return nil, nil
	}

	row, err := r.adapter.Update(ctx, entity, payload, []storage.Condition{storage.Eq("id", id)})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "update violates a uniqueness constraint")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update "+entity)
	}

	r.runAfter(ctx, entity, r.hooks[entity].Update.After, row)
	return r.parseRead(ctx, row, es)
}

// UpdateMany applies a patch to every matching record, bypassing per-record
// hooks. Used for bulk status flips such as junction withdrawal.
func (r *Registry) UpdateMany(ctx context.Context, entity string, patch map[string]any, where []storage.Condition) (int, error) {
	es, err := r.entity(entity)
	if err != nil {
		return 0, err
	}
	parsed, err := schema.ParseInput(ctx, patch, es, schema.ActionUpdate)
	if err != nil {
		r.metrics.IncParseFailure(entity)
		return 0, err
	}
	if _, ok := es.Fields.Get("updatedAt"); ok {
		parsed["updatedAt"] = requestcontext.Now(ctx)
	}
	count, err := r.adapter.UpdateMany(ctx, entity, parsed, where)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "update many "+entity)
	}
	return count, nil
}

// Deactivate soft-deletes a record. Entities are never physically removed
// outside explicit withdrawal and audit flows.
func (r *Registry) Deactivate(ctx context.Context, entity, id string) (map[string]any, error) {
	return r.Update(ctx, entity, id, map[string]any{"isActive": false})
}

func (r *Registry) entity(entity string) (*schema.EntitySchema, error) {
	es, ok := r.schemas[entity]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "unknown entity %q", entity)
	}
	return es, nil
}

func (r *Registry) runBefore(ctx context.Context, entity string, hooks []BeforeHook, payload map[string]any) (map[string]any, bool, error) {
	for _, hook := range hooks {
		replaced, err := hook(ctx, payload)
		if err != nil {
			return nil, false, err
		}
		if replaced == nil {
			r.logger.DebugContext(ctx, "write rejected by before-hook", "entity", entity)
			r.metrics.IncHookRejection(entity)
			return nil, true, nil
		}
		payload = replaced
	}
	return payload, false, nil
}

func (r *Registry) runAfter(ctx context.Context, entity string, hooks []AfterHook, row map[string]any) {
	for _, hook := range hooks {
		observed := make(map[string]any, len(row))
		for key, value := range row {
			observed[key] = value
		}
		if err := hook(ctx, observed); err != nil {
			// After-hooks cannot undo a committed write; their failures are
			// diagnostics, not operation failures.
			r.logger.WarnContext(ctx, "after-hook failed", "entity", entity, "error", err)
		}
	}
}

func (r *Registry) parseRead(ctx context.Context, row map[string]any, es *schema.EntitySchema) (map[string]any, error) {
	transformed, err := schema.ApplyOutputTransforms(ctx, row, es)
	if err != nil {
		return nil, err
	}
	return schema.ParseOutput(transformed, es), nil
}
