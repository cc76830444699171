package registry

import "context"

// BeforeHook runs before a write reaches storage. It may:
//
//   - return the payload unchanged to pass through,
//   - return a different map to replace the payload,
//   - return (nil, nil) to reject the operation. A rejection is not an
//     error: the operation yields a nil record and no write happens, so
//     callers must check for nil.
type BeforeHook func(ctx context.Context, data map[string]any) (map[string]any, error)

// AfterHook observes the committed record. It receives a copy, so it cannot
// alter what the caller sees.
type AfterHook func(ctx context.Context, record map[string]any) error

// OperationHooks groups hooks for one operation on one entity. Hooks run in
// registration order.
type OperationHooks struct {
	Before []BeforeHook
	After  []AfterHook
}

// EntityHooks groups hooks per operation.
type EntityHooks struct {
	Create OperationHooks
	Update OperationHooks
}

// Hooks maps canonical entity keys to their hooks. Plugins contribute Hooks
// values which are passed to the Registry constructor explicitly; there is no
// global registration.
type Hooks map[string]EntityHooks

// mergeHooks flattens several hook sets, preserving registration order
// within and across sets.
func mergeHooks(sets []Hooks) Hooks {
	merged := make(Hooks)
	for _, set := range sets {
		for entity, hooks := range set {
			existing := merged[entity]
			existing.Create.Before = append(existing.Create.Before, hooks.Create.Before...)
			existing.Create.After = append(existing.Create.After, hooks.Create.After...)
			existing.Update.Before = append(existing.Update.Before, hooks.Update.Before...)
			existing.Update.After = append(existing.Update.After, hooks.Update.After...)
			merged[entity] = existing
		}
	}
	return merged
}
