package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentry/pkg/domain-errors"
)

func testEntity(fields *FieldMap) *EntitySchema {
	return &EntitySchema{EntityName: "widget", EntityPrefix: "wgt", Fields: fields}
}

func TestParseInputDropsUnknownKeys(t *testing.T) {
	m := NewFieldMap()
	m.Set("name", NewField(TypeString))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{
		"name":      "analytics",
		"__proto__": "injected",
		"admin":     true,
	}, es, ActionCreate)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"name": "analytics"}, parsed)
}

func TestParseInputRequiredFieldEnforcement(t *testing.T) {
	m := NewFieldMap()
	m.Set("code", NewField(TypeString, Required()))
	m.Set("label", NewField(TypeString))
	es := testEntity(m)

	_, err := ParseInput(context.Background(), map[string]any{"label": "x"}, es, ActionCreate)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeMissingField))
	assert.Contains(t, err.Error(), `"code"`, "error must name the missing field")
}

func TestParseInputRequiredWithDefaultDoesNotFail(t *testing.T) {
	m := NewFieldMap()
	m.Set("status", NewField(TypeString, Required(), WithDefault(Literal("active"))))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{}, es, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, "active", parsed["status"])
}

func TestParseInputUpdateIsPartial(t *testing.T) {
	m := NewFieldMap()
	m.Set("code", NewField(TypeString, Required()))
	m.Set("label", NewField(TypeString, WithDefault(Literal("unnamed"))))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{"label": "renamed"}, es, ActionUpdate)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"label": "renamed"}, parsed,
		"absent fields are omitted on update, defaults do not apply")
}

func TestParseInputSystemOnlyField(t *testing.T) {
	m := NewFieldMap()
	m.Set("role", NewField(TypeString, SystemOnly(), WithDefault(Literal("viewer"))))
	m.Set("note", NewField(TypeString, SystemOnly()))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{
		"role": "admin",
		"note": "sneaky",
	}, es, ActionCreate)
	require.NoError(t, err)

	assert.Equal(t, "viewer", parsed["role"], "untrusted value replaced by default")
	_, present := parsed["note"]
	assert.False(t, present, "system-only field without default is omitted")
}

func TestParseInputLazyDefaultEvaluation(t *testing.T) {
	calls := 0
	m := NewFieldMap()
	m.Set("stamp", NewField(TypeDate, WithDefault(Producer(func() any {
		calls++
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}))))
	es := testEntity(m)

	assert.Equal(t, 0, calls, "producer must not run at schema construction")

	parsed, err := ParseInput(context.Background(), map[string]any{}, es, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), parsed["stamp"])
}

func TestParseInputFunctionValidator(t *testing.T) {
	m := NewFieldMap()
	m.Set("email", NewField(TypeString, WithValidator(&Validator{
		Func: func(v any) error {
			s, ok := v.(string)
			if !ok || !strings.Contains(s, "@") {
				return errors.New("not an email")
			}
			return nil
		},
	})))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{"email": "a@b.co"}, es, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", parsed["email"])

	_, err = ParseInput(context.Background(), map[string]any{"email": "nope"}, es, ActionCreate)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestParseInputLegacyValidatorRewritesValue(t *testing.T) {
	m := NewFieldMap()
	m.Set("code", NewField(TypeString,
		WithValidator(&Validator{
			Input: func(v any) (any, error) {
				s, ok := v.(string)
				if !ok {
					return nil, errors.New("expected string")
				}
				return strings.ToLower(s), nil
			},
		}),
		// The transform must be short-circuited by the legacy parser.
		WithInputTransform(func(_ context.Context, v any) (any, error) {
			return nil, errors.New("transform must not run")
		}),
	))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{"code": "Analytics"}, es, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, "analytics", parsed["code"])
}

func TestParseInputFunctionFormTakesPrecedence(t *testing.T) {
	m := NewFieldMap()
	m.Set("code", NewField(TypeString, WithValidator(&Validator{
		Func: func(any) error { return nil },
		Input: func(any) (any, error) {
			return nil, errors.New("legacy parser must not run when Func is set")
		},
	})))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{"code": "Analytics"}, es, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, "Analytics", parsed["code"], "value passes through unchanged")
}

func TestParseInputTransform(t *testing.T) {
	m := NewFieldMap()
	m.Set("domain", NewField(TypeString, WithInputTransform(
		func(_ context.Context, v any) (any, error) {
			return strings.TrimSuffix(v.(string), "."), nil
		})))
	es := testEntity(m)

	parsed, err := ParseInput(context.Background(), map[string]any{"domain": "example.com."}, es, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, "example.com", parsed["domain"])
}

func TestParseOutputSuppressesHiddenFields(t *testing.T) {
	m := NewFieldMap()
	m.Set("name", NewField(TypeString))
	m.Set("ipAddress", NewField(TypeString, Hidden()))
	es := testEntity(m)

	out := ParseOutput(map[string]any{
		"name":      "example.com",
		"ipAddress": "203.0.113.7",
		"legacyCol": 42,
	}, es)

	assert.Equal(t, map[string]any{
		"name":      "example.com",
		"legacyCol": 42,
	}, out)
}

func TestParseOutputIdempotent(t *testing.T) {
	m := NewFieldMap()
	m.Set("name", NewField(TypeString))
	m.Set("secret", NewField(TypeString, Hidden()))
	es := testEntity(m)

	record := map[string]any{"name": "n", "secret": "s", "extra": true}
	once := ParseOutput(record, es)
	twice := ParseOutput(once, es)

	assert.Equal(t, once, twice)
}

func TestParseOutputNilRecord(t *testing.T) {
	es := testEntity(NewFieldMap())
	assert.Nil(t, ParseOutput(nil, es))
}

func TestApplyOutputTransforms(t *testing.T) {
	m := NewFieldMap()
	m.Set("name", NewField(TypeString, WithOutputTransform(
		func(_ context.Context, v any) (any, error) {
			return strings.ToUpper(v.(string)), nil
		})))
	m.Set("payload", NewField(TypeJSON, WithValidator(&Validator{
		Output: func(v any) (any, error) { return "parsed", nil },
	})))
	es := testEntity(m)

	out, err := ApplyOutputTransforms(context.Background(), map[string]any{
		"name":    "example",
		"payload": "raw",
		"other":   1,
	}, es)
	require.NoError(t, err)

	assert.Equal(t, "EXAMPLE", out["name"])
	assert.Equal(t, "parsed", out["payload"])
	assert.Equal(t, 1, out["other"])
}

func TestParseInputStableFieldOrdering(t *testing.T) {
	var order []string
	m := NewFieldMap()
	for _, key := range []string{"one", "two", "three"} {
		k := key
		m.Set(k, NewField(TypeString, WithInputTransform(
			func(_ context.Context, v any) (any, error) {
				order = append(order, k)
				return v, nil
			})))
	}
	es := testEntity(m)

	raw := map[string]any{"three": "3", "one": "1", "two": "2"}
	for i := 0; i < 5; i++ {
		order = order[:0]
		_, err := ParseInput(context.Background(), raw, es, ActionCreate)
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two", "three"}, order)
	}
}
