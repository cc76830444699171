package schema

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSchemaIncludesBuiltins(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	for _, key := range []string{
		EntitySubject, EntityDomain, EntityPurpose, EntityConsentPolicy,
		EntityConsent, EntityPurposeJunction, EntityRecord, EntityWithdrawal,
		EntityAuditLog, EntityGeoLocation, EntityConsentGeoLocation,
	} {
		require.Contains(t, set, key)
		es := set[key]
		assert.NotEmpty(t, es.EntityName, "entity %s", key)
		assert.NotEmpty(t, es.EntityPrefix, "entity %s", key)
		_, hasID := es.Fields.Get("id")
		assert.True(t, hasID, "entity %s must have an id field", key)
	}
}

func TestBuildSchemaDependencyOrder(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	assert.Less(t, set[EntitySubject].Order, set[EntityConsent].Order,
		"subject must be created before consent which references it")
	assert.Less(t, set[EntityDomain].Order, set[EntityConsent].Order)
	assert.Less(t, set[EntityPurpose].Order, set[EntityPurposeJunction].Order)
	assert.Less(t, set[EntityConsent].Order, set[EntityPurposeJunction].Order)
}

func TestPluginFieldWinsOverBuiltin(t *testing.T) {
	plugin := PluginSchema{
		EntityDomain: {
			Fields: map[string]*Field{
				// Built-in name field is required; the plugin relaxes it.
				"name": NewField(TypeString),
			},
		},
	}

	set := BuildSchema([]PluginSchema{plugin}, Options{}, discardLogger())

	f, ok := set[EntityDomain].Fields.Get("name")
	require.True(t, ok)
	assert.False(t, f.Required, "plugin field must replace the built-in on key collision")
}

func TestConfigurationWinsOverPlugin(t *testing.T) {
	plugin := PluginSchema{
		EntityPurpose: {
			Fields: map[string]*Field{
				"channel": NewField(TypeString, Required()),
			},
		},
	}
	opts := Options{
		Entities: map[string]EntityOptions{
			EntityPurpose: {
				AdditionalFields: map[string]*Field{
					"channel": NewField(TypeString),
				},
			},
		},
	}

	set := BuildSchema([]PluginSchema{plugin}, opts, discardLogger())

	f, ok := set[EntityPurpose].Fields.Get("channel")
	require.True(t, ok)
	assert.False(t, f.Required, "configuration is the last merge source and must win")
}

func TestTwoFragmentsForSameEntityCombine(t *testing.T) {
	first := PluginSchema{
		EntitySubject: {Fields: map[string]*Field{
			"department": NewField(TypeString),
		}},
	}
	second := PluginSchema{
		EntitySubject: {Fields: map[string]*Field{
			"costCenter": NewField(TypeString),
		}},
	}

	set := BuildSchema([]PluginSchema{first, second}, Options{}, discardLogger())

	fields := set[EntitySubject].Fields
	_, hasDepartment := fields.Get("department")
	_, hasCostCenter := fields.Get("costCenter")
	_, hasExternalID := fields.Get("externalId")
	assert.True(t, hasDepartment)
	assert.True(t, hasCostCenter)
	assert.True(t, hasExternalID, "built-in fields survive fragment merging")
}

func TestEntityNameAndFieldNameOverrides(t *testing.T) {
	opts := Options{
		Entities: map[string]EntityOptions{
			EntitySubject: {
				EntityName: "app_users",
				FieldNames: map[string]string{"externalId": "external_ref"},
			},
		},
	}

	set := BuildSchema(nil, Options{Entities: opts.Entities}, discardLogger())

	es := set[EntitySubject]
	assert.Equal(t, "app_users", es.EntityName)
	f, _ := es.Fields.Get("externalId")
	assert.Equal(t, "external_ref", f.ColumnName("externalId"))

	// References to the renamed entity resolve to the configured table name.
	subjectRef, _ := set[EntityConsent].Fields.Get("subjectId")
	require.NotNil(t, subjectRef.References)
	assert.Equal(t, "app_users", subjectRef.References.Entity)
}

func TestUnresolvableReferenceDegradesToPlainField(t *testing.T) {
	plugin := PluginSchema{
		EntityConsent: {
			Fields: map[string]*Field{
				"campaignId": NewField(TypeString, Required(), References("campaign")),
			},
		},
	}

	set := BuildSchema([]PluginSchema{plugin}, Options{}, discardLogger())

	f, ok := set[EntityConsent].Fields.Get("campaignId")
	require.True(t, ok)
	assert.Nil(t, f.References, "reference to unknown entity must be dropped")
	assert.True(t, f.Required, "other attributes survive reference degradation")
	assert.Equal(t, TypeString, f.Type)
}

func TestPluginIntroducesNewEntity(t *testing.T) {
	plugin := PluginSchema{
		"campaign": {
			EntityName:   "campaign",
			EntityPrefix: "cmp",
			Fields: map[string]*Field{
				"id":   NewField(TypeString, Required(), Unique(), SystemOnly()),
				"name": NewField(TypeString, Required()),
			},
			FieldOrder: []string{"id", "name"},
		},
		EntityConsent: {
			Fields: map[string]*Field{
				"campaignId": NewField(TypeString, References("campaign")),
			},
		},
	}

	set := BuildSchema([]PluginSchema{plugin}, Options{}, discardLogger())

	require.Contains(t, set, "campaign")
	assert.Equal(t, "cmp", set["campaign"].EntityPrefix)

	f, _ := set[EntityConsent].Fields.Get("campaignId")
	require.NotNil(t, f.References, "reference to plugin entity must resolve")
	assert.Equal(t, "campaign", f.References.Entity)
}

func TestMergedSchemasDoNotAliasPluginFields(t *testing.T) {
	shared := NewField(TypeString)
	plugin := PluginSchema{
		EntityDomain: {Fields: map[string]*Field{"tier": shared}},
	}

	set := BuildSchema([]PluginSchema{plugin}, Options{}, discardLogger())

	merged, _ := set[EntityDomain].Fields.Get("tier")
	merged.Required = true
	assert.False(t, shared.Required, "merge must clone plugin fields")
}

func TestGetAllFields(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	fields := set.GetAllFields(EntityPurpose)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "code")
	assert.Contains(t, fields, "legalBasis")

	assert.Nil(t, set.GetAllFields("nonexistent"))
}

func TestFieldMapPreservesInsertionOrder(t *testing.T) {
	m := NewFieldMap()
	m.Set("b", NewField(TypeString))
	m.Set("a", NewField(TypeString))
	m.Set("c", NewField(TypeString))
	// Overwriting keeps the original position.
	m.Set("a", NewField(TypeNumber))

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	f, _ := m.Get("a")
	assert.Equal(t, TypeNumber, f.Type)
}

func TestJunctionCarriesCompositeUnique(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	junction := set[EntityPurposeJunction]
	require.NotNil(t, junction)
	assert.Equal(t, [][]string{{"consentId", "purposeId"}}, junction.CompositeUnique)
}
