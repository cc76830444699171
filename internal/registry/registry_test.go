package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentry/internal/schema"
	"consentry/internal/storage"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

type RegistrySuite struct {
	suite.Suite
	ctx context.Context
}

func (s *RegistrySuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) newRegistry(plugins []schema.PluginSchema, hookSets []Hooks) *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	schemas := schema.BuildSchema(plugins, schema.Options{}, logger)
	adapter := storage.NewMemory(schemas)
	return New(adapter, schemas, hookSets, logger, nil)
}

func (s *RegistrySuite) TestCreateGeneratesPrefixedID() {
	reg := s.newRegistry(nil, nil)

	domain, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().NoError(err)
	s.Require().NotNil(domain)
	s.True(strings.HasPrefix(domain["id"].(string), "dom_"), "id %q", domain["id"])
}

func (s *RegistrySuite) TestCreateAppliesDefaults() {
	reg := s.newRegistry(nil, nil)

	purpose, err := reg.CreatePurpose(s.ctx, map[string]any{
		"code": "analytics",
		"name": "Analytics",
	})
	s.Require().NoError(err)
	s.Equal("functional", purpose["dataCategory"])
	s.Equal("consent", purpose["legalBasis"])
	s.Equal(false, purpose["isEssential"])
	s.Equal(true, purpose["isActive"])
	s.IsType(time.Time{}, purpose["createdAt"])
}

func (s *RegistrySuite) TestCreateMissingRequiredField() {
	reg := s.newRegistry(nil, nil)

	_, err := reg.CreatePurpose(s.ctx, map[string]any{"code": "analytics"})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeMissingField))
	s.Contains(err.Error(), `"name"`)
}

func (s *RegistrySuite) TestReadPathSuppressesHiddenFields() {
	reg := s.newRegistry(nil, nil)

	subject, err := reg.CreateSubject(s.ctx, map[string]any{
		"isIdentified":  false,
		"lastIpAddress": "203.0.113.9",
	})
	s.Require().NoError(err)
	s.NotContains(subject, "lastIpAddress")

	found, err := reg.FindSubjectByID(s.ctx, subject["id"].(string))
	s.Require().NoError(err)
	s.NotContains(found, "lastIpAddress")
}

func (s *RegistrySuite) TestFindByIDReturnsNilWhenMissing() {
	reg := s.newRegistry(nil, nil)

	found, err := reg.FindSubjectByID(s.ctx, "sbj_nope")
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *RegistrySuite) TestUpdateIsPartialAndBumpsUpdatedAt() {
	reg := s.newRegistry(nil, nil)

	domain, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().NoError(err)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, fixed)

	updated, err := reg.Update(ctx, schema.EntityDomain, domain["id"].(string),
		map[string]any{"description": "marketing site"})
	s.Require().NoError(err)
	s.Equal("marketing site", updated["description"])
	s.Equal("example.com", updated["name"], "untouched fields survive partial update")
	s.Equal(fixed, updated["updatedAt"])
}

func (s *RegistrySuite) TestBeforeHookRejectsSilently() {
	hookSets := []Hooks{{
		schema.EntityConsent: EntityHooks{
			Create: OperationHooks{
				Before: []BeforeHook{
					func(ctx context.Context, data map[string]any) (map[string]any, error) {
						return nil, nil
					},
				},
			},
		},
	}}
	reg := s.newRegistry(nil, hookSets)

	consent, err := reg.CreateConsent(s.ctx, map[string]any{
		"subjectId": "sbj_1",
		"domainId":  "dom_1",
	})
	s.Require().NoError(err, "a hook rejection is not an error")
	s.Nil(consent)

	stored, err := reg.FindMany(s.ctx, schema.EntityConsent, nil)
	s.Require().NoError(err)
	s.Empty(stored, "rejected write must not reach storage")
}

func (s *RegistrySuite) TestBeforeHookReplacesPayload() {
	hookSets := []Hooks{{
		schema.EntityDomain: EntityHooks{
			Create: OperationHooks{
				Before: []BeforeHook{
					func(ctx context.Context, data map[string]any) (map[string]any, error) {
						data["description"] = "set by hook"
						return data, nil
					},
				},
			},
		},
	}}
	reg := s.newRegistry(nil, hookSets)

	domain, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().NoError(err)
	s.Equal("set by hook", domain["description"])
}

func (s *RegistrySuite) TestBeforeHooksRunInRegistrationOrder() {
	var order []string
	mk := func(name string) BeforeHook {
		return func(ctx context.Context, data map[string]any) (map[string]any, error) {
			order = append(order, name)
			return data, nil
		}
	}
	hookSets := []Hooks{
		{schema.EntityDomain: EntityHooks{Create: OperationHooks{Before: []BeforeHook{mk("first"), mk("second")}}}},
		{schema.EntityDomain: EntityHooks{Create: OperationHooks{Before: []BeforeHook{mk("third")}}}},
	}
	reg := s.newRegistry(nil, hookSets)

	_, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().NoError(err)
	s.Equal([]string{"first", "second", "third"}, order)
}

func (s *RegistrySuite) TestBeforeHookErrorPropagates() {
	boom := errors.New("hook exploded")
	hookSets := []Hooks{{
		schema.EntityDomain: EntityHooks{
			Create: OperationHooks{
				Before: []BeforeHook{
					func(ctx context.Context, data map[string]any) (map[string]any, error) {
						return nil, boom
					},
				},
			},
		},
	}}
	reg := s.newRegistry(nil, hookSets)

	_, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().ErrorIs(err, boom)
}

func (s *RegistrySuite) TestAfterHookObservesButCannotAlter() {
	var seen map[string]any
	hookSets := []Hooks{{
		schema.EntityDomain: EntityHooks{
			Create: OperationHooks{
				After: []AfterHook{
					func(ctx context.Context, record map[string]any) error {
						seen = record
						record["name"] = "tampered.example"
						return nil
					},
				},
			},
		},
	}}
	reg := s.newRegistry(nil, hookSets)

	domain, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().NoError(err)
	s.Require().NotNil(seen)
	s.Equal("example.com", domain["name"], "after-hooks observe a copy")
}

func (s *RegistrySuite) TestPluginFieldFlowsThroughRegistry() {
	plugin := schema.PluginSchema{
		schema.EntitySubject: {
			Fields: map[string]*schema.Field{
				"department": schema.NewField(schema.TypeString, schema.WithDefault(schema.Literal("unassigned"))),
			},
		},
	}
	reg := s.newRegistry([]schema.PluginSchema{plugin}, nil)

	subject, err := reg.CreateSubject(s.ctx, map[string]any{})
	s.Require().NoError(err)
	s.Equal("unassigned", subject["department"])
}

func (s *RegistrySuite) TestDeactivate() {
	reg := s.newRegistry(nil, nil)

	domain, err := reg.CreateDomain(s.ctx, map[string]any{"name": "example.com"})
	s.Require().NoError(err)

	deactivated, err := reg.Deactivate(s.ctx, schema.EntityDomain, domain["id"].(string))
	s.Require().NoError(err)
	s.Equal(false, deactivated["isActive"])
}

func (s *RegistrySuite) TestDuplicateJunctionPairRejected() {
	reg := s.newRegistry(nil, nil)

	first, err := reg.CreatePurposeJunction(s.ctx, map[string]any{
		"consentId": "cns_1",
		"purposeId": "pur_1",
	})
	s.Require().NoError(err)
	s.Require().NotNil(first)

	// A consent links each purpose at most once.
	dup, err := reg.CreatePurposeJunction(s.ctx, map[string]any{
		"consentId": "cns_1",
		"purposeId": "pur_1",
	})
	s.Require().Error(err)
	s.Nil(dup)
	s.True(dErrors.Is(err, dErrors.CodeBadRequest))

	junctions, err := reg.FindJunctionsByConsent(s.ctx, "cns_1")
	s.Require().NoError(err)
	s.Len(junctions, 1)
}

func (s *RegistrySuite) TestWithdrawJunctions() {
	reg := s.newRegistry(nil, nil)

	for _, purposeID := range []string{"pur_1", "pur_2"} {
		_, err := reg.CreatePurposeJunction(s.ctx, map[string]any{
			"consentId": "cns_1",
			"purposeId": purposeID,
		})
		s.Require().NoError(err)
	}

	count, err := reg.WithdrawJunctions(s.ctx, "cns_1")
	s.Require().NoError(err)
	s.Equal(2, count)

	junctions, err := reg.FindJunctionsByConsent(s.ctx, "cns_1")
	s.Require().NoError(err)
	for _, junction := range junctions {
		s.Equal("withdrawn", junction["status"])
	}
}
