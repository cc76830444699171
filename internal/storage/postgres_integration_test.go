//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentry/internal/schema"
	"consentry/pkg/platform/sentinel"
	"consentry/pkg/testutil/containers"
)

type PostgresAdapterSuite struct {
	suite.Suite
	ctx     context.Context
	adapter *Postgres
	schemas schema.Set
	pg      *containers.PostgresContainer
}

func (s *PostgresAdapterSuite) SetupSuite() {
	s.ctx = context.Background()
	s.schemas = schema.BuildSchema(nil, schema.Options{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(Migrate(s.ctx, s.pg.DB, s.schemas))
	s.adapter = NewPostgres(s.pg.DB, s.schemas)
}

func (s *PostgresAdapterSuite) SetupTest() {
	for key := range s.schemas {
		_, err := s.pg.DB.ExecContext(s.ctx, `DELETE FROM "`+s.schemas[key].EntityName+`"`)
		s.Require().NoError(err)
	}
}

func TestPostgresAdapterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAdapterSuite))
}

func (s *PostgresAdapterSuite) domainRecord(id, name string) map[string]any {
	return map[string]any{
		"id":             id,
		"name":           name,
		"allowedOrigins": []string{"https://" + name},
		"isVerified":     true,
		"isActive":       true,
		"createdAt":      time.Now().UTC(),
		"updatedAt":      time.Now().UTC(),
	}
}

func (s *PostgresAdapterSuite) TestCreateRoundTripsTypes() {
	created, err := s.adapter.Create(s.ctx, schema.EntityDomain, s.domainRecord("dom_1", "example.com"))
	s.Require().NoError(err)

	s.Equal("dom_1", created["id"])
	s.Equal("example.com", created["name"])
	s.Equal([]string{"https://example.com"}, created["allowedOrigins"])
	s.Equal(true, created["isActive"])
	_, ok := created["createdAt"].(time.Time)
	s.True(ok)
}

func (s *PostgresAdapterSuite) TestFindOneByCondition() {
	_, err := s.adapter.Create(s.ctx, schema.EntityDomain, s.domainRecord("dom_1", "example.com"))
	s.Require().NoError(err)

	found, err := s.adapter.FindOne(s.ctx, schema.EntityDomain, []Condition{Eq("name", "example.com")})
	s.Require().NoError(err)
	s.Equal("dom_1", found["id"])

	_, err = s.adapter.FindOne(s.ctx, schema.EntityDomain, []Condition{Eq("name", "missing.example")})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresAdapterSuite) TestUniqueViolationMapsToConflict() {
	_, err := s.adapter.Create(s.ctx, schema.EntityDomain, s.domainRecord("dom_1", "example.com"))
	s.Require().NoError(err)

	_, err = s.adapter.Create(s.ctx, schema.EntityDomain, s.domainRecord("dom_2", "example.com"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresAdapterSuite) TestJunctionPairViolationMapsToConflict() {
	junction := func(id, purposeID string) map[string]any {
		return map[string]any{
			"id": id, "consentId": "cns_1", "purposeId": purposeID, "status": "active",
		}
	}

	_, err := s.adapter.Create(s.ctx, schema.EntityPurposeJunction, junction("pjn_1", "pur_1"))
	s.Require().NoError(err)
	_, err = s.adapter.Create(s.ctx, schema.EntityPurposeJunction, junction("pjn_2", "pur_2"))
	s.Require().NoError(err)

	_, err = s.adapter.Create(s.ctx, schema.EntityPurposeJunction, junction("pjn_3", "pur_1"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresAdapterSuite) TestJSONAndArrayColumns() {
	subjectID := schema.GenerateID("sbj")
	consentID := schema.GenerateID("cns")
	now := time.Now().UTC()

	record := map[string]any{
		"id":         consentID,
		"subjectId":  subjectID,
		"domainId":   "dom_1",
		"purposeIds": []string{"pur_1", "pur_2"},
		"status":     "active",
		"metadata":   map[string]any{"source": "banner"},
		"history":    []map[string]any{{"type": "given"}},
		"givenAt":    now,
		"isActive":   true,
		"createdAt":  now,
		"updatedAt":  now,
	}
	created, err := s.adapter.Create(s.ctx, schema.EntityConsent, record)
	s.Require().NoError(err)
	s.Equal([]string{"pur_1", "pur_2"}, created["purposeIds"])

	metadata, ok := created["metadata"].(map[string]any)
	s.Require().True(ok)
	s.Equal("banner", metadata["source"])

	// contains matches a scalar inside an array column
	found, err := s.adapter.FindMany(s.ctx, schema.EntityConsent, []Condition{Contains("purposeIds", "pur_2")})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(consentID, found[0]["id"])

	// in matches against a set of scalars
	found, err = s.adapter.FindMany(s.ctx, schema.EntityConsent, []Condition{In("id", []any{consentID, "cns_other"})})
	s.Require().NoError(err)
	s.Len(found, 1)
}

func (s *PostgresAdapterSuite) TestUpdateAndUpdateMany() {
	_, err := s.adapter.Create(s.ctx, schema.EntityDomain, s.domainRecord("dom_1", "a.example"))
	s.Require().NoError(err)
	_, err = s.adapter.Create(s.ctx, schema.EntityDomain, s.domainRecord("dom_2", "b.example"))
	s.Require().NoError(err)

	updated, err := s.adapter.Update(s.ctx, schema.EntityDomain,
		map[string]any{"isVerified": false}, []Condition{Eq("id", "dom_1")})
	s.Require().NoError(err)
	s.Equal(false, updated["isVerified"])

	count, err := s.adapter.UpdateMany(s.ctx, schema.EntityDomain,
		map[string]any{"isActive": false}, []Condition{Eq("isActive", true)})
	s.Require().NoError(err)
	s.Equal(2, count)

	_, err = s.adapter.Update(s.ctx, schema.EntityDomain,
		map[string]any{"isVerified": false}, []Condition{Eq("id", "dom_missing")})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
