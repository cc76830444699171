package registry

import (
	"context"

	"consentry/internal/schema"
	"consentry/internal/storage"
)

// Typed accessors over the generic CRUD core. Records stay maps because the
// schema shape is plugin- and configuration-extensible at runtime; the typed
// layer pins down entity names and lookup keys instead of field sets.

func (r *Registry) CreateSubject(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntitySubject, data)
}

func (r *Registry) FindSubjectByID(ctx context.Context, id string) (map[string]any, error) {
	return r.FindByID(ctx, schema.EntitySubject, id)
}

func (r *Registry) FindSubjectByExternalID(ctx context.Context, externalID string) (map[string]any, error) {
	return r.FindOne(ctx, schema.EntitySubject, []storage.Condition{storage.Eq("externalId", externalID)})
}

func (r *Registry) CreateDomain(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityDomain, data)
}

func (r *Registry) FindDomainByName(ctx context.Context, name string) (map[string]any, error) {
	return r.FindOne(ctx, schema.EntityDomain, []storage.Condition{storage.Eq("name", name)})
}

func (r *Registry) CreatePurpose(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityPurpose, data)
}

func (r *Registry) FindPurposeByCode(ctx context.Context, code string) (map[string]any, error) {
	return r.FindOne(ctx, schema.EntityPurpose, []storage.Condition{storage.Eq("code", code)})
}

func (r *Registry) FindPurposesByIDs(ctx context.Context, ids []string) ([]map[string]any, error) {
	return r.FindMany(ctx, schema.EntityPurpose, []storage.Condition{storage.In("id", ids)})
}

func (r *Registry) CreateConsentPolicy(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityConsentPolicy, data)
}

func (r *Registry) FindActivePolicyByVersion(ctx context.Context, version string) (map[string]any, error) {
	return r.FindOne(ctx, schema.EntityConsentPolicy, []storage.Condition{
		storage.Eq("version", version),
		storage.Eq("isActive", true),
	})
}

func (r *Registry) CreateConsent(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityConsent, data)
}

func (r *Registry) FindConsentByID(ctx context.Context, id string) (map[string]any, error) {
	return r.FindByID(ctx, schema.EntityConsent, id)
}

func (r *Registry) FindConsentsBySubject(ctx context.Context, subjectID string) ([]map[string]any, error) {
	return r.FindMany(ctx, schema.EntityConsent, []storage.Condition{storage.Eq("subjectId", subjectID)})
}

func (r *Registry) FindActiveConsents(ctx context.Context, subjectID, domainID string) ([]map[string]any, error) {
	return r.FindMany(ctx, schema.EntityConsent, []storage.Condition{
		storage.Eq("subjectId", subjectID),
		storage.Eq("domainId", domainID),
		storage.Eq("isActive", true),
	})
}

func (r *Registry) UpdateConsent(ctx context.Context, id string, patch map[string]any) (map[string]any, error) {
	return r.Update(ctx, schema.EntityConsent, id, patch)
}

func (r *Registry) CreatePurposeJunction(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityPurposeJunction, data)
}

func (r *Registry) FindJunctionsByConsent(ctx context.Context, consentID string) ([]map[string]any, error) {
	return r.FindMany(ctx, schema.EntityPurposeJunction, []storage.Condition{storage.Eq("consentId", consentID)})
}

func (r *Registry) WithdrawJunctions(ctx context.Context, consentID string) (int, error) {
	return r.UpdateMany(ctx, schema.EntityPurposeJunction,
		map[string]any{"status": "withdrawn"},
		[]storage.Condition{storage.Eq("consentId", consentID)})
}

func (r *Registry) CreateRecord(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityRecord, data)
}

func (r *Registry) FindRecordsBySubject(ctx context.Context, subjectID string) ([]map[string]any, error) {
	return r.FindMany(ctx, schema.EntityRecord, []storage.Condition{storage.Eq("subjectId", subjectID)})
}

func (r *Registry) CreateWithdrawal(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityWithdrawal, data)
}

func (r *Registry) CreateAuditLog(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityAuditLog, data)
}

func (r *Registry) FindAuditLogsBySubject(ctx context.Context, subjectID string) ([]map[string]any, error) {
	return r.FindMany(ctx, schema.EntityAuditLog, []storage.Condition{storage.Eq("subjectId", subjectID)})
}

func (r *Registry) CreateConsentGeoLocation(ctx context.Context, data map[string]any) (map[string]any, error) {
	return r.Create(ctx, schema.EntityConsentGeoLocation, data)
}
