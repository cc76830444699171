// Package service implements the consent orchestration: the multi-entity
// transaction that materializes one consent-giving event. It composes
// registry calls; it owns no storage of its own.
package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"consentry/internal/audit"
	"consentry/internal/consent"
	"consentry/internal/platform/metrics"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

// Registry is the slice of the entity access layer the orchestration
// consumes. It keeps the service mockable without depending on storage.
type Registry interface {
	CreateSubject(ctx context.Context, data map[string]any) (map[string]any, error)
	FindSubjectByID(ctx context.Context, id string) (map[string]any, error)
	FindSubjectByExternalID(ctx context.Context, externalID string) (map[string]any, error)

	CreateDomain(ctx context.Context, data map[string]any) (map[string]any, error)
	FindDomainByName(ctx context.Context, name string) (map[string]any, error)

	CreatePurpose(ctx context.Context, data map[string]any) (map[string]any, error)
	FindPurposeByCode(ctx context.Context, code string) (map[string]any, error)
	FindPurposesByIDs(ctx context.Context, ids []string) ([]map[string]any, error)

	CreateConsentPolicy(ctx context.Context, data map[string]any) (map[string]any, error)
	FindActivePolicyByVersion(ctx context.Context, version string) (map[string]any, error)

	CreateConsent(ctx context.Context, data map[string]any) (map[string]any, error)
	FindConsentByID(ctx context.Context, id string) (map[string]any, error)
	FindConsentsBySubject(ctx context.Context, subjectID string) ([]map[string]any, error)
	FindActiveConsents(ctx context.Context, subjectID, domainID string) ([]map[string]any, error)
	UpdateConsent(ctx context.Context, id string, patch map[string]any) (map[string]any, error)

	CreatePurposeJunction(ctx context.Context, data map[string]any) (map[string]any, error)
	FindJunctionsByConsent(ctx context.Context, consentID string) ([]map[string]any, error)
	WithdrawJunctions(ctx context.Context, consentID string) (int, error)

	CreateRecord(ctx context.Context, data map[string]any) (map[string]any, error)
	CreateWithdrawal(ctx context.Context, data map[string]any) (map[string]any, error)
}

// Service orchestrates consent capture across subjects, domains, purposes,
// policies, consents, junctions, records, and the audit trail.
type Service struct {
	registry             Registry
	audit                audit.Emitter
	logger               *slog.Logger
	metrics              *metrics.Metrics
	tracer               trace.Tracer
	defaultPolicyVersion string
}

func New(reg Registry, auditor audit.Emitter, logger *slog.Logger, m *metrics.Metrics, defaultPolicyVersion string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultPolicyVersion == "" {
		defaultPolicyVersion = "1.0"
	}
	return &Service{
		registry:             reg,
		audit:                auditor,
		logger:               logger,
		metrics:              m,
		tracer:               otel.Tracer("consentry/consent"),
		defaultPolicyVersion: defaultPolicyVersion,
	}
}

// CreateConsentWithSubject materializes one consent event. Steps run in
// order because each depends on ids from the previous one; only purpose
// resolution fans out, since find-or-create per purpose code is idempotent
// and order-independent.
//
// There is no automatic rollback across steps: an auto-created domain
// survives a later failure. Callers wanting stronger consistency must run
// the orchestration on an adapter that serializes it transactionally.
func (s *Service) CreateConsentWithSubject(ctx context.Context, params consent.CreateParams) (*consent.CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "consent.create",
		trace.WithAttributes(attribute.String("consent.domain", params.Domain)))
	defer span.End()
	start := time.Now()

	if params.Domain == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "domain is required")
	}

	subject, err := s.resolveSubject(ctx, params.SubjectID, params.ExternalSubjectID)
	if err != nil {
		return nil, err
	}
	subjectID, _ := subject["id"].(string)
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "could not establish a subject for the consent")
	}

	domain, err := s.resolveDomain(ctx, params.Domain)
	if err != nil {
		return nil, err
	}

	purposeIDs, err := s.resolvePurposes(ctx, params.Preferences)
	if err != nil {
		return nil, err
	}

	policyVersion := params.PolicyVersion
	if policyVersion == "" {
		policyVersion = s.defaultPolicyVersion
	}
	policy, err := s.resolvePolicy(ctx, policyVersion)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	ip := requestcontext.ClientIP(ctx)
	userAgent := requestcontext.UserAgent(ctx)

	given := consent.HistoryEntry{
		Type:          "given",
		Timestamp:     now,
		IPAddress:     ip,
		UserAgent:     userAgent,
		PolicyVersion: policyVersion,
		Metadata:      params.Metadata,
	}

	consentRow, err := s.registry.CreateConsent(ctx, map[string]any{
		"subjectId":  subjectID,
		"domainId":   domain["id"],
		"policyId":   policy["id"],
		"purposeIds": purposeIDs,
		"status":     "active",
		"isActive":   true,
		"metadata":   params.Metadata,
		"ipAddress":  ip,
		"userAgent":  userAgent,
		"history":    []consent.HistoryEntry{given},
	})
	if err != nil {
		return nil, err
	}
	if consentRow == nil {
		return nil, dErrors.New(dErrors.CodeDependency, "consent creation was rejected")
	}
	consentID, _ := consentRow["id"].(string)

	for _, purposeID := range purposeIDs {
		if _, err := s.registry.CreatePurposeJunction(ctx, map[string]any{
			"consentId": consentID,
			"purposeId": purposeID,
			"status":    "active",
		}); err != nil {
			return nil, err
		}
	}

	record, err := s.registry.CreateRecord(ctx, map[string]any{
		"subjectId":  subjectID,
		"consentId":  consentID,
		"actionType": "given",
		"details": map[string]any{
			"purposeIds":    purposeIDs,
			"policyVersion": policyVersion,
			"ipAddress":     ip,
			"userAgent":     userAgent,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Emit(ctx, audit.Event{
		EntityType: "consent",
		EntityID:   consentID,
		Action:     "create",
		SubjectID:  subjectID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Metadata:   map[string]any{"domain": params.Domain, "purposeIds": purposeIDs},
	}); err != nil {
		return nil, err
	}

	s.metrics.IncConsentsCreated()
	s.metrics.ObserveOrchestration(time.Since(start))
	s.logger.InfoContext(ctx, "consent created",
		"consent_id", consentID,
		"subject_id", subjectID,
		"domain", params.Domain,
		"purposes", len(purposeIDs),
	)

	return &consent.CreateResult{
		Subject:    subject,
		Domain:     domain,
		Consent:    consentRow,
		Record:     record,
		PurposeIDs: purposeIDs,
	}, nil
}

// resolveSubject implements the identity branch table: explicit ids must
// resolve, conflicting ids fail, and no id at all produces an anonymous
// subject.
func (s *Service) resolveSubject(ctx context.Context, subjectID, externalID string) (map[string]any, error) {
	switch {
	case subjectID != "" && externalID != "":
		byID, err := s.registry.FindSubjectByID(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		if byID == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		byExternal, err := s.registry.FindSubjectByExternalID(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if byExternal == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "subject not found for external id")
		}
		if byID["id"] != byExternal["id"] {
			return nil, dErrors.New(dErrors.CodeConflict,
				"subject id and external id refer to different subjects")
		}
		return byID, nil

	case subjectID != "":
		subject, err := s.registry.FindSubjectByID(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		if subject == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		return subject, nil

	case externalID != "":
		subject, err := s.registry.FindSubjectByExternalID(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if subject == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "subject not found for external id")
		}
		return subject, nil

	default:
		subject, err := s.registry.CreateSubject(ctx, map[string]any{
			"isIdentified":     false,
			"identityProvider": "anonymous",
			"lastIpAddress":    requestcontext.ClientIP(ctx),
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to create anonymous subject")
		}
		if subject == nil {
			return nil, dErrors.New(dErrors.CodeDependency, "anonymous subject creation yielded no record")
		}
		return subject, nil
	}
}

// resolveDomain finds the domain by name, auto-creating it on first sight.
func (s *Service) resolveDomain(ctx context.Context, name string) (map[string]any, error) {
	domain, err := s.registry.FindDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if domain != nil {
		return domain, nil
	}

	// Auto-created domains start with no allowed origins; operators grant
	// origins explicitly after verifying ownership.
	domain, err = s.registry.CreateDomain(ctx, map[string]any{
		"name":       name,
		"isActive":   true,
		"isVerified": true,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to create domain "+name)
	}
	if domain == nil {
		return nil, dErrors.New(dErrors.CodeDependency, "domain creation yielded no record")
	}
	s.metrics.IncDomainsAutoCreated()
	return domain, nil
}

// resolvePurposes finds or creates a purpose per accepted preference,
// concurrently. Declined preferences are not linked and not recorded.
// Purpose ids come back in lexical code order so results are deterministic.
func (s *Service) resolvePurposes(ctx context.Context, preferences map[string]bool) ([]string, error) {
	codes := make([]string, 0, len(preferences))
	for code, accepted := range preferences {
		if accepted {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	ids := make([]string, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	for i, code := range codes {
		g.Go(func() error {
			id, err := s.findOrCreatePurpose(gctx, code)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) findOrCreatePurpose(ctx context.Context, code string) (string, error) {
	purpose, err := s.registry.FindPurposeByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if purpose == nil {
		purpose, err = s.registry.CreatePurpose(ctx, map[string]any{
			"code":         code,
			"name":         code,
			"description":  "Auto-created from consent preferences",
			"isEssential":  false,
			"dataCategory": "functional",
			"legalBasis":   "consent",
		})
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeDependency, "failed to create purpose "+code)
		}
		if purpose == nil {
			return "", dErrors.New(dErrors.CodeDependency, "purpose creation yielded no record")
		}
		s.metrics.IncPurposesAutoCreated()
	}
	id, _ := purpose["id"].(string)
	return id, nil
}

// resolvePolicy finds the active policy for a version, creating a bare one
// when the version has never been seen.
func (s *Service) resolvePolicy(ctx context.Context, version string) (map[string]any, error) {
	policy, err := s.registry.FindActivePolicyByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		return policy, nil
	}
	policy, err = s.registry.CreateConsentPolicy(ctx, map[string]any{
		"version":  version,
		"isActive": true,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to create consent policy "+version)
	}
	if policy == nil {
		return nil, dErrors.New(dErrors.CodeDependency, "policy creation yielded no record")
	}
	return policy, nil
}
