package service

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentry/internal/consent"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

// VerifyConsent answers whether a subject holds active consent for every
// requested purpose on a domain. Withdrawn and expired consents never
// count; a purpose is covered when any active consent on the domain links
// it through an active junction.
func (s *Service) VerifyConsent(ctx context.Context, params consent.VerifyParams) (*consent.VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "consent.verify",
		trace.WithAttributes(
			attribute.String("consent.subject_id", params.SubjectID),
			attribute.String("consent.domain", params.Domain),
		))
	defer span.End()

	if params.SubjectID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subjectId is required")
	}
	if params.Domain == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "domain is required")
	}
	if len(params.Purposes) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one purpose is required")
	}

	domain, err := s.registry.FindDomainByName(ctx, params.Domain)
	if err != nil {
		return nil, err
	}
	result := &consent.VerifyResult{CheckedAt: requestcontext.Now(ctx)}
	if domain == nil {
		result.Missing = append(result.Missing, params.Purposes...)
		sort.Strings(result.Missing)
		return result, nil
	}
	domainID, _ := domain["id"].(string)

	active, err := s.registry.FindActiveConsents(ctx, params.SubjectID, domainID)
	if err != nil {
		return nil, err
	}

	granted := make(map[string]bool)
	for _, row := range active {
		if expiredAt(row["validUntil"], result.CheckedAt) {
			continue
		}
		consentID, _ := row["id"].(string)
		junctions, err := s.registry.FindJunctionsByConsent(ctx, consentID)
		if err != nil {
			return nil, err
		}
		covers := false
		for _, j := range junctions {
			if status, _ := j["status"].(string); status != "active" {
				continue
			}
			purposeID, _ := j["purposeId"].(string)
			if purposeID == "" {
				continue
			}
			code, err := s.purposeCode(ctx, purposeID)
			if err != nil {
				return nil, err
			}
			if code != "" {
				granted[code] = true
				covers = true
			}
		}
		if covers {
			result.ConsentIDs = append(result.ConsentIDs, consentID)
		}
	}

	for _, code := range params.Purposes {
		if !granted[code] {
			result.Missing = append(result.Missing, code)
		}
	}
	sort.Strings(result.Missing)
	result.Verified = len(result.Missing) == 0
	return result, nil
}

// expiredAt reports whether a validUntil value lies at or before now.
// Consents without an expiry never expire. Adapters yield dates as time.Time
// or as RFC 3339 strings after a cache round trip.
func expiredAt(value any, now time.Time) bool {
	switch v := value.(type) {
	case time.Time:
		return !v.IsZero() && !v.After(now)
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return err == nil && !t.After(now)
	}
	return false
}

func (s *Service) purposeCode(ctx context.Context, purposeID string) (string, error) {
	purposes, err := s.registry.FindPurposesByIDs(ctx, []string{purposeID})
	if err != nil {
		return "", err
	}
	if len(purposes) == 0 {
		return "", nil
	}
	code, _ := purposes[0]["code"].(string)
	return code, nil
}

// ListConsents returns every consent a subject holds, newest activity last
// in whatever order the adapter yields. Hidden and unreturned fields are
// already stripped by the entity layer.
func (s *Service) ListConsents(ctx context.Context, subjectID string) ([]map[string]any, error) {
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subjectId is required")
	}
	rows, err := s.registry.FindConsentsBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}
