package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentry/internal/audit"
	"consentry/internal/consent"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

// WithdrawConsent transitions an active consent to withdrawn, closes its
// purpose junctions, and writes the withdrawal, record, and audit rows.
// Withdrawing an already-withdrawn consent is a conflict, not a no-op, so
// duplicate withdrawal requests surface to the caller.
func (s *Service) WithdrawConsent(ctx context.Context, params consent.WithdrawParams) (*consent.WithdrawResult, error) {
	ctx, span := s.tracer.Start(ctx, "consent.withdraw",
		trace.WithAttributes(attribute.String("consent.id", params.ConsentID)))
	defer span.End()

	if params.ConsentID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "consentId is required")
	}

	row, err := s.registry.FindConsentByID(ctx, params.ConsentID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent not found")
	}
	if params.SubjectID != "" && row["subjectId"] != params.SubjectID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "consent does not belong to the subject")
	}
	if status, _ := row["status"].(string); status == "withdrawn" {
		return nil, dErrors.New(dErrors.CodeConflict, "consent is already withdrawn")
	}

	now := requestcontext.Now(ctx)
	ip := requestcontext.ClientIP(ctx)
	userAgent := requestcontext.UserAgent(ctx)
	subjectID, _ := row["subjectId"].(string)

	entry := consent.HistoryEntry{
		Type:      "withdrawn",
		Timestamp: now,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  params.Metadata,
	}
	history := appendHistory(row["history"], entry)

	updated, err := s.registry.UpdateConsent(ctx, params.ConsentID, map[string]any{
		"status":      "withdrawn",
		"isActive":    false,
		"withdrawnAt": now,
		"history":     history,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent disappeared during withdrawal")
	}

	junctions, err := s.registry.WithdrawJunctions(ctx, params.ConsentID)
	if err != nil {
		return nil, err
	}

	withdrawal, err := s.registry.CreateWithdrawal(ctx, map[string]any{
		"consentId": params.ConsentID,
		"subjectId": subjectID,
		"reason":    params.Reason,
		"actor":     params.Actor,
		"ipAddress": ip,
		"userAgent": userAgent,
		"metadata":  params.Metadata,
	})
	if err != nil {
		return nil, err
	}

	record, err := s.registry.CreateRecord(ctx, map[string]any{
		"subjectId":  subjectID,
		"consentId":  params.ConsentID,
		"actionType": "withdrawn",
		"details": map[string]any{
			"reason":    params.Reason,
			"actor":     params.Actor,
			"ipAddress": ip,
			"userAgent": userAgent,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Emit(ctx, audit.Event{
		EntityType: "consent",
		EntityID:   params.ConsentID,
		Action:     "withdraw",
		SubjectID:  subjectID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Metadata:   map[string]any{"reason": params.Reason, "junctions": junctions},
	}); err != nil {
		return nil, err
	}

	s.metrics.IncConsentsWithdrawn()
	s.logger.InfoContext(ctx, "consent withdrawn",
		"consent_id", params.ConsentID,
		"subject_id", subjectID,
		"junctions", junctions,
	)

	return &consent.WithdrawResult{
		Consent:            updated,
		Withdrawal:         withdrawal,
		Record:             record,
		JunctionsWithdrawn: junctions,
	}, nil
}

// appendHistory tolerates the shapes history takes after a storage round
// trip: the typed slice on fresh rows, []any after JSON decoding, or nil.
func appendHistory(existing any, entry consent.HistoryEntry) []any {
	var out []any
	switch h := existing.(type) {
	case []consent.HistoryEntry:
		for _, e := range h {
			out = append(out, e)
		}
	case []any:
		out = append(out, h...)
	}
	return append(out, entry)
}
