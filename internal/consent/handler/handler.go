// Package handler exposes the consent HTTP endpoints. It decodes requests,
// delegates to the consent service, and renders results; business rules stay
// out of this layer.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"consentry/internal/consent"
	"consentry/internal/platform/metrics"
	"consentry/internal/platform/middleware"
	"consentry/internal/transport/http/shared"
	dErrors "consentry/pkg/domain-errors"
	pkgstrings "consentry/pkg/platform/strings"
	"consentry/pkg/requestcontext"
)

// Service defines the interface for consent operations.
type Service interface {
	CreateConsentWithSubject(ctx context.Context, params consent.CreateParams) (*consent.CreateResult, error)
	WithdrawConsent(ctx context.Context, params consent.WithdrawParams) (*consent.WithdrawResult, error)
	VerifyConsent(ctx context.Context, params consent.VerifyParams) (*consent.VerifyResult, error)
	ListConsents(ctx context.Context, subjectID string) ([]map[string]any, error)
}

// Handler handles consent-related endpoints.
type Handler struct {
	logger       *slog.Logger
	consent      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new consent Handler.
func New(
	consent Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		consent:      consent,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the consent routes with the chi router. Giving,
// withdrawing, and verifying consent are public by design: the consent
// banner runs before any authentication exists. Listing a subject's consents
// exposes stored evidence and requires a token.
func (h *Handler) Register(r chi.Router) {
	consentRouter := chi.NewRouter()
	consentRouter.Use(middleware.Recovery(h.logger))
	consentRouter.Use(middleware.RequestID)
	consentRouter.Use(middleware.RequestTime)
	consentRouter.Use(middleware.ClientMetadata)
	consentRouter.Use(middleware.DeviceInfo)
	consentRouter.Use(middleware.Logger(h.logger))
	consentRouter.Use(middleware.Timeout(30 * time.Second))
	consentRouter.Use(middleware.ContentTypeJSON)

	consentRouter.Post("/consent", h.handleCreateConsent)
	consentRouter.Post("/consent/withdraw", h.handleWithdrawConsent)
	consentRouter.Get("/consent/verify", h.handleVerifyConsent)

	consentRouter.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		authed.Get("/consent", h.handleListConsents)
	})

	r.Mount("/", consentRouter)
}

type createConsentRequest struct {
	SubjectID         string          `json:"subjectId"`
	ExternalSubjectID string          `json:"externalSubjectId"`
	Domain            string          `json:"domain"`
	Preferences       map[string]bool `json:"preferences"`
	PolicyVersion     string          `json:"policyVersion"`
	Metadata          map[string]any  `json:"metadata"`
}

type createConsentResponse struct {
	Consent    map[string]any `json:"consent"`
	Subject    map[string]any `json:"subject"`
	Domain     map[string]any `json:"domain"`
	Record     map[string]any `json:"record"`
	PurposeIDs []string       `json:"purposeIds"`
}

func (h *Handler) handleCreateConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req createConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create consent request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.consent.CreateConsentWithSubject(ctx, consent.CreateParams{
		SubjectID:         req.SubjectID,
		ExternalSubjectID: req.ExternalSubjectID,
		Domain:            req.Domain,
		Preferences:       req.Preferences,
		PolicyVersion:     req.PolicyVersion,
		Metadata:          withDevice(ctx, req.Metadata),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create consent", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, createConsentResponse{
		Consent:    result.Consent,
		Subject:    result.Subject,
		Domain:     result.Domain,
		Record:     result.Record,
		PurposeIDs: result.PurposeIDs,
	})
}

type withdrawConsentRequest struct {
	ConsentID string         `json:"consentId"`
	SubjectID string         `json:"subjectId"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata"`
}

type withdrawConsentResponse struct {
	Consent            map[string]any `json:"consent"`
	Withdrawal         map[string]any `json:"withdrawal"`
	JunctionsWithdrawn int            `json:"junctionsWithdrawn"`
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req withdrawConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid withdraw consent request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	actor := "subject"
	if authed := requestcontext.SubjectID(ctx); authed != "" && authed != req.SubjectID {
		actor = "operator"
	}

	result, err := h.consent.WithdrawConsent(ctx, consent.WithdrawParams{
		ConsentID: req.ConsentID,
		SubjectID: req.SubjectID,
		Reason:    req.Reason,
		Actor:     actor,
		Metadata:  withDevice(ctx, req.Metadata),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to withdraw consent", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, withdrawConsentResponse{
		Consent:            result.Consent,
		Withdrawal:         result.Withdrawal,
		JunctionsWithdrawn: result.JunctionsWithdrawn,
	})
}

type verifyConsentResponse struct {
	Verified   bool      `json:"verified"`
	Missing    []string  `json:"missing,omitempty"`
	ConsentIDs []string  `json:"consentIds,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

func (h *Handler) handleVerifyConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var purposes []string
	for _, raw := range query["purposes"] {
		purposes = append(purposes, strings.Split(raw, ",")...)
	}
	purposes = pkgstrings.DedupeAndTrim(purposes)

	result, err := h.consent.VerifyConsent(ctx, consent.VerifyParams{
		SubjectID: query.Get("subjectId"),
		Domain:    query.Get("domain"),
		Purposes:  purposes,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to verify consent", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, verifyConsentResponse{
		Verified:   result.Verified,
		Missing:    result.Missing,
		ConsentIDs: result.ConsentIDs,
		CheckedAt:  result.CheckedAt,
	})
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// RequireAuth already placed the subject id in the context.
	subjectID := requestcontext.SubjectID(ctx)
	if subjectID == "" {
		h.logger.ErrorContext(ctx, "subject id missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	rows, err := h.consent.ListConsents(ctx, subjectID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list consents", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{"consents": rows})
}

// writeServiceError logs once and renders the envelope. Client-caused codes
// log at warn; everything else is an error worth paging on.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := requestcontext.RequestID(ctx)
	code := dErrors.CodeOf(err)
	if code.HTTPStatus() < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"code", string(code),
			"error", err.Error(),
		)
	} else {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"code", string(code),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}

// withDevice folds the parsed device summary into the caller metadata so
// consent evidence records what the consent was given from.
func withDevice(ctx context.Context, metadata map[string]any) map[string]any {
	device := middleware.GetDevice(ctx)
	summary := device.Summary()
	if summary == "" {
		return metadata
	}
	if metadata == nil {
		metadata = make(map[string]any, 1)
	}
	if _, exists := metadata["device"]; !exists {
		metadata["device"] = summary
	}
	return metadata
}
