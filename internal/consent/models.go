// Package consent holds the domain types for consent capture, withdrawal,
// and verification. The orchestration itself lives in consent/service.
package consent

import "time"

// CreateParams describes one consent-giving event arriving from a banner or
// API caller.
type CreateParams struct {
	// SubjectID and ExternalSubjectID identify the subject. Both empty means
	// an anonymous subject is created; both set means they must resolve to
	// the same subject.
	SubjectID         string
	ExternalSubjectID string
	// Domain is the site or application name, auto-created on first sight.
	Domain string
	// Preferences maps purpose codes to the subject's decision. Only true
	// entries are linked; false entries are not recorded at all.
	Preferences map[string]bool
	// PolicyVersion names the consent policy the preferences were given
	// under; empty falls back to the configured default.
	PolicyVersion string
	Metadata      map[string]any
}

// CreateResult is the materialized consent event.
type CreateResult struct {
	Subject    map[string]any
	Domain     map[string]any
	Consent    map[string]any
	Record     map[string]any
	PurposeIDs []string
}

// WithdrawParams identifies a consent to withdraw on behalf of its subject.
type WithdrawParams struct {
	ConsentID string
	SubjectID string
	Reason    string
	// Actor distinguishes subject-initiated withdrawal from admin action.
	Actor    string
	Metadata map[string]any
}

// WithdrawResult reports the state after withdrawal.
type WithdrawResult struct {
	Consent            map[string]any
	Withdrawal         map[string]any
	Record             map[string]any
	JunctionsWithdrawn int
}

// VerifyParams asks whether a subject currently consents to a set of
// purposes on a domain.
type VerifyParams struct {
	SubjectID string
	Domain    string
	Purposes  []string
}

// VerifyResult answers a verification query. When Verified is false, Missing
// lists the purpose codes without active consent.
type VerifyResult struct {
	Verified   bool
	Missing    []string
	ConsentIDs []string
	CheckedAt  time.Time
}

// HistoryEntry is one event embedded in a consent row's history field.
type HistoryEntry struct {
	Type          string         `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	IPAddress     string         `json:"ipAddress,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	PolicyVersion string         `json:"policyVersion,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
