package schema

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	pkgstrings "consentry/pkg/platform/strings"
)

// normalizeOrigins canonicalizes an origin list: trimmed, lowercased,
// deduplicated. Accepts []string or a JSON-decoded []any.
func normalizeOrigins(_ context.Context, value any) (any, error) {
	switch v := value.(type) {
	case []string:
		return pkgstrings.DedupeAndTrimLower(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return pkgstrings.DedupeAndTrimLower(out), nil
	}
	return value, nil
}

// digestValue replaces a string with its hex-encoded SHA3-256 digest.
// Network identifiers kept for evidence are stored as digests, never in
// cleartext, so two events from the same address stay correlatable.
func digestValue(_ context.Context, value any) (any, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return value, nil
	}
	sum := sha3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}
