package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDevice struct{}

// Device summarizes the client platform parsed from the User-Agent header.
// It rides along consent evidence so a withdrawal dispute can name the
// device class the consent was given from.
type Device struct {
	Browser        string
	BrowserVersion string
	OS             string
	Mobile         bool
	Bot            bool
}

// Summary renders the device in the short human-readable form stored in
// consent metadata.
func (d Device) Summary() string {
	if d.Browser == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.Browser)
	if d.BrowserVersion != "" {
		b.WriteString(" ")
		b.WriteString(d.BrowserVersion)
	}
	if d.OS != "" {
		b.WriteString(" on ")
		b.WriteString(d.OS)
	}
	return b.String()
}

// DeviceInfo parses the User-Agent once per request and stores the result in
// the context. Apply after ClientMetadata.
func DeviceInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithDevice(r.Context(), ParseDevice(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseDevice classifies a raw User-Agent value.
func ParseDevice(raw string) Device {
	if raw == "" {
		return Device{}
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	return Device{
		Browser:        browser,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}

// GetDevice retrieves the parsed device from the context.
func GetDevice(ctx context.Context) Device {
	if d, ok := ctx.Value(contextKeyDevice{}).(Device); ok {
		return d
	}
	return Device{}
}

// WithDevice injects a parsed device into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithDevice(ctx context.Context, d Device) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, d)
}
