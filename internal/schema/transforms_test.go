package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainAllowedOriginsNormalized(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	parsed, err := ParseInput(context.Background(), map[string]any{
		"name": "example.com",
		"allowedOrigins": []string{
			" https://Example.com ",
			"https://example.com",
			"https://shop.example.com",
		},
	}, set[EntityDomain], ActionCreate)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com", "https://shop.example.com"},
		parsed["allowedOrigins"])
}

func TestDomainAllowedOriginsNormalizedFromDecodedJSON(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	parsed, err := ParseInput(context.Background(), map[string]any{
		"name":           "example.com",
		"allowedOrigins": []any{"HTTPS://EXAMPLE.COM", "https://example.com"},
	}, set[EntityDomain], ActionCreate)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com"}, parsed["allowedOrigins"])
}

func TestSubjectLastIPAddressStoredAsDigest(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	parsed, err := ParseInput(context.Background(), map[string]any{
		"lastIpAddress": "203.0.113.7",
	}, set[EntitySubject], ActionCreate)
	require.NoError(t, err)

	digest, ok := parsed["lastIpAddress"].(string)
	require.True(t, ok)
	assert.Len(t, digest, 64)
	assert.NotEqual(t, "203.0.113.7", digest)

	again, err := ParseInput(context.Background(), map[string]any{
		"lastIpAddress": "203.0.113.7",
	}, set[EntitySubject], ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, digest, again["lastIpAddress"], "same address must stay correlatable")
}

func TestSubjectLastIPAddressEmptyPassesThrough(t *testing.T) {
	set := BuildSchema(nil, Options{}, discardLogger())

	parsed, err := ParseInput(context.Background(), map[string]any{
		"lastIpAddress": "",
	}, set[EntitySubject], ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, "", parsed["lastIpAddress"])
}
