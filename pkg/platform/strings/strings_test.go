package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  analytics  ", "marketing "},
			expected: []string{"analytics", "marketing"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"analytics", "marketing", "analytics"},
			expected: []string{"analytics", "marketing"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"analytics", "", "  ", "marketing"},
			expected: []string{"analytics", "marketing"},
		},
		{
			name:     "preserves case",
			input:    []string{"Analytics", "analytics"},
			expected: []string{"Analytics", "analytics"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "lowercases and dedupes",
			input:    []string{"Example.COM", "example.com"},
			expected: []string{"example.com"},
		},
		{
			name:     "trims then lowercases",
			input:    []string{"  HTTPS://App.Example.com ", "https://app.example.com"},
			expected: []string{"https://app.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
