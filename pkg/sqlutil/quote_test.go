package sqlutil

import (
	"testing"
)

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no quotes",
			input:    "users",
			expected: "users",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "single embedded quote",
			input:    "O'Brien",
			expected: "O''Brien",
		},
		{
			name:     "multiple quotes",
			input:    "it's a 'test'",
			expected: "it''s a ''test''",
		},
		{
			name:     "only quotes",
			input:    "'''",
			expected: "''''''",
		},
		{
			name:     "already doubled quote doubles again",
			input:    "a''b",
			expected: "a''''b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteLiteral(tt.input); got != tt.expected {
				t.Errorf("QuoteLiteral(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCheckLiteral(t *testing.T) {
	tests := []struct {
		name            string
		value           string
		expectInjection bool
	}{
		{
			name:            "plain table name",
			value:           "orders",
			expectInjection: false,
		},
		{
			name:            "name with apostrophe",
			value:           "o'brien_customers",
			expectInjection: false,
		},
		{
			name:            "classic drop table",
			value:           "'; DROP TABLE users--",
			expectInjection: true,
		},
		{
			name:            "union select",
			value:           "x' UNION SELECT password FROM pg_shadow--",
			expectInjection: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isSQLi, fingerprint := CheckLiteral(tt.value)
			if isSQLi != tt.expectInjection {
				t.Errorf("CheckLiteral(%q) = %v, want %v", tt.value, isSQLi, tt.expectInjection)
			}
			if tt.expectInjection && fingerprint == "" {
				t.Errorf("CheckLiteral(%q) returned no fingerprint for a detected pattern", tt.value)
			}
		})
	}
}
