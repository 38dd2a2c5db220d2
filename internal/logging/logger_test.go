package logging

import (
	"strings"
	"testing"
)

func TestIsSecretField(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		expected bool
	}{
		{"password", "password", true},
		{"mixed case password", "Password", true},
		{"session cookie", "SessionCookie", true},
		{"raw cookie", "cookie", true},
		{"session token", "session_token", true},
		{"nested token", "api_token", true},
		{"credentials", "credentials", true},
		{"username", "username", false},
		{"host", "host", false},
		{"channel", "channel", false},
		{"plugin", "plugin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSecretField(tt.field)
			if got != tt.expected {
				t.Errorf("IsSecretField(%q) = %v, want %v", tt.field, got, tt.expected)
			}
		})
	}
}

func TestRedactValue(t *testing.T) {
	result := RedactValue("c29tZS1zZXNzaW9uLWNvb2tpZQ")
	if !strings.HasPrefix(result, "[REDACTED:sha256:") {
		t.Errorf("Expected [REDACTED:sha256:...], got %s", result)
	}
	if !strings.HasSuffix(result, "]") {
		t.Errorf("Expected trailing ], got %s", result)
	}

	// Same input should produce same hash
	result2 := RedactValue("c29tZS1zZXNzaW9uLWNvb2tpZQ")
	if result != result2 {
		t.Error("Same input should produce same redacted value")
	}

	// Different input should produce different hash
	result3 := RedactValue("otherCookie")
	if result == result3 {
		t.Error("Different inputs should produce different redacted values")
	}
}

func TestRedactEmptyValue(t *testing.T) {
	result := RedactValue("")
	if result != "" {
		t.Errorf("Empty input should return empty, got %q", result)
	}
}
