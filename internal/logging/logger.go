// Package logging provides structured logging with credential redaction.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Known secret field names that must never appear verbatim in log output.
// The client handles login passwords and the server session cookie.
var secretFieldNames = []string{
	"password",
	"cookie",
	"session_token",
	"sessiontoken",
	"token",
	"secret",
	"credentials",
}

// NewLogger creates a console logger for interactive CLI use.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "ravenctl").
		Logger()
}

// NewJSONLogger creates a JSON-formatted logger for file output or machine
// consumption.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "ravenctl").
		Logger()
}

// IsSecretField checks if a field name is a known secret field that should
// be redacted before logging.
func IsSecretField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, secret := range secretFieldNames {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// RedactValue replaces a secret value with a placeholder carrying a short
// hash prefix so two redacted values can still be compared in logs.
func RedactValue(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return "[REDACTED:sha256:" + hex.EncodeToString(h[:])[:8] + "]"
}
