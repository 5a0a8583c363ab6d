// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
		{"with port", "http://example.com:8080", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Range(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"min edge", 1, false},
		{"max edge", 10, false},
		{"below", 0, true},
		{"above", 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Range("r", tt.value, 1, 10)
			if tt.wantErr == v.IsValid() {
				t.Errorf("Range(%d) valid=%v, wantErr=%v", tt.value, v.IsValid(), tt.wantErr)
			}
		})
	}
}

func TestValidator_Scalars(t *testing.T) {
	v := New()
	v.NotEmpty("a", "  ")
	v.OneOf("b", "redis", []string{"memory", "file"})
	v.Positive("c", 0)
	v.NonNegative("d", -1)
	v.MinDuration("e", 500*time.Millisecond, time.Second)
	v.Fraction("f", 1.5)
	v.LogLevel("g", "verbose")

	if got := len(v.Errors()); got != 7 {
		t.Fatalf("expected 7 errors, got %d: %v", got, v.Err())
	}

	ok := New()
	ok.NotEmpty("a", "x")
	ok.OneOf("b", "file", []string{"memory", "file"})
	ok.Positive("c", 1)
	ok.NonNegative("d", 0)
	ok.MinDuration("e", time.Second, time.Second)
	ok.Fraction("f", 0)
	ok.LogLevel("g", "WARN")
	if err := ok.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidationError_Aggregates(t *testing.T) {
	v := New()
	v.NotEmpty("first", "")
	v.Positive("second", -3)

	err := v.Err()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(verr.Errors()))
	}
	msg := err.Error()
	if !strings.Contains(msg, "first") || !strings.Contains(msg, "second") || !strings.Contains(msg, "; ") {
		t.Errorf("unexpected message %q", msg)
	}

	// Err returns a copy.
	v.NotEmpty("third", "")
	if len(verr.Errors()) != 2 {
		t.Errorf("ValidationError must not observe later failures")
	}
}

func TestValidator_NilWhenValid(t *testing.T) {
	if err := New().Err(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
