// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "/api/v1/books", 201)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "POST")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/v1/books")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 201)
}

func TestRefreshAttributes(t *testing.T) {
	attrs := RefreshAttributes("announcements", 3, true)

	verifyAttribute(t, attrs, RefreshStoreKey, "announcements")
	verifyIntAttribute(t, attrs, RefreshPartitionsKey, 3)
	verifyBoolAttribute(t, attrs, RefreshFirstKey, true)
}

func TestSnapshotAttributes(t *testing.T) {
	attrs := SnapshotAttributes(42, 7)

	verifyIntAttribute(t, attrs, RefreshRecordsKey, 42)
	verifyInt64Attribute(t, attrs, RefreshGenerationKey, 7)
}

func TestUpsertAttributes(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		outcome string
		wantLen int
	}{
		{name: "all fields", id: "b-1", outcome: "merged", wantLen: 3},
		{name: "failed write", id: "", outcome: "failed", wantLen: 2},
		{name: "isbn only", wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := UpsertAttributes("978-0132350884", tt.id, tt.outcome)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyAttribute(t, attrs, BookISBNKey, "978-0132350884")
		})
	}
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "partial_fetch")

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "partial_fetch")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyInt64Attribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != expectedValue {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
