// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Refresh attributes
	RefreshStoreKey      = "refresh.store"
	RefreshPartitionsKey = "refresh.partitions"
	RefreshRecordsKey    = "refresh.records"
	RefreshGenerationKey = "refresh.generation"
	RefreshFirstKey      = "refresh.first"

	// Catalog attributes
	BookISBNKey      = "book.isbn"
	BookIDKey        = "book.id"
	UpsertOutcomeKey = "upsert.outcome"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RefreshAttributes describes a refresh attempt of one store.
func RefreshAttributes(store string, partitions int, first bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RefreshStoreKey, store),
		attribute.Int(RefreshPartitionsKey, partitions),
		attribute.Bool(RefreshFirstKey, first),
	}
}

// SnapshotAttributes describes a published snapshot.
func SnapshotAttributes(records int, generation uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RefreshRecordsKey, records),
		attribute.Int64(RefreshGenerationKey, int64(generation)),
	}
}

// UpsertAttributes describes a book upsert.
func UpsertAttributes(isbn, id, outcome string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.String(BookISBNKey, isbn))
	if id != "" {
		attrs = append(attrs, attribute.String(BookIDKey, id))
	}
	if outcome != "" {
		attrs = append(attrs, attribute.String(UpsertOutcomeKey, outcome))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
