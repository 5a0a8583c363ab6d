// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldBookID        = "book_id"
	FieldISBN          = "isbn"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStore     = "store"
	FieldPartition = "partition"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldPhase    = "phase"

	// Timing fields
	FieldDurationMS = "duration_ms"
	FieldInterval   = "interval"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
