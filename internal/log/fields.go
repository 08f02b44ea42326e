// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"
	FieldSubscriberID  = "subscriber_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Scene / stream fields
	FieldScene       = "scene"
	FieldPrevScene   = "previous_scene"
	FieldServiceName = "service"
	FieldLifecycle   = "lifecycle"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldStreamPort = "stream_port"
)
