// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldID        = "id"
	FieldDictID    = "dict_id"
	FieldField     = "field"
	FieldRequestID = "request_id"

	// Process fields
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldOp        = "op"

	// Storage fields
	FieldBackend = "backend"
	FieldCache   = "cache"
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
