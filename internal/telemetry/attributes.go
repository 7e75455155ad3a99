// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the server.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Entry attributes
	EntryIDKey    = "entry.id"
	EntryOpKey    = "entry.op"
	EntryBytesKey = "entry.bytes"

	// Store attributes
	StoreBackendKey = "store.backend"

	// Dict attributes
	DictIDKey     = "dict.id"
	DictFieldsKey = "dict.fields"

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

// EntryAttributes creates entry operation span attributes.
func EntryAttributes(op, id string, bytes int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(EntryOpKey, op),
		attribute.String(EntryIDKey, id),
	}
	if bytes > 0 {
		attrs = append(attrs, attribute.Int(EntryBytesKey, bytes))
	}
	return attrs
}

// DictAttributes creates dict restoration span attributes.
func DictAttributes(id string, fields int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DictIDKey, id),
		attribute.Int(DictFieldsKey, fields),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
