// SPDX-License-Identifier: MIT

package cdict

import "errors"

var (
	// ErrReservedField is returned when a dict is built with a field name
	// the library generates itself (_id, _ids).
	ErrReservedField = errors.New("cdict: field name is reserved")
	// ErrBadField is returned for field names that cannot name anything,
	// such as the empty string.
	ErrBadField = errors.New("cdict: invalid field name")
	// ErrFieldNotFound is returned by accessors for unknown field names.
	ErrFieldNotFound = errors.New("cdict: field not found")
	// ErrMissingField is returned when applying a function whose input is
	// neither a dict field, a choice, nor a default.
	ErrMissingField = errors.New("cdict: input field missing")
	// ErrBadSchema is returned for malformed "inputs:outputs" schemas.
	ErrBadSchema = errors.New("cdict: malformed schema")
	// ErrArityMismatch is returned when a function's signature does not
	// line up with its schema.
	ErrArityMismatch = errors.New("cdict: function arity mismatch")
	// ErrLengthMismatch is returned when starred inputs of one application
	// hold lists of different lengths.
	ErrLengthMismatch = errors.New("cdict: starred inputs differ in length")
	// ErrNotCached is returned when a value restored from a cache id
	// cannot be found in any attached cache.
	ErrNotCached = errors.New("cdict: entry not found in any cache")
	// ErrBadSkeleton is returned when a blob restored as a dict does not
	// hold a well-formed skeleton.
	ErrBadSkeleton = errors.New("cdict: malformed dict skeleton")
)
