// SPDX-License-Identifier: MIT

// Package version carries build identification stamped in via ldflags.
package version

var (
	// Version is the current release, overridden by the build system.
	Version = "v0.9.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
