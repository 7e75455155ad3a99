// SPDX-License-Identifier: MIT

// cdictctl inspects and manipulates a cdict store from the command line.
//
// Usage:
//
//	cdictctl get [-backend B] [-target T] [-path P] [-raw] <id>
//	cdictctl show [-backend B] [-target T] [-plain] <id>
//	cdictctl store [-backend B] [-target T] <file.json>
//	cdictctl stats [-backend B] [-target T]
//	cdictctl verify [-target T] [-mode quick|full]
//	cdictctl version
//
// Backend and target default to CDICT_BACKEND and CDICT_TARGET.
//
// Exit codes:
//   - 0: success
//   - 1: operation failed (miss, corrupt store, backend error)
//   - 2: usage error
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "get":
		os.Exit(runGet(os.Args[2:]))
	case "show":
		os.Exit(runShow(os.Args[2:]))
	case "store":
		os.Exit(runStore(os.Args[2:]))
	case "stats":
		os.Exit(runStats(os.Args[2:]))
	case "verify":
		os.Exit(runVerify(os.Args[2:]))
	case "version":
		os.Exit(runVersion())
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  cdictctl get [-backend B] [-target T] [-path P] [-raw] <id>")
	_, _ = fmt.Fprintln(w, "  cdictctl show [-backend B] [-target T] [-plain] <id>")
	_, _ = fmt.Fprintln(w, "  cdictctl store [-backend B] [-target T] <file.json>")
	_, _ = fmt.Fprintln(w, "  cdictctl stats [-backend B] [-target T]")
	_, _ = fmt.Fprintln(w, "  cdictctl verify [-target T] [-mode quick|full]")
	_, _ = fmt.Fprintln(w, "  cdictctl version")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Subcommands:")
	_, _ = fmt.Fprintln(w, "  get      Fetch one entry and print its content")
	_, _ = fmt.Fprintln(w, "  show     Restore a dict and print its rendition")
	_, _ = fmt.Fprintln(w, "  store    Build a dict from a JSON object and persist it")
	_, _ = fmt.Fprintln(w, "  stats    Print store statistics")
	_, _ = fmt.Fprintln(w, "  verify   Check a sqlite store for corruption")
	_, _ = fmt.Fprintln(w, "  version  Print version and exit")
}
