// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/internal/version"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("cdictctl stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	backend, target := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Against a daemon, read the server-side counters; a fresh local
	// handle would only see its own traffic.
	if *backend == "http" {
		return printDaemonStats(*target)
	}

	store, err := openStore(*backend, *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	st := store.Stats()
	fmt.Printf("backend:  %s\n", *backend)
	if st.CurrentSize >= 0 {
		fmt.Printf("entries:  %s\n", humanize.Comma(int64(st.CurrentSize)))
	} else {
		fmt.Printf("entries:  unknown\n")
	}
	return 0
}

func printDaemonStats(baseURL string) int {
	url := strings.TrimSuffix(baseURL, "/") + "/api/v1/stats"
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: daemon returned %s\n", resp.Status)
		return 1
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("cdictctl verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	target := fs.String("target", os.Getenv("CDICT_TARGET"), "sqlite database file")
	mode := fs.String("mode", "quick", "verification mode: quick or full")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *target == "" {
		fmt.Fprintln(os.Stderr, "Error: -target is required")
		return 2
	}
	m := strings.ToLower(strings.TrimSpace(*mode))
	if m != "quick" && m != "full" {
		fmt.Fprintf(os.Stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", *mode)
		return 2
	}

	issues, err := cache.VerifyIntegrity(*target, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "Corruption detected:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		return 1
	}
	fmt.Println("ok")
	return 0
}

func runVersion() int {
	fmt.Printf("cdictctl %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
	return 0
}
