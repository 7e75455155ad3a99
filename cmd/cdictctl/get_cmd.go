// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/cache/pack"
	"github.com/davips/cdict/hosh"
	"github.com/davips/cdict/internal/config"
	"github.com/davips/cdict/internal/log"
)

// storeFlags adds the flags shared by every subcommand that opens a store.
func storeFlags(fs *flag.FlagSet) (backend, target *string) {
	backend = fs.String("backend", config.ParseString("CDICT_BACKEND", "file"), "store backend")
	target = fs.String("target", config.ParseString("CDICT_TARGET", ""), "store location")
	return backend, target
}

func openStore(backend, target string) (cache.Cache, error) {
	logger := log.WithComponent("cli")
	if backend == "http" {
		return cache.NewHTTP(cache.HTTPConfig{
			BaseURL: target,
			Token:   os.Getenv("CDICT_API_TOKEN"),
		}, logger)
	}
	return cache.Open(backend, target, logger)
}

func runGet(args []string) int {
	fs := flag.NewFlagSet("cdictctl get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	backend, target := storeFlags(fs)
	path := fs.String("path", "", "JSON path to extract from the content")
	raw := fs.Bool("raw", false, "print the stored blob without decoding")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id := fs.Arg(0)
	if !hosh.IsID(id) {
		fmt.Fprintln(os.Stderr, "Error: a 40-digit id is required")
		return 2
	}

	store, err := openStore(*backend, *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	blob, found, err := store.Get(context.Background(), id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Error: %s not in store\n", id)
		return 1
	}

	if *raw {
		_, _ = os.Stdout.Write(blob)
		return 0
	}

	v, err := pack.Unpack(blob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if b, ok := v.([]byte); ok && *path == "" {
		_, _ = os.Stdout.Write(b)
		return 0
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *path != "" {
		res := gjson.GetBytes(out, *path)
		if !res.Exists() {
			fmt.Fprintf(os.Stderr, "Error: path %q not found in content\n", *path)
			return 1
		}
		fmt.Println(res.String())
		return 0
	}

	fmt.Println(string(out))
	return 0
}
