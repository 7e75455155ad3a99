// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/davips/cdict"
	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/hosh"
)

func runShow(args []string) int {
	fs := flag.NewFlagSet("cdictctl show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	backend, target := storeFlags(fs)
	plain := fs.Bool("plain", false, "print without colors")
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

	ctx := context.Background()
	d, err := cdict.FromCache(ctx, id, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Pull in whatever content the store still holds; fields whose blobs
	// expired keep their lazy placeholder in the rendition.
	for _, k := range d.Keys() {
		v, ok := d.Peek(k)
		if !ok {
			continue
		}
		if _, err := v.Resolve(ctx); err != nil && !errors.Is(err, cdict.ErrNotCached) {
			fmt.Fprintf(os.Stderr, "Warning: field %s: %v\n", k, err)
		}
	}

	if *plain {
		fmt.Println(d.String())
		return 0
	}
	if err := d.Show(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runStore(args []string) int {
	fs := flag.NewFlagSet("cdictctl store", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	backend, target := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	file := fs.Arg(0)
	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: a JSON file is required")
		return 2
	}

	data, err := os.ReadFile(file) // #nosec G304 -- path is operator-provided
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s is not a JSON object: %v\n", file, err)
		return 1
	}

	d, err := cdict.New(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store, err := openStore(*backend, *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	d, err = d.Cached(context.Background(), cache.Eager(store))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println(d.ID())
	return 0
}
