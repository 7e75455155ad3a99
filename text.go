// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/davips/cdict/hosh"
)

// displayLimit caps how many runes of one value the rendition shows.
const displayLimit = 200

// String renders the dict as indented JSON-shaped text: fields in insertion
// order, then _id and _ids. Unevaluated fields show as "λ(deps)" instead of
// triggering computation; oversized values are clipped between « and ».
func (d *Dict) String() string {
	var b strings.Builder
	d.writeText(&b, false, 1)
	return b.String()
}

// Text is String with ids colored for terminals (hosh.Decolorize recovers
// the plain form).
func (d *Dict) Text() string {
	var b strings.Builder
	d.writeText(&b, true, 1)
	return b.String()
}

// Show writes the colored rendition and a newline to w.
func (d *Dict) Show(w io.Writer) error {
	_, err := fmt.Fprintln(w, d.Text())
	return err
}

func (d *Dict) writeText(b *strings.Builder, colored bool, depth int) {
	ind := strings.Repeat("    ", depth)
	closing := strings.Repeat("    ", depth-1)

	b.WriteString("{\n")
	for _, k := range d.keys {
		key, _ := json.Marshal(k)
		fmt.Fprintf(b, "%s%s: ", ind, key)
		writeValueText(b, d.values[k], colored, depth)
		b.WriteString(",\n")
	}

	fmt.Fprintf(b, "%s\"_id\": ", ind)
	writeID(b, d.h, colored)
	b.WriteString(",\n")

	fmt.Fprintf(b, "%s\"_ids\": ", ind)
	if len(d.keys) == 0 {
		b.WriteString("{}")
	} else {
		b.WriteString("{\n")
		inner := strings.Repeat("    ", depth+1)
		for i, k := range d.keys {
			key, _ := json.Marshal(k)
			fmt.Fprintf(b, "%s%s: ", inner, key)
			writeID(b, d.values[k].Hosh(), colored)
			if i < len(d.keys)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "%s}", ind)
	}
	b.WriteString("\n")
	b.WriteString(closing)
	b.WriteString("}")
}

// writeValueText renders one field. Pending values render their λ form;
// evaluated ones render their memoized content, so this never computes.
func writeValueText(b *strings.Builder, v Value, colored bool, depth int) {
	if !v.Evaluated() {
		enc, _ := json.Marshal(v.String())
		b.Write(enc)
		return
	}
	content, err := v.Resolve(context.Background())
	if err != nil {
		enc, _ := json.Marshal(v.String())
		b.Write(enc)
		return
	}
	if nd, ok := content.(*Dict); ok {
		nd.writeText(b, colored, depth+1)
		return
	}
	enc, err := json.Marshal(content)
	if err != nil {
		enc, _ = json.Marshal(fmt.Sprint(content))
	}
	s := string(enc)
	if utf8.RuneCountInString(s) > displayLimit {
		runes := []rune(s)
		enc, _ = json.Marshal("«" + string(runes[:displayLimit]) + "…»")
		s = string(enc)
	}
	b.WriteString(s)
}

func writeID(b *strings.Builder, h hosh.Hosh, colored bool) {
	b.WriteByte('"')
	if colored {
		b.WriteString(h.Colored())
	} else {
		b.WriteString(h.ID())
	}
	b.WriteByte('"')
}
