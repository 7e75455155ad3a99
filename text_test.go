// SPDX-License-Identifier: MIT

package cdict

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davips/cdict/hosh"
)

func TestString_PendingAndEvaluated(t *testing.T) {
	inc := func(x int) int { return x + 1 }
	l, err := NewLet(inc, "x:y", WithID("text-inc"))
	require.NoError(t, err)

	d, err := New(map[string]any{"x": 3})
	require.NoError(t, err)
	d, err = d.Apply(l)
	require.NoError(t, err)

	s := d.String()
	assert.Contains(t, s, `"x": 3`)
	assert.Contains(t, s, `"y": "λ(x)"`)
	assert.Contains(t, s, `"_id": "`+d.ID()+`"`)
	assert.Contains(t, s, `"_ids"`)

	// Rendition never triggers evaluation.
	assert.False(t, d.Evaluated())

	_, err = d.Get(context.Background(), "y")
	require.NoError(t, err)
	assert.Contains(t, d.String(), `"y": 4`)
}

func TestString_FieldOrderAndLayout(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)
	for _, k := range []string{"b", "a"} {
		d, err = d.Put(k, k)
		require.NoError(t, err)
	}

	s := d.String()
	assert.True(t, strings.Index(s, `"b"`) < strings.Index(s, `"a"`),
		"fields keep insertion order")
	assert.True(t, strings.Index(s, `"a"`) < strings.Index(s, `"_id"`),
		"ids render last")
	assert.True(t, strings.HasPrefix(s, "{\n"))
	assert.True(t, strings.HasSuffix(s, "}"))
}

func TestString_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("m", 5000)
	d, err := New(map[string]any{"blob": long, "short": "ok"})
	require.NoError(t, err)

	s := d.String()
	assert.Contains(t, s, "«")
	assert.Contains(t, s, "…»")
	assert.NotContains(t, s, long)
	assert.Contains(t, s, `"short": "ok"`)
	assert.Less(t, len(s), 1500)
}

func TestText_DecolorizesToString(t *testing.T) {
	d, err := New(map[string]any{"x": 1})
	require.NoError(t, err)

	plain := d.String()
	colored := d.Text()
	assert.Equal(t, plain, hosh.Decolorize(colored))
}

func TestShow_WritesColoredRendition(t *testing.T) {
	d, err := New(map[string]any{"x": 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, d.Show(&buf))
	assert.Equal(t, d.Text()+"\n", buf.String())
}

func TestString_NestedDict(t *testing.T) {
	inner, err := New(map[string]any{"a": 1})
	require.NoError(t, err)
	outer, err := New(map[string]any{"inner": inner})
	require.NoError(t, err)

	s := outer.String()
	assert.Contains(t, s, `"a": 1`)
	assert.Contains(t, s, `"`+inner.ID()+`"`)
	assert.Contains(t, s, `"`+outer.ID()+`"`)
}

func TestString_EmptyDict(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	s := d.String()
	assert.Contains(t, s, `"_id"`)
	assert.Contains(t, s, `"_ids": {}`)
}
