// SPDX-License-Identifier: MIT

package pack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_RawVersusJSON(t *testing.T) {
	raw, err := Encode([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("babc"), raw)

	str, err := Encode("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`j"abc"`), str)

	assert.NotEqual(t, raw, str, "bytes and string payloads must not collide")
}

func TestEncode_MapIsCanonical(t *testing.T) {
	a, err := Encode(map[string]any{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	b, err := Encode(map[string]any{"c": 3, "a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not affect the payload")
}

func TestEncode_Unencodable(t *testing.T) {
	_, err := Encode(func() {})
	require.Error(t, err)
}

func TestPackUnpack_Small(t *testing.T) {
	blob, h, err := Pack(map[string]any{"n": 7.0, "s": "hi"})
	require.NoError(t, err)
	assert.EqualValues(t, markerJSON, blob[0], "small payloads stay uncompressed")
	assert.False(t, h.IsIdentity())

	v, err := Unpack(blob)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 7.0, "s": "hi"}, v)
}

func TestPackUnpack_CompressedBytes(t *testing.T) {
	big := bytes.Repeat([]byte("cdict "), 4096)

	blob, h, err := Pack(big)
	require.NoError(t, err)
	assert.EqualValues(t, markerRawZstd, blob[0])
	assert.Less(t, len(blob), len(big), "repetitive payload must shrink")

	want, err := Digest(big)
	require.NoError(t, err)
	assert.Equal(t, want, h, "identity must ignore compression")

	v, err := Unpack(blob)
	require.NoError(t, err)
	assert.Equal(t, big, v)
}

func TestPackUnpack_CompressedJSON(t *testing.T) {
	vals := make([]any, 1024)
	for i := range vals {
		vals[i] = "the same string every time"
	}

	blob, h, err := Pack(vals)
	require.NoError(t, err)
	assert.EqualValues(t, markerJSONZstd, blob[0])

	small, hSmall, err := Pack(vals[:2])
	require.NoError(t, err)
	assert.EqualValues(t, markerJSON, small[0])
	assert.NotEqual(t, hSmall, h)

	v, err := Unpack(blob)
	require.NoError(t, err)
	assert.Len(t, v, 1024)
}

func TestUnpack_CopiesRawBody(t *testing.T) {
	blob := []byte("bdata")
	v, err := Unpack(blob)
	require.NoError(t, err)
	got := v.([]byte)
	blob[1] = 'X'
	assert.Equal(t, []byte("data"), got, "unpacked bytes must not alias the blob")
}

func TestUnpack_Malformed(t *testing.T) {
	for name, blob := range map[string][]byte{
		"empty":        {},
		"marker":       []byte("?data"),
		"corrupt zstd": []byte("Znot-a-frame"),
		"corrupt json": []byte("j{"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unpack(blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadBlob)
		})
	}
}

func BenchmarkPack(b *testing.B) {
	v := map[string]any{"x": 1.5, "y": "text", "z": []any{1.0, 2.0, 3.0}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Pack(v); err != nil {
			b.Fatal(err)
		}
	}
}
