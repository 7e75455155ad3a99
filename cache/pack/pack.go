// SPDX-License-Identifier: MIT

// Package pack turns dict values into self-describing storage blobs.
//
// A value is first encoded into its canonical payload: raw []byte keeps its
// content under a 'b' marker, everything else becomes compact JSON under a
// 'j' marker. The payload is what gets digested, so a value's identity never
// depends on how (or whether) the blob was compressed. Payloads above a
// size threshold are zstd-compressed into the 'Z'/'J' variants.
//
// JSON decoding follows encoding/json conventions: objects come back as
// map[string]any and numbers as float64.
package pack

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/davips/cdict/hosh"
)

// Blob markers. The first byte of every blob names its layout.
const (
	markerRaw      = 'b' // raw bytes
	markerJSON     = 'j' // canonical JSON
	markerRawZstd  = 'Z' // zstd-compressed raw bytes
	markerJSONZstd = 'J' // zstd-compressed canonical JSON
)

// compressThreshold is the payload size above which Pack tries zstd.
// Tiny payloads are never worth the frame overhead.
const compressThreshold = 512

// ErrBadBlob reports a blob that does not follow the pack layout.
var ErrBadBlob = errors.New("pack: malformed blob")

var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zdec, _ = zstd.NewReader(nil)
)

// Encode serializes v into its canonical payload, marker byte included.
// []byte values are stored verbatim; everything else must be JSON-encodable.
func Encode(v any) ([]byte, error) {
	if raw, ok := v.([]byte); ok {
		payload := make([]byte, 1+len(raw))
		payload[0] = markerRaw
		copy(payload[1:], raw)
		return payload, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	payload := make([]byte, 1+len(body))
	payload[0] = markerJSON
	copy(payload[1:], body)
	return payload, nil
}

// Digest returns the identity of v's canonical payload.
func Digest(v any) (hosh.Hosh, error) {
	payload, err := Encode(v)
	if err != nil {
		return hosh.Identity, err
	}
	return hosh.Digest(payload), nil
}

// Pack encodes v into a storage blob and returns it together with the
// identity of the canonical payload. Compression never changes the identity.
func Pack(v any) ([]byte, hosh.Hosh, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, hosh.Identity, err
	}
	h := hosh.Digest(payload)
	if len(payload) <= compressThreshold {
		return payload, h, nil
	}
	packed := zenc.EncodeAll(payload[1:], make([]byte, 1, len(payload)/2+1))
	if len(packed) >= len(payload) {
		return payload, h, nil
	}
	switch payload[0] {
	case markerRaw:
		packed[0] = markerRawZstd
	default:
		packed[0] = markerJSONZstd
	}
	return packed, h, nil
}

// Unpack reverses Pack and returns the stored value.
func Unpack(blob []byte) (any, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadBlob)
	}
	marker, body := blob[0], blob[1:]
	switch marker {
	case markerRawZstd, markerJSONZstd:
		plain, err := zdec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrBadBlob, err)
		}
		if marker == markerRawZstd {
			marker = markerRaw
		} else {
			marker = markerJSON
		}
		body = plain
	}
	switch marker {
	case markerRaw:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case markerJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("%w: json: %v", ErrBadBlob, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown marker %q", ErrBadBlob, marker)
	}
}
