// SPDX-License-Identifier: MIT

package hosh

import (
	"errors"
	"fmt"
)

// alphabet is the 64-character digit set for ids: 6 bits per digit,
// 40 digits for the 240 cell bits.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.-"

var digitValue = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// ErrBadID classifies malformed id strings passed to FromID.
var ErrBadID = errors.New("malformed hosh id")

// ID returns the canonical 40-digit identifier of h.
func (h Hosh) ID() string {
	raw := h.bytes()
	out := make([]byte, 0, Digits)
	// 3 bytes -> 4 digits, exactly ten groups for 30 bytes.
	for i := 0; i < len(raw); i += 3 {
		v := uint32(raw[i])<<16 | uint32(raw[i+1])<<8 | uint32(raw[i+2])
		out = append(out,
			alphabet[v>>18&0x3f],
			alphabet[v>>12&0x3f],
			alphabet[v>>6&0x3f],
			alphabet[v&0x3f],
		)
	}
	return string(out)
}

// String implements fmt.Stringer and is equivalent to ID.
func (h Hosh) String() string {
	return h.ID()
}

// FromID parses a canonical 40-digit id back into an element. It rejects
// wrong lengths, characters outside the alphabet, and cell values that are
// not reduced mod p.
func FromID(id string) (Hosh, error) {
	if len(id) != Digits {
		return Hosh{}, fmt.Errorf("%w: length %d, want %d", ErrBadID, len(id), Digits)
	}
	raw := make([]byte, 0, 30)
	for i := 0; i < Digits; i += 4 {
		var v uint32
		for j := 0; j < 4; j++ {
			d := digitValue[id[i+j]]
			if d < 0 {
				return Hosh{}, fmt.Errorf("%w: invalid digit %q at %d", ErrBadID, id[i+j], i+j)
			}
			v = v<<6 | uint32(d)
		}
		raw = append(raw, byte(v>>16), byte(v>>8), byte(v))
	}
	var h Hosh
	for i := 0; i < 6; i++ {
		c := uint64(raw[i*5])<<32 |
			uint64(raw[i*5+1])<<24 |
			uint64(raw[i*5+2])<<16 |
			uint64(raw[i*5+3])<<8 |
			uint64(raw[i*5+4])
		if c >= p {
			return Hosh{}, fmt.Errorf("%w: cell %d out of range", ErrBadID, i)
		}
		h.cells[i] = c
	}
	return h, nil
}

// MustFromID is FromID for ids known to be valid; it panics otherwise.
// Intended for constants and tests.
func MustFromID(id string) Hosh {
	h, err := FromID(id)
	if err != nil {
		panic(err)
	}
	return h
}

// IsID reports whether s is a well-formed canonical id.
func IsID(s string) bool {
	_, err := FromID(s)
	return err == nil
}
