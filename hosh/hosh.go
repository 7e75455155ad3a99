// SPDX-License-Identifier: MIT

// Package hosh implements the operand identity algebra behind cdict ids.
//
// A Hosh is an element of the unitriangular matrix group UT(4, Z_p) with
// p = 2^40 - 87 (the largest prime below 2^40). Elements are produced by
// digesting bytes and composed with group multiplication, so the id of a
// derived value can be computed from the ids of its inputs without ever
// evaluating anything. The six free matrix cells carry 240 bits, rendered
// as 40 digits over a 64-character alphabet.
package hosh

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/bits"
)

// p is the cell modulus: the largest prime below 2^40.
const p uint64 = 1<<40 - 87

// Digits is the length of a canonical id.
const Digits = 40

// Hosh is a group element. The zero value is the identity element.
//
// Cells are the free entries of the 4x4 unitriangular matrix
//
//	| 1 a b d |
//	| 0 1 c e |
//	| 0 0 1 f |
//	| 0 0 0 1 |
//
// stored in the order a, b, c, d, e, f. Hosh values are comparable; two
// elements are equal exactly when their ids are equal.
type Hosh struct {
	cells [6]uint64
}

// Identity is the neutral element ø. It equals the zero value of Hosh.
var Identity = Hosh{}

// Digest maps arbitrary bytes to a group element. The same input always
// yields the same element, across processes and platforms.
func Digest(data []byte) Hosh {
	sum := sha256.Sum256(data)
	return fromDigest(sum)
}

// DigestString is Digest over the UTF-8 bytes of s.
func DigestString(s string) Hosh {
	return Digest([]byte(s))
}

// fromDigest builds an element from a 32-byte digest: the first 30 bytes
// form six 40-bit big-endian cells, each reduced mod p.
func fromDigest(sum [sha256.Size]byte) Hosh {
	var h Hosh
	for i := 0; i < 6; i++ {
		chunk := sum[i*5 : i*5+5]
		v := uint64(chunk[0])<<32 | uint64(binary.BigEndian.Uint32(chunk[1:5]))
		if v >= p {
			v -= p
		}
		h.cells[i] = v
	}
	return h
}

// mulmod returns a*b mod p without overflowing 64 bits.
func mulmod(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, p)
}

// addmod returns a+b mod p. Inputs must already be < p.
func addmod(a, b uint64) uint64 {
	s := a + b
	if s >= p {
		s -= p
	}
	return s
}

// submod returns a-b mod p. Inputs must already be < p.
func submod(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return a + p - b
}

// Mul returns the group product h·o (matrix multiplication). It is
// associative and invertible but NOT commutative: composition order is part
// of the identity.
func (h Hosh) Mul(o Hosh) Hosh {
	a1, b1, c1, d1, e1, f1 := h.cells[0], h.cells[1], h.cells[2], h.cells[3], h.cells[4], h.cells[5]
	a2, b2, c2, d2, e2, f2 := o.cells[0], o.cells[1], o.cells[2], o.cells[3], o.cells[4], o.cells[5]
	return Hosh{cells: [6]uint64{
		addmod(a1, a2),
		addmod(addmod(b1, b2), mulmod(a1, c2)),
		addmod(c1, c2),
		addmod(addmod(d1, d2), addmod(mulmod(a1, e2), mulmod(b1, f2))),
		addmod(addmod(e1, e2), mulmod(c1, f2)),
		addmod(f1, f2),
	}}
}

// Inv returns the group inverse: h.Mul(h.Inv()) == Identity.
func (h Hosh) Inv() Hosh {
	a, b, c, d, e, f := h.cells[0], h.cells[1], h.cells[2], h.cells[3], h.cells[4], h.cells[5]
	ai := submod(0, a)
	ci := submod(0, c)
	fi := submod(0, f)
	bi := submod(mulmod(a, c), b)
	ei := submod(mulmod(c, f), e)
	di := submod(addmod(mulmod(a, e), mulmod(b, f)), addmod(d, mulmod(mulmod(a, c), f)))
	return Hosh{cells: [6]uint64{ai, bi, ci, di, ei, fi}}
}

// Add combines two elements cellwise mod p. Unlike Mul it is commutative,
// which is what makes a dict id independent of field order: the dict hosh is
// the Add-aggregation of its key-bound field hoshes.
func (h Hosh) Add(o Hosh) Hosh {
	var r Hosh
	for i := range r.cells {
		r.cells[i] = addmod(h.cells[i], o.cells[i])
	}
	return r
}

// Sub undoes Add: h.Add(o).Sub(o) == h. It lets an aggregate drop one
// contribution without recomputing the whole sum.
func (h Hosh) Sub(o Hosh) Hosh {
	var r Hosh
	for i := range r.cells {
		r.cells[i] = submod(h.cells[i], o.cells[i])
	}
	return r
}

// Sibling returns the i-th of n elements derived from h, used to identify
// the individual outputs of an n-output function application. The siblings
// are pairwise distinct, deterministic, and multiply back to the parent:
//
//	h.Sibling(0,n).Mul(h.Sibling(1,n)). … .Mul(h.Sibling(n-1,n)) == h
//
// Sibling(0, 1) is h itself. Sibling panics on an index outside [0, n).
func (h Hosh) Sibling(i, n int) Hosh {
	if n < 1 || i < 0 || i >= n {
		panic(fmt.Sprintf("hosh: sibling index %d out of range [0,%d)", i, n))
	}
	if n == 1 {
		return h
	}
	if i < n-1 {
		return h.derived(i, n)
	}
	// The last sibling closes the product back to h.
	acc := Identity
	for j := 0; j < n-1; j++ {
		acc = acc.Mul(h.derived(j, n))
	}
	return acc.Inv().Mul(h)
}

// derived deterministically derives a sub-element from h, i and n.
func (h Hosh) derived(i, n int) Hosh {
	buf := make([]byte, 0, 30+2*binary.MaxVarintLen64+1)
	buf = append(buf, h.bytes()...)
	buf = binary.AppendUvarint(buf, uint64(i))
	buf = append(buf, '/')
	buf = binary.AppendUvarint(buf, uint64(n))
	return Digest(buf)
}

// bytes returns the 30-byte big-endian cell concatenation.
func (h Hosh) bytes() []byte {
	out := make([]byte, 30)
	for i, c := range h.cells {
		out[i*5] = byte(c >> 32)
		binary.BigEndian.PutUint32(out[i*5+1:i*5+5], uint32(c))
	}
	return out
}

// IsIdentity reports whether h is the neutral element.
func (h Hosh) IsIdentity() bool {
	return h == Identity
}

// Equal reports whether two elements are the same. Hosh is comparable, so
// == works as well; Equal exists for call sites that read better with it.
func (h Hosh) Equal(o Hosh) bool {
	return h == o
}
