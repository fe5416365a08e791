// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package oid implements the fixed-width commit identifier used
// throughout the event log, commit graph, and rebase planner.
package oid

import (
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// Size is the byte length of a git-compatible SHA-1 commit id.
const Size = 20

// HexSize is the length of the hex-encoded string form.
const HexSize = Size * 2

var ErrInvalidLength = errors.New("oid: invalid hex length")
var ErrInvalidHex = errors.New("oid: invalid hex encoding")

// OID is an opaque, fixed-width commit identifier. The zero value is
// the distinguished zero OID, which denotes absence (spec: "a zero
// OID exists outside the non-zero type and denotes absence").
type OID [Size]byte

// Zero is the distinguished zero OID.
var Zero OID

// IsZero reports whether o is the zero OID.
func (o OID) IsZero() bool {
	return o == Zero
}

// String renders o as 40 lowercase hex characters, matching the
// store schema's "40-hex or 0*40 for zero" wire format.
func (o OID) String() string {
	return hex.EncodeToString(o[:])
}

// Short renders a shortened, git-log-style prefix of o.
func (o OID) Short() string {
	s := o.String()
	if len(s) <= 7 {
		return s
	}
	return s[:7]
}

// Compare returns -1, 0, or 1 per lexicographic byte order, giving
// OID a total order as required by the data model.
func (o OID) Compare(other OID) int {
	return strings.Compare(string(o[:]), string(other[:]))
}

// Less reports whether o sorts strictly before other.
func (o OID) Less(other OID) bool {
	return o.Compare(other) < 0
}

// New parses a 40-character hex string into an OID. The all-zero
// string ("0"*40) decodes to Zero, same as any other valid hex value.
func New(s string) (OID, error) {
	if len(s) != HexSize {
		return Zero, ErrInvalidLength
	}
	var o OID
	if _, err := hex.Decode(o[:], []byte(s)); err != nil {
		return Zero, ErrInvalidHex
	}
	return o, nil
}

// MustNew is New but panics on error; reserved for literals in tests.
func MustNew(s string) OID {
	o, err := New(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Slice implements sort.Interface over a slice of OID, mirroring the
// teacher's HashSlice convenience type.
type Slice []OID

func (s Slice) Len() int           { return len(s) }
func (s Slice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sort sorts s ascending in place.
func Sort(s Slice) {
	sort.Sort(s)
}

// Pair canonicalizes two OIDs into (min, max) order, matching the
// merge-base cache's unordered-pair key convention.
func Pair(a, b OID) (OID, OID) {
	if a.Less(b) {
		return a, b
	}
	return b, a
}
