// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package eventlog implements C1 (the durable append-only event
// store) and C2 (the pure-fold event replayer) from the core design.
package eventlog

import (
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
)

// Kind discriminates the five event shapes spec.md §3 defines. The
// string values match the store schema's "kind" column exactly
// (ref-move|commit|hide|unhide|rewrite).
type Kind string

const (
	RefUpdate Kind = "ref-move"
	CommitK   Kind = "commit"
	Hide      Kind = "hide"
	Unhide    Kind = "unhide"
	Rewrite   Kind = "rewrite"
)

// Event is a single typed record. Fields not meaningful for a given
// Kind are left at their zero value, which serializes to SQL NULL;
// pointer OID fields distinguish "not applicable" (nil) from "the
// literal zero OID" (&oid.Zero — a ref that didn't exist before).
type Event struct {
	ID        int64
	TxID      int64
	Timestamp float64
	Kind      Kind
	RefName   refs.Name
	OldOID    *oid.OID
	NewOID    *oid.OID
	CommitOID *oid.OID
	Message   string
}

func ptr(o oid.OID) *oid.OID { return &o }

// NewRefUpdateEvent records a reference move. old or new may be
// oid.Zero (a ref created or deleted, respectively).
func NewRefUpdateEvent(ts float64, refName refs.Name, old, new oid.OID, message string) Event {
	return Event{
		Timestamp: ts,
		Kind:      RefUpdate,
		RefName:   refName,
		OldOID:    ptr(old),
		NewOID:    ptr(new),
		Message:   message,
	}
}

// NewCommitEvent records that commitOID became visible because it was
// freshly created.
func NewCommitEvent(ts float64, commitOID oid.OID, message string) Event {
	return Event{Timestamp: ts, Kind: CommitK, CommitOID: ptr(commitOID), Message: message}
}

// NewHideEvent records that commitOID was explicitly hidden.
func NewHideEvent(ts float64, commitOID oid.OID, message string) Event {
	return Event{Timestamp: ts, Kind: Hide, CommitOID: ptr(commitOID), Message: message}
}

// NewUnhideEvent records that commitOID was explicitly unhidden.
func NewUnhideEvent(ts float64, commitOID oid.OID, message string) Event {
	return Event{Timestamp: ts, Kind: Unhide, CommitOID: ptr(commitOID), Message: message}
}

// NewRewriteEvent records that oldOID was rewritten into newOID (e.g.
// by a rebase pick), making oldOID hidden and newOID visible.
func NewRewriteEvent(ts float64, oldOID, newOID oid.OID, message string) Event {
	return Event{Timestamp: ts, Kind: Rewrite, OldOID: ptr(oldOID), NewOID: ptr(newOID), Message: message}
}
