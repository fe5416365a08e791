// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package eventlog

import (
	"fmt"

	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
)

// Cursor is one past the last event considered visible (§3,
// "event_id-exclusive").
type Cursor int64

// ErrUnknownCursor is returned when a cursor falls outside [1, max_id+1].
type ErrUnknownCursor struct {
	Cursor Cursor
}

func (e *ErrUnknownCursor) Error() string {
	return fmt.Sprintf("unknown cursor %d", e.Cursor)
}

// Visibility is a commit's visibility state at a given cursor.
type Visibility int

const (
	Unknown Visibility = iota
	Visible
	Hidden
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "Visible"
	case Hidden:
		return "Hidden"
	default:
		return "Unknown"
	}
}

// HistoryEntry is one (event_id, kind) introspection record.
type HistoryEntry struct {
	EventID int64
	Kind    Kind
}

// Replayer is a pure fold over an ascending-by-id event sequence; it
// holds no external state and performs no I/O (spec.md §4.2).
type Replayer struct {
	events []Event
}

// NewReplayer wraps events, which must already be ascending by ID
// (as returned by Store.GetEvents).
func NewReplayer(events []Event) *Replayer {
	return &Replayer{events: events}
}

// Events exposes the underlying sequence, read-only by convention.
func (r *Replayer) Events() []Event {
	return r.events
}

// DefaultCursor returns the position past the last event.
func (r *Replayer) DefaultCursor() Cursor {
	if len(r.events) == 0 {
		return 1
	}
	return Cursor(r.events[len(r.events)-1].ID + 1)
}

func (r *Replayer) maxID() int64 {
	if len(r.events) == 0 {
		return 0
	}
	return r.events[len(r.events)-1].ID
}

func (r *Replayer) validate(c Cursor) error {
	if int64(c) < 1 || int64(c) > r.maxID()+1 {
		return &ErrUnknownCursor{Cursor: c}
	}
	return nil
}

// RefState returns the value of refName after all events with
// id < cursor, or ok=false if the reference was never touched.
func (r *Replayer) RefState(cursor Cursor, refName refs.Name) (result oid.OID, ok bool, err error) {
	if err := r.validate(cursor); err != nil {
		return oid.Zero, false, err
	}
	for _, e := range r.events {
		if e.ID >= int64(cursor) {
			break
		}
		if e.Kind != RefUpdate || e.RefName != refName {
			continue
		}
		if e.NewOID != nil {
			result, ok = *e.NewOID, true
		}
	}
	return result, ok, nil
}

// CommitVisibility implements the exact visibility rule of §4.2.
func (r *Replayer) CommitVisibility(cursor Cursor, o oid.OID) (Visibility, error) {
	if err := r.validate(cursor); err != nil {
		return Unknown, err
	}
	v := Unknown
	for _, e := range r.events {
		if e.ID >= int64(cursor) {
			break
		}
		switch e.Kind {
		case CommitK:
			if e.CommitOID != nil && *e.CommitOID == o {
				v = Visible
			}
		case Hide:
			if e.CommitOID != nil && *e.CommitOID == o {
				v = Hidden
			}
		case Unhide:
			if e.CommitOID != nil && *e.CommitOID == o {
				v = Visible
			}
		case Rewrite:
			if e.OldOID != nil && *e.OldOID == o {
				v = Hidden
			}
			if e.NewOID != nil && *e.NewOID == o {
				v = Visible
			}
		}
	}
	return v, nil
}

// CommitHistory returns every (event_id, kind) pair touching o before
// cursor, for introspection/debugging.
func (r *Replayer) CommitHistory(cursor Cursor, o oid.OID) ([]HistoryEntry, error) {
	if err := r.validate(cursor); err != nil {
		return nil, err
	}
	var out []HistoryEntry
	for _, e := range r.events {
		if e.ID >= int64(cursor) {
			break
		}
		if touches(e, o) {
			out = append(out, HistoryEntry{EventID: e.ID, Kind: e.Kind})
		}
	}
	return out, nil
}

func touches(e Event, o oid.OID) bool {
	switch e.Kind {
	case CommitK, Hide, Unhide:
		return e.CommitOID != nil && *e.CommitOID == o
	case Rewrite:
		return (e.OldOID != nil && *e.OldOID == o) || (e.NewOID != nil && *e.NewOID == o)
	default:
		return false
	}
}

// VisibleCommits returns every commit OID the event sequence has ever
// touched that is Visible at cursor, used by the commit graph builder
// to seed its walk (§4.4 step 1, "oid | replayer marks visible at cursor").
func (r *Replayer) VisibleCommits(cursor Cursor) ([]oid.OID, error) {
	if err := r.validate(cursor); err != nil {
		return nil, err
	}
	seen := map[oid.OID]bool{}
	var order []oid.OID
	touch := func(o *oid.OID) {
		if o == nil {
			return
		}
		if !seen[*o] {
			seen[*o] = true
			order = append(order, *o)
		}
	}
	for _, e := range r.events {
		if e.ID >= int64(cursor) {
			break
		}
		touch(e.CommitOID)
		touch(e.OldOID)
		touch(e.NewOID)
	}
	var out []oid.OID
	for _, o := range order {
		v, _ := r.CommitVisibility(cursor, o)
		if v == Visible {
			out = append(out, o)
		}
	}
	return out, nil
}

// Advance skips forward to the next transaction boundary: the
// smallest event_id > cursor that starts a new event_tx_id.
func (r *Replayer) Advance(cursor Cursor) Cursor {
	for _, e := range r.events {
		if int64(e.ID) <= int64(cursor) {
			continue
		}
		if !r.startsTransaction(e) {
			continue
		}
		return Cursor(e.ID)
	}
	return r.DefaultCursor()
}

// Retreat is the symmetric operation of Advance, moving cursor back
// to the previous transaction boundary.
func (r *Replayer) Retreat(cursor Cursor) Cursor {
	best := Cursor(1)
	for _, e := range r.events {
		if int64(e.ID) >= int64(cursor) {
			break
		}
		if !r.startsTransaction(e) {
			continue
		}
		best = Cursor(e.ID)
	}
	return best
}

// startsTransaction reports whether e is the first event in the
// sequence bearing its event_tx_id.
func (r *Replayer) startsTransaction(e Event) bool {
	for _, other := range r.events {
		if other.ID == e.ID {
			return true
		}
		if other.TxID == e.TxID {
			return false
		}
	}
	return true
}
