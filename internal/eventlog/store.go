// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
)

// schemaVersion is stored in the database's user_version pragma.
// Readers reject a database stamped with a version they don't
// recognize, per spec.md §4.1's "Schema migration is versioned."
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS event(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp    REAL NOT NULL,
  event_tx_id  INTEGER NOT NULL,
  kind         TEXT NOT NULL,
  ref_name     TEXT NULL,
  old_oid      TEXT NULL,
  new_oid      TEXT NULL,
  commit_oid   TEXT NULL,
  message      TEXT NULL
);
CREATE TABLE IF NOT EXISTS event_transaction(
  event_tx_id  INTEGER PRIMARY KEY AUTOINCREMENT,
  message      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS merge_base_oid_cache(
  lhs_oid TEXT NOT NULL,
  rhs_oid TEXT NOT NULL,
  merge_base_oid TEXT NULL,
  PRIMARY KEY(lhs_oid, rhs_oid)
);
`

// Store is the C1 event store, backed by an embedded SQLite database.
// Writers are serialized through a single *sql.DB with one open
// connection, giving "exclusive write lock on add_events" (§5)
// without a separate lock file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the event store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &errs.StoreError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return &errs.StoreError{Op: "read schema version", Err: err}
	}
	if version == 0 {
		if _, err := s.db.Exec(schemaDDL); err != nil {
			return &errs.StoreError{Op: "create schema", Err: err}
		}
		if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return &errs.StoreError{Op: "stamp schema version", Err: err}
		}
		return nil
	}
	if version != schemaVersion {
		return &errs.SchemaError{Found: version, Want: schemaVersion}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// MakeTransactionID allocates a fresh event_tx_id, recording name as
// the transaction's human-readable message.
func (s *Store) MakeTransactionID(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO event_transaction(message) VALUES (?)`, name)
	if err != nil {
		return 0, &errs.StoreError{Op: "make_transaction_id", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &errs.StoreError{Op: "make_transaction_id", Err: err}
	}
	return id, nil
}

func oidText(o *oid.OID) any {
	if o == nil {
		return nil
	}
	return o.String()
}

func refText(r refs.Name) any {
	if r == "" {
		return nil
	}
	return string(r)
}

func msgText(m string) any {
	if m == "" {
		return nil
	}
	return m
}

// AddEvents appends events atomically under txID. All-or-nothing:
// any insert failure rolls back the whole batch (spec.md §4.1).
func (s *Store) AddEvents(ctx context.Context, txID int64, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.StoreError{Op: "add_events", Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO event(timestamp, event_tx_id, kind, ref_name, old_oid, new_oid, commit_oid, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return &errs.StoreError{Op: "add_events", Err: err}
	}
	defer stmt.Close() // nolint

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.Timestamp, txID, string(e.Kind),
			refText(e.RefName), oidText(e.OldOID), oidText(e.NewOID), oidText(e.CommitOID), msgText(e.Message)); err != nil {
			_ = tx.Rollback()
			return &errs.StoreError{Op: "add_events", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.StoreError{Op: "add_events", Err: err}
	}
	return nil
}

func parseOIDCol(s sql.NullString) (*oid.OID, error) {
	if !s.Valid {
		return nil, nil
	}
	o, err := oid.New(s.String)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetEvents returns every event in ascending event_id order.
func (s *Store) GetEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, event_tx_id, kind, ref_name, old_oid, new_oid, commit_oid, message
FROM event ORDER BY id ASC`)
	if err != nil {
		return nil, &errs.StoreError{Op: "get_events", Err: err}
	}
	defer rows.Close() // nolint

	var out []Event
	for rows.Next() {
		var (
			e                                 Event
			refName, oldOID, newOID, commitOID, message sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.TxID, &e.Kind, &refName, &oldOID, &newOID, &commitOID, &message); err != nil {
			return nil, &errs.StoreError{Op: "get_events", Err: err}
		}
		if refName.Valid {
			e.RefName = refs.Name(refName.String)
		}
		if e.OldOID, err = parseOIDCol(oldOID); err != nil {
			return nil, &errs.StoreError{Op: "get_events", Err: err}
		}
		if e.NewOID, err = parseOIDCol(newOID); err != nil {
			return nil, &errs.StoreError{Op: "get_events", Err: err}
		}
		if e.CommitOID, err = parseOIDCol(commitOID); err != nil {
			return nil, &errs.StoreError{Op: "get_events", Err: err}
		}
		if message.Valid {
			e.Message = message.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.StoreError{Op: "get_events", Err: err}
	}
	return out, nil
}

// MergeBaseCacheGet returns a cached merge-base answer for the
// canonical pair (lhs, rhs), and whether the pair was found at all
// (found=false means "never computed"; ok=false with found=true means
// "computed as disjoint").
func (s *Store) MergeBaseCacheGet(ctx context.Context, lhs, rhs oid.OID) (result oid.OID, ok bool, found bool, err error) {
	var mb sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT merge_base_oid FROM merge_base_oid_cache WHERE lhs_oid = ? AND rhs_oid = ?`,
		lhs.String(), rhs.String()).Scan(&mb)
	if err == sql.ErrNoRows {
		return oid.Zero, false, false, nil
	}
	if err != nil {
		return oid.Zero, false, false, &errs.StoreError{Op: "merge_base_cache_get", Err: err}
	}
	if !mb.Valid {
		return oid.Zero, false, true, nil
	}
	o, perr := oid.New(mb.String)
	if perr != nil {
		return oid.Zero, false, true, &errs.StoreError{Op: "merge_base_cache_get", Err: perr}
	}
	return o, true, true, nil
}

// MergeBaseCachePut memoizes the answer for the canonical pair
// (lhs, rhs). A zero-value result with ok=false records "disjoint."
func (s *Store) MergeBaseCachePut(ctx context.Context, lhs, rhs oid.OID, result oid.OID, ok bool) error {
	var mb any
	if ok {
		mb = result.String()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO merge_base_oid_cache(lhs_oid, rhs_oid, merge_base_oid) VALUES (?, ?, ?)
ON CONFLICT(lhs_oid, rhs_oid) DO UPDATE SET merge_base_oid = excluded.merge_base_oid`,
		lhs.String(), rhs.String(), mb)
	if err != nil {
		return &errs.StoreError{Op: "merge_base_cache_put", Err: err}
	}
	return nil
}
