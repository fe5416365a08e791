// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/smartbranch/smartbranch/internal/config"
	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/mergebase"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs/vcstest"
)

// newTestRepo builds a *Repo around a fresh vcstest.Fake and a real
// sqlite-backed event store in a scratch directory, bypassing
// OpenRepo's process-cwd and subprocess-VCS wiring so commands can be
// exercised directly (command_*_test.go call c.run(ctx, r) rather
// than c.Run(g)).
func newTestRepo(t *testing.T) (*Repo, *vcstest.Fake) {
	t.Helper()
	fake := vcstest.New()
	store, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	oracle := mergebase.New(fake, store)
	return &Repo{
		Root:   t.TempDir(),
		Cfg:    config.Config{},
		Store:  store,
		VCS:    fake,
		Oracle: oracle,
	}, fake
}

// markVisible records a CommitEvent for each given OID in a single
// transaction, the explicit visibility signal C4 requires for any
// non-main-branch commit (§4.4's replayer-driven visibility step).
func markVisible(t *testing.T, r *Repo, oids ...oid.OID) {
	t.Helper()
	ctx := context.Background()
	txID, err := r.Store.MakeTransactionID(ctx, "setup")
	if err != nil {
		t.Fatalf("MakeTransactionID: %v", err)
	}
	var events []eventlog.Event
	for _, o := range oids {
		oo := o
		events = append(events, eventlog.NewCommitEvent(1, oo, "setup"))
	}
	if err := r.Store.AddEvents(ctx, txID, events); err != nil {
		t.Fatalf("AddEvents: %v", err)
	}
}
