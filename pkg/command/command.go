// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package command implements the seven CLI commands (hide, unhide,
// move, next, prev, smartlog, undo) over the core's C1-C7 pipeline,
// adapted from the teacher's pkg/command Globals/diev/die idiom.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartbranch/smartbranch/internal/config"
	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/graph"
	"github.com/smartbranch/smartbranch/internal/mergebase"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/pkg/vcs"
	"github.com/smartbranch/smartbranch/pkg/vcsexec"
)

// Globals holds the flags every subcommand shares.
type Globals struct {
	Verbose bool
	CWD     string
}

func (g *Globals) DbgPrint(format string, args ...any) {
	if !g.Verbose {
		return
	}
	message := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	var buffer bytes.Buffer
	for _, s := range strings.Split(message, "\n") {
		_, _ = buffer.WriteString("* ")
		_, _ = buffer.WriteString(s)
		_, _ = buffer.WriteString("\n")
	}
	_, _ = os.Stderr.Write(buffer.Bytes())
}

type Debuger interface {
	DbgPrint(format string, args ...any)
}

// ErrArgRequired signals a missing positional argument, matching the
// teacher's sentinel error for CLI arg validation.
var ErrArgRequired = errors.New("arg required")

// metaDir is the repository-relative directory the event store and
// config live under, paralleling the teacher's ".zeta" worktree
// metadata directory.
const metaDir = ".smartbranch"

// Repo bundles everything a command needs to run one invocation: the
// event store (C1), the VCS capability, resolved config, and the
// worktree root.
type Repo struct {
	Root   string
	Cfg    config.Config
	Store  *eventlog.Store
	VCS    vcs.Capability
	Oracle *mergebase.Oracle
}

// OpenRepo resolves the worktree root (g.CWD or the process cwd),
// opens the event store, and wires the VCS capability + merge-base
// oracle, mirroring zeta.Open's bundling of a command's dependencies.
func OpenRepo(g *Globals) (*Repo, error) {
	root := g.CWD
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadLayered(systemConfigPath(), config.RepoConfigPath(root))
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(root, metaDir, "events.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	store, err := eventlog.Open(dbPath)
	if err != nil {
		return nil, err
	}

	v := vcsexec.New(root)
	oracle := mergebase.New(v, store)
	return &Repo{Root: root, Cfg: cfg, Store: store, VCS: v, Oracle: oracle}, nil
}

func (r *Repo) Close() error {
	return r.Store.Close()
}

func systemConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, metaDir, "config.toml")
}

// MainBranch returns the effective main branch short name from config.
func (r *Repo) MainBranch() string {
	return r.Cfg.Branchless.Core.MainBranchOrDefault()
}

// BuildGraph assembles the commit graph for the current HEAD/branch
// tips at the default cursor, the read path every command but undo
// starts from (C2 -> C4, optionally C3).
func (r *Repo) BuildGraph(ctx context.Context, includeHidden bool) (*graph.Graph, eventlog.Cursor, error) {
	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		return nil, 0, err
	}
	replayer := eventlog.NewReplayer(events)
	cursor := replayer.DefaultCursor()

	head, err := r.VCS.Head(ctx)
	if err != nil {
		return nil, 0, err
	}
	mainOID, err := r.VCS.MainBranchOID(ctx, r.MainBranch())
	if err != nil {
		return nil, 0, fmt.Errorf("resolve main branch %q: %w", r.MainBranch(), err)
	}
	branchTips, err := r.VCS.BranchTips(ctx)
	if err != nil {
		return nil, 0, err
	}

	g, err := graph.Build(ctx, r.VCS, r.Oracle, replayer, graph.Inputs{
		HeadOID:       head,
		MainBranchOID: mainOID,
		BranchOIDs:    branchTips,
		Cursor:        cursor,
		IncludeHidden: includeHidden,
	})
	if err != nil {
		return nil, 0, err
	}
	return g, cursor, nil
}

// ResolveCommit parses a user-supplied revision argument into an OID.
// A bare 40-hex OID is accepted directly; HEAD and branch short names
// resolve through the VCS capability's own accessors.
func ResolveCommit(ctx context.Context, v vcs.Capability, rev string) (oid.OID, error) {
	if o, err := oid.New(rev); err == nil {
		return o, nil
	}
	if rev == "HEAD" || rev == "@" {
		return v.Head(ctx)
	}
	tips, err := v.BranchTips(ctx)
	if err != nil {
		return oid.Zero, err
	}
	if o, ok := tips[refs.NewBranch(rev)]; ok {
		return o, nil
	}
	return oid.Zero, fmt.Errorf("unresolved revision %q", rev)
}

func diev(format string, a ...any) {
	var b bytes.Buffer
	_, _ = b.WriteString("fatal: ")
	fmt.Fprintf(&b, format, a...)
	_ = b.WriteByte('\n')
	_, _ = os.Stderr.Write(b.Bytes())
}

func die(m string) {
	var b bytes.Buffer
	_, _ = b.WriteString("fatal: ")
	_, _ = b.WriteString(m)
	_ = b.WriteByte('\n')
	_, _ = os.Stderr.Write(b.Bytes())
}
