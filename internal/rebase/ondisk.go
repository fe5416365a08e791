// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rebase

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// ErrNoRebaseInProgress is returned by Continue/Abort when no pause
// file exists.
var ErrNoRebaseInProgress = errors.New("no rebase in progress")

// persistedStep is Step with every OID/name field as plain text, so
// it round-trips through TOML the way worktree_rebase.go's RebaseMD
// round-trips its own pause state.
type persistedStep struct {
	Kind         int    `toml:"kind"`
	CommitOID    string `toml:"commit_oid,omitempty"`
	SecondParent string `toml:"second_parent,omitempty"`
	Name         string `toml:"name,omitempty"`
	OID          string `toml:"oid,omitempty"`
	OldOID       string `toml:"old_oid,omitempty"`
	NewOID       string `toml:"new_oid,omitempty"`
}

func encodeStep(s Step) persistedStep {
	p := persistedStep{Kind: int(s.Kind), Name: s.Name}
	if s.Kind == Pick {
		p.CommitOID = s.CommitOID.String()
		if s.SecondParent != nil {
			p.SecondParent = s.SecondParent.String()
		}
	}
	if s.Kind == CreateLabel {
		p.OID = s.OID.String()
	}
	if s.Kind == RegisterExtraPostRewriteHook {
		p.OldOID = s.OldOID.String()
		p.NewOID = s.NewOID.String()
	}
	return p
}

func decodeStep(p persistedStep) (Step, error) {
	s := Step{Kind: StepKind(p.Kind), Name: p.Name}
	var err error
	if p.CommitOID != "" {
		if s.CommitOID, err = oid.New(p.CommitOID); err != nil {
			return s, err
		}
	}
	if p.SecondParent != "" {
		sp, err := oid.New(p.SecondParent)
		if err != nil {
			return s, err
		}
		s.SecondParent = &sp
	}
	if p.OID != "" {
		if s.OID, err = oid.New(p.OID); err != nil {
			return s, err
		}
	}
	if p.OldOID != "" {
		if s.OldOID, err = oid.New(p.OldOID); err != nil {
			return s, err
		}
	}
	if p.NewOID != "" {
		if s.NewOID, err = oid.New(p.NewOID); err != nil {
			return s, err
		}
	}
	return s, nil
}

// RebaseMD is the on-disk pause metadata, grounded on
// worktree_rebase.go's REBASE-MD TOML file.
type RebaseMD struct {
	RebaseHead         string            `toml:"REBASE_HEAD"`
	Stopped            bool              `toml:"STOPPED"`
	Last               int               `toml:"LAST"`
	Head               string            `toml:"HEAD"`
	Labels             map[string]string `toml:"LABELS"`
	TxName             string            `toml:"TX_NAME"`
	PreserveTimestamps bool              `toml:"PRESERVE_TIMESTAMPS"`
	Steps              []persistedStep   `toml:"STEP"`
	ConflictCommit     string            `toml:"CONFLICT_COMMIT,omitempty"`
	ConflictPaths      []string          `toml:"CONFLICT_PATHS,omitempty"`
}

func writeMD(path string, md RebaseMD) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close() // nolint
	return toml.NewEncoder(f).Encode(md)
}

func readMD(path string) (RebaseMD, error) {
	var md RebaseMD
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return md, ErrNoRebaseInProgress
		}
		return md, err
	}
	if _, err := toml.Decode(string(data), &md); err != nil {
		return md, err
	}
	return md, nil
}

// OnDiskExecutor delegates to the underlying VCS the same way the
// in-memory backend does, but checkpoints progress to a pause file on
// conflict so move --continue/--abort can resume or cancel across
// process invocations, matching rebaseAbort/rebaseContinue.
type OnDiskExecutor struct {
	vcs      vcs.Capability
	metaPath string
}

func NewOnDiskExecutor(v vcs.Capability, metaPath string) *OnDiskExecutor {
	return &OnDiskExecutor{vcs: v, metaPath: metaPath}
}

func (ex *OnDiskExecutor) InProgress() bool {
	_, err := os.Stat(ex.metaPath)
	return err == nil
}

func (ex *OnDiskExecutor) Execute(ctx context.Context, plan *Plan, startHead oid.OID, opts ExecuteOptions) (*Result, error) {
	e := newEngine(ctx, ex.vcs, opts)
	e.head = startHead
	for i, step := range plan.Steps {
		if err := e.applyStep(step); err != nil {
			if conflict, ok := err.(*errs.ConflictError); ok {
				md := RebaseMD{
					RebaseHead:         startHead.String(),
					Stopped:            true,
					Last:               i,
					Head:               e.head.String(),
					Labels:             encodeLabels(e.labels),
					TxName:             opts.TxName,
					PreserveTimestamps: opts.PreserveTimestamps,
					Steps:              encodeSteps(plan.Steps),
					ConflictCommit:     conflict.CommitOID,
					ConflictPaths:      conflict.Paths,
				}
				if werr := writeMD(ex.metaPath, md); werr != nil {
					return nil, werr
				}
				return nil, conflict
			}
			return nil, err
		}
	}
	_ = os.Remove(ex.metaPath)
	return &Result{NewHead: e.head, Events: e.events}, nil
}

// Continue resumes a paused on-disk rebase from where it stopped.
func (ex *OnDiskExecutor) Continue(ctx context.Context) (*Result, error) {
	md, err := readMD(ex.metaPath)
	if err != nil {
		return nil, err
	}
	if !md.Stopped {
		return nil, ErrNoRebaseInProgress
	}
	opts := ExecuteOptions{Now: time.Now(), TxName: md.TxName, PreserveTimestamps: md.PreserveTimestamps}
	e := newEngine(ctx, ex.vcs, opts)
	if e.head, err = oid.New(md.Head); err != nil {
		return nil, err
	}
	for name, hexOID := range md.Labels {
		o, err := oid.New(hexOID)
		if err != nil {
			return nil, err
		}
		e.labels[name] = o
	}
	steps, err := decodeSteps(md.Steps)
	if err != nil {
		return nil, err
	}
	for i := md.Last + 1; i < len(steps); i++ {
		if err := e.applyStep(steps[i]); err != nil {
			if conflict, ok := err.(*errs.ConflictError); ok {
				md.Last = i
				md.Head = e.head.String()
				md.Labels = encodeLabels(e.labels)
				md.ConflictCommit = conflict.CommitOID
				md.ConflictPaths = conflict.Paths
				if werr := writeMD(ex.metaPath, md); werr != nil {
					return nil, werr
				}
				return nil, conflict
			}
			return nil, err
		}
	}
	_ = os.Remove(ex.metaPath)
	return &Result{NewHead: e.head, Events: e.events}, nil
}

// Abort cancels a paused on-disk rebase, returning the original HEAD
// the caller should check out.
func (ex *OnDiskExecutor) Abort() (oid.OID, error) {
	md, err := readMD(ex.metaPath)
	if err != nil {
		return oid.Zero, err
	}
	orig, err := oid.New(md.RebaseHead)
	if err != nil {
		return oid.Zero, err
	}
	_ = os.Remove(ex.metaPath)
	return orig, nil
}

func encodeLabels(labels map[string]oid.OID) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v.String()
	}
	return out
}

func encodeSteps(steps []Step) []persistedStep {
	out := make([]persistedStep, len(steps))
	for i, s := range steps {
		out[i] = encodeStep(s)
	}
	return out
}

func decodeSteps(steps []persistedStep) ([]Step, error) {
	out := make([]Step, len(steps))
	for i, p := range steps {
		s, err := decodeStep(p)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
