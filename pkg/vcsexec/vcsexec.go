// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package vcsexec implements pkg/vcs.Capability by shelling out to a
// real git binary's plumbing subcommands, the way the teacher's
// modules/command package wraps os/exec for every external process
// this toolchain invokes.
package vcsexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/internal/sysenv"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// Git shells out to a git binary rooted at Dir for every pkg/vcs.Capability
// operation. It never reuses a long-lived process; each call is one
// exec.CommandContext, matching the "blocks on the VCS subprocess"
// scheduling note in spec.md §5.
type Git struct {
	Dir    string
	Binary string // defaults to "git" when empty
}

// New returns a Git capability rooted at repoDir.
func New(repoDir string) *Git {
	return &Git{Dir: repoDir, Binary: "git"}
}

func (g *Git) binary() string {
	if g.Binary != "" {
		return g.Binary
	}
	return "git"
}

// run executes git with args, returning stdout untrimmed (callers trim
// it). On a non-zero exit it returns the stdout captured so far along
// with a *gitError. Extra env entries (e.g. GIT_AUTHOR_DATE) are
// appended to the sanitized base environment.
func (g *Git) run(ctx context.Context, args []string, extraEnv ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Dir = g.Dir
	cmd.Env = append(sysenv.Sanitize(), extraEnv...)
	var stdout bytes.Buffer
	stderr := &limitWriter{limit: stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return stdout.Bytes(), &gitError{args: args, exitCode: ee.ExitCode(), stderr: stderr.buf.String()}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// stderrLimit caps how much of a failing subprocess's stderr is kept
// for the error message, the way the teacher's modules/command package
// bounds Command's captured stderr so a runaway git error can't blow
// up memory.
const stderrLimit = 8 * 1024

// limitWriter accumulates at most limit bytes, silently discarding the
// rest; Write still reports the full length written so io callers
// (e.g. exec.Cmd) never see a short-write error.
type limitWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	n := len(p)
	if w.limit > 0 {
		if len(p) > w.limit {
			p = p[:w.limit]
		}
		w.limit -= len(p)
		w.buf.Write(p)
	}
	return n, nil
}

type gitError struct {
	args     []string
	exitCode int
	stderr   string
}

func (e *gitError) Error() string {
	return fmt.Sprintf("git %s: exit %d: %s", strings.Join(e.args, " "), e.exitCode, strings.TrimSpace(e.stderr))
}

func exitCodeOf(err error) (int, bool) {
	var ge *gitError
	if errors.As(err, &ge) {
		return ge.exitCode, true
	}
	return 0, false
}

func (g *Git) FindCommit(ctx context.Context, o oid.OID) (*vcs.Commit, error) {
	out, err := g.run(ctx, []string{"cat-file", "-p", o.String() + "^{commit}"})
	if err != nil {
		return nil, fmt.Errorf("find_commit %s: %w", o, err)
	}
	return parseCommit(o, string(out))
}

func parseCommit(o oid.OID, text string) (*vcs.Commit, error) {
	lines := strings.Split(text, "\n")
	c := &vcs.Commit{OID: o}
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		switch {
		case strings.HasPrefix(line, "tree "):
			t, err := oid.New(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return nil, fmt.Errorf("parse commit %s: bad tree line: %w", o, err)
			}
			c.Tree = t
		case strings.HasPrefix(line, "parent "):
			p, err := oid.New(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return nil, fmt.Errorf("parse commit %s: bad parent line: %w", o, err)
			}
			c.Parents = append(c.Parents, p)
		case strings.HasPrefix(line, "author "):
			sig, err := parseSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, fmt.Errorf("parse commit %s: %w", o, err)
			}
			c.Author = sig
		case strings.HasPrefix(line, "committer "):
			sig, err := parseSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, fmt.Errorf("parse commit %s: %w", o, err)
			}
			c.Committer = sig
		}
	}
	c.Message = strings.TrimSuffix(strings.Join(lines[i:], "\n"), "\n")
	return c, nil
}

// parseSignature parses "Name <email> 1700000000 +0800".
func parseSignature(rest string) (vcs.Signature, error) {
	tzIdx := strings.LastIndex(rest, " ")
	if tzIdx < 0 {
		return vcs.Signature{}, fmt.Errorf("malformed signature %q", rest)
	}
	tz := rest[tzIdx+1:]
	rest = rest[:tzIdx]
	tsIdx := strings.LastIndex(rest, " ")
	if tsIdx < 0 {
		return vcs.Signature{}, fmt.Errorf("malformed signature %q", rest)
	}
	tsStr := rest[tsIdx+1:]
	nameEmail := rest[:tsIdx]
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return vcs.Signature{}, fmt.Errorf("malformed signature timestamp %q: %w", tsStr, err)
	}
	lt := strings.LastIndex(nameEmail, "<")
	gt := strings.LastIndex(nameEmail, ">")
	if lt < 0 || gt < lt {
		return vcs.Signature{}, fmt.Errorf("malformed signature %q", rest)
	}
	name := strings.TrimSpace(nameEmail[:lt])
	email := nameEmail[lt+1 : gt]
	return vcs.Signature{Name: name, Email: email, When: time.Unix(ts, 0).In(parseTZ(tz))}, nil
}

func parseTZ(tz string) *time.Location {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return time.UTC
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	mins, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return time.UTC
	}
	offset := hours*3600 + mins*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset)
}

func formatSigDate(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%d %s%02d%02d", t.Unix(), sign, offset/3600, (offset%3600)/60)
}

func (g *Git) Head(ctx context.Context) (oid.OID, error) {
	out, err := g.run(ctx, []string{"rev-parse", "--verify", "-q", "HEAD"})
	if err != nil {
		if code, ok := exitCodeOf(err); ok && code == 1 {
			return oid.Zero, nil // unborn HEAD
		}
		return oid.Zero, fmt.Errorf("get_head: %w", err)
	}
	return oid.New(strings.TrimSpace(string(out)))
}

func (g *Git) BranchTips(ctx context.Context) (map[refs.Name]oid.OID, error) {
	out, err := g.run(ctx, []string{"for-each-ref", "--format=%(refname) %(objectname)", "refs/heads/"})
	if err != nil {
		return nil, fmt.Errorf("get_branch_tips: %w", err)
	}
	result := map[refs.Name]oid.OID{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		o, err := oid.New(fields[1])
		if err != nil {
			continue
		}
		result[refs.Name(fields[0])] = o
	}
	return result, nil
}

func (g *Git) MainBranchOID(ctx context.Context, mainBranch string) (oid.OID, error) {
	out, err := g.run(ctx, []string{"rev-parse", "--verify", "-q", refs.NewBranch(mainBranch).String()})
	if err != nil {
		return oid.Zero, fmt.Errorf("get_main_branch_oid %q: %w", mainBranch, err)
	}
	return oid.New(strings.TrimSpace(string(out)))
}

func (g *Git) MergeBase(ctx context.Context, a, b oid.OID) (oid.OID, bool, error) {
	out, err := g.run(ctx, []string{"merge-base", a.String(), b.String()})
	if err != nil {
		if code, ok := exitCodeOf(err); ok && code == 1 {
			return oid.Zero, false, nil
		}
		return oid.Zero, false, fmt.Errorf("merge_base(%s, %s): %w", a, b, err)
	}
	o, err := oid.New(strings.TrimSpace(string(out)))
	if err != nil {
		return oid.Zero, false, err
	}
	return o, true, nil
}

func (g *Git) CommitTree(ctx context.Context, tree oid.OID, parents []oid.OID, author, committer vcs.Signature, message string) (oid.OID, error) {
	args := []string{"commit-tree", tree.String()}
	for _, p := range parents {
		args = append(args, "-p", p.String())
	}
	args = append(args, "-F", "-")
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Dir = g.Dir
	cmd.Env = append(sysenv.Sanitize(),
		"GIT_AUTHOR_NAME="+author.Name, "GIT_AUTHOR_EMAIL="+author.Email, "GIT_AUTHOR_DATE="+formatSigDate(author.When),
		"GIT_COMMITTER_NAME="+committer.Name, "GIT_COMMITTER_EMAIL="+committer.Email, "GIT_COMMITTER_DATE="+formatSigDate(committer.When),
	)
	cmd.Stdin = strings.NewReader(message)
	var stdout bytes.Buffer
	stderr := &limitWriter{limit: stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return oid.Zero, fmt.Errorf("commit_tree: %w: %s", err, stderr.buf.String())
	}
	return oid.New(strings.TrimSpace(stdout.String()))
}

// ThreeWayMergeTrees uses git's real plumbing merge (merge-tree
// --write-tree, available since git 2.38) so the in-memory rebase
// backend never touches a working directory or index.
func (g *Git) ThreeWayMergeTrees(ctx context.Context, base, ours, theirs oid.OID) (oid.OID, error) {
	args := []string{"merge-tree", "--write-tree", "-z"}
	if !base.IsZero() {
		args = append(args, "--merge-base", base.String())
	}
	args = append(args, ours.String(), theirs.String())
	out, err := g.run(ctx, args)
	if err != nil {
		if code, ok := exitCodeOf(err); ok && code == 1 {
			return oid.Zero, &vcs.ErrConflict{Paths: parseMergeTreeConflicts(out)}
		}
		return oid.Zero, fmt.Errorf("three_way_merge_trees: %w", err)
	}
	fields := bytes.SplitN(out, []byte{0}, 2)
	treeLine := strings.TrimSpace(string(fields[0]))
	return oid.New(treeLine)
}

// parseMergeTreeConflicts best-effort-extracts conflicted paths from
// `git merge-tree --write-tree -z`'s NUL-delimited failure output: tree
// oid, then informational messages, then one path per remaining
// non-empty NUL-separated field.
func parseMergeTreeConflicts(out []byte) []string {
	parts := bytes.Split(out, []byte{0})
	var paths []string
	for i, p := range parts {
		if i == 0 || len(p) == 0 {
			continue
		}
		s := string(p)
		if !strings.Contains(s, "\n") && !strings.Contains(s, " ") {
			paths = append(paths, s)
		}
	}
	return paths
}

func (g *Git) RunGit(ctx context.Context, args []string, env []string) (int, error) {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	cmd.Dir = g.Dir
	cmd.Env = append(sysenv.Sanitize(), env...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, err
}

func (g *Git) CheckoutRef(ctx context.Context, target oid.OID) error {
	_, err := g.run(ctx, []string{"checkout", "--detach", target.String()})
	if err != nil {
		return fmt.Errorf("checkout %s: %w", target, err)
	}
	return nil
}

func (g *Git) UpdateRef(ctx context.Context, name refs.Name, old, new oid.OID) error {
	var err error
	if new.IsZero() {
		_, err = g.run(ctx, []string{"update-ref", "-d", string(name), old.String()})
	} else {
		_, err = g.run(ctx, []string{"update-ref", string(name), new.String(), old.String()})
	}
	if err != nil {
		return fmt.Errorf("update_ref %s: %w", name, err)
	}
	return nil
}

var _ vcs.Capability = (*Git)(nil)
