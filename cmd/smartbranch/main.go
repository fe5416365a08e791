// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/pkg/command"
)

// buildVersion is overridden at link time with -ldflags
// "-X main.buildVersion=...".
var buildVersion = "dev"

// tracer gates a pprof CPU profile behind --debug, adapted from
// cmd/zeta/main.go's Tracer.
type tracer struct {
	closeFn func()
}

func newTracer(debugMode bool) *tracer {
	d := &tracer{}
	if !debugMode {
		return d
	}
	pprofName := filepath.Join(os.TempDir(), fmt.Sprintf("smartbranch-%d.pprof", os.Getpid()))
	fd, err := os.Create(pprofName)
	if err != nil {
		return d
	}
	if err = pprof.StartCPUProfile(fd); err != nil {
		_ = fd.Close()
		return d
	}
	d.closeFn = func() {
		pprof.StopCPUProfile()
		_ = fd.Close()
		fmt.Fprintf(os.Stderr, "profile written to %s\n", pprofName)
	}
	return d
}

func (d *tracer) Close() {
	if d.closeFn != nil {
		d.closeFn()
	}
}

func main() {
	var globals command.Globals
	var debug bool

	root := &cobra.Command{
		Use:           "smartbranch",
		Short:         "A content-addressed commit-graph workflow layer",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "V", false, "make the operation more talkative")
	root.PersistentFlags().StringVar(&globals.CWD, "cwd", "", "set the path to the repository worktree")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode; analyze timing")

	root.AddCommand(
		newHideCmd(),
		newUnhideCmd(),
		newMoveCmd(),
		newNextCmd(),
		newPrevCmd(),
		newSmartlogCmd(),
		newUndoCmd(),
	)

	// The tracer starts once cobra has parsed --debug, just before the
	// matched subcommand's RunE runs.
	var t *tracer
	root.PersistentPreRun = func(*cobra.Command, []string) {
		t = newTracer(debug)
	}

	now := time.Now()
	err := root.Execute()
	// cobra has already dispatched to the matched subcommand's RunE by
	// the time Execute returns, so the tracer and timing report below
	// cover the whole invocation, matching cmd/zeta/main.go's shape.
	if t != nil {
		t.Close()
	}
	if globals.Verbose {
		globals.DbgPrint("time spent: %v", time.Since(now))
	}
	os.Exit(errs.ExitCode(err))
}

func newHideCmd() *cobra.Command {
	var c command.Hide
	cmd := &cobra.Command{
		Use:   "hide <revision>...",
		Short: "Hide one or more commits",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().BoolVar(&c.Recursive, "recursive", false, "also hide every descendant of each revision")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c.Revisions = args
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

func newUnhideCmd() *cobra.Command {
	var c command.Unhide
	cmd := &cobra.Command{
		Use:   "unhide <revision>...",
		Short: "Unhide one or more commits",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().BoolVar(&c.Recursive, "recursive", false, "also unhide every descendant of each revision")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c.Revisions = args
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

func newMoveCmd() *cobra.Command {
	var c command.Move
	cmd := &cobra.Command{
		Use:   "move [source]",
		Short: "Move a commit subtree onto a new destination",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&c.Onto, "onto", "", "destination commit the subtree is rebased onto")
	cmd.Flags().BoolVar(&c.Base, "base", false, "resolve source as the topmost non-main ancestor of HEAD")
	cmd.Flags().BoolVar(&c.Continue, "continue", false, "resume a paused move")
	cmd.Flags().BoolVar(&c.Abort, "abort", false, "cancel a paused move and restore the original head")
	cmd.Flags().BoolVar(&c.InMemory, "in-memory", false, "force the in-memory executor")
	cmd.Flags().BoolVar(&c.OnDisk, "on-disk", false, "force the on-disk executor")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			c.Source = args[0]
		}
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

func newNextCmd() *cobra.Command {
	var c command.Next
	cmd := &cobra.Command{
		Use:   "next [count]",
		Short: "Move HEAD towards a descendant commit",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().BoolVar(&c.Oldest, "oldest", false, "when ambiguous, pick the oldest child")
	cmd.Flags().BoolVar(&c.Newest, "newest", false, "when ambiguous, pick the newest child")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c.Count = 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("next: invalid count %q", args[0])
			}
			c.Count = n
		}
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

func newPrevCmd() *cobra.Command {
	var c command.Prev
	cmd := &cobra.Command{
		Use:   "prev [count]",
		Short: "Move HEAD towards an ancestor commit",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c.Count = 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("prev: invalid count %q", args[0])
			}
			c.Count = n
		}
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

func newSmartlogCmd() *cobra.Command {
	var c command.Smartlog
	cmd := &cobra.Command{
		Use:     "smartlog",
		Aliases: []string{"sl"},
		Short:   "Render the commit graph",
	}
	cmd.Flags().BoolVar(&c.Hidden, "hidden", false, "include hidden commits")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

func newUndoCmd() *cobra.Command {
	var c command.Undo
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent transaction",
	}
	cmd.Flags().BoolVarP(&c.Yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return c.Run(globalsOf(cmd))
	}
	return cmd
}

// globalsOf walks up to the root command to recover the shared
// Globals populated by its persistent flags.
func globalsOf(cmd *cobra.Command) *command.Globals {
	root := cmd.Root()
	verbose, _ := root.PersistentFlags().GetBool("verbose")
	cwd, _ := root.PersistentFlags().GetString("cwd")
	return &command.Globals{Verbose: verbose, CWD: cwd}
}
