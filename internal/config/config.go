// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads and merges the branchless.* configuration
// recognized by the core, adapted from the teacher's
// modules/zeta/config layered-overwrite pattern.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up under the repository's
// smartbranch metadata directory.
const FileName = "config.toml"

// Restack holds branchless.restack.* keys.
type Restack struct {
	PreserveTimestamps bool `toml:"preserveTimestamps,omitempty"`
}

func (r *Restack) overwrite(o Restack) {
	if o.PreserveTimestamps {
		r.PreserveTimestamps = o.PreserveTimestamps
	}
}

// Hint holds branchless.hint.* keys.
type Hint struct {
	SmartlogFixAbandoned *bool `toml:"smartlogFixAbandoned,omitempty"`
}

func (h *Hint) overwrite(o Hint) {
	if o.SmartlogFixAbandoned != nil {
		h.SmartlogFixAbandoned = o.SmartlogFixAbandoned
	}
}

// FixAbandoned returns the effective value of
// branchless.hint.smartlogFixAbandoned, defaulting to true per §6.
func (h Hint) FixAbandoned() bool {
	if h.SmartlogFixAbandoned == nil {
		return true
	}
	return *h.SmartlogFixAbandoned
}

// Core holds branchless.core.* keys. MainBranch is a supplemental key
// (see SPEC_FULL.md §6 / DESIGN.md) letting the main branch name be
// configured instead of hardcoded.
type Core struct {
	MainBranch string `toml:"mainBranch,omitempty"`
}

func (c *Core) overwrite(o Core) {
	if o.MainBranch != "" {
		c.MainBranch = o.MainBranch
	}
}

// DefaultMainBranch is used when branchless.core.mainBranch is unset.
const DefaultMainBranch = "master"

// MainBranchOrDefault returns the configured main branch, or the default.
func (c Core) MainBranchOrDefault() string {
	if c.MainBranch == "" {
		return DefaultMainBranch
	}
	return c.MainBranch
}

// Branchless is the "branchless" TOML table, matching spec.md §6's
// dotted key namespace (branchless.restack.*, branchless.hint.*).
type Branchless struct {
	Restack Restack `toml:"restack,omitempty"`
	Hint    Hint    `toml:"hint,omitempty"`
	Core    Core    `toml:"core,omitempty"`
}

func (b *Branchless) Overwrite(o Branchless) {
	b.Restack.overwrite(o.Restack)
	b.Hint.overwrite(o.Hint)
	b.Core.overwrite(o.Core)
}

// Config is the top-level document this package decodes.
type Config struct {
	Branchless Branchless `toml:"branchless,omitempty"`
}

// Load reads and decodes the config file at path. A missing file
// yields a zero-value Config and no error, matching the teacher's
// tolerant config-loading style (absent config means all defaults).
func Load(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// LoadLayered loads a system-wide config (may be absent) then a
// repository-local config and overwrites the former with the latter,
// mirroring modules/zeta/config.Config.Overwrite's merge direction.
func LoadLayered(systemPath, localPath string) (Config, error) {
	sys, err := Load(systemPath)
	if err != nil {
		return sys, err
	}
	local, err := Load(localPath)
	if err != nil {
		return sys, err
	}
	sys.Branchless.Overwrite(local.Branchless)
	return sys, nil
}

// RepoConfigPath returns the conventional local config path for a
// repository worktree rooted at dir.
func RepoConfigPath(dir string) string {
	return filepath.Join(dir, ".smartbranch", FileName)
}
