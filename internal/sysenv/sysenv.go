// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sysenv sanitizes the environment passed to sub-VCS
// invocations, adapted from the teacher's modules/env package. Where
// the teacher denies an exact set of keys, smartbranch strips every
// variable beginning with "GIT_" per the external-interfaces contract
// (prevents test-harness leakage of things like GIT_INDEX_FILE).
package sysenv

import (
	"os"
	"strings"
)

const gitPrefix = "GIT_"

// Sanitize returns the current process environment with every
// GIT_-prefixed variable removed.
func Sanitize() []string {
	return SanitizeFrom(os.Environ())
}

// SanitizeFrom filters an arbitrary "KEY=VALUE" slice, exposed
// separately so callers (and tests) can avoid depending on the real
// process environment.
func SanitizeFrom(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, e := range environ {
		k, _, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(k, gitPrefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}
