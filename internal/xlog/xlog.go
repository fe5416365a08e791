// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package xlog is the structured logging and step-timing helper
// shared by all commands, adapted from the teacher's trace package.
package xlog

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartbranch/smartbranch/internal/errs"
)

func location(skip int) (string, int) {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "?", line
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?", line
	}
	return fn.Name(), line
}

// Warn logs a Warning to the structured trace. Per the error taxonomy,
// warnings never reach the output stream directly.
func Warn(w *errs.Warning) {
	fn, line := location(2)
	logrus.WithField("at", fmt.Sprintf("%s:%d", fn, line)).Warn(w.Message)
}

// Errorf logs at error level and returns a plain error carrying the
// formatted message, mirroring the teacher's trace.Errorf.
func Errorf(format string, a ...any) error {
	fn, line := location(2)
	msg := fmt.Sprintf(format, a...)
	logrus.WithField("at", fmt.Sprintf("%s:%d", fn, line)).Error(msg)
	return fmt.Errorf("%s", msg)
}

// Tracker logs each step's elapsed time through logrus at debug level
// when debug mode is enabled.
type Tracker struct {
	debug bool
	last  time.Time
}

func NewTracker(debug bool) *Tracker {
	return &Tracker{debug: debug, last: time.Now()}
}

func (t *Tracker) StepNext(format string, a ...any) {
	if !t.debug {
		return
	}
	now := time.Now()
	logrus.Debugf("%s use time: %v", fmt.Sprintf(format, a...), now.Sub(t.last))
	t.last = now
}
