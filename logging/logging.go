// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package logging wires the project's leveled logger backbone: every
// long-running component (indexers, watchdog, builders) takes a
// btclog.Logger the same way btcutil/txscript/psbt take theirs, and the
// service process wires one btclog.Backend over stdout plus a rotating
// log file at startup.
package logging

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter fans out log bytes to both stdout and the rotator, matching
// the pattern used throughout the btcsuite ecosystem's own log.go files.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	return w.rotator.Write(p)
}

// Backend is the shared leveled-logging backend every subsystem logger is
// derived from.
type Backend struct {
	backend *btclog.Backend
	rotator *rotator.Rotator
}

// New opens (creating parent directories if needed) a rotating log file
// at logPath and returns a Backend that writes to both it and stdout.
// thresholdBytes bounds each rotated file's size before the rotator cuts
// a new one, keeping at most maxRolls historical files.
func New(logPath string, thresholdBytes int64, maxRolls int) (*Backend, error) {
	r, err := rotator.New(logPath, thresholdBytes, false, maxRolls)
	if err != nil {
		return nil, err
	}

	return &Backend{
		backend: btclog.NewBackend(logWriter{rotator: r}),
		rotator: r,
	}, nil
}

// NewDiscard returns a Backend that writes nowhere, for tests that need a
// Logger but don't care about its output.
func NewDiscard() *Backend {
	return &Backend{backend: btclog.NewBackend(io.Discard)}
}

// Logger derives a named subsystem logger at the given level (e.g.
// "RNIX" for the runes indexer, "BTIX" for the BTC indexer, "WDOG" for
// the watchdog, "ETCH"/"POOL" for the two tx builders).
func (b *Backend) Logger(subsystem string, level btclog.Level) btclog.Logger {
	l := b.backend.Logger(subsystem)
	l.SetLevel(level)
	return l
}

// Close flushes and closes the underlying rotator, if any.
func (b *Backend) Close() error {
	if b.rotator == nil {
		return nil
	}
	return b.rotator.Close()
}
