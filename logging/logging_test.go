// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package logging_test

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/logging"
)

func TestLoggerLevels(t *testing.T) {
	b := logging.NewDiscard()

	runesLog := b.Logger("RNIX", btclog.LevelDebug)
	require.NotNil(t, runesLog)
	require.Equal(t, btclog.LevelDebug, runesLog.Level())

	watchdogLog := b.Logger("WDOG", btclog.LevelInfo)
	require.Equal(t, btclog.LevelInfo, watchdogLog.Level())
}

func TestNewWritesRotatingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "power.log")

	b, err := logging.New(logPath, 1<<20, 3)
	require.NoError(t, err)
	defer b.Close()

	log := b.Logger("TEST", btclog.LevelInfo)
	log.Info("hello")
}
