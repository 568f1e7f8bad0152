package mwal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mterm"
)

func sampleRecord(txID int64) Record {
	return Record{
		TxID: txID,
		Ops: []Op{
			{Kind: OpAdd, Quad: mterm.Quad{S: uint64(txID), P: 2, O: 3, G: 4}, ValidFrom: 0, ValidTo: mterm.Forever},
		},
	}
}

func TestAppendAndStatistics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(sampleRecord(1)))

	stats, err := w.Statistics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.LastTxID)
	assert.Equal(t, int64(0), stats.CheckpointTxID)
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestCheckpointUpdatesStatistics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(sampleRecord(1)))
	require.NoError(t, w.Append(sampleRecord(2)))
	require.NoError(t, w.Checkpoint(2))

	stats, err := w.Statistics()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.LastTxID)
	assert.Equal(t, int64(2), stats.CheckpointTxID)
}

func TestRecoverReplaysRecordsAfterCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(sampleRecord(1)))
	require.NoError(t, w.Append(sampleRecord(2)))
	require.NoError(t, w.Checkpoint(1))
	require.NoError(t, w.Append(sampleRecord(3)))
	require.NoError(t, w.Close())

	var replayedIDs []int64
	n, torn, err := Recover(path, func(r Record) error {
		replayedIDs = append(replayedIDs, r.TxID)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, torn)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{2, 3}, replayedIDs, "only records after the checkpoint replay")
}

func TestRecoverOnMissingFileIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")
	n, torn, err := Recover(path, func(Record) error { return nil })
	require.NoError(t, err)
	assert.False(t, torn)
	assert.Equal(t, 0, n)
}

func TestRecoverTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRecord(1)))
	require.NoError(t, w.Close())

	// Simulate a crash mid-append: a few stray bytes after a complete,
	// valid frame.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte{frameKindRecord, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var replayed []int64
	n, torn, err := Recover(path, func(r Record) error {
		replayed = append(replayed, r.TxID)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, torn)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, replayed)
}
