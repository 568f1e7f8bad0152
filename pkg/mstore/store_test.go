package mstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mlog"
	"github.com/cuemby/mercury/pkg/mterm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "test", mlog.Nop{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	alice  = mterm.IRI("http://example.org/alice")
	knows  = mterm.IRI("http://example.org/knows")
	bob    = mterm.IRI("http://example.org/bob")
	graph1 = mterm.IRI("http://example.org/g1")
)

func TestAddAndQueryCurrent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))

	var rows []mterm.Quad
	err := s.QueryCurrent(TermPattern{S: alice, SBound: true}, 100, func(q mterm.Quad, v mterm.Version) bool {
		rows = append(rows, q)
		return true
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRetractClosesCurrentVersion(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))
	require.NoError(t, s.Retract(alice, knows, bob, graph1))

	var rows []mterm.Quad
	err := s.QueryCurrent(TermPattern{S: alice, SBound: true}, 100, func(q mterm.Quad, v mterm.Version) bool {
		rows = append(rows, q)
		return true
	})
	require.NoError(t, err)
	assert.Empty(t, rows, "retracted quads are not current")
}

func TestRetractOfUnknownQuadIsNoop(t *testing.T) {
	s := openTestStore(t)
	err := s.Retract(alice, knows, bob, graph1)
	assert.NoError(t, err)
}

func TestQueryAllVersionsSeesRetractedHistory(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))
	require.NoError(t, s.Retract(alice, knows, bob, graph1))

	count := 0
	err := s.QueryAllVersions(TermPattern{S: alice, SBound: true}, func(q mterm.Quad, v mterm.Version) bool {
		count++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "retraction closes tx_to but the row stays visible to AllVersions")
}

func TestBatchCommit(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.BeginBatch())
	require.NoError(t, s.AddBatched(alice, knows, bob, graph1, 0, mterm.Forever))
	require.NoError(t, s.CommitBatch())

	var rows []mterm.Quad
	err := s.QueryCurrent(TermPattern{S: alice, SBound: true}, 100, func(q mterm.Quad, v mterm.Version) bool {
		rows = append(rows, q)
		return true
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBatchRollbackDiscardsOps(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.BeginBatch())
	require.NoError(t, s.AddBatched(alice, knows, bob, graph1, 0, mterm.Forever))
	require.NoError(t, s.RollbackBatch())

	var rows []mterm.Quad
	err := s.QueryCurrent(TermPattern{S: alice, SBound: true}, 100, func(q mterm.Quad, v mterm.Version) bool {
		rows = append(rows, q)
		return true
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBeginBatchTwiceFails(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.BeginBatch())
	defer s.RollbackBatch()
	assert.Error(t, s.BeginBatch())
}

func TestAddBatchedWithoutBeginFails(t *testing.T) {
	s := openTestStore(t)
	err := s.AddBatched(alice, knows, bob, graph1, 0, mterm.Forever)
	assert.Error(t, err)
}

func TestGetStatistics(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))

	stats, err := s.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.QuadsTotal)
	assert.Equal(t, 4, stats.AtomsTotal)
}

func TestWALStatistics(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))

	stats, err := s.WALStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.LastTxID)
}

func TestCheckpoint(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))
	assert.NoError(t, s.Checkpoint())

	wal, err := s.WALStatistics()
	require.NoError(t, err)
	assert.Equal(t, wal.LastTxID, wal.CheckpointTxID)
}

func TestQueryAsOfValidTime(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 100, 200))

	var found bool
	err := s.QueryAsOf(TermPattern{S: alice, SBound: true}, 150, func(q mterm.Quad, v mterm.Version) bool {
		found = true
		return true
	})
	require.NoError(t, err)
	assert.True(t, found)

	found = false
	err = s.QueryAsOf(TermPattern{S: alice, SBound: true}, 250, func(q mterm.Quad, v mterm.Version) bool {
		found = true
		return true
	})
	require.NoError(t, err)
	assert.False(t, found, "valid_to is exclusive")
}

func TestReopenRecoversFromWAL(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "test", mlog.Nop{})
	require.NoError(t, err)
	require.NoError(t, s.Add(alice, knows, bob, graph1, 0, mterm.Forever))
	require.NoError(t, s.Close())

	s2, err := Open(dir, "test", mlog.Nop{})
	require.NoError(t, err)
	defer s2.Close()

	var rows []mterm.Quad
	err = s2.QueryCurrent(TermPattern{S: alice, SBound: true}, 100, func(q mterm.Quad, v mterm.Version) bool {
		rows = append(rows, q)
		return true
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "WAL replay on open restores the unrecovered write")
}
