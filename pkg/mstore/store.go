// Package mstore implements Mercury's L4 bitemporal quad store facade:
// Add/Retract/QueryCurrent/QueryAsOf/QueryDuring/QueryAllVersions and the
// batch/lock primitives of §4.4, wiring together the atom store (matom),
// index store (mindex) and write-ahead log (mwal).
//
// The read/write locking discipline — readers take the lock, writers hold
// it exclusively for the duration of a commit — follows the teacher's
// pkg/manager FSM apply path (single-writer mutation serialized through
// one lock, readers served from the same in-memory structures); Mercury
// generalizes it to the bitemporal interval semantics of §4.4.
package mstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/mercury/pkg/matom"
	"github.com/cuemby/mercury/pkg/merr"
	"github.com/cuemby/mercury/pkg/mindex"
	"github.com/cuemby/mercury/pkg/mlog"
	"github.com/cuemby/mercury/pkg/mmetrics"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/mwal"
)

// Store is one bitemporal quad store: an atom table, five quad indices
// and a write-ahead log, all rooted at one directory.
type Store struct {
	mu  sync.RWMutex
	dir string

	atoms  *matom.Store
	index  *mindex.Store
	wal    *mwal.WAL
	log    mlog.Logger
	name   string // store role label for metrics (§4.4 get_statistics)

	nextTxID int64

	batchMu     sync.Mutex
	batchActive bool
	batchOps    []mwal.Op
	batchTxID   int64
}

// Open opens or creates a store rooted at dir, replaying the WAL to
// recover any transactions committed but not yet checkpointed into the
// index store.
func Open(dir string, name string, logger mlog.Logger) (*Store, error) {
	if logger == nil {
		logger = mlog.Nop{}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("mstore: mkdir %s: %w", dir, err)
	}

	atoms, err := matom.Open(filepath.Join(dir, "atoms.db"))
	if err != nil {
		return nil, err
	}
	index, err := mindex.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		atoms.Close()
		return nil, err
	}
	wal, err := mwal.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		atoms.Close()
		index.Close()
		return nil, err
	}

	s := &Store{dir: dir, name: name, atoms: atoms, index: index, wal: wal, log: logger}

	n, torn, err := mwal.Recover(filepath.Join(dir, "wal.log"), s.applyRecord)
	if err != nil {
		atoms.Close()
		index.Close()
		wal.Close()
		return nil, fmt.Errorf("mstore: recover: %w", err)
	}
	if n > 0 {
		mmetrics.RecoveredTxTotal.Add(float64(n))
		if logger.IsEnabled(mlog.InfoLevel) {
			logger.Log(mlog.InfoLevel, "replayed WAL transactions on open", "count", n, "store", name)
		}
	}
	if torn {
		mmetrics.TornFramesTotal.Inc()
		if logger.IsEnabled(mlog.WarnLevel) {
			logger.Log(mlog.WarnLevel, "discarded torn WAL tail on open", "store", name)
		}
	}

	return s, nil
}

// Close closes the underlying atom, index and WAL files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, c := range []func() error{s.wal.Close, s.index.Close, s.atoms.Close} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) applyRecord(rec mwal.Record) error {
	if rec.TxID > s.nextTxID {
		s.nextTxID = rec.TxID
	}
	rows := make([]mterm.VersionedQuad, 0, len(rec.Ops))
	for _, op := range rec.Ops {
		txTo := mterm.Forever
		if op.Kind == mwal.OpRetract {
			txTo = rec.TxID
		}
		rows = append(rows, mterm.VersionedQuad{
			Quad: op.Quad,
			Version: mterm.Version{
				ValidFrom: op.ValidFrom,
				ValidTo:   op.ValidTo,
				TxFrom:    rec.TxID,
				TxTo:      txTo,
			},
		})
	}
	return s.index.PutBatch(rows)
}

func (s *Store) allocTxID() int64 {
	s.nextTxID++
	return s.nextTxID
}

// Add interns subject/predicate/object/graph and records a new current
// version with the given valid-time interval (§4.4 Add). validTo may be
// mterm.Forever for an open-ended fact.
func (s *Store) Add(subj, pred, obj, graph mterm.Term, validFrom, validTo int64) error {
	timer := mmetrics.NewTimer()
	defer timer.ObserveDuration(mmetrics.AddDuration)

	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.internQuad(subj, pred, obj, graph)
	if err != nil {
		return err
	}
	txID := s.allocTxID()

	rec := mwal.Record{TxID: txID, Ops: []mwal.Op{{
		Kind: mwal.OpAdd, Quad: q, ValidFrom: validFrom, ValidTo: validTo,
	}}}
	if err := s.wal.Append(rec); err != nil {
		return err
	}
	if s.log.IsEnabled(mlog.DebugLevel) {
		s.log.Log(mlog.DebugLevel, "quad added", "tx_id", txID, "store", s.name)
	}
	return s.index.Put(mterm.VersionedQuad{
		Quad: q,
		Version: mterm.Version{
			ValidFrom: validFrom, ValidTo: validTo,
			TxFrom: txID, TxTo: mterm.Forever,
		},
	})
}

// Retract closes the transaction-time interval of the current version
// matching (subj, pred, obj, graph) as of now (§4.4 Retract). It is a
// logical delete: the row remains visible to QueryAsOf/QueryAllVersions
// for transaction times before the retraction.
func (s *Store) Retract(subj, pred, obj, graph mterm.Term) error {
	timer := mmetrics.NewTimer()
	defer timer.ObserveDuration(mmetrics.RetractDuration)

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok, err := s.lookupQuad(subj, pred, obj, graph)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	txID := s.allocTxID()
	rec := mwal.Record{TxID: txID, Ops: []mwal.Op{{Kind: mwal.OpRetract, Quad: q}}}
	if err := s.wal.Append(rec); err != nil {
		return err
	}

	var txFrom int64
	err = mindex.Scan(s.index, mindex.SPO, mindex.Pattern{
		S: q.S, P: q.P, O: q.O, G: q.G,
		SBound: true, PBound: true, OBound: true, GBound: true,
	}, func(row mindex.Row) bool {
		if row.Version.TxTo == mterm.Forever {
			txFrom = row.Version.TxFrom
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return s.index.CloseVersion(q, txFrom, txID)
}

func (s *Store) internQuad(subj, pred, obj, graph mterm.Term) (mterm.Quad, error) {
	ids, err := s.atoms.InternBatch([]mterm.Term{subj, pred, obj, graph})
	if err != nil {
		return mterm.Quad{}, err
	}
	return mterm.Quad{S: ids[0], P: ids[1], O: ids[2], G: ids[3]}, nil
}

func (s *Store) lookupQuad(subj, pred, obj, graph mterm.Term) (mterm.Quad, bool, error) {
	sID, ok, err := s.atoms.Lookup(subj)
	if err != nil || !ok {
		return mterm.Quad{}, false, err
	}
	pID, ok, err := s.atoms.Lookup(pred)
	if err != nil || !ok {
		return mterm.Quad{}, false, err
	}
	oID, ok, err := s.atoms.Lookup(obj)
	if err != nil || !ok {
		return mterm.Quad{}, false, err
	}
	gID, ok, err := s.atoms.Lookup(graph)
	if err != nil || !ok {
		return mterm.Quad{}, false, err
	}
	return mterm.Quad{S: sID, P: pID, O: oID, G: gID}, true, nil
}

// TermPattern names a bound-or-wildcard position in a quad pattern lookup
// at the Term level, resolved to atom ids internally before scanning.
type TermPattern struct {
	S, P, O, G           mterm.Term
	SBound, PBound       bool
	OBound, GBound       bool
}

func (s *Store) resolvePattern(p TermPattern) (mindex.Pattern, error) {
	var ip mindex.Pattern
	if p.SBound {
		id, ok, err := s.atoms.Lookup(p.S)
		if err != nil {
			return ip, err
		}
		if !ok {
			return ip, errNoMatch
		}
		ip.S, ip.SBound = id, true
	}
	if p.PBound {
		id, ok, err := s.atoms.Lookup(p.P)
		if err != nil {
			return ip, err
		}
		if !ok {
			return ip, errNoMatch
		}
		ip.P, ip.PBound = id, true
	}
	if p.OBound {
		id, ok, err := s.atoms.Lookup(p.O)
		if err != nil {
			return ip, err
		}
		if !ok {
			return ip, errNoMatch
		}
		ip.O, ip.OBound = id, true
	}
	if p.GBound {
		id, ok, err := s.atoms.Lookup(p.G)
		if err != nil {
			return ip, err
		}
		if !ok {
			return ip, errNoMatch
		}
		ip.G, ip.GBound = id, true
	}
	return ip, nil
}

var errNoMatch = fmt.Errorf("mstore: pattern term never interned")

// QueryCurrent streams every versioned quad matching pattern whose
// version is current as of now (§4.4).
func (s *Store) QueryCurrent(p TermPattern, now int64, fn func(mterm.Quad, mterm.Version) bool) error {
	return s.query(p, func(row mindex.Row) bool {
		if !row.Version.IsCurrent(now) {
			return true
		}
		return fn(row.Quad, row.Version)
	})
}

// QueryAsOf streams every versioned quad matching pattern whose interval
// held at instant t (§4.4).
func (s *Store) QueryAsOf(p TermPattern, t int64, fn func(mterm.Quad, mterm.Version) bool) error {
	return s.query(p, func(row mindex.Row) bool {
		if !row.Version.HoldsAsOf(t) {
			return true
		}
		return fn(row.Quad, row.Version)
	})
}

// QueryDuring streams every versioned quad matching pattern whose valid
// interval overlaps [t1, t2) (§4.4).
func (s *Store) QueryDuring(p TermPattern, t1, t2 int64, fn func(mterm.Quad, mterm.Version) bool) error {
	return s.query(p, func(row mindex.Row) bool {
		if !row.Version.OverlapsValid(t1, t2) {
			return true
		}
		return fn(row.Quad, row.Version)
	})
}

// QueryAllVersions streams every version of every quad matching pattern,
// regardless of temporal state (§4.4).
func (s *Store) QueryAllVersions(p TermPattern, fn func(mterm.Quad, mterm.Version) bool) error {
	return s.query(p, func(row mindex.Row) bool { return fn(row.Quad, row.Version) })
}

func (s *Store) query(p TermPattern, fn func(mindex.Row) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ip, err := s.resolvePattern(p)
	if err != nil {
		if err == errNoMatch {
			return nil
		}
		return err
	}
	order := mindex.SelectOrder(ip)
	return mindex.Scan(s.index, order, ip, fn)
}

// BeginBatch starts a batched write transaction (§4.4 begin_batch).
func (s *Store) BeginBatch() error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if s.batchActive {
		return merr.ErrBatchAlreadyActive
	}
	s.batchActive = true
	s.batchOps = nil
	return nil
}

// AddBatched stages an add within the active batch without writing to
// the WAL or index until CommitBatch (§4.4 add_batched).
func (s *Store) AddBatched(subj, pred, obj, graph mterm.Term, validFrom, validTo int64) error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if !s.batchActive {
		return merr.ErrBatchNotActive
	}
	q, err := s.internQuad(subj, pred, obj, graph)
	if err != nil {
		return err
	}
	s.batchOps = append(s.batchOps, mwal.Op{Kind: mwal.OpAdd, Quad: q, ValidFrom: validFrom, ValidTo: validTo})
	return nil
}

// CommitBatch appends every staged op as a single WAL transaction and
// applies it to the index store atomically (§4.4 commit_batch).
func (s *Store) CommitBatch() error {
	timer := mmetrics.NewTimer()
	defer timer.ObserveDuration(mmetrics.BatchCommitDuration)

	s.batchMu.Lock()
	if !s.batchActive {
		s.batchMu.Unlock()
		return merr.ErrBatchNotActive
	}
	ops := s.batchOps
	s.batchActive = false
	s.batchOps = nil
	s.batchMu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txID := s.allocTxID()
	if err := s.wal.Append(mwal.Record{TxID: txID, Ops: ops}); err != nil {
		return err
	}
	rows := make([]mterm.VersionedQuad, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, mterm.VersionedQuad{
			Quad: op.Quad,
			Version: mterm.Version{
				ValidFrom: op.ValidFrom, ValidTo: op.ValidTo,
				TxFrom: txID, TxTo: mterm.Forever,
			},
		})
	}
	return s.index.PutBatch(rows)
}

// RollbackBatch discards every staged op without writing anything
// (§4.4 rollback_batch).
func (s *Store) RollbackBatch() error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if !s.batchActive {
		return merr.ErrBatchNotActive
	}
	s.batchActive = false
	s.batchOps = nil
	return nil
}

// Checkpoint flushes a WAL checkpoint marker at the current tx id
// (§4.3). Nothing in the module calls it on a schedule; callers invoke it
// directly.
func (s *Store) Checkpoint() error {
	timer := mmetrics.NewTimer()
	defer timer.ObserveDuration(mmetrics.CheckpointDuration)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Checkpoint(s.nextTxID)
}

// Statistics is the summary returned by get_statistics (§4.4).
type Statistics struct {
	QuadsTotal int
	AtomsTotal int
	StoreBytes int64
}

// GetStatistics reports atom/quad counts and on-disk size.
func (s *Store) GetStatistics() (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	atomCount, err := s.atoms.Count()
	if err != nil {
		return Statistics{}, err
	}
	var quadCount int
	err = mindex.Scan(s.index, mindex.SPO, mindex.Pattern{}, func(mindex.Row) bool {
		quadCount++
		return true
	})
	if err != nil {
		return Statistics{}, err
	}

	var size int64
	for _, f := range []string{"atoms.db", "index.db", "wal.log"} {
		if fi, err := os.Stat(filepath.Join(s.dir, f)); err == nil {
			size += fi.Size()
		}
	}

	mmetrics.QuadsTotal.WithLabelValues(s.name).Set(float64(quadCount))
	mmetrics.AtomsTotal.WithLabelValues(s.name).Set(float64(atomCount))
	mmetrics.StoreBytes.WithLabelValues(s.name).Set(float64(size))

	return Statistics{QuadsTotal: quadCount, AtomsTotal: atomCount, StoreBytes: size}, nil
}

// WALStatistics reports the write-ahead log's durability watermarks and
// size (§4.4 get_wal_statistics), the figures a prune/checkpoint
// scheduler uses to decide whether a checkpoint is overdue.
func (s *Store) WALStatistics() (mwal.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wal.Statistics()
}

// Atoms exposes the underlying atom store for callers that need direct
// intern/resolve access (the SPARQL executor and RDF codec loaders).
func (s *Store) Atoms() *matom.Store { return s.atoms }

// Index exposes the underlying index store for the query planner.
func (s *Store) Index() *mindex.Store { return s.index }
