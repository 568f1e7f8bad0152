// Package mindex implements Mercury's L2 index store: five B+Tree
// orderings of versioned quads over a single bbolt database (§4.2).
//
// The key-ordering and prefix-scan technique is grounded on
// aleksaelezovic/trigo's store/query.go selectIndex/buildScanPrefix
// (choose the index whose key prefix matches the pattern's bound
// positions, then Cursor.Seek to that prefix); the bucket-per-index
// layout is grounded on boutros/sopp's bucketSPO/bucketPOS/bucketOSP and
// the teacher's one-bucket-per-concern BoltStore. Mercury adds a graph
// position and bitemporal version suffix neither reference store needs:
// GSPO serves named-graph-bound patterns and TSPO orders by transaction
// time; TSPO is written on every put, but SelectOrder never picks it and
// nothing in this module scans it.
package mindex

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/mercury/pkg/mterm"
)

// Order names the five orderings a versioned quad is indexed under.
type Order uint8

const (
	SPO Order = iota
	POS
	OSP
	GSPO
	TSPO // ordered by (tx_from, S, P, O, G); never chosen by SelectOrder
)

func (o Order) bucket() []byte {
	switch o {
	case SPO:
		return []byte("idx_spo")
	case POS:
		return []byte("idx_pos")
	case OSP:
		return []byte("idx_osp")
	case GSPO:
		return []byte("idx_gspo")
	case TSPO:
		return []byte("idx_tspo")
	default:
		panic("mindex: unknown order")
	}
}

var allOrders = []Order{SPO, POS, OSP, GSPO, TSPO}

// Store owns the bbolt database holding all five index buckets.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the index store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("mindex: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, o := range allOrders {
			if _, err := tx.CreateBucketIfNotExists(o.bucket()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put writes one versioned quad row into all five index orderings within
// a single write transaction, the same all-or-nothing update shape as
// sopp's storeTriple across bucketSPO/bucketPOS/bucketOSP.
func (s *Store) Put(vq mterm.VersionedQuad) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.putLocked(tx, vq)
	})
}

// PutBatch writes many versioned quads in one transaction (§4.4
// add_batched, and WAL replay on recovery).
func (s *Store) PutBatch(rows []mterm.VersionedQuad) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, vq := range rows {
			if err := s.putLocked(tx, vq); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) putLocked(tx *bolt.Tx, vq mterm.VersionedQuad) error {
	val := encodeVersion(vq.Version)
	for _, o := range allOrders {
		b := tx.Bucket(o.bucket())
		key := buildKey(o, vq.Quad, vq.Version.TxFrom)
		if err := b.Put(key, val); err != nil {
			return fmt.Errorf("mindex: put %v: %w", o, err)
		}
	}
	return nil
}

// Close a version's open tx_to (a logical retraction or superseding
// update, §4.4 Retract) by rewriting its row with a closed interval.
func (s *Store) CloseVersion(q mterm.Quad, txFrom int64, txTo int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, o := range allOrders {
			b := tx.Bucket(o.bucket())
			key := buildKey(o, q, txFrom)
			raw := b.Get(key)
			if raw == nil {
				continue
			}
			v := decodeVersion(raw)
			v.TxTo = txTo
			if err := b.Put(key, encodeVersion(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Row is one scan result: the quad plus its version interval.
type Row = mterm.VersionedQuad

// Scan iterates every row whose key begins with the bound-prefix derived
// from pattern (S, P, O, G; use mterm.AtomID(0) with bound=false for a
// wildcard position), calling fn for each until it returns false or the
// index is exhausted.
func Scan(s *Store, order Order, pattern Pattern, fn func(Row) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(order.bucket())
		c := b.Cursor()
		prefix := buildPrefix(order, pattern)
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			row := decodeRow(order, k, v)
			if !fn(row) {
				break
			}
		}
		return nil
	})
}

// Pattern names which of S/P/O/G are bound for an index lookup; unbound
// positions are zero-valued and Bound is false for them.
type Pattern struct {
	S, P, O, G         mterm.AtomID
	SBound, PBound     bool
	OBound, GBound     bool
}

// SelectOrder picks the index ordering whose key prefix covers the most
// leading bound positions for pattern, the same decision trigo's
// selectIndex makes from sBound/pBound/oBound/gBound.
func SelectOrder(p Pattern) Order {
	switch {
	case p.GBound && p.SBound:
		return GSPO
	case p.SBound && p.PBound:
		return SPO
	case p.PBound && p.OBound:
		return POS
	case p.OBound && p.SBound:
		return OSP
	case p.GBound:
		return GSPO
	case p.SBound:
		return SPO
	case p.PBound:
		return POS
	case p.OBound:
		return OSP
	default:
		return SPO
	}
}

func buildKey(o Order, q mterm.Quad, txFrom int64) []byte {
	buf := make([]byte, 40)
	switch o {
	case SPO:
		putU64(buf[0:8], q.S)
		putU64(buf[8:16], q.P)
		putU64(buf[16:24], q.O)
		putU64(buf[24:32], q.G)
	case POS:
		putU64(buf[0:8], q.P)
		putU64(buf[8:16], q.O)
		putU64(buf[16:24], q.S)
		putU64(buf[24:32], q.G)
	case OSP:
		putU64(buf[0:8], q.O)
		putU64(buf[8:16], q.S)
		putU64(buf[16:24], q.P)
		putU64(buf[24:32], q.G)
	case GSPO:
		putU64(buf[0:8], q.G)
		putU64(buf[8:16], q.S)
		putU64(buf[16:24], q.P)
		putU64(buf[24:32], q.O)
	case TSPO:
		binary.BigEndian.PutUint64(buf[0:8], uint64(txFrom))
		putU64(buf[8:16], q.S)
		putU64(buf[16:24], q.P)
		putU64(buf[24:32], q.O)
		putU64(buf[32:40], q.G)
		return buf
	}
	putU64(buf[32:40], txFrom)
	return buf
}

func buildPrefix(o Order, p Pattern) []byte {
	var fields []mterm.AtomID
	var bound []bool
	switch o {
	case SPO:
		fields = []mterm.AtomID{p.S, p.P, p.O, p.G}
		bound = []bool{p.SBound, p.PBound, p.OBound, p.GBound}
	case POS:
		fields = []mterm.AtomID{p.P, p.O, p.S, p.G}
		bound = []bool{p.PBound, p.OBound, p.SBound, p.GBound}
	case OSP:
		fields = []mterm.AtomID{p.O, p.S, p.P, p.G}
		bound = []bool{p.OBound, p.SBound, p.PBound, p.GBound}
	case GSPO:
		fields = []mterm.AtomID{p.G, p.S, p.P, p.O}
		bound = []bool{p.GBound, p.SBound, p.PBound, p.OBound}
	case TSPO:
		// TSPO has no natural prefix from an SPOG pattern, so a scan of
		// it visits every key; SelectOrder never picks it.
		return nil
	}
	var prefix []byte
	for i, f := range fields {
		if !bound[i] {
			break
		}
		b := make([]byte, 8)
		putU64(b, f)
		prefix = append(prefix, b...)
	}
	return prefix
}

func decodeRow(o Order, key, val []byte) Row {
	var q mterm.Quad
	switch o {
	case SPO:
		q = mterm.Quad{S: getU64(key[0:8]), P: getU64(key[8:16]), O: getU64(key[16:24]), G: getU64(key[24:32])}
	case POS:
		q = mterm.Quad{P: getU64(key[0:8]), O: getU64(key[8:16]), S: getU64(key[16:24]), G: getU64(key[24:32])}
	case OSP:
		q = mterm.Quad{O: getU64(key[0:8]), S: getU64(key[8:16]), P: getU64(key[16:24]), G: getU64(key[24:32])}
	case GSPO:
		q = mterm.Quad{G: getU64(key[0:8]), S: getU64(key[8:16]), P: getU64(key[16:24]), O: getU64(key[24:32])}
	case TSPO:
		q = mterm.Quad{S: getU64(key[8:16]), P: getU64(key[16:24]), O: getU64(key[24:32]), G: getU64(key[32:40])}
	}
	return Row{Quad: q, Version: decodeVersion(val)}
}

func hasPrefix(key, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

func putU64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
func getU64(b []byte) uint64    { return binary.BigEndian.Uint64(b) }

func encodeVersion(v mterm.Version) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[0:8], uint64(v.ValidFrom))
	binary.BigEndian.PutUint64(buf[8:16], uint64(v.ValidTo))
	binary.BigEndian.PutUint64(buf[16:24], uint64(v.TxFrom))
	binary.BigEndian.PutUint64(buf[24:32], uint64(v.TxTo))
	return buf
}

func decodeVersion(b []byte) mterm.Version {
	return mterm.Version{
		ValidFrom: int64(binary.BigEndian.Uint64(b[0:8])),
		ValidTo:   int64(binary.BigEndian.Uint64(b[8:16])),
		TxFrom:    int64(binary.BigEndian.Uint64(b[16:24])),
		TxTo:      int64(binary.BigEndian.Uint64(b[24:32])),
	}
}
