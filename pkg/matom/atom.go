// Package matom implements Mercury's L1 atom store: interning of RDF term
// bytes into 64-bit atom ids and back, content-addressed so re-interning
// identical bytes always returns the same id (§4.1).
//
// Layout follows the teacher's BoltStore (pkg/storage/boltdb.go): one
// bbolt database, one bucket per concern, opened once and shared across
// all higher layers. The two-bucket forward/reverse mapping (id->bytes,
// hash(bytes)->id) is the same shape boutros/sopp uses for its RDF term
// store (bucketTerms/bucketIdxTerms), adapted here to a content-hash key
// instead of the raw term bytes so predicate- and class-heavy graphs with
// long IRIs don't bloat the index bucket's key size.
package matom

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/mercury/pkg/merr"
	"github.com/cuemby/mercury/pkg/mterm"
)

var (
	bucketAtoms    = []byte("atoms")     // atom id (big-endian uint64) -> canonical bytes
	bucketAtomHash = []byte("atomhash")  // xxhash64(bytes) -> atom id
	bucketMeta     = []byte("atommeta")  // "next_id" -> big-endian uint64
)

var keyNextID = []byte("next_id")

// Store is the atom interning table for one Mercury store directory.
// Atom ids are assigned monotonically as they are first interned; the
// hash index makes the assignment content-addressed by always returning
// a previously-assigned id for bytes already seen, per §3's Atom
// definition and §4.1's intern/resolve contract.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the atom store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("matom: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAtoms, bucketAtomHash, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("matom: create bucket %s: %w", b, err)
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

// Intern assigns (or looks up) the atom id for term, writing its
// canonical bytes to the forward bucket on first sight.
func (s *Store) Intern(t mterm.Term) (mterm.AtomID, error) {
	encoded := mterm.Encode(t)
	hash := hashKey(encoded)

	var id mterm.AtomID
	err := s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketAtomHash)
		if existing := hb.Get(hash); existing != nil {
			id = binary.BigEndian.Uint64(existing)
			return nil
		}

		next, err := nextID(tx)
		if err != nil {
			return err
		}

		ab := tx.Bucket(bucketAtoms)
		idKey := idToKey(next)
		if err := ab.Put(idKey, encoded); err != nil {
			return err
		}
		if err := hb.Put(hash, idKey); err != nil {
			return err
		}
		id = next
		return nil
	})
	return id, err
}

// InternBatch interns many terms in one transaction, the access pattern
// codec loaders and batched Add use (§4.4 add_batched).
func (s *Store) InternBatch(terms []mterm.Term) ([]mterm.AtomID, error) {
	ids := make([]mterm.AtomID, len(terms))
	err := s.db.Update(func(tx *bolt.Tx) error {
		ab := tx.Bucket(bucketAtoms)
		hb := tx.Bucket(bucketAtomHash)
		for i, t := range terms {
			encoded := mterm.Encode(t)
			hash := hashKey(encoded)
			if existing := hb.Get(hash); existing != nil {
				ids[i] = binary.BigEndian.Uint64(existing)
				continue
			}
			next, err := nextIDLocked(tx)
			if err != nil {
				return err
			}
			idKey := idToKey(next)
			if err := ab.Put(idKey, encoded); err != nil {
				return err
			}
			if err := hb.Put(hash, idKey); err != nil {
				return err
			}
			ids[i] = next
		}
		return nil
	})
	return ids, err
}

// Resolve returns the decoded term for an atom id.
func (s *Store) Resolve(id mterm.AtomID) (mterm.Term, error) {
	var term mterm.Term
	err := s.db.View(func(tx *bolt.Tx) error {
		ab := tx.Bucket(bucketAtoms)
		raw := ab.Get(idToKey(id))
		if raw == nil {
			return fmt.Errorf("matom: atom %d not found", id)
		}
		decoded, err := mterm.Decode(raw)
		if err != nil {
			return err
		}
		term = decoded
		return nil
	})
	return term, err
}

// ResolveBatch resolves many atom ids in one read transaction, the shape
// the SPARQL result projector uses when materializing a solution window.
func (s *Store) ResolveBatch(ids []mterm.AtomID) ([]mterm.Term, error) {
	terms := make([]mterm.Term, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		ab := tx.Bucket(bucketAtoms)
		for i, id := range ids {
			raw := ab.Get(idToKey(id))
			if raw == nil {
				return fmt.Errorf("matom: atom %d not found", id)
			}
			t, err := mterm.Decode(raw)
			if err != nil {
				return err
			}
			terms[i] = t
		}
		return nil
	})
	return terms, err
}

// Lookup returns the atom id for term without interning it, reporting
// ok=false if it has never been interned.
func (s *Store) Lookup(t mterm.Term) (mterm.AtomID, bool, error) {
	encoded := mterm.Encode(t)
	hash := hashKey(encoded)
	var id mterm.AtomID
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketAtomHash)
		existing := hb.Get(hash)
		if existing == nil {
			return nil
		}
		id = binary.BigEndian.Uint64(existing)
		found = true
		return nil
	})
	return id, found, err
}

// Count returns the number of distinct atoms interned.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketAtoms).Stats().KeyN
		return nil
	})
	return n, err
}

// IterateAll streams every (id, term) pair to fn in id order, stopping on
// the first error fn returns.
func (s *Store) IterateAll(fn func(mterm.AtomID, mterm.Term) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAtoms).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			t, err := mterm.Decode(v)
			if err != nil {
				return err
			}
			if err := fn(binary.BigEndian.Uint64(k), t); err != nil {
				return err
			}
		}
		return nil
	})
}

func nextID(tx *bolt.Tx) (mterm.AtomID, error) {
	return nextIDLocked(tx)
}

// nextIDLocked must run inside an already-open write transaction; it
// reserves the next monotonic id, starting from 1 (0 is DefaultGraph's
// reserved sentinel, never an interned atom).
func nextIDLocked(tx *bolt.Tx) (mterm.AtomID, error) {
	meta := tx.Bucket(bucketMeta)
	raw := meta.Get(keyNextID)
	var next uint64 = 1
	if raw != nil {
		next = binary.BigEndian.Uint64(raw)
	}
	if next == 0 {
		return 0, merr.ErrIndexCorrupted
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := meta.Put(keyNextID, buf); err != nil {
		return 0, err
	}
	return next, nil
}

func idToKey(id mterm.AtomID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func hashKey(encoded []byte) []byte {
	h := xxhash.Sum64(encoded)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h)
	return buf
}
