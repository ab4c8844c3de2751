// Package corpus is a bbolt-backed implementation of executor.Queue, the
// seed corpus spec.md §6 treats as an external collaborator it only
// specifies at the interface. Entries are persisted to a single bbolt
// file; each entry's raw bytes are additionally snapshotted to a
// separate directory via an atomic rename, the way the teacher's
// SeedWriter keeps a durable on-disk copy of its best seeds.
package corpus

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	bolt "go.etcd.io/bbolt"

	"github.com/raresmith/branchfuzz/internal/executor"
)

var entriesBucket = []byte("entries")

// Queue is a durable corpus store. It satisfies executor.Queue.
type Queue struct {
	db      *bolt.DB
	dumpDir string

	mu    sync.RWMutex
	count int
}

// Open creates or reopens a corpus at path, dumping raw entry bytes under
// dumpDir (created if missing) for external reproduction tooling.
func Open(path, dumpDir string) (*Queue, error) {
	if dumpDir != "" {
		if err := os.MkdirAll(dumpDir, 0o755); err != nil {
			return nil, fmt.Errorf("corpus: creating dump dir %s: %w", dumpDir, err)
		}
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("corpus: opening %s: %w", path, err)
	}

	q := &Queue{db: db, dumpDir: dumpDir}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(entriesBucket)
		if err != nil {
			return err
		}
		q.count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("corpus: initializing bucket: %w", err)
	}
	return q, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func encodeEntry(e *executor.QueueEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*executor.QueueEntry, error) {
	var e executor.QueueEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Enqueue stores a new entry for bytes/footprint and returns its id. The
// raw bytes are also snapshotted to dumpDir under a random uuid name via
// an atomic (write-temp, rename) file write, so a partially-written dump
// never masquerades as a complete one.
func (q *Queue) Enqueue(buf, footprint []byte) (uint64, error) {
	entry := &executor.QueueEntry{Bytes: append([]byte(nil), buf...), Footprint: append([]byte(nil), footprint...)}

	var id uint64
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		entry.ID = id
		enc, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), enc)
	})
	if err != nil {
		return 0, fmt.Errorf("corpus: enqueue: %w", err)
	}

	q.mu.Lock()
	q.count++
	q.mu.Unlock()

	if q.dumpDir != "" {
		name := filepath.Join(q.dumpDir, uuid.NewString()+".bin")
		if err := atomic.WriteFile(name, bytes.NewReader(buf)); err != nil {
			return id, fmt.Errorf("corpus: dumping entry %d: %w", id, err)
		}
	}

	return id, nil
}

// Save overwrites an existing entry in place (e.g. after trimming or
// setting WasFuzzed/TrimDone/PassedDet flags).
func (q *Queue) Save(e *executor.QueueEntry) error {
	enc, err := encodeEntry(e)
	if err != nil {
		return fmt.Errorf("corpus: encoding entry %d: %w", e.ID, err)
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put(idKey(e.ID), enc)
	})
}

// Len returns the number of stored entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

// EntryAt returns the idx-th entry in ascending id order. Queue is not
// sharded or indexed beyond bbolt's own B+tree key order, so this is a
// linear scan; corpora are expected to be small enough (thousands, not
// millions, of entries) for that to be acceptable, matching the spec's
// explicit non-goal of a scoring/weighting engine.
func (q *Queue) EntryAt(idx int) (*executor.QueueEntry, bool) {
	if idx < 0 {
		return nil, false
	}
	var found *executor.QueueEntry
	err := q.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		i := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if i == idx {
				e, err := decodeEntry(v)
				if err != nil {
					return err
				}
				found = e
				return nil
			}
			i++
		}
		return nil
	})
	if err != nil || found == nil {
		return nil, false
	}
	return found, true
}

// RandomEntry returns a uniformly random entry, matching the spec's
// "iterate random entries" queue-service model rather than any
// scoring/weighting scheme.
func (q *Queue) RandomEntry() (*executor.QueueEntry, bool) {
	n := q.Len()
	if n == 0 {
		return nil, false
	}
	return q.EntryAt(rand.Intn(n))
}
