// Package storage keeps an on-disk audit journal of published inventory
// snapshots. The journal is write-only from the inventory's point of view:
// the live inventory is never restored from it.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// ErrNotFound is returned for journal sequence numbers that are not stored.
var ErrNotFound = errors.New("journal entry not found")

// Bucket names in bbolt
var (
	bucketSnapshots = []byte("snapshots")
	bucketMeta      = []byte("meta")
	keyCurrentSeq   = []byte("current_seq")
)

// DefaultKeep is the number of snapshots retained when none is configured.
const DefaultKeep = 50

// Entry summarizes one journaled snapshot.
type Entry struct {
	Seq        uint64         `json:"seq"`
	Revision   uint64         `json:"revision"`
	Source     string         `json:"source"`
	Account    string         `json:"account,omitempty"`
	LoadedAt   time.Time      `json:"loadedAt"`
	Resources  int            `json:"resources"`
	TotalCost  float64        `json:"totalCost"`
	RiskCounts map[string]int `json:"riskCounts"`
}

// Record is a journal entry with the full resource list.
type Record struct {
	Entry
	Snapshot []resource.Resource `json:"snapshot"`
}

// Journal stores snapshots in bbolt with an in-memory btree index of entries.
type Journal struct {
	mu    sync.RWMutex
	db    *bbolt.DB
	index *btree.BTreeG[Entry]
	seq   uint64
	keep  int
}

// Open opens or creates the journal file at path, keeping at most keep snapshots.
func Open(path string, keep int) (*Journal, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketSnapshots, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal buckets: %w", err)
	}

	j := &Journal{
		db: db,
		index: btree.NewG[Entry](32, func(a, b Entry) bool {
			return a.Seq < b.Seq
		}),
		keep: keep,
	}
	if err := j.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Emit journals a snapshot and compacts entries beyond the retention limit.
func (j *Journal) Emit(_ context.Context, snap *resource.Snapshot) error {
	if snap == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rec := Record{Entry: summarize(j.seq+1, snap), Snapshot: snap.Resources}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot %d: %w", snap.Revision, err)
	}

	var pruned []uint64
	err = j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if err := bucket.Put(makeKey(rec.Seq), value); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMeta).Put(keyCurrentSeq, makeKey(rec.Seq)); err != nil {
			return err
		}

		excess := j.index.Len() + 1 - j.keep
		var delErr error
		j.index.Ascend(func(e Entry) bool {
			if len(pruned) >= excess {
				return false
			}
			if delErr = bucket.Delete(makeKey(e.Seq)); delErr != nil {
				return false
			}
			pruned = append(pruned, e.Seq)
			return true
		})
		return delErr
	})
	if err != nil {
		return fmt.Errorf("journal snapshot %d: %w", snap.Revision, err)
	}

	j.seq = rec.Seq
	j.index.ReplaceOrInsert(rec.Entry)
	for _, seq := range pruned {
		j.index.Delete(Entry{Seq: seq})
	}
	return nil
}

// History returns up to limit entries, newest first. A limit <= 0 returns all.
func (j *Journal) History(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := make([]Entry, 0, j.index.Len())
	j.index.Descend(func(e Entry) bool {
		if limit > 0 && len(entries) >= limit {
			return false
		}
		entries = append(entries, e)
		return true
	})
	return entries
}

// Get loads a full journal record.
func (j *Journal) Get(seq uint64) (Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var rec Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketSnapshots).Get(makeKey(seq))
		if value == nil {
			return ErrNotFound
		}
		return json.Unmarshal(value, &rec)
	})
	if err != nil {
		return Record{}, fmt.Errorf("get journal entry %d: %w", seq, err)
	}
	return rec, nil
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.index.Len()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) rebuildIndex() error {
	return j.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyCurrentSeq); v != nil {
			j.seq = parseKey(v)
		}
		return tx.Bucket(bucketSnapshots).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode journal entry: %w", err)
			}
			j.index.ReplaceOrInsert(rec.Entry)
			return nil
		})
	})
}

func summarize(seq uint64, snap *resource.Snapshot) Entry {
	e := Entry{
		Seq:        seq,
		Revision:   snap.Revision,
		Source:     snap.Source,
		Account:    snap.Account,
		LoadedAt:   snap.LoadedAt,
		Resources:  len(snap.Resources),
		RiskCounts: make(map[string]int),
	}
	for _, r := range snap.Resources {
		e.TotalCost += r.CostPerMonth
		e.RiskCounts[string(r.RiskLevel)]++
	}
	return e
}

// makeKey zero-pads so byte order matches numeric order.
func makeKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%016d", seq))
}

func parseKey(b []byte) uint64 {
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}
