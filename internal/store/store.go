// Package store provides a thin bbolt wrapper for bankview's local state.
//
// The store holds two things: the persisted bank-list cache entry, so that
// separate CLI invocations share one warehouse listing until it expires,
// and wide tables the user saved or edited.
//
// Buckets:
//
//	banks  — the single cached bank-list entry
//	tables — saved wide tables keyed table:<uuid>
//	_meta  — internal: schema version, created_at
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/bankview/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketBanks    = []byte("banks")
	bucketTables   = []byte("tables")
	bucketInternal = []byte("_meta")
)

// bankListKey is the only key in the banks bucket.
var bankListKey = []byte("largest")

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"banks", "tables"}

// ErrNotFound is returned when a saved table does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a bbolt database.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// SetClock replaces the time source used for table timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBanks, bucketTables, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(s.now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Bank List ────────────────────────────────────────────────────────────────

// PutBanks replaces the cached bank-list entry. FetchedAt is stored as given.
func (s *Store) PutBanks(list model.BankList) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding bank list: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBanks).Put(bankListKey, data)
	})
}

// GetBanks returns the cached bank-list entry.
// Returns (list, true, nil) if present, (zero, false, nil) if not.
func (s *Store) GetBanks() (model.BankList, bool, error) {
	var list model.BankList
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBanks).Get(bankListKey)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &list)
	})
	if err != nil {
		return model.BankList{}, false, fmt.Errorf("decoding bank list: %w", err)
	}
	return list, found, nil
}

// DeleteBanks removes the cached bank-list entry.
func (s *Store) DeleteBanks() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBanks).Delete(bankListKey)
	})
}

// ─── Saved Tables ─────────────────────────────────────────────────────────────

// SavedTable is a wide table kept for later charting or editing.
type SavedTable struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Banks     []string         `json:"banks"`
	Table     *model.WideTable `json:"table"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func tableKey(id string) []byte { return []byte("table:" + id) }

// PutTable saves t. A blank ID is assigned a new UUID; saving over an
// existing ID keeps its CreatedAt. The stored record is returned.
func (s *Store) PutTable(t SavedTable) (SavedTable, error) {
	if t.Table == nil {
		t.Table = model.NewWideTable([]string{model.ColDate, model.ColEntity})
	}
	now := s.now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTables)
		if prev := b.Get(tableKey(t.ID)); prev != nil {
			var old SavedTable
			if err := json.Unmarshal(prev, &old); err == nil {
				t.CreatedAt = old.CreatedAt
			}
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding table: %w", err)
		}
		return b.Put(tableKey(t.ID), data)
	})
	if err != nil {
		return SavedTable{}, err
	}
	return t, nil
}

// GetTable retrieves a saved table by ID.
func (s *Store) GetTable(id string) (SavedTable, error) {
	var t SavedTable
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTables).Get(tableKey(id))
		if v == nil {
			return fmt.Errorf("table %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &t)
	})
	return t, err
}

// FindTable resolves ref as a full ID, a unique ID prefix, or an exact name.
func (s *Store) FindTable(ref string) (SavedTable, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return SavedTable{}, fmt.Errorf("table reference is empty: %w", ErrNotFound)
	}
	if t, err := s.GetTable(ref); err == nil {
		return t, nil
	} else if !errors.Is(err, ErrNotFound) {
		return SavedTable{}, err
	}

	all, err := s.ListTables()
	if err != nil {
		return SavedTable{}, err
	}
	var matches []SavedTable
	for _, t := range all {
		if strings.HasPrefix(t.ID, ref) || t.Name == ref {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return SavedTable{}, fmt.Errorf("table %s: %w", ref, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return SavedTable{}, fmt.Errorf("table reference %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// ListTables returns all saved tables, newest first.
func (s *Store) ListTables() ([]SavedTable, error) {
	var tables []SavedTable
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTables).ForEach(func(k, v []byte) error {
			var t SavedTable
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
			tables = append(tables, t)
			return nil
		})
	})
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].UpdatedAt.After(tables[j].UpdatedAt)
	})
	return tables, err
}

// DeleteTable removes a saved table by ID.
func (s *Store) DeleteTable(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTables)
		if b.Get(tableKey(id)) == nil {
			return fmt.Errorf("table %s: %w", id, ErrNotFound)
		}
		return b.Delete(tableKey(id))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			st := BucketStats{Name: name}
			if err := b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, st)
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	if !isUserBucket(name) {
		return fmt.Errorf("unknown bucket %q (valid: %s)", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func isUserBucket(name string) bool {
	for _, b := range AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}

// Compact rewrites the database into a fresh file and swaps it into place,
// returning the file size before and after. The Store stays usable.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	before = fi.Size()

	tmp := path + ".compact"
	dst, err := bolt.Open(tmp, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", tmp, err)
	}
	if err := bolt.Compact(dst, s.db, 64<<20); err != nil {
		dst.Close()
		os.Remove(tmp)
		return 0, 0, fmt.Errorf("copying data: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return 0, 0, err
	}
	if err := s.db.Close(); err != nil {
		return 0, 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, 0, fmt.Errorf("replacing %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, 0, fmt.Errorf("reopening %s: %w", path, err)
	}
	s.db = db

	if fi, err = os.Stat(path); err != nil {
		return before, 0, err
	}
	return before, fi.Size(), nil
}
