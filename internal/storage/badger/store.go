// Package badger provides the durable key/value layer: API-key
// resolution (interfaces.KeyValueStorage) and the write-through backing
// store for the sitemap crawler's LRU cache (sitemap.Durable), grounded
// on the teacher's storage/badger/kv_storage.go (spec.md §4.2, §6;
// SPEC_FULL.md domain stack).
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// Store wraps a badger.DB with the two concerns this module needs: a
// generic key/value store for API keys and other small secrets, and a
// byte-blob cache for sitemap crawl results.
type Store struct {
	db     *badgerdb.DB
	logger arbor.ILogger
}

// Open creates (or reopens) a badger database rooted at path.
func Open(path string, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("badger: create data dir: %w", err)
	}
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const kvPrefix = "kv:"
const cachePrefix = "cache:"

// --- sitemap.Durable ---

// Get implements sitemap.Durable.
func (s *Store) Get(key string) ([]byte, bool) {
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set implements sitemap.Durable. Entries expire after 24h, matching
// the crawler's own default cache TTL.
func (s *Store) Set(key string, value []byte) {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(cachePrefix+key), value).WithTTL(24 * time.Hour)
		return txn.SetEntry(entry)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("badger: sitemap cache write failed")
	}
}

// --- interfaces.KeyValueStorage ---

// KVStorage adapts Store to interfaces.KeyValueStorage for API-key and
// general config-secret resolution (spec.md §6).
type KVStorage struct {
	store *Store
}

// NewKVStorage builds the KeyValueStorage view of a Store.
func NewKVStorage(store *Store) interfaces.KeyValueStorage {
	return &KVStorage{store: store}
}

func (k *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := k.GetPair(ctx, key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

func (k *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	var pair interfaces.KeyValuePair
	err := k.store.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(kvPrefix + key))
		if err == badgerdb.ErrKeyNotFound {
			return interfaces.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &pair)
		})
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (k *KVStorage) Set(ctx context.Context, key, value, description string) error {
	_, err := k.Upsert(ctx, key, value, description)
	return err
}

func (k *KVStorage) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	created := false
	err := k.store.db.Update(func(txn *badgerdb.Txn) error {
		now := time.Now()
		pair := interfaces.KeyValuePair{Key: key, Value: value, Description: description, CreatedAt: now, UpdatedAt: now}
		if existing, err := txn.Get([]byte(kvPrefix + key)); err == badgerdb.ErrKeyNotFound {
			created = true
		} else if err == nil {
			var prev interfaces.KeyValuePair
			if valErr := existing.Value(func(v []byte) error { return json.Unmarshal(v, &prev) }); valErr == nil {
				pair.CreatedAt = prev.CreatedAt
			}
		} else {
			return err
		}
		data, err := json.Marshal(pair)
		if err != nil {
			return err
		}
		return txn.Set([]byte(kvPrefix+key), data)
	})
	return created, err
}

func (k *KVStorage) Delete(ctx context.Context, key string) error {
	return k.store.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(kvPrefix + key))
	})
}

func (k *KVStorage) DeleteAll(ctx context.Context) error {
	all, err := k.GetAll(ctx)
	if err != nil {
		return err
	}
	for key := range all {
		if err := k.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (k *KVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	var out []interfaces.KeyValuePair
	err := k.store.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(kvPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var pair interfaces.KeyValuePair
				if jsonErr := json.Unmarshal(v, &pair); jsonErr != nil {
					return jsonErr
				}
				out = append(out, pair)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (k *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	pairs, err := k.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out, nil
}

func (k *KVStorage) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	all, err := k.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []interfaces.KeyValuePair
	for _, p := range all {
		if len(p.Key) >= len(prefix) && p.Key[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	return out, nil
}
