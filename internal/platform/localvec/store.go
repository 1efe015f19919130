// Package localvec is a persistent, embedded vector collection on badger.
// Records are msgpack-encoded and nearest-neighbour search is a brute-force
// cosine scan, which is fine for catalogs in the tens of thousands.
package localvec

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/vectorstore"
)

type Config struct {
	Dir        string
	Collection string
	// InMemory ignores Dir. Used by tests.
	InMemory bool
}

type Store struct {
	log        *logger.Logger
	db         *badger.DB
	collection string
	recPrefix  []byte
	dimKey     []byte
}

type storedRecord struct {
	ID       string            `msgpack:"id"`
	Vector   []float32         `msgpack:"v"`
	Document string            `msgpack:"doc"`
	Metadata map[string]string `msgpack:"meta"`
}

var _ vectorstore.Store = (*Store)(nil)

func Open(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	coll := strings.TrimSpace(cfg.Collection)
	if coll == "" {
		return nil, fmt.Errorf("localvec: collection required")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(cfg.Dir) == "" {
			return nil, fmt.Errorf("localvec: dir required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("localvec: open badger: %w", err)
	}
	s := &Store{
		log:        log.With("service", "LocalVectorStore", "collection", coll),
		db:         db,
		collection: coll,
		recPrefix:  []byte("rec/" + coll + "/"),
		dimKey:     []byte("meta/" + coll + "/dim"),
	}
	s.log.Info("Local vector store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return s, nil
}

func (s *Store) key(id string) []byte {
	k := make([]byte, 0, len(s.recPrefix)+len(id))
	return append(append(k, s.recPrefix...), id...)
}

func (s *Store) Put(ctx context.Context, recs ...vectorstore.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		dim, err := s.readDim(txn)
		if err != nil {
			return err
		}
		for _, r := range recs {
			id := strings.TrimSpace(r.ID)
			if id == "" {
				return fmt.Errorf("localvec: record id required")
			}
			if len(r.Vector) == 0 {
				return fmt.Errorf("localvec: record %q: %w", id, vectorstore.ErrEmptyVector)
			}
			if dim == 0 {
				dim = len(r.Vector)
				if err := txn.Set(s.dimKey, encodeDim(dim)); err != nil {
					return err
				}
			} else if len(r.Vector) != dim {
				return fmt.Errorf("localvec: record %q: %w: want=%d got=%d", id, vectorstore.ErrDimensionMismatch, dim, len(r.Vector))
			}
			raw, err := msgpack.Marshal(storedRecord{
				ID:       id,
				Vector:   r.Vector,
				Document: r.Document,
				Metadata: r.Metadata,
			})
			if err != nil {
				return fmt.Errorf("localvec: encode %q: %w", id, err)
			}
			if err := txn.Set(s.key(id), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, ids ...string) ([]vectorstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]vectorstore.Record, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(s.key(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			rec, err := decodeItem(item)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(s.key(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if len(vector) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	if k <= 0 {
		k = 1
	}
	var matches []vectorstore.Match
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(s.recPrefix); it.ValidForPrefix(s.recPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			d, err := vectorstore.CosineDistance(vector, rec.Vector)
			if err != nil {
				return err
			}
			rec.Vector = nil
			matches = append(matches, vectorstore.Match{Record: rec, Distance: d})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	vectorstore.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(s.recPrefix); it.ValidForPrefix(s.recPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, string(it.Item().Key()[len(s.recPrefix):]))
		}
		return nil
	})
	return ids, err
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("localvec: store closed")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) readDim(txn *badger.Txn) (int, error) {
	item, err := txn.Get(s.dimKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("localvec: corrupt dimension marker")
	}
	return int(binary.BigEndian.Uint32(raw)), nil
}

func encodeDim(dim int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(dim))
	return b
}

func decodeItem(item *badger.Item) (vectorstore.Record, error) {
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return vectorstore.Record{}, err
	}
	var sr storedRecord
	if err := msgpack.Unmarshal(raw, &sr); err != nil {
		return vectorstore.Record{}, fmt.Errorf("localvec: decode %q: %w", item.Key(), err)
	}
	if sr.Metadata == nil {
		sr.Metadata = map[string]string{}
	}
	return vectorstore.Record{ID: sr.ID, Vector: sr.Vector, Document: sr.Document, Metadata: sr.Metadata}, nil
}
