package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

// DreamStore implements storage.DreamStore for BadgerDB.
type DreamStore struct {
	backend *Backend
}

var _ storage.DreamStore = (*DreamStore)(nil)

// NewDreamStore creates a new DreamStore.
func NewDreamStore(backend *Backend) *DreamStore {
	return &DreamStore{backend: backend}
}

// Close implements storage.DreamStore. The backend is shared and closed
// separately.
func (s *DreamStore) Close() error {
	return nil
}

// AddDream stores a new dream.
func (s *DreamStore) AddDream(ctx context.Context, dream *core.Dream) (*core.Dream, error) {
	if dream.Id == 0 {
		dream.Id = core.IDFromContent(dream.Text)
	}
	if dream.SubmittedAt.IsZero() {
		dream.SubmittedAt = time.Now().UTC()
	}
	dream.UpdatedAt = dream.SubmittedAt

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDreamKey(dream.Id)
		if err := tx.Set(key, storage.MarshalDream(dream)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return dream, nil
}

// GetDream retrieves a dream by ID.
func (s *DreamStore) GetDream(ctx context.Context, id core.ID) (*core.Dream, error) {
	var result *core.Dream
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDream(tx, makeDreamKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateDream updates an existing dream.
func (s *DreamStore) UpdateDream(ctx context.Context, dream *core.Dream) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDreamKey(dream.Id)
		old, err := readDream(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		dream.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalDream(dream)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// SetDreamStatus transitions a dream's status and error message.
func (s *DreamStore) SetDreamStatus(ctx context.Context, id core.ID, status core.DreamStatus, lastError string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDreamKey(id)
		dream, err := readDream(tx, key)
		if err != nil {
			return err
		}
		if dream == nil {
			return storage.ErrNotFound
		}

		dream.Status = status
		dream.LastError = lastError
		dream.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalDream(dream)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// PutEmbeddings replaces all stored embeddings for a dream.
func (s *DreamStore) PutEmbeddings(ctx context.Context, dreamId core.ID, embeddings []core.Embedding) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		// Drop superseded records first so a shorter re-run leaves no
		// orphans from a previous longer chunking.
		prefix := makeEmbeddingScanPrefix(dreamId)
		if err := deleteByPrefix(tx, prefix); err != nil {
			return err
		}

		for i := range embeddings {
			emb := &embeddings[i]
			key := makeEmbeddingKey(dreamId, emb.ChunkIndex)
			if err := tx.Set(key, storage.MarshalEmbedding(emb)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEmbeddings retrieves all embeddings for a dream, ordered by chunk index.
func (s *DreamStore) GetEmbeddings(ctx context.Context, dreamId core.ID) ([]core.Embedding, error) {
	var results []core.Embedding
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingScanPrefix(dreamId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				emb, err := storage.UnmarshalEmbedding(val)
				if err != nil {
					return err
				}
				results = append(results, *emb)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PutThemeMatches replaces the stored theme associations for a dream.
func (s *DreamStore) PutThemeMatches(ctx context.Context, dreamId core.ID, matches []core.ThemeMatch) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeThemeMatchScanPrefix(dreamId)
		if err := deleteByPrefix(tx, prefix); err != nil {
			return err
		}

		// Matches arrive ranked; the rank is part of the key so reads
		// come back in the same order.
		for rank := range matches {
			key := makeThemeMatchKey(dreamId, rank)
			if err := tx.Set(key, storage.MarshalThemeMatch(&matches[rank])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetThemeMatches retrieves the stored theme associations for a dream.
func (s *DreamStore) GetThemeMatches(ctx context.Context, dreamId core.ID) ([]core.ThemeMatch, error) {
	var results []core.ThemeMatch
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeThemeMatchScanPrefix(dreamId)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				match, err := storage.UnmarshalThemeMatch(val)
				if err != nil {
					return err
				}
				results = append(results, *match)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// readDream reads and unmarshals a dream, returning nil if absent.
func readDream(tx *badger.Txn, key []byte) (*core.Dream, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var dream *core.Dream
	err = item.Value(func(val []byte) error {
		var err error
		dream, err = storage.UnmarshalDream(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dream, nil
}

// deleteByPrefix removes every key under prefix within the transaction.
func deleteByPrefix(tx *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
