package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

// ThemeStore implements storage.ThemeStore for BadgerDB.
type ThemeStore struct {
	backend *Backend
}

var _ storage.ThemeStore = (*ThemeStore)(nil)

// NewThemeStore creates a new ThemeStore.
func NewThemeStore(backend *Backend) *ThemeStore {
	return &ThemeStore{backend: backend}
}

// Close implements storage.ThemeStore. The backend is shared and closed
// separately.
func (s *ThemeStore) Close() error {
	return nil
}

// PutThemes inserts or replaces catalog entries.
func (s *ThemeStore) PutThemes(ctx context.Context, themes ...core.Theme) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i := range themes {
			if err := core.ValidateTheme(&themes[i]); err != nil {
				return err
			}
			key := makeThemeKey(themes[i].Code)
			if err := tx.Set(key, storage.MarshalTheme(&themes[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetTheme retrieves a catalog entry by code.
func (s *ThemeStore) GetTheme(ctx context.Context, code string) (*core.Theme, error) {
	var result *core.Theme
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeThemeKey(code))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			result, err = storage.UnmarshalTheme(val)
			return err
		})
	}, false)
	return result, err
}

// GetThemes retrieves the full catalog. Keys embed the code, so iteration
// order is already code order.
func (s *ThemeStore) GetThemes(ctx context.Context) ([]core.Theme, error) {
	var results []core.Theme
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(themePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				theme, err := storage.UnmarshalTheme(val)
				if err != nil {
					return err
				}
				results = append(results, *theme)
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
