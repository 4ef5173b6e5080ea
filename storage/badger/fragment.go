package badger

import (
	"context"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

// FragmentStore implements storage.FragmentStore for BadgerDB.
type FragmentStore struct {
	backend *Backend
}

var _ storage.FragmentStore = (*FragmentStore)(nil)

// NewFragmentStore creates a new FragmentStore.
func NewFragmentStore(backend *Backend) *FragmentStore {
	return &FragmentStore{backend: backend}
}

// Close implements storage.FragmentStore. The backend is shared and closed
// separately.
func (s *FragmentStore) Close() error {
	return nil
}

// PutFragments inserts or replaces fragments.
func (s *FragmentStore) PutFragments(ctx context.Context, fragments ...*core.Fragment) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, fragment := range fragments {
			if err := core.ValidateFragment(fragment); err != nil {
				return err
			}
			if fragment.Id == 0 {
				fragment.Id = core.IDFromContent(fragment.Scope + ":" + fragment.Text)
			}
			key := makeFragmentKey(fragment.Id)
			if err := tx.Set(key, storage.MarshalFragment(fragment)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetFragments retrieves fragments by ID. Missing fragments are omitted.
func (s *FragmentStore) GetFragments(ctx context.Context, ids ...core.ID) ([]*core.Fragment, error) {
	var results []*core.Fragment
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := tx.Get(makeFragmentKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				fragment, err := storage.UnmarshalFragment(val)
				if err != nil {
					return err
				}
				results = append(results, fragment)
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

// PutLinks inserts or replaces fragment-theme associations.
func (s *FragmentStore) PutLinks(ctx context.Context, links ...core.FragmentLink) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i := range links {
			key := makeFragmentLinkKey(links[i].ThemeCode, links[i].FragmentId)
			if err := tx.Set(key, storage.MarshalFragmentLink(&links[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// LinksByThemes retrieves associations for the given theme codes with
// score >= minScore.
func (s *FragmentStore) LinksByThemes(ctx context.Context, codes []string, minScore float32) ([]core.FragmentLink, error) {
	var results []core.FragmentLink
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, code := range codes {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = makeFragmentLinkScanPrefix(code)
			iter := tx.NewIterator(opts)

			for iter.Rewind(); iter.Valid(); iter.Next() {
				err := iter.Item().Value(func(val []byte) error {
					link, err := storage.UnmarshalFragmentLink(val)
					if err != nil {
						return err
					}
					if link.Score >= minScore {
						results = append(results, *link)
					}
					return nil
				})
				if err != nil {
					iter.Close()
					return err
				}
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindSimilar ranks the scope's fragments by cosine similarity against the
// query vector.
func (s *FragmentStore) FindSimilar(ctx context.Context, scope string, vector []float32, minSimilarity float32, limit int) ([]core.FragmentHit, error) {
	var results []core.FragmentHit
	err := s.forEachInScope(scope, func(fragment *core.Fragment) {
		if len(fragment.Vector) == 0 {
			return
		}
		similarity := cosine(vector, fragment.Vector)
		if similarity >= minSimilarity {
			results = append(results, core.FragmentHit{Fragment: fragment, Score: similarity})
		}
	})
	if err != nil {
		return nil, err
	}

	sortHitsDescending(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchText performs a keyword search over fragment text within scope.
// Fragments are ranked by the number of distinct query tokens they contain.
func (s *FragmentStore) SearchText(ctx context.Context, scope, query string, limit int) ([]*core.Fragment, error) {
	var hits []core.FragmentHit
	err := s.forEachInScope(scope, func(fragment *core.Fragment) {
		overlap := storage.KeywordOverlap(fragment.Text, query)
		if overlap > 0 {
			hits = append(hits, core.FragmentHit{Fragment: fragment, Score: float32(overlap)})
		}
	})
	if err != nil {
		return nil, err
	}

	sortHitsDescending(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}

	fragments := make([]*core.Fragment, len(hits))
	for i, hit := range hits {
		fragments[i] = hit.Fragment
	}
	return fragments, nil
}

// forEachInScope iterates every fragment row in the given scope. An empty
// scope matches all fragments.
func (s *FragmentStore) forEachInScope(scope string, fn func(*core.Fragment)) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fragmentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				fragment, err := storage.UnmarshalFragment(val)
				if err != nil {
					return err
				}
				if scope == "" || fragment.Scope == scope {
					fn(fragment)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
}

func sortHitsDescending(hits []core.FragmentHit) {
	slices.SortFunc(hits, func(a, b core.FragmentHit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		// Deterministic order for equal scores.
		if a.Fragment.Id < b.Fragment.Id {
			return -1
		}
		if a.Fragment.Id > b.Fragment.Id {
			return 1
		}
		return 0
	})
}

// cosine computes cosine similarity; a zero-norm vector scores 0.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
