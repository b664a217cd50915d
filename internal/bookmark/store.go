// Package bookmark persists the user's bookmarked jobs as one JSON array in
// a single storage slot, deduplicated by job id.
package bookmark

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"jobfeed/internal/domain"
	"jobfeed/internal/storage"
)

// DefaultKey is the storage slot holding the bookmark list.
const DefaultKey = "bookmarks"

// Store is the only accessor of the bookmark slot.
//
// Mutations run as one atomic read-modify-write on the KV and are also
// serialised in-process, so concurrent Add calls never lose each other's
// writes.
type Store struct {
	kv  storage.KV
	key string
	log logrus.FieldLogger

	mu sync.Mutex
}

// New returns a store over kv using the given slot key. An empty key
// selects DefaultKey.
func New(kv storage.KV, key string, logger logrus.FieldLogger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		kv:  kv,
		key: key,
		log: logger.WithFields(logrus.Fields{"component": "bookmarks", "key": key}),
	}
}

// Load returns the persisted bookmarks in insertion order.
//
// The returned slice is always usable: a slot that was never written yields
// an empty list with no error, and a slot that cannot be read or decoded
// yields an empty list together with a StorageReadFailed or DecodeFailed
// error.
func (s *Store) Load(ctx context.Context) ([]domain.JobRecord, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.JobRecord{}, nil
	}
	if err != nil {
		s.log.WithError(err).Error("Error loading bookmarks")
		return []domain.JobRecord{}, &domain.Error{Kind: domain.StorageReadFailed, Op: "load bookmarks", Err: err}
	}

	list, err := decode(raw)
	if err != nil {
		s.log.WithError(err).Error("Error loading bookmarks")
		return []domain.JobRecord{}, err
	}
	return list, nil
}

// Get returns the bookmarked record with the given id.
func (s *Store) Get(ctx context.Context, id string) (domain.JobRecord, bool, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return domain.JobRecord{}, false, err
	}
	if i := indexOf(list, id); i >= 0 {
		return list[i], true, nil
	}
	return domain.JobRecord{}, false, nil
}

// Add bookmarks rec unless a record with the same id is already stored, in
// which case the stored copy is kept untouched. It reports whether rec was
// added.
//
// A malformed stored payload is never overwritten; Add fails with
// DecodeFailed instead.
func (s *Store) Add(ctx context.Context, rec domain.JobRecord) (bool, error) {
	if rec.ID == "" {
		return false, domain.ErrMissingID
	}
	log := s.log.WithField("job_id", rec.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	err := s.kv.Update(ctx, s.key, func(current []byte, found bool) ([]byte, error) {
		added = false
		var list []domain.JobRecord
		if found {
			var err error
			if list, err = decode(current); err != nil {
				return nil, err
			}
		}
		if indexOf(list, rec.ID) >= 0 {
			return nil, nil
		}
		next, err := encode(append(list, rec))
		if err != nil {
			return nil, err
		}
		added = true
		return next, nil
	})
	if err != nil {
		log.WithError(err).Error("Error bookmarking")
		return false, classify("add bookmark", err)
	}

	if added {
		log.Info("Job bookmarked")
	} else {
		log.Debug("Job already bookmarked")
	}
	return added, nil
}

// Remove deletes the record with the given id and reports whether it was
// present.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	log := s.log.WithField("job_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := s.kv.Update(ctx, s.key, func(current []byte, found bool) ([]byte, error) {
		removed = false
		if !found {
			return nil, nil
		}
		list, err := decode(current)
		if err != nil {
			return nil, err
		}
		i := indexOf(list, id)
		if i < 0 {
			return nil, nil
		}
		next, err := encode(append(list[:i:i], list[i+1:]...))
		if err != nil {
			return nil, err
		}
		removed = true
		return next, nil
	})
	if err != nil {
		log.WithError(err).Error("Error removing bookmark")
		return false, classify("remove bookmark", err)
	}

	if removed {
		log.Info("Bookmark removed")
	}
	return removed, nil
}

// Clear drops every bookmark.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.log.WithError(err).Error("Error clearing bookmarks")
		return &domain.Error{Kind: domain.StorageWriteFailed, Op: "clear bookmarks", Err: err}
	}
	s.log.Info("Bookmarks cleared")
	return nil
}

func decode(raw []byte) ([]domain.JobRecord, error) {
	var list []domain.JobRecord
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &domain.Error{Kind: domain.DecodeFailed, Op: "decode bookmarks", Err: err}
	}
	if list == nil {
		list = []domain.JobRecord{}
	}
	return list, nil
}

func encode(list []domain.JobRecord) ([]byte, error) {
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, &domain.Error{Kind: domain.StorageWriteFailed, Op: "encode bookmarks", Err: err}
	}
	return raw, nil
}

// classify keeps an already classified error and treats anything else
// coming out of a mutation as a write failure.
func classify(op string, err error) error {
	if domain.KindOf(err) != 0 {
		return err
	}
	return &domain.Error{Kind: domain.StorageWriteFailed, Op: op, Err: err}
}

func indexOf(list []domain.JobRecord, id string) int {
	for i, rec := range list {
		if rec.ID == id {
			return i
		}
	}
	return -1
}
