package member

import (
	"context"
	"sync"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

// Store is the record store: the authoritative member list. Every mutation
// loads the full document, changes it in memory and writes it back in full.
// A mutex serialises those read-modify-write cycles within the process.
type Store struct {
	repo   Repository
	logger logging.Logger
	locker Locker
	mu     sync.Mutex
}

// Locker serialises mutations across processes that share one backend.
// Acquire returns a func that releases the lock.
type Locker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

// NewStore creates a Store over repo.
func NewStore(repo Repository, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{repo: repo, logger: logger.Named("member_store")}
}

// WithLocker makes every mutation hold l in addition to the in-process mutex.
func (s *Store) WithLocker(l Locker) *Store {
	s.locker = l
	return s
}

// GetAll returns the stored members in storage order.
func (s *Store) GetAll(ctx context.Context) ([]Member, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeUnknown, "failed to load members")
	}
	out := make([]Member, len(doc.Members))
	for i := range doc.Members {
		out[i] = doc.Members[i].Clone()
	}
	return out, nil
}

// Get returns the member with id.
func (s *Store) Get(ctx context.Context, id string) (*Member, error) {
	members, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == id {
			return &members[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.ErrCodeMemberNotFound, "member not found").WithDetail("id=" + id)
}

// Add appends m to the list. Fields are not validated here.
func (s *Store) Add(ctx context.Context, m Member) error {
	return s.AddAll(ctx, []Member{m})
}

// AddChecked appends m after check accepts the current list. check runs
// inside the write cycle, so nothing it saw can change before m is stored.
// It returns the size of the list after the append.
func (s *Store) AddChecked(ctx context.Context, m Member, check func(members []Member) error) (int, error) {
	size := 0
	_, err := s.mutate(ctx, func(doc *Document) (bool, error) {
		if check != nil {
			if err := check(doc.Members); err != nil {
				return false, err
			}
		}
		doc.Members = append(doc.Members, m.Clone())
		size = len(doc.Members)
		return true, nil
	})
	return size, err
}

// AddAll appends every member in ms with a single write.
func (s *Store) AddAll(ctx context.Context, ms []Member) error {
	if len(ms) == 0 {
		return nil
	}
	_, err := s.mutate(ctx, func(doc *Document) (bool, error) {
		for i := range ms {
			doc.Members = append(doc.Members, ms[i].Clone())
		}
		return true, nil
	})
	if err == nil {
		s.logger.Debug("members added", logging.Int("count", len(ms)))
	}
	return err
}

// Update replaces the first member whose id matches m.ID. The stored
// CreatedAt is kept. It reports false, without writing, when no member matches.
func (s *Store) Update(ctx context.Context, m Member) (bool, error) {
	return s.mutate(ctx, func(doc *Document) (bool, error) {
		i := doc.indexOf(m.ID)
		if i < 0 {
			return false, nil
		}
		replacement := m.Clone()
		replacement.CreatedAt = doc.Members[i].CreatedAt
		doc.Members[i] = replacement
		return true, nil
	})
}

// Modify edits the member with id in place within one write cycle. fn gets
// the current list, for relationship checks, and a copy of the member to
// change. An error from fn aborts the write and is returned as is. ID and
// CreatedAt cannot be changed through fn. The stored result is returned.
func (s *Store) Modify(ctx context.Context, id string, fn func(members []Member, m *Member) error) (*Member, error) {
	var out Member
	found, err := s.mutate(ctx, func(doc *Document) (bool, error) {
		i := doc.indexOf(id)
		if i < 0 {
			return false, nil
		}
		work := doc.Members[i].Clone()
		if err := fn(doc.Members, &work); err != nil {
			return false, err
		}
		work.ID = id
		work.CreatedAt = doc.Members[i].CreatedAt
		doc.Members[i] = work
		out = work.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMemberNotFound, "member not found").WithDetail("id=" + id)
	}
	return &out, nil
}

// Delete removes the member with id and clears every father, mother and
// spouse reference to it on the remaining members. It reports false when no
// member matches.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	cleared := 0
	found, err := s.mutate(ctx, func(doc *Document) (bool, error) {
		i := doc.indexOf(id)
		if i < 0 {
			return false, nil
		}
		remaining := make([]Member, 0, len(doc.Members)-1)
		remaining = append(remaining, doc.Members[:i]...)
		remaining = append(remaining, doc.Members[i+1:]...)
		for j := range remaining {
			if remaining[j].clearReferencesTo(id) {
				cleared++
			}
		}
		doc.Members = remaining
		return true, nil
	})
	if found && err == nil {
		s.logger.Debug("member deleted", logging.String("id", id), logging.Int("references_cleared", cleared))
	}
	return found, err
}

// mutate runs fn against the freshly loaded document and saves it when fn
// reports a change. An error from fn skips the save.
func (s *Store) mutate(ctx context.Context, fn func(doc *Document) (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx)
		if err != nil {
			return false, pkgerrors.Wrap(err, pkgerrors.ErrCodeConflict, "failed to lock family document")
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Warn("failed to release family document lock", logging.Err(rerr))
			}
		}()
	}

	doc, err := s.repo.Load(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.CodeUnknown, "failed to load members")
	}
	if doc.Members == nil {
		doc.Members = []Member{}
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return false, err
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		s.logger.Error("failed to save members", logging.Err(err))
		return false, pkgerrors.Wrap(err, pkgerrors.CodeUnknown, "failed to save members")
	}
	return true, nil
}
