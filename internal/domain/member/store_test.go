package member

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

// fakeRepository keeps the document in memory and counts writes.
type fakeRepository struct {
	mu    sync.Mutex
	doc   Document
	saves int
}

func (f *fakeRepository) Load(_ context.Context) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := NewDocument()
	for i := range f.doc.Members {
		out.Members = append(out.Members, f.doc.Members[i].Clone())
	}
	return out, nil
}

func (f *fakeRepository) Save(_ context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = Document{Members: append([]Member(nil), doc.Members...)}
	f.saves++
	return nil
}

// MockRepository is a testify mock of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Load(ctx context.Context) (*Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func newTestStore(members ...Member) (*Store, *fakeRepository) {
	repo := &fakeRepository{doc: Document{Members: members}}
	return NewStore(repo, logging.NewNopLogger()), repo
}

func person(id, first, last string, g Gender) Member {
	return Member{ID: id, FirstName: first, LastName: last, Gender: g, Memories: []Memory{}}
}

func TestStore_GetAll_EmptyStore(t *testing.T) {
	s, _ := newTestStore()

	got, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Add_AppendsInOrder(t *testing.T) {
	s, repo := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, person("a", "Ann", "Lee", GenderFemale)))
	require.NoError(t, s.Add(ctx, person("b", "Bob", "Lee", GenderMale)))

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, 2, repo.saves)
}

func TestStore_AddAll_SingleWrite(t *testing.T) {
	s, repo := newTestStore()

	err := s.AddAll(context.Background(), []Member{
		person("a", "Ann", "Lee", GenderFemale),
		person("b", "Bob", "Lee", GenderMale),
		person("c", "Cid", "Lee", GenderUnknown),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saves)
	assert.Len(t, repo.doc.Members, 3)
}

func TestStore_AddAll_EmptyIsNoop(t *testing.T) {
	s, repo := newTestStore()

	require.NoError(t, s.AddAll(context.Background(), nil))
	assert.Equal(t, 0, repo.saves)
}

func TestStore_Get(t *testing.T) {
	s, _ := newTestStore(person("a", "Ann", "Lee", GenderFemale))

	m, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Ann", m.FirstName)

	_, err = s.Get(context.Background(), "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMemberNotFound))
}

func TestStore_GetAll_ReturnsCopies(t *testing.T) {
	m := person("a", "Ann", "Lee", GenderFemale)
	m.Memories = []Memory{{ID: "m1", Kind: MemoryText, Content: "first"}}
	s, repo := newTestStore(m)

	got, err := s.GetAll(context.Background())
	require.NoError(t, err)
	got[0].Memories[0].Content = "changed"

	assert.Equal(t, "first", repo.doc.Members[0].Memories[0].Content)
}

func TestStore_Update_ReplacesWholeRecord(t *testing.T) {
	original := person("a", "Ann", "Lee", GenderFemale)
	original.Bio = "old bio"
	original.CreatedAt = 1000
	s, _ := newTestStore(original, person("b", "Bob", "Lee", GenderMale))

	replacement := person("a", "Anne", "Lee", GenderFemale)
	replacement.CreatedAt = 99999

	found, err := s.Update(context.Background(), replacement)
	require.NoError(t, err)
	assert.True(t, found)

	got, _ := s.Get(context.Background(), "a")
	assert.Equal(t, "Anne", got.FirstName)
	assert.Empty(t, got.Bio, "update overwrites, it does not merge")
	assert.Equal(t, int64(1000), got.CreatedAt, "creation timestamp is immutable")

	all, _ := s.GetAll(context.Background())
	assert.Equal(t, "a", all[0].ID, "position is kept")
}

func TestStore_Update_NoMatchIsNoop(t *testing.T) {
	s, repo := newTestStore(person("a", "Ann", "Lee", GenderFemale))

	found, err := s.Update(context.Background(), person("zzz", "X", "Y", GenderMale))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, repo.saves)
	assert.Len(t, repo.doc.Members, 1)
}

func TestStore_Delete_CascadesReferences(t *testing.T) {
	father := person("f", "Frank", "Lee", GenderMale)
	mother := person("m", "Mary", "Lee", GenderFemale)
	mother.SpouseID = "f"
	child := person("c", "Cara", "Lee", GenderFemale)
	child.FatherID = "f"
	child.FatherKind = RelationAdoptive
	child.MotherID = "m"
	child.MotherKind = RelationBiological

	s, _ := newTestStore(father, mother, child)

	found, err := s.Delete(context.Background(), "f")
	require.NoError(t, err)
	assert.True(t, found)

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, m := range all {
		assert.NotEqual(t, "f", m.FatherID)
		assert.NotEqual(t, "f", m.MotherID)
		assert.NotEqual(t, "f", m.SpouseID)
	}

	gotMother, _ := s.Get(context.Background(), "m")
	assert.Empty(t, gotMother.SpouseID)

	gotChild, _ := s.Get(context.Background(), "c")
	assert.Empty(t, gotChild.FatherID)
	assert.Equal(t, RelationAdoptive, gotChild.FatherKind, "kind fields are not cleared")
	assert.Equal(t, "m", gotChild.MotherID)
}

func TestStore_Delete_NoMatch(t *testing.T) {
	s, repo := newTestStore(person("a", "Ann", "Lee", GenderFemale))

	found, err := s.Delete(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, repo.saves)
}

func TestStore_LoadError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Load", mock.Anything).Return(nil, errors.New("connection refused"))
	s := NewStore(repo, nil)

	_, err := s.GetAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	err = s.Add(context.Background(), person("a", "Ann", "Lee", GenderFemale))
	require.Error(t, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStore_SaveError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Load", mock.Anything).Return(NewDocument(), nil)
	repo.On("Save", mock.Anything, mock.Anything).
		Return(pkgerrors.New(pkgerrors.ErrCodeStorageError, "disk full"))
	s := NewStore(repo, logging.NewNopLogger())

	err := s.Add(context.Background(), person("a", "Ann", "Lee", GenderFemale))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
	repo.AssertExpectations(t)
}

func TestStore_ConcurrentAddsAreSerialised(t *testing.T) {
	s, repo := newTestStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(ctx, NewMember(Draft{FirstName: "A", LastName: "B"}))
		}()
	}
	wg.Wait()

	assert.Len(t, repo.doc.Members, 20)
}

type countingLocker struct {
	acquired int
	released int
	err      error
}

func (l *countingLocker) Acquire(_ context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func(context.Context) error { l.released++; return nil }, nil
}

func TestStore_LockerWrapsMutations(t *testing.T) {
	store, repo := newTestStore()
	locker := &countingLocker{}
	store.WithLocker(locker)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, person("a", "Ann", "Lee", GenderFemale)))
	_, err := store.Delete(ctx, "missing")
	require.NoError(t, err)
	_, err = store.GetAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, locker.acquired)
	assert.Equal(t, 2, locker.released)
	assert.Equal(t, 1, repo.saves)
}

func TestStore_LockerFailureSkipsWrite(t *testing.T) {
	store, repo := newTestStore()
	store.WithLocker(&countingLocker{err: errors.New("busy")})

	err := store.Add(context.Background(), person("a", "Ann", "Lee", GenderFemale))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict))
	assert.Zero(t, repo.saves)
}

func TestStore_Modify(t *testing.T) {
	kid := person("kid", "Sam", "Doe", GenderUnknown)
	kid.CreatedAt = 7
	store, repo := newTestStore(person("dad", "John", "Doe", GenderMale), kid)
	ctx := context.Background()

	got, err := store.Modify(ctx, "kid", func(members []Member, m *Member) error {
		assert.Len(t, members, 2)
		m.FatherID = "dad"
		m.ID = "hijacked"
		m.CreatedAt = 99
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "kid", got.ID)
	assert.Equal(t, int64(7), got.CreatedAt)
	assert.Equal(t, "dad", repo.doc.Members[1].FatherID)
	assert.Equal(t, 1, repo.saves)

	boom := pkgerrors.New(pkgerrors.ErrCodeRelationInvalid, "no")
	_, err = store.Modify(ctx, "kid", func([]Member, *Member) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, repo.saves)

	_, err = store.Modify(ctx, "ghost", func([]Member, *Member) error { return nil })
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMemberNotFound))
}

func TestStore_AddChecked(t *testing.T) {
	store, repo := newTestStore(person("a", "Ann", "Lee", GenderFemale))
	ctx := context.Background()

	rejected := errors.New("nope")
	_, err := store.AddChecked(ctx, person("b", "Bo", "Lee", GenderMale), func(members []Member) error {
		assert.Equal(t, "a", members[0].ID)
		return rejected
	})
	assert.ErrorIs(t, err, rejected)
	assert.Zero(t, repo.saves)

	size, err := store.AddChecked(ctx, person("b", "Bo", "Lee", GenderMale), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

// gatedRepository parks the first Load until release is closed.
type gatedRepository struct {
	*fakeRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepository) Load(ctx context.Context) (*Document, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakeRepository.Load(ctx)
}

func TestStore_DeleteWaitsForModifyInFlight(t *testing.T) {
	_, base := newTestStore(person("dad", "John", "Doe", GenderMale), person("kid", "Sam", "Doe", GenderUnknown))
	repo := &gatedRepository{fakeRepository: base, entered: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(repo, logging.NewNopLogger())
	ctx := context.Background()

	modified := make(chan error, 1)
	go func() {
		_, err := store.Modify(ctx, "kid", func(members []Member, m *Member) error {
			for i := range members {
				if members[i].ID == "dad" {
					m.FatherID = "dad"
					return nil
				}
			}
			return errors.New("dad is gone")
		})
		modified <- err
	}()
	<-repo.entered

	deleted := make(chan error, 1)
	go func() {
		_, err := store.Delete(ctx, "dad")
		deleted <- err
	}()
	close(repo.release)

	require.NoError(t, <-modified)
	require.NoError(t, <-deleted)
	require.Len(t, base.doc.Members, 1)
	assert.Equal(t, "kid", base.doc.Members[0].ID)
	assert.Empty(t, base.doc.Members[0].FatherID)
}
