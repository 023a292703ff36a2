package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/testutil"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

const testKey = "kinkeep_family_data"

type mockKV struct {
	mock.Mock
}

func (m *mockKV) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockKV) Put(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func TestLoad_AbsentKeyIsEmpty(t *testing.T) {
	repo := NewDocumentRepository(NewMemoryStore(), testKey, nil)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Members)
	assert.Empty(t, doc.Members)
}

func TestLoad_CorruptValueIsEmpty(t *testing.T) {
	kv := NewMemoryStore()
	require.NoError(t, kv.Put(context.Background(), testKey, []byte("{not json")))
	logger := testutil.NewMockLogger()
	repo := NewDocumentRepository(kv, testKey, logger)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Members)
	assert.True(t, logger.HasMessage("warn", "family document is not valid JSON, treating as empty"))
}

func TestLoad_EmptyValueIsEmpty(t *testing.T) {
	kv := NewMemoryStore()
	require.NoError(t, kv.Put(context.Background(), testKey, nil))

	doc, err := NewDocumentRepository(kv, testKey, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Members)
}

func TestLoad_NullMembersBecomeEmptySlices(t *testing.T) {
	kv := NewMemoryStore()
	require.NoError(t, kv.Put(context.Background(), testKey,
		[]byte(`{"members":[{"id":"a","firstName":"A","lastName":"B","gender":"male","createdAt":1}]}`)))

	doc, err := NewDocumentRepository(kv, testKey, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Members, 1)
	assert.NotNil(t, doc.Members[0].Memories)
}

func TestSaveThenLoad(t *testing.T) {
	repo := NewDocumentRepository(NewMemoryStore(), testKey, nil)
	ctx := context.Background()

	in := &member.Document{Members: []member.Member{{
		ID: "a", FirstName: "Ada", LastName: "Byron", Gender: member.GenderFemale,
		FatherID: "b", FatherKind: member.RelationBiological, CreatedAt: 10,
		Memories: []member.Memory{{ID: "m", Kind: member.MemoryText, Content: "hello"}},
	}}}
	require.NoError(t, repo.Save(ctx, in))

	out, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.Members, out.Members)
}

func TestSave_WritesMembersEnvelope(t *testing.T) {
	kv := NewMemoryStore()
	repo := NewDocumentRepository(kv, testKey, nil)

	require.NoError(t, repo.Save(context.Background(), nil))

	raw, err := kv.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"members":[]}`, string(raw))
}

func TestLoad_BackendFailurePropagates(t *testing.T) {
	kv := new(mockKV)
	kv.On("Get", mock.Anything, testKey).Return(nil, errors.New("i/o timeout"))

	_, err := NewDocumentRepository(kv, testKey, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
}

func TestSave_BackendFailurePropagates(t *testing.T) {
	kv := new(mockKV)
	kv.On("Put", mock.Anything, testKey, mock.Anything).Return(errors.New("read-only"))

	err := NewDocumentRepository(kv, testKey, nil).Save(context.Background(), member.NewDocument())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
	kv.AssertExpectations(t)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	kv := NewMemoryStore()
	v := []byte("abc")
	require.NoError(t, kv.Put(context.Background(), "k", v))
	v[0] = 'z'

	got, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	_, err = kv.Get(context.Background(), "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPing_NoPinger(t *testing.T) {
	assert.NoError(t, NewDocumentRepository(NewMemoryStore(), testKey, nil).Ping(context.Background()))
}
