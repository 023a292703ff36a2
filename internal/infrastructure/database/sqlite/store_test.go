package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/infrastructure/persistence"
	"github.com/turtacn/KinKeep/pkg/errors"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "kinkeep.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := openTemp(t)
	_, err := s.Get(context.Background(), "kinkeep_family_data")
	assert.True(t, errors.IsNotFound(err))
}

func TestStore_PutOverwrites(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("one")))
	require.NoError(t, s.Put(ctx, "k", []byte("two")))

	raw, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", string(raw))
	assert.NoError(t, s.Ping(ctx))
}

func TestStore_SurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	repo := persistence.NewDocumentRepository(s, "kinkeep_family_data", nil)
	store := member.NewStore(repo, nil)
	require.NoError(t, store.Add(ctx, member.Member{ID: "a", FirstName: "Ann", LastName: "Lee", Gender: member.GenderFemale}))
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := member.NewStore(persistence.NewDocumentRepository(reopened, "kinkeep_family_data", nil), nil).GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Ann", all[0].FirstName)
}
