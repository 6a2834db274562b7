package repository

import (
	"context"
	"testing"

	baseModel "seest/pkg/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestMutualsOf(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .*following_id.* FROM follows AS a JOIN follows AS b`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"following_id"}).AddRow("bob").AddRow("carol"))

	ids, err := repo.MutualsOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnfollow(t *testing.T) {
	t.Run("Returns the deleted row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`DELETE FROM "follows" WHERE .*RETURNING`).
			WithArgs("alice", "bob").
			WillReturnRows(sqlmock.NewRows([]string{"id", "follower_id", "following_id"}).AddRow("f1", "alice", "bob"))

		f, err := repo.Unfollow(context.Background(), "alice", "bob")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "f1", f.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not following", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`DELETE FROM "follows"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "follower_id", "following_id"}))

		f, err := repo.Unfollow(context.Background(), "alice", "bob")
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestFollowIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO "follows" .*ON CONFLICT DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	f, err := repo.Follow(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestUpdateFieldsVersionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE "profiles" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), "alice", 3, map[string]interface{}{"name": "Al"})
	assert.ErrorIs(t, err, baseModel.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
