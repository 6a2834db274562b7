package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"seest/internal/domain/message/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (MessageRepository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewMessageRepository(sqlx.NewDb(sqlDB, "pgx")), mock
}

func TestInsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	text := "hi"
	m := &model.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Text: &text, CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO messages`)).
		WithArgs("m1", "a", "b", "hi", nil, m.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "text", "image_url", "created_at"}).
		AddRow("m1", "a", "b", "hi", nil, now).
		AddRow("m2", "b", "a", nil, "https://img/1.png", now.Add(time.Second))

	mock.ExpectQuery(`SELECT .* FROM messages\s+WHERE sender_id = \$1 OR receiver_id = \$1`).
		WithArgs("a").
		WillReturnRows(rows)

	msgs, err := repo.ListForUser(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0].Text)
	assert.Equal(t, "hi", *msgs[0].Text)
	assert.Nil(t, msgs[1].Text)
	assert.Equal(t, "https://img/1.png", *msgs[1].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserExists(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.UserExists(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
