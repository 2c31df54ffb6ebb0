package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenCols = []string{"id", "user_id", "used", "expires_at", "created_at", "updated_at"}

func newActivationRepoWithMock(t *testing.T) (*ActivationRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewActivationRepository(mock), mock
}

func TestActivationCreate(t *testing.T) {
	repo, mock := newActivationRepoWithMock(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(15 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO activate_account_tokens")).
		WithArgs("tok-1", "u-1", expires).
		WillReturnRows(pgxmock.NewRows(tokenCols).AddRow("tok-1", "u-1", false, expires, now, now))

	got, err := repo.Create(context.Background(), "tok-1", "u-1", expires)
	require.NoError(t, err)
	assert.False(t, got.Used)
	assert.Equal(t, expires, got.ExpiresAt)
}

func TestActivationFindByID(t *testing.T) {
	repo, mock := newActivationRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM activate_account_tokens WHERE id = $1")).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows(tokenCols).AddRow("tok-1", "u-1", true, now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM activate_account_tokens WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM activate_account_tokens WHERE id = $1")).
		WithArgs("boom").
		WillReturnError(errors.New("conn reset"))

	got, err := repo.FindByID(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, got.Used)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = repo.FindByID(context.Background(), "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestActivationFindValidByID(t *testing.T) {
	repo, mock := newActivationRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("used = FALSE AND expires_at > $2")).
		WithArgs("tok-1", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindValidByID(context.Background(), "tok-1", now)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestActivationMarkUsed(t *testing.T) {
	repo, mock := newActivationRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET used = TRUE")).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows(tokenCols).AddRow("tok-1", "u-1", true, now, now, now))

	got, err := repo.MarkUsed(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, got.Used)
}
