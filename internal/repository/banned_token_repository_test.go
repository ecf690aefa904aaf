package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanJTIIsIdempotentInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBannedTokenRepository(db)

	expires := time.Now().Add(time.Hour)
	query := regexp.QuoteMeta("INSERT INTO banned_refresh_tokens (id, jti, expires_at, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (jti) DO NOTHING")
	mock.ExpectExec(query).WithArgs(sqlmock.AnyArg(), "jti-1", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(query).WithArgs(sqlmock.AnyArg(), "jti-1", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.BanJTI(context.Background(), "jti-1", expires)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.BanJTI(context.Background(), "jti-1", expires)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBanJTIPropagatesFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBannedTokenRepository(db)

	mock.ExpectExec("INSERT INTO banned_refresh_tokens").WillReturnError(errors.New("db down"))

	inserted, err := repo.BanJTI(context.Background(), "jti-1", time.Now())
	assert.Error(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsBanned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBannedTokenRepository(db)

	query := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM banned_refresh_tokens WHERE jti = $1)")
	mock.ExpectQuery(query).WithArgs("jti-1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(query).WithArgs("jti-2").WillReturnError(errors.New("db down"))

	banned, err := repo.IsBanned(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, banned)

	_, err = repo.IsBanned(context.Background(), "jti-2")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
