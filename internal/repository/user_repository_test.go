package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuliahku/kuliahku-api/internal/models"
)

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "nim", "jurusan", "fakultas", "angkatan",
		"profile_image", "is_email_verified", "verification_token", "remember_token",
		"remember_token_expires", "last_login_at", "created_at", "updated_at",
	}).AddRow("user-1", "Budi", "budi@example.com", "hash", nil, nil, nil, nil, nil, false, nil, nil, nil, nil, now, now)
}

func TestUserRepositoryFindByEmailIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Budi@Example.com").
		WillReturnRows(userRows(time.Now().UTC()))

	user, err := repo.FindByEmail(context.Background(), "Budi@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Name: "Budi", Email: "budi@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetRememberTokenWritesTokenAndExpiryTogether(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	expires := time.Now().UTC().Add(30 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("SET remember_token = $2, remember_token_expires = $3")).
		WithArgs("user-1", "token-value", expires, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetRememberToken(context.Background(), "user-1", "token-value", expires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryClearRememberTokenNullsBothColumns(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET remember_token = NULL, remember_token_expires = NULL")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearRememberToken(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByRememberToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE remember_token = $1")).
		WithArgs("token-value").
		WillReturnRows(userRows(time.Now().UTC()))

	user, err := repo.FindByRememberToken(context.Background(), "token-value")
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePassword(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("SET password_hash = $2")).
		WithArgs("user-1", "new-hash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "user-1", "new-hash", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}
