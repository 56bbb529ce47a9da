package services

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServiceWithMock(t *testing.T) (AuthService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	svc := NewAuthService(zerolog.Nop(), mock, "taskforge", []byte("test-signing-key"), time.Hour)
	return svc, mock
}

func expectUserLookup(t *testing.T, mock pgxmock.PgxPoolIface, name, password string) string {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)

	userID := "0191a2b3-0000-7000-8000-0000000000aa"
	now := time.Now()
	mock.ExpectQuery(`lower\(name\) = lower\(\$1\)`).
		WithArgs(name).
		WillReturnRows(pgxmock.NewRows([]string{"id", "password", "created_at", "updated_at"}).
			AddRow(userID, hash, now, now))
	return userID
}

func TestLoginMatchesNameCaseInsensitively(t *testing.T) {
	svc, mock := newAuthServiceWithMock(t)

	userID := expectUserLookup(t, mock, "ALICE", "sw0rdfish")

	user, token, err := svc.Login(context.Background(), "ALICE", "sw0rdfish")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	identity, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock := newAuthServiceWithMock(t)

	expectUserLookup(t, mock, "alice", "sw0rdfish")

	user, _, err := svc.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownUser(t *testing.T) {
	svc, mock := newAuthServiceWithMock(t)

	mock.ExpectQuery(`lower\(name\) = lower\(\$1\)`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	user, _, err := svc.Login(context.Background(), "nobody", "whatever")
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}
