package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewStoreFromDB(db), mock
}

var accountCols = []string{"id", "constituent_id", "username", "email", "full_name", "password_hash", "created_at", "updated_at"}
var codeCols = []string{"id", "email", "code", "expires_at", "used_at", "created_at"}

func TestGetAccountByIdentifier(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT .* FROM accounts\s+WHERE username = \$1 OR email = \$1`).
		WithArgs("ada").
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow("a1", "c1", "ada", "ada@example.org", "Ada", "hash", now, now))

	got, err := s.Accounts().GetAccountByIdentifier(context.Background(), "ada")
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)
	require.Equal(t, "hash", *got.PasswordHash)
}

func TestGetAccountByEmailNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE email = \$1`).
		WithArgs("nobody@example.org").
		WillReturnRows(sqlmock.NewRows(accountCols))

	_, err := s.Accounts().GetAccountByEmail(context.Background(), "nobody@example.org")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateAccountMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := s.Accounts().CreateAccount(context.Background(), domain.Account{ID: "a1", Username: "ada", Email: "ada@example.org"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUpdatePasswordHashMissingAccount(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE accounts SET password_hash = \$1, updated_at = now\(\) WHERE id = \$2`).
		WithArgs("h", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, s.Accounts().UpdatePasswordHash(context.Background(), "missing", "h"), store.ErrNotFound)
}

func TestListActiveRoles(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM role_assignments\s+WHERE account_id = \$1 AND started_at <= \$2`).
		WithArgs("a1", now).
		WillReturnRows(sqlmock.NewRows([]string{"name", "chapter_id", "committee_id", "started_at", "ended_at"}).
			AddRow("lead", "chapterA", "", now.Add(-time.Hour), nil).
			AddRow("president", "", "", now.Add(-time.Hour), now.Add(time.Hour)))

	roles, err := s.Roles().ListActiveRoles(context.Background(), "a1", now)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	require.Equal(t, "MEMBER.lead.chapterA", roles[0].String())
	require.Nil(t, roles[0].EndedAt)
	require.Equal(t, "president", roles[1].String())
	require.NotNil(t, roles[1].EndedAt)
}

func TestIsChapterMember(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT EXISTS .*chapter_id = \$2`).
		WithArgs("a1", "chapterA", now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.Profiles().IsChapterMember(context.Background(), "a1", "chapterA", now)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResetTransactionLocksRow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM one_time_codes WHERE id = \$1 FOR UPDATE`).
		WithArgs("otp1").
		WillReturnRows(sqlmock.NewRows(codeCols).
			AddRow("otp1", "ada@example.org", "123456", now.Add(time.Minute), nil, now))
	mock.ExpectExec(`UPDATE one_time_codes SET used_at = \$1 WHERE id = \$2 AND used_at IS NULL`).
		WithArgs(now, "otp1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.OneTimeCodes().LockOneTimeCode(ctx, "otp1")
		if err != nil {
			return err
		}
		require.False(t, c.Used())

		ok, err := tx.OneTimeCodes().MarkOneTimeCodeUsed(ctx, c.ID, now)
		if err != nil {
			return err
		}
		require.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestMarkUsedLosesRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE one_time_codes SET used_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.OneTimeCodes().MarkOneTimeCodeUsed(context.Background(), "otp1", time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("ada@example.org").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM one_time_codes WHERE email = \$1`).
		WithArgs("ada@example.org").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.OneTimeCodes().DeleteOneTimeCodesByEmail(ctx, "ada@example.org"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestDeleteExpiredOneTimeCodes(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM one_time_codes WHERE expires_at < \$1 AND used_at IS NULL`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.OneTimeCodes().DeleteExpiredOneTimeCodes(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestApplyMigrationsUsesEmbeddedFS(t *testing.T) {
	s, _ := newMockStore(t)

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var called bool
	gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		require.Equal(t, ".", dir)
		return nil
	}

	require.NoError(t, s.ApplyMigrations())
	require.True(t, called)
}
