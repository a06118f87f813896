package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/mail"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/internal/auth/store/drivers/sqlite"
	"github.com/memberhub/memberhub/pkg/cryptox"
	"github.com/memberhub/memberhub/pkg/idx"
	"github.com/memberhub/memberhub/pkg/jwtx"
)

const adaPassword = "correct horse battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	store  *sqlite.Store
	clock  *testClock
	hasher cryptox.Hasher
	mailer *recordingMailer
	ada    domain.Account

	creds   *CredentialService
	resets  *PasswordResetService
	session *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	f := &fixture{
		store:  st,
		clock:  &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		hasher: cryptox.Hasher{Pepper: "test-pepper"},
		mailer: &recordingMailer{},
	}

	hash, err := f.hasher.HashPassword(adaPassword)
	require.NoError(t, err)
	f.ada = domain.Account{
		ID:            idx.New().String(),
		ConstituentID: idx.New().String(),
		Username:      "ada",
		Email:         "ada@example.org",
		FullName:      "Ada Lovelace",
		PasswordHash:  &hash,
	}
	require.NoError(t, st.Accounts().CreateAccount(context.Background(), f.ada))

	codec, err := jwtx.NewCodec([]byte("0123456789abcdef0123456789abcdef"), jwtx.WithClock(f.clock.Now))
	require.NoError(t, err)

	f.creds = &CredentialService{Store: st, Hasher: f.hasher, Now: f.clock.Now}
	f.resets = &PasswordResetService{Store: st, Hasher: f.hasher, Mailer: f.mailer, Now: f.clock.Now}
	f.session = &SessionService{Store: st, Codec: codec, TTL: time.Hour, Now: f.clock.Now}
	return f
}

func (f *fixture) passwordHash(t *testing.T) string {
	t.Helper()
	a, err := f.store.Accounts().GetAccountByID(context.Background(), f.ada.ID)
	require.NoError(t, err)
	return *a.PasswordHash
}

func TestLoginDoesNotEnumerateAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	social := domain.Account{ID: idx.New().String(), ConstituentID: "c2", Username: "grace", Email: "grace@example.org"}
	require.NoError(t, f.store.Accounts().CreateAccount(ctx, social))

	_, wrongPassword := f.creds.LoginWithUsernameAndPassword(ctx, "ada", "not the password")
	_, unknownUser := f.creds.LoginWithUsernameAndPassword(ctx, "nobody", "not the password")
	_, noPassword := f.creds.LoginWithUsernameAndPassword(ctx, "grace", "anything")

	for _, err := range []error{wrongPassword, unknownUser, noPassword} {
		require.ErrorIs(t, err, ErrInvalidCredentials)
		appErr := AsError(err)
		require.Equal(t, ErrInvalidCredentials.Message, appErr.Message)
		require.Equal(t, 401, appErr.Status)
	}
}

func TestLoginBuildsIdentityFromActiveGrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	past := now.Add(-24 * time.Hour)

	require.NoError(t, f.store.Roles().GrantRole(ctx, f.ada.ID, domain.RoleGrant{Name: domain.RoleLead, ChapterID: "chapterA", StartedAt: past}))
	require.NoError(t, f.store.Roles().GrantRole(ctx, f.ada.ID, domain.RoleGrant{Name: domain.RolePresident, StartedAt: past, EndedAt: &past}))
	require.NoError(t, f.store.Profiles().AddMembership(ctx, f.ada.ID, domain.Membership{Profile: domain.ProfileMember, ChapterID: "chapterA", StartedAt: past}))

	for _, identifier := range []string{"ada", "ada@example.org"} {
		id, err := f.creds.LoginWithUsernameAndPassword(ctx, identifier, adaPassword)
		require.NoError(t, err)
		require.Equal(t, f.ada.ID, id.ID)
		require.Equal(t, f.ada.ConstituentID, id.ConstituentID)
		require.Equal(t, "Ada Lovelace", id.FullName)
		require.Equal(t, []string{"MEMBER.lead.chapterA"}, id.RoleStrings())
		require.Equal(t, []string{domain.ProfileMember}, id.Profiles)
	}

	_, err := f.creds.LoginWithUsernameAndPassword(ctx, "ADA", adaPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials, "identifier match is case-sensitive")
}

func TestLoginAcceptsLegacyBcrypt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-system-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.store.Accounts().UpdatePasswordHash(ctx, f.ada.ID, string(legacy)))

	id, err := f.creds.LoginWithUsernameAndPassword(ctx, "ada", "old-system-pw")
	require.NoError(t, err)
	require.Equal(t, f.ada.ID, id.ID)
	require.Empty(t, id.Roles)
	require.NotNil(t, id.Roles)
}

func TestForgotPasswordTwiceLeavesOneCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)
	require.Regexp(t, `^\d{6}$`, first)

	f.clock.Advance(time.Second)
	second, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	codes, err := f.store.OneTimeCodes().ListOneTimeCodesByEmail(ctx, f.ada.Email)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	require.Equal(t, second, codes[0].Code)
	require.Nil(t, codes[0].UsedAt)
	require.True(t, codes[0].ExpiresAt.Equal(f.clock.Now().Add(6*time.Minute)))

	require.Len(t, f.mailer.sent, 2)
	require.Contains(t, f.mailer.sent[1].Body, second)
	require.Equal(t, f.ada.Email, f.mailer.sent[1].To)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.resets.ForgotPassword(context.Background(), "nobody@example.org")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Equal(t, 404, AsError(err).Status)
	require.Empty(t, f.mailer.sent)
}

func TestForgotPasswordMailFailureKeepsCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mailer.err = errors.New("relay down")

	_, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.Error(t, err)
	require.Equal(t, ErrInternal, AsError(err))

	codes, err := f.store.OneTimeCodes().ListOneTimeCodesByEmail(ctx, f.ada.Email)
	require.NoError(t, err)
	require.Len(t, codes, 1)
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	require.NoError(t, f.resets.ResetPassword(ctx, f.ada.Email, code, "a brand new secret"))

	_, err = f.creds.LoginWithUsernameAndPassword(ctx, "ada", "a brand new secret")
	require.NoError(t, err)
	_, err = f.creds.LoginWithUsernameAndPassword(ctx, "ada", adaPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	err = f.resets.ResetPassword(ctx, f.ada.Email, code, "yet another secret")
	require.ErrorIs(t, err, ErrOtpAlreadyUsed)
}

func TestResetPasswordRejectsExpiredCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := f.passwordHash(t)

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	f.clock.Advance(6*time.Minute + time.Second)

	err = f.resets.ResetPassword(ctx, f.ada.Email, code, "a brand new secret")
	require.ErrorIs(t, err, ErrInvalidOtp)
	require.Equal(t, before, f.passwordHash(t))
}

func TestResetPasswordRejectsWrongOrMissingCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.resets.ResetPassword(ctx, f.ada.Email, "123456", "a brand new secret")
	require.ErrorIs(t, err, ErrInvalidOtp, "no pending reset")

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = f.resets.ResetPassword(ctx, f.ada.Email, wrong, "a brand new secret")
	require.ErrorIs(t, err, ErrInvalidOtp)
	require.Equal(t, ErrInvalidOtp.Message, AsError(err).Message)

	err = f.resets.ResetPassword(ctx, "other@example.org", code, "a brand new secret")
	require.ErrorIs(t, err, ErrInvalidOtp)
}

func TestResetPasswordValidatesNewPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	err = f.resets.ResetPassword(ctx, f.ada.Email, code, "short")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 400, AsError(err).Status)

	// The code was not consumed by the rejected attempt.
	require.NoError(t, f.resets.ResetPassword(ctx, f.ada.Email, code, "long enough now"))
}

func TestConcurrentResetsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	const racers = 4
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Go(func() {
			errs[i] = f.resets.ResetPassword(ctx, f.ada.Email, code, "racing password")
		})
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrOtpAlreadyUsed)
	}
	require.Equal(t, 1, wins)
}

type failingStore struct{ store.Store }

func (s failingStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error { return fn(failingTx{tx}) })
}

// baseTx lets failingTx embed store.Tx without a field named Tx hiding the
// promoted Tx method.
type baseTx = store.Tx

type failingTx struct{ baseTx }

func (t failingTx) Accounts() store.Accounts { return failingAccounts{t.baseTx.Accounts()} }

type failingAccounts struct{ store.Accounts }

func (failingAccounts) UpdatePasswordHash(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestResetPasswordRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := f.passwordHash(t)

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	broken := &PasswordResetService{Store: failingStore{f.store}, Hasher: f.hasher, Now: f.clock.Now}
	err = broken.ResetPassword(ctx, f.ada.Email, code, "a brand new secret")
	require.Error(t, err)
	require.Equal(t, ErrInternal, AsError(err))

	require.Equal(t, before, f.passwordHash(t))
	got, err := f.store.OneTimeCodes().GetOneTimeCodeByEmail(ctx, f.ada.Email)
	require.NoError(t, err)
	require.Nil(t, got.UsedAt, "code must stay unused after rollback")

	require.NoError(t, f.resets.ResetPassword(ctx, f.ada.Email, code, "a brand new secret"))
}

func TestSessionIssueDecodeAndRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.creds.LoginWithUsernameAndPassword(ctx, "ada", adaPassword)
	require.NoError(t, err)

	token, err := f.session.Issue(id)
	require.NoError(t, err)

	res := f.session.Decode(token)
	require.Equal(t, jwtx.Valid, res.Kind)
	require.Equal(t, id, res.Payload)

	require.NoError(t, f.store.Roles().GrantRole(ctx, f.ada.ID, domain.RoleGrant{Name: domain.RolePresident, StartedAt: f.clock.Now()}))
	refreshed, err := f.session.Refresh(ctx, res.Payload)
	require.NoError(t, err)
	require.Equal(t, []string{"president"}, refreshed.RoleStrings())

	_, err = f.session.Refresh(ctx, domain.Identity{ID: "gone"})
	require.ErrorIs(t, err, ErrSessionMissing)

	f.clock.Advance(time.Hour + time.Second)
	require.Equal(t, jwtx.Expired, f.session.Decode(token).Kind)
}

func TestHousekeepingDeletesExpiredCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)

	hk := NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)
	hk.Now = f.clock.Now

	require.Zero(t, hk.Cleanup(ctx))

	f.clock.Advance(7 * time.Minute)
	require.EqualValues(t, 1, hk.Cleanup(ctx))
}

func TestHousekeepingKeepsUsedCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	code, err := f.resets.ForgotPassword(ctx, f.ada.Email)
	require.NoError(t, err)
	require.NoError(t, f.resets.ResetPassword(ctx, f.ada.Email, code, "a brand new secret"))

	hk := NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)
	hk.Now = f.clock.Now

	f.clock.Advance(7 * time.Minute)
	require.Zero(t, hk.Cleanup(ctx))

	err = f.resets.ResetPassword(ctx, f.ada.Email, code, "another new secret")
	require.ErrorIs(t, err, ErrOtpAlreadyUsed)
}

func TestErrorMatching(t *testing.T) {
	v := ValidationError(errors.New("password: too short"))
	require.ErrorIs(t, v, ErrValidation)
	require.NotErrorIs(t, v, ErrInvalidOtp)
	require.Equal(t, "password: too short", v.Message)

	wrapped := errors.Join(errors.New("context"), ErrOtpAlreadyUsed)
	require.Equal(t, ErrOtpAlreadyUsed, AsError(wrapped))
	require.Equal(t, ErrInternal, AsError(errors.New("plain")))
}
