package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"archive/internal/apperr"
	"archive/internal/testutil"
	"archive/internal/validation"
)

type purgeFunc func(ctx context.Context, tx *sql.Tx, userID string) error

func (f purgeFunc) PurgeAuthor(ctx context.Context, tx *sql.Tx, userID string) error {
	return f(ctx, tx, userID)
}

func newTestService(t *testing.T, purger ContentPurger) (*Service, *sql.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(NewRepo(db), Hasher{Cost: bcrypt.MinCost}, purger, validation.New()), db
}

func register(t *testing.T, svc *Service, username, email string) string {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{Username: username, Email: email, Password: "secret1"})
	require.NoError(t, err)
	return u.ID
}

func TestService_RegisterThenVerify(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "  alice ", Email: " A@X.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "a@x.com", u.Email)
	assert.False(t, u.IsAdmin)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, u.ID).Scan(&stored))
	assert.NotEqual(t, "secret1", stored)

	got, err := svc.VerifyCredentials(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = svc.VerifyCredentials(ctx, "a@x.com", "wrong")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = svc.VerifyCredentials(ctx, "nobody@x.com", "secret1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_RegisterRejects(t *testing.T) {
	svc, _ := newTestService(t, nil)
	register(t, svc, "alice", "a@x.com")

	tests := []struct {
		name string
		in   RegisterInput
		code apperr.Code
	}{
		{"duplicate email with other username", RegisterInput{"bob", "a@x.com", "secret1"}, apperr.CodeConflict},
		{"duplicate email differing in case", RegisterInput{"bob", "A@X.COM", "secret1"}, apperr.CodeConflict},
		{"duplicate username", RegisterInput{"alice", "b@x.com", "secret1"}, apperr.CodeConflict},
		{"missing username", RegisterInput{"", "c@x.com", "secret1"}, apperr.CodeInvalidInput},
		{"missing password", RegisterInput{"carol", "c@x.com", ""}, apperr.CodeInvalidInput},
		{"bad email", RegisterInput{"carol", "not-an-email", "secret1"}, apperr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	id := register(t, svc, "alice", "a@x.com")
	register(t, svc, "bob", "b@x.com")

	str := func(s string) *string { return &s }

	u, err := svc.UpdateProfile(ctx, id, ProfileInput{Username: str("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, "a@x.com", u.Email)

	// password untouched when absent
	got, err := svc.VerifyCredentials(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, got)

	_, err = svc.UpdateProfile(ctx, id, ProfileInput{Password: str("newpass")})
	require.NoError(t, err)
	got, err = svc.VerifyCredentials(ctx, "a@x.com", "newpass")
	require.NoError(t, err)
	require.NotNil(t, got)

	_, err = svc.UpdateProfile(ctx, id, ProfileInput{Email: str("b@x.com")})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	_, err = svc.UpdateProfile(ctx, "missing", ProfileInput{Username: str("zed")})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = svc.UpdateProfile(ctx, id, ProfileInput{Email: str("nope")})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestService_DeleteAccount(t *testing.T) {
	purged := ""
	svc, db := newTestService(t, purgeFunc(func(ctx context.Context, tx *sql.Tx, userID string) error {
		purged = userID
		return nil
	}))
	ctx := context.Background()
	alice := register(t, svc, "alice", "a@x.com")
	bob := register(t, svc, "bob", "b@x.com")

	err := svc.DeleteAccount(ctx, bob, alice)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	require.NoError(t, svc.DeleteAccount(ctx, alice, alice))
	assert.Equal(t, alice, purged)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users WHERE id = ?`, alice).Scan(&n))
	assert.Zero(t, n)

	err = svc.DeleteAccount(ctx, alice, alice)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestService_DeleteAccountKeepsUserWhenPurgeFails(t *testing.T) {
	boom := errors.New("purge failed")
	svc, db := newTestService(t, purgeFunc(func(ctx context.Context, tx *sql.Tx, userID string) error {
		// work done before the failure must be rolled back too
		if _, err := tx.ExecContext(ctx, `UPDATE users SET username = 'renamed' WHERE id = ?`, userID); err != nil {
			return err
		}
		return boom
	}))
	ctx := context.Background()
	alice := register(t, svc, "alice", "a@x.com")

	err := svc.DeleteAccount(ctx, alice, alice)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.ErrorIs(t, err, boom)

	var username string
	require.NoError(t, db.QueryRow(`SELECT username FROM users WHERE id = ?`, alice).Scan(&username))
	assert.Equal(t, "alice", username)
}

func TestService_UsesInjectedClock(t *testing.T) {
	svc, _ := newTestService(t, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return fixed }

	u, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, fixed.Equal(u.CreatedAt))

	found, err := svc.FindUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(found.CreatedAt))
}
