package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() (Service, Repository) {
	accounts := NewAccountRepository()
	return NewService(accounts, NewBcryptHasherWithCost(bcrypt.MinCost)), accounts
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newTestService()

	tests := []struct {
		req     signupRequest
		wantErr error
	}{
		{req: signupRequest{"u", "bad-email", "Passw0rd"}, wantErr: ErrInvalidEmail},
		{req: signupRequest{"u", "", "Passw0rd"}, wantErr: ErrInvalidEmail},
		{req: signupRequest{"u", "bad-email", "weak"}, wantErr: ErrInvalidEmail},
		{req: signupRequest{"u", "b@c.com", "password"}, wantErr: ErrWeakPassword},
		{req: signupRequest{"u", "b@c.com", "short1A"}, wantErr: ErrWeakPassword},
		{req: signupRequest{"u", "b@c.com", "Passw0rd" + strings.Repeat("x", 70)}, wantErr: ErrPasswordTooLong},
		{req: signupRequest{"u", "b@c.com", "Passw0rd"}},
		{req: signupRequest{"u2", "b@c.com", "An0therPass"}, wantErr: ErrEmailTaken},
		{req: signupRequest{"u2", "b@c.com", "weak"}, wantErr: ErrWeakPassword},
		{req: signupRequest{"u2", "b@c.com", ""}, wantErr: ErrWeakPassword},
		{req: signupRequest{"u", "c@c.com", "Passw0rd"}},
	}

	for _, tt := range tests {
		err := svc.Signup(ctx, tt.req)
		assert.Equal(t, tt.wantErr, err, "request %+v", tt.req)
	}

	all, err := accounts.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ID(1), all[0].ID)
	assert.Equal(t, "b@c.com", all[0].Email)
	assert.Equal(t, ID(2), all[1].ID)
	assert.Equal(t, "c@c.com", all[1].Email)
}

func TestService_Signup_StoresHashNotPassword(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newTestService()

	require.NoError(t, svc.Signup(ctx, signupRequest{"alice", "alice@example.com", "Passw0rd1"}))

	acc, err := accounts.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.NotEqual(t, "Passw0rd1", acc.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("Passw0rd1")))
}

func TestService_Signup_NothingStoredOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newTestService()

	_ = svc.Signup(ctx, signupRequest{"u", "bad", "Passw0rd"})
	_ = svc.Signup(ctx, signupRequest{"u", "a@b.com", "weak"})

	all, err := accounts.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	require.NoError(t, svc.Signup(ctx, signupRequest{"alice", "alice@example.com", "Passw0rd1"}))

	tests := []struct {
		req     loginRequest
		wantErr error
	}{
		{req: loginRequest{"alice@example.com", "Passw0rd1"}},
		{req: loginRequest{"alice@example.com", "wrong"}, wantErr: ErrInvalidCredentials},
		{req: loginRequest{"alice@example.com", ""}, wantErr: ErrInvalidCredentials},
		{req: loginRequest{"bob@example.com", "Passw0rd1"}, wantErr: ErrInvalidCredentials},
		{req: loginRequest{"", ""}, wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		err := svc.Login(ctx, tt.req)
		assert.Equal(t, tt.wantErr, err, "request %+v", tt.req)
	}
}

func TestService_Login_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	require.NoError(t, svc.Signup(ctx, signupRequest{"alice", "alice@example.com", "Passw0rd1"}))

	wrongPassword := svc.Login(ctx, loginRequest{"alice@example.com", "Passw0rd2"})
	unknownEmail := svc.Login(ctx, loginRequest{"nobody@example.com", "Passw0rd1"})

	assert.Equal(t, wrongPassword, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, Unauthorized, KindOf(unknownEmail))
}

func TestService_Login_UnknownEmailStillVerifiesPassword(t *testing.T) {
	ctx := context.Background()
	hasher := &verifySpy{PasswordHasher: NewBcryptHasherWithCost(bcrypt.MinCost)}
	svc := NewService(NewAccountRepository(), hasher)

	for _, password := range []string{"Passw0rd1", "Passw0rd1", ""} {
		err := svc.Login(ctx, loginRequest{"nobody@example.com", password})
		assert.Equal(t, ErrInvalidCredentials, err)
	}

	require.Len(t, hasher.digests, 3)
	cost, err := bcrypt.Cost([]byte(hasher.digests[0]))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.Equal(t, hasher.digests[0], hasher.digests[2])
}

func TestService_ListAccounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	all, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, svc.Signup(ctx, signupRequest{"alice", "alice@example.com", "Passw0rd1"}))
	require.NoError(t, svc.Signup(ctx, signupRequest{"bob", "bob@example.com", "Passw0rd2"}))

	all, err = svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
	assert.Equal(t, "bob", all[1].Username)
	assert.NotEmpty(t, all[0].PasswordHash)
}

func TestService_StorageFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection reset")
	svc := NewService(&failingRepository{err: cause}, NewBcryptHasherWithCost(bcrypt.MinCost))

	err := svc.Signup(ctx, signupRequest{"u", "a@b.com", "Passw0rd"})
	assert.Equal(t, Internal, KindOf(err))
	assert.True(t, errors.Is(err, cause))

	err = svc.Login(ctx, loginRequest{"a@b.com", "Passw0rd"})
	assert.Equal(t, Internal, KindOf(err))
	assert.NotEqual(t, ErrInvalidCredentials, err)

	_, err = svc.ListAccounts(ctx)
	assert.Equal(t, Internal, KindOf(err))
}

func TestService_Signup_DuplicateOnStoreIsConflict(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&racingRepository{Repository: NewAccountRepository()}, NewBcryptHasherWithCost(bcrypt.MinCost))

	err := svc.Signup(ctx, signupRequest{"u", "a@b.com", "Passw0rd"})

	assert.Equal(t, ErrEmailTaken, err)
}

func TestService_Signup_HasherFailureIsInternal(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountRepository()
	svc := NewService(accounts, hasherStub{err: errors.New("entropy exhausted")})

	err := svc.Signup(ctx, signupRequest{"u", "a@b.com", "Passw0rd"})

	assert.Equal(t, Internal, KindOf(err))
	all, _ := accounts.FindAll(ctx)
	assert.Empty(t, all)
}

type failingRepository struct {
	err error
}

func (r *failingRepository) FindByEmail(context.Context, string) (*Account, error) {
	return nil, r.err
}

func (r *failingRepository) Store(context.Context, *Account) error {
	return r.err
}

func (r *failingRepository) FindAll(context.Context) ([]Account, error) {
	return nil, r.err
}

// racingRepository reports the email as free but fails the insert, as when
// a concurrent signup wins.
type racingRepository struct {
	Repository
}

func (r *racingRepository) Store(context.Context, *Account) error {
	return ErrDuplicateEmail
}

// verifySpy records the digests passed to Verify.
type verifySpy struct {
	PasswordHasher
	digests []string
}

func (h *verifySpy) Verify(digest, password string) bool {
	h.digests = append(h.digests, digest)
	return h.PasswordHasher.Verify(digest, password)
}

type hasherStub struct {
	err error
}

func (h hasherStub) Hash(string) (string, error) {
	return "", h.err
}

func (h hasherStub) Verify(string, string) bool {
	return false
}
