package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"
)

type service struct {
	accounts Repository
	hasher   PasswordHasher

	// digest checked for unknown emails, so a miss costs as much as a wrong password
	decoyOnce   sync.Once
	decoyDigest string
}

func NewService(accounts Repository, hasher PasswordHasher) Service {
	return &service{accounts: accounts, hasher: hasher}
}

// Signup registers a new account. Nothing is stored unless every check passes.
func (svc *service) Signup(ctx context.Context, r signupRequest) error {
	if !ValidEmail(r.Email) {
		return ErrInvalidEmail
	}

	if !StrongPassword(r.Password) {
		return ErrWeakPassword
	}

	if err := svc.verifyNotInUse(ctx, r.Email); err != nil {
		return err
	}

	hash, err := svc.hasher.Hash(r.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return ErrPasswordTooLong
		}
		return internalError(err)
	}

	acc := &Account{Username: r.Username, Email: r.Email, PasswordHash: hash}
	if err := svc.accounts.Store(ctx, acc); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return internalError(errors.Wrap(err, "error saving account"))
	}

	return nil
}

// Login checks the credentials. An unknown email and a wrong password give
// the same error.
func (svc *service) Login(ctx context.Context, r loginRequest) error {
	acc, err := svc.accounts.FindByEmail(ctx, r.Email)
	if errors.Is(err, ErrNotFound) {
		svc.hasher.Verify(svc.decoy(), r.Password)
		return ErrInvalidCredentials
	}
	if err != nil {
		return internalError(errors.Wrap(err, "error finding account"))
	}

	if !svc.hasher.Verify(acc.PasswordHash, r.Password) {
		return ErrInvalidCredentials
	}

	return nil
}

// ListAccounts returns every account, password hashes included.
func (svc *service) ListAccounts(ctx context.Context) ([]Account, error) {
	accounts, err := svc.accounts.FindAll(ctx)
	if err != nil {
		return nil, internalError(errors.Wrap(err, "error listing accounts"))
	}
	return accounts, nil
}

func (svc *service) decoy() string {
	svc.decoyOnce.Do(func() {
		// on failure the digest stays empty and never matches
		svc.decoyDigest, _ = svc.hasher.Hash("decoy-" + xid.New().String())
	})
	return svc.decoyDigest
}

func (svc *service) verifyNotInUse(ctx context.Context, email string) error {
	_, err := svc.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return internalError(errors.Wrap(err, "error finding account"))
	}
}
