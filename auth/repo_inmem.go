package auth

import (
	"context"
	"sort"
	"sync"
)

type accountRepository struct {
	mu       sync.RWMutex
	lastID   ID
	accounts map[string]Account
}

func NewAccountRepository() Repository {
	return &accountRepository{accounts: map[string]Account{}}
}

func (repo *accountRepository) Store(_ context.Context, acc *Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.accounts[acc.Email]; ok {
		return ErrDuplicateEmail
	}

	repo.lastID++
	acc.ID = repo.lastID
	repo.accounts[acc.Email] = *acc
	return nil
}

func (repo *accountRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if acc, ok := repo.accounts[email]; ok {
		return &acc, nil
	}
	return nil, ErrNotFound
}

func (repo *accountRepository) FindAll(_ context.Context) ([]Account, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	accounts := make([]Account, 0, len(repo.accounts))
	for _, acc := range repo.accounts {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}
