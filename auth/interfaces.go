package auth

import "context"

type Service interface {
	Signup(ctx context.Context, r signupRequest) error
	Login(ctx context.Context, r loginRequest) error
	ListAccounts(ctx context.Context) ([]Account, error)
}

// Repository is the storage collaborator. Implementations must enforce email
// uniqueness themselves and report a violation as ErrDuplicateEmail.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Store(ctx context.Context, acc *Account) error
	FindAll(ctx context.Context) ([]Account, error)
}

type signupRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"max=100"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
