package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const createAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username VARCHAR(50) NOT NULL,
	email VARCHAR(100) UNIQUE NOT NULL,
	password_hash VARCHAR(200) NOT NULL
)`

type sqliteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and makes sure
// the accounts table exists.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_timeout=5000", path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(createAccountsTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create accounts table")
	}

	return db, nil
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var acc Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash FROM accounts WHERE email = ?`,
		email,
	).Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &acc, nil
}

func (r *sqliteRepository) Store(ctx context.Context, acc *Account) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, email, password_hash) VALUES (?, ?, ?)`,
		acc.Username, acc.Email, acc.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return errors.WithStack(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.WithStack(err)
	}
	acc.ID = ID(id)
	return nil
}

func (r *sqliteRepository) FindAll(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, email, password_hash FROM accounts ORDER BY id`)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash); err != nil {
			return nil, errors.WithStack(err)
		}
		accounts = append(accounts, acc)
	}

	return accounts, errors.WithStack(rows.Err())
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
