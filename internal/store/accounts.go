package store

import (
	"context"
	"strings"

	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

const accountCols = `id, email, name, role, password_hash, created_at`

func scanAccount(r rowScanner) (Account, error) {
	var a Account
	var role string
	var created int64
	if err := r.Scan(&a.ID, &a.Email, &a.Name, &role, &a.PasswordHash, &created); err != nil {
		return Account{}, err
	}
	a.Role = rbac.ParseRole(role)
	a.CreatedAt = fromUnix(created)
	return a, nil
}

func (s *SQLStore) CreateAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, strings.ToLower(strings.TrimSpace(a.Email)), a.Name, string(a.Role), a.PasswordHash, unix(a.CreatedAt))
	return wrap("create account", err)
}

func (s *SQLStore) GetAccount(ctx context.Context, id string) (Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id=$1`, id))
	return a, wrap("get account", err)
}

func (s *SQLStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE email=$1`, strings.ToLower(strings.TrimSpace(email))))
	return a, wrap("get account by email", err)
}

func (s *SQLStore) UpdateAccountName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET name=$1 WHERE id=$2`, name, id)
	return mustAffect("update account", res, err)
}
