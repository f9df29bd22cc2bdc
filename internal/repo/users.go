package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reminderdesk/internal/domain"
)

const userColumns = `id,full_name,email,role,status,created_at`

func scanUser(s rowScanner) (domain.User, error) {
	var u domain.User
	var role string
	err := s.Scan(&u.ID, &u.FullName, &u.Email, &role, &u.Status, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	u.Role = domain.Role(role)
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?)`,
		u.ID, u.FullName, domain.NormalizeEmail(u.Email), string(u.Role), u.Status, u.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, domain.NormalizeEmail(email)))
}

func (r Repo) UpdateUserStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUser rewrites the editable columns of u.
func (r Repo) UpdateUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET full_name=?, email=?, role=?, status=? WHERE id=?`,
		u.FullName, domain.NormalizeEmail(u.Email), string(u.Role), u.Status, u.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; its API keys go with it.
func (r Repo) DeleteUser(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type UserFilter struct {
	Role   domain.Role
	Status string
}

func (r Repo) ListUsers(ctx context.Context, f UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, string(f.Role))
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+strings.Join(clauses, " AND ")+` ORDER BY role, full_name, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// EmailsByRole returns the emails of active users holding role.
func (r Repo) EmailsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT email FROM users WHERE role=? AND status=? ORDER BY email`, string(role), domain.UserActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		res = append(res, email)
	}
	return res, rows.Err()
}

// CountUsersByRole counts users per role, active and inactive alike.
func (r Repo) CountUsersByRole(ctx context.Context) (map[domain.Role]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role, COUNT(1) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.Role]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		res[domain.Role(role)] = n
	}
	return res, rows.Err()
}
