package store

import (
	"context"
	"errors"
	"fmt"
)

const userColumns = `id, email, password_hash, name, role, is_active, last_login, created_at, updated_at`

func scanUser(s scanner) (User, error) {
	var u User
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts u, assigning its id and timestamps. The email must
// already be normalized.
func (db *DB) CreateUser(ctx context.Context, u User) (User, error) {
	now := db.now()
	u.ID = newID()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := db.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive, u.LastLogin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UserByEmail looks a user up by normalized email.
func (db *DB) UserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return User{}, notFound(err, "user")
	}
	return u, nil
}

// UserByID looks a user up by id.
func (db *DB) UserByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return User{}, notFound(err, "user")
	}
	return u, nil
}

// TouchLastLogin stamps the user's last sign-in time.
func (db *DB) TouchLastLogin(ctx context.Context, id string) error {
	now := db.now()
	res, err := db.exec(ctx, `UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// EnsureUser creates u unless a user with the same email exists. It
// reports whether a row was inserted.
func (db *DB) EnsureUser(ctx context.Context, u User) (User, bool, error) {
	existing, err := db.UserByEmail(ctx, u.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}
	created, err := db.CreateUser(ctx, u)
	if err != nil {
		return User{}, false, err
	}
	return created, true, nil
}
