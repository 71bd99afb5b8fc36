package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	DisplayName     string `json:"displayName"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	IsActive        bool   `json:"isActive"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type CreateUserParams struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
}

type UpdateUserParams struct {
	Email           *string `json:"email"`
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	DisplayName     *string `json:"displayName"`
	IsEmailVerified *bool   `json:"isEmailVerified"`
	IsActive        *bool   `json:"isActive"`
}

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	u := &User{
		ID:          uuid.NewString(),
		Email:       params.Email,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		DisplayName: params.DisplayName,
		IsActive:    true,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, display_name, is_email_verified, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.DisplayName, u.IsEmailVerified, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, display_name, is_email_verified, is_active, created_at, updated_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.DisplayName, &u.IsEmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, first_name, last_name, display_name, is_email_verified, is_active, created_at, updated_at
		 FROM users ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.DisplayName, &u.IsEmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(ctx context.Context, id string, params UpdateUserParams) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Email != nil {
		u.Email = *params.Email
	}
	if params.FirstName != nil {
		u.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		u.LastName = *params.LastName
	}
	if params.DisplayName != nil {
		u.DisplayName = *params.DisplayName
	}
	if params.IsEmailVerified != nil {
		u.IsEmailVerified = *params.IsEmailVerified
	}
	if params.IsActive != nil {
		u.IsActive = *params.IsActive
	}
	u.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, display_name = ?, is_email_verified = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		u.Email, u.FirstName, u.LastName, u.DisplayName, u.IsEmailVerified, u.IsActive, u.UpdatedAt, u.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}
