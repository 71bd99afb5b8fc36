package store

import (
	"context"

	"github.com/google/uuid"
)

// OrganizationUser links a user to an organization. The pair is unique.
type OrganizationUser struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type CreateOrganizationUserParams struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
}

type OrganizationUserStore struct {
	db *DB
}

func NewOrganizationUserStore(db *DB) *OrganizationUserStore {
	return &OrganizationUserStore{db: db}
}

func (s *OrganizationUserStore) Create(ctx context.Context, params CreateOrganizationUserParams) (*OrganizationUser, error) {
	m := &OrganizationUser{
		ID:             uuid.NewString(),
		UserID:         params.UserID,
		OrganizationID: params.OrganizationID,
		CreatedAt:      now(),
		UpdatedAt:      now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organization_users (id, user_id, organization_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.OrganizationID, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (s *OrganizationUserStore) Get(ctx context.Context, id string) (*OrganizationUser, error) {
	var m OrganizationUser
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, organization_id, created_at, updated_at FROM organization_users WHERE id = ?`, id,
	).Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func (s *OrganizationUserStore) List(ctx context.Context) ([]OrganizationUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, organization_id, created_at, updated_at FROM organization_users ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	members := []OrganizationUser{}
	for rows.Next() {
		var m OrganizationUser
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *OrganizationUserStore) Delete(ctx context.Context, id string) (*OrganizationUser, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM organization_users WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return m, nil
}
