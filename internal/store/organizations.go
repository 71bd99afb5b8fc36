package store

import (
	"context"

	"github.com/google/uuid"
)

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type CreateOrganizationParams struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type UpdateOrganizationParams struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	IsActive *bool   `json:"isActive"`
}

type OrganizationStore struct {
	db *DB
}

func NewOrganizationStore(db *DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

func (s *OrganizationStore) Create(ctx context.Context, params CreateOrganizationParams) (*Organization, error) {
	o := &Organization{
		ID:        uuid.NewString(),
		Name:      params.Name,
		Slug:      params.Slug,
		IsActive:  true,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, slug, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Slug, o.IsActive, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return o, nil
}

func (s *OrganizationStore) Get(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, is_active, created_at, updated_at FROM organizations WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

func (s *OrganizationStore) List(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, is_active, created_at, updated_at FROM organizations ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	orgs := []Organization{}
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *OrganizationStore) Update(ctx context.Context, id string, params UpdateOrganizationParams) (*Organization, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		o.Name = *params.Name
	}
	if params.Slug != nil {
		o.Slug = *params.Slug
	}
	if params.IsActive != nil {
		o.IsActive = *params.IsActive
	}
	o.UpdatedAt = now()

	_, err = s.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, slug = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		o.Name, o.Slug, o.IsActive, o.UpdatedAt, o.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return o, nil
}

func (s *OrganizationStore) Delete(ctx context.Context, id string) (*Organization, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return o, nil
}
