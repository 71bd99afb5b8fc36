package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/siteagent/siteagent/internal/secret"
)

// OrganizationLLM is an organization's LLM credential. The api key is
// encrypted at rest and never serialized into API responses.
type OrganizationLLM struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Provider       string `json:"provider"`
	APIKey         string `json:"-"`
	IsActive       bool   `json:"isActive"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type CreateOrganizationLLMParams struct {
	OrganizationID string `json:"organizationId"`
	Provider       string `json:"provider"`
	APIKey         string `json:"apiKey"`
}

type UpdateOrganizationLLMParams struct {
	Provider *string `json:"provider"`
	APIKey   *string `json:"apiKey"`
	IsActive *bool   `json:"isActive"`
}

// OrganizationLLMStore persists credentials through the keychain: keys
// are encrypted on write and decrypted on single-record reads. List
// never loads key material at all.
type OrganizationLLMStore struct {
	db       *DB
	keychain *secret.Keychain
}

func NewOrganizationLLMStore(db *DB, keychain *secret.Keychain) *OrganizationLLMStore {
	return &OrganizationLLMStore{db: db, keychain: keychain}
}

func (s *OrganizationLLMStore) Create(ctx context.Context, params CreateOrganizationLLMParams) (*OrganizationLLM, error) {
	encrypted, err := s.keychain.Encrypt(params.APIKey)
	if err != nil {
		return nil, err
	}
	l := &OrganizationLLM{
		ID:             uuid.NewString(),
		OrganizationID: params.OrganizationID,
		Provider:       params.Provider,
		APIKey:         params.APIKey,
		IsActive:       true,
		CreatedAt:      now(),
		UpdatedAt:      now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO organization_llms (id, organization_id, provider, api_key, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OrganizationID, l.Provider, encrypted, l.IsActive, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

func (s *OrganizationLLMStore) Get(ctx context.Context, id string) (*OrganizationLLM, error) {
	var l OrganizationLLM
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, provider, api_key, is_active, created_at, updated_at
		 FROM organization_llms WHERE id = ?`, id,
	).Scan(&l.ID, &l.OrganizationID, &l.Provider, &l.APIKey, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	l.APIKey = s.keychain.Decrypt(l.APIKey)
	return &l, nil
}

// List returns credentials without key material.
func (s *OrganizationLLMStore) List(ctx context.Context) ([]OrganizationLLM, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, provider, is_active, created_at, updated_at
		 FROM organization_llms ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	llms := []OrganizationLLM{}
	for rows.Next() {
		var l OrganizationLLM
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Provider, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		llms = append(llms, l)
	}
	return llms, rows.Err()
}

func (s *OrganizationLLMStore) Update(ctx context.Context, id string, params UpdateOrganizationLLMParams) (*OrganizationLLM, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Provider != nil {
		l.Provider = *params.Provider
	}
	if params.APIKey != nil {
		l.APIKey = *params.APIKey
	}
	if params.IsActive != nil {
		l.IsActive = *params.IsActive
	}
	l.UpdatedAt = now()

	encrypted, err := s.keychain.Encrypt(l.APIKey)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE organization_llms SET provider = ?, api_key = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		l.Provider, encrypted, l.IsActive, l.UpdatedAt, l.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

func (s *OrganizationLLMStore) Delete(ctx context.Context, id string) (*OrganizationLLM, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM organization_llms WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return l, nil
}
