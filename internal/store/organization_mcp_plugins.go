package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// OrganizationMCPPlugin is an organization's registration of a plugin:
// which plugin, and the config blob holding its credentials. At most
// one registration per organization is active at a time.
type OrganizationMCPPlugin struct {
	ID             string          `json:"id"`
	MCPPluginID    string          `json:"mcpPluginId"`
	OrganizationID string          `json:"organizationId"`
	Config         json.RawMessage `json:"config"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
}

type CreateOrganizationMCPPluginParams struct {
	MCPPluginID    string          `json:"mcpPluginId"`
	OrganizationID string          `json:"organizationId"`
	Config         json.RawMessage `json:"config"`
}

type UpdateOrganizationMCPPluginParams struct {
	Config   *json.RawMessage `json:"config"`
	IsActive *bool            `json:"isActive"`
}

type OrganizationMCPPluginStore struct {
	db *DB
}

func NewOrganizationMCPPluginStore(db *DB) *OrganizationMCPPluginStore {
	return &OrganizationMCPPluginStore{db: db}
}

// Create registers a plugin for an organization. The new registration
// is active; any other active registration for the organization is
// deactivated in the same transaction.
func (s *OrganizationMCPPluginStore) Create(ctx context.Context, params CreateOrganizationMCPPluginParams) (*OrganizationMCPPlugin, error) {
	r := &OrganizationMCPPlugin{
		ID:             uuid.NewString(),
		MCPPluginID:    params.MCPPluginID,
		OrganizationID: params.OrganizationID,
		Config:         params.Config,
		IsActive:       true,
		CreatedAt:      now(),
		UpdatedAt:      now(),
	}
	if len(r.Config) == 0 {
		r.Config = json.RawMessage("{}")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_mcp_plugins SET is_active = ?, updated_at = ? WHERE organization_id = ? AND is_active = ?`,
		false, r.UpdatedAt, r.OrganizationID, true); err != nil {
		return nil, mapError(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO organization_mcp_plugins (id, mcp_plugin_id, organization_id, config, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MCPPluginID, r.OrganizationID, string(r.Config), r.IsActive, r.CreatedAt, r.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func scanRegistration(scan func(...any) error) (*OrganizationMCPPlugin, error) {
	var r OrganizationMCPPlugin
	var config string
	if err := scan(&r.ID, &r.MCPPluginID, &r.OrganizationID, &config, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Config = json.RawMessage(config)
	return &r, nil
}

const registrationColumns = `id, mcp_plugin_id, organization_id, config, is_active, created_at, updated_at`

func (s *OrganizationMCPPluginStore) Get(ctx context.Context, id string) (*OrganizationMCPPlugin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM organization_mcp_plugins WHERE id = ?`, id)
	r, err := scanRegistration(row.Scan)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (s *OrganizationMCPPluginStore) List(ctx context.Context) ([]OrganizationMCPPlugin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM organization_mcp_plugins ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	registrations := []OrganizationMCPPlugin{}
	for rows.Next() {
		r, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, *r)
	}
	return registrations, rows.Err()
}

// FindActiveByOrganization returns the organization's active
// registration, or ErrNotFound when it has none.
func (s *OrganizationMCPPluginStore) FindActiveByOrganization(ctx context.Context, organizationID string) (*OrganizationMCPPlugin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM organization_mcp_plugins
		 WHERE organization_id = ? AND is_active = ? LIMIT 1`, organizationID, true)
	r, err := scanRegistration(row.Scan)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

// Update patches a registration. Activating one deactivates the
// organization's other registrations in the same transaction.
func (s *OrganizationMCPPluginStore) Update(ctx context.Context, id string, params UpdateOrganizationMCPPluginParams) (*OrganizationMCPPlugin, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Config != nil {
		r.Config = *params.Config
	}
	if params.IsActive != nil {
		r.IsActive = *params.IsActive
	}
	r.UpdatedAt = now()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if r.IsActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE organization_mcp_plugins SET is_active = ?, updated_at = ? WHERE organization_id = ? AND id <> ? AND is_active = ?`,
			false, r.UpdatedAt, r.OrganizationID, r.ID, true); err != nil {
			return nil, mapError(err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_mcp_plugins SET config = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		string(r.Config), r.IsActive, r.UpdatedAt, r.ID); err != nil {
		return nil, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (s *OrganizationMCPPluginStore) Delete(ctx context.Context, id string) (*OrganizationMCPPlugin, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM organization_mcp_plugins WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return r, nil
}
