package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/siteagent/siteagent/internal/orchestrator"
)

// MCPPlugin is a plugin definition with its tool catalog. The catalog
// is what the orchestrator offers to the model for this plugin.
type MCPPlugin struct {
	ID          string                        `json:"id"`
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Tools       []orchestrator.ToolDefinition `json:"tools"`
	CreatedAt   string                        `json:"createdAt"`
	UpdatedAt   string                        `json:"updatedAt"`
}

type CreateMCPPluginParams struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Tools       []orchestrator.ToolDefinition `json:"tools"`
}

type UpdateMCPPluginParams struct {
	Name        *string                        `json:"name"`
	Description *string                        `json:"description"`
	Tools       *[]orchestrator.ToolDefinition `json:"tools"`
}

type MCPPluginStore struct {
	db *DB
}

func NewMCPPluginStore(db *DB) *MCPPluginStore {
	return &MCPPluginStore{db: db}
}

func encodeTools(tools []orchestrator.ToolDefinition) (string, error) {
	if tools == nil {
		tools = []orchestrator.ToolDefinition{}
	}
	raw, err := json.Marshal(tools)
	if err != nil {
		return "", fmt.Errorf("encode tools: %w", err)
	}
	return string(raw), nil
}

func (s *MCPPluginStore) Create(ctx context.Context, params CreateMCPPluginParams) (*MCPPlugin, error) {
	toolsJSON, err := encodeTools(params.Tools)
	if err != nil {
		return nil, err
	}
	p := &MCPPlugin{
		ID:          uuid.NewString(),
		Name:        params.Name,
		Description: params.Description,
		Tools:       params.Tools,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}
	if p.Tools == nil {
		p.Tools = []orchestrator.ToolDefinition{}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mcp_plugins (id, name, description, tools, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, toolsJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *MCPPluginStore) scanPlugin(scan func(...any) error) (*MCPPlugin, error) {
	var p MCPPlugin
	var toolsJSON string
	if err := scan(&p.ID, &p.Name, &p.Description, &toolsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(toolsJSON), &p.Tools); err != nil || p.Tools == nil {
		p.Tools = []orchestrator.ToolDefinition{}
	}
	return &p, nil
}

func (s *MCPPluginStore) Get(ctx context.Context, id string) (*MCPPlugin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, tools, created_at, updated_at FROM mcp_plugins WHERE id = ?`, id)
	p, err := s.scanPlugin(row.Scan)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *MCPPluginStore) List(ctx context.Context) ([]MCPPlugin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, tools, created_at, updated_at FROM mcp_plugins ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	plugins := []MCPPlugin{}
	for rows.Next() {
		p, err := s.scanPlugin(rows.Scan)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, *p)
	}
	return plugins, rows.Err()
}

func (s *MCPPluginStore) Update(ctx context.Context, id string, params UpdateMCPPluginParams) (*MCPPlugin, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.Description != nil {
		p.Description = *params.Description
	}
	if params.Tools != nil {
		p.Tools = *params.Tools
	}
	p.UpdatedAt = now()

	toolsJSON, err := encodeTools(p.Tools)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE mcp_plugins SET name = ?, description = ?, tools = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, toolsJSON, p.UpdatedAt, p.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *MCPPluginStore) Delete(ctx context.Context, id string) (*MCPPlugin, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mcp_plugins WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return p, nil
}
