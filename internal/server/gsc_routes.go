package server

import (
	"encoding/json"
	"net/http"

	"github.com/siteagent/siteagent/internal/mcp/gsc"
)

type gscToolMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// listGSCTools exposes the connector's catalog without parameter
// schemas, for clients seeding an mcp_plugins record.
func (s *Server) listGSCTools(w http.ResponseWriter, _ *http.Request) {
	defs := s.gsc.Tools()
	tools := make([]gscToolMetadata, len(defs))
	for i, def := range defs {
		tools[i] = gscToolMetadata{Name: def.Name, Description: def.Description}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

type gscExecuteRequest struct {
	Tool        string          `json:"tool"`
	Input       map[string]any  `json:"input"`
	Credentials json.RawMessage `json:"credentials"`
}

// executeGSCTool runs one tool directly, bypassing the orchestration
// loop. Dispatch still goes through the executor so the per-call
// timeout applies.
func (s *Server) executeGSCTool(w http.ResponseWriter, r *http.Request) {
	var req gscExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if !s.gsc.IsTool(req.Tool) {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "unknown tool "+req.Tool)
		return
	}

	result, err := s.executor.ExecuteTool(r.Context(), gsc.PluginName, req.Tool, req.Input, req.Credentials)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": req.Tool, "result": result})
}
