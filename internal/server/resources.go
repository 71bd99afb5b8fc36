package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/siteagent/siteagent/internal/store"
)

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var params store.CreateUserParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if strings.TrimSpace(params.Email) == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "email is required")
		return
	}
	u, err := s.users.Create(r.Context(), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var params store.UpdateUserParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	u, err := s.users.Update(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var params store.CreateOrganizationParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if strings.TrimSpace(params.Name) == "" || strings.TrimSpace(params.Slug) == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "name and slug are required")
		return
	}
	o, err := s.organizations.Create(r.Context(), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.organizations.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	o, err := s.organizations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	var params store.UpdateOrganizationParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	o, err := s.organizations.Update(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	o, err := s.organizations.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) createOrganizationUser(w http.ResponseWriter, r *http.Request) {
	var params store.CreateOrganizationUserParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if params.UserID == "" || params.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "userId and organizationId are required")
		return
	}
	m, err := s.members.Create(r.Context(), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listOrganizationUsers(w http.ResponseWriter, r *http.Request) {
	members, err := s.members.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) getOrganizationUser(w http.ResponseWriter, r *http.Request) {
	m, err := s.members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteOrganizationUser(w http.ResponseWriter, r *http.Request) {
	m, err := s.members.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) createOrganizationLLM(w http.ResponseWriter, r *http.Request) {
	var params store.CreateOrganizationLLMParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if params.OrganizationID == "" || params.Provider == "" || params.APIKey == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "organizationId, provider and apiKey are required")
		return
	}
	l, err := s.llms.Create(r.Context(), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) listOrganizationLLMs(w http.ResponseWriter, r *http.Request) {
	llms, err := s.llms.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, llms)
}

func (s *Server) getOrganizationLLM(w http.ResponseWriter, r *http.Request) {
	l, err := s.llms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) updateOrganizationLLM(w http.ResponseWriter, r *http.Request) {
	var params store.UpdateOrganizationLLMParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	l, err := s.llms.Update(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) deleteOrganizationLLM(w http.ResponseWriter, r *http.Request) {
	l, err := s.llms.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) createMCPPlugin(w http.ResponseWriter, r *http.Request) {
	var params store.CreateMCPPluginParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if strings.TrimSpace(params.Name) == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "name is required")
		return
	}
	p, err := s.plugins.Create(r.Context(), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listMCPPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.plugins.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plugins)
}

func (s *Server) getMCPPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := s.plugins.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateMCPPlugin(w http.ResponseWriter, r *http.Request) {
	var params store.UpdateMCPPluginParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	p, err := s.plugins.Update(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteMCPPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := s.plugins.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createRegistration(w http.ResponseWriter, r *http.Request) {
	var params store.CreateOrganizationMCPPluginParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if params.MCPPluginID == "" || params.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "mcpPluginId and organizationId are required")
		return
	}
	reg, err := s.registrations.Create(r.Context(), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) listRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.registrations.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (s *Server) getRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registrations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) updateRegistration(w http.ResponseWriter, r *http.Request) {
	var params store.UpdateOrganizationMCPPluginParams
	if err := decodeBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	reg, err := s.registrations.Update(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) deleteRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registrations.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) getActiveRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registrations.FindActiveByOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}
