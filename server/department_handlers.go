package server

import (
	"net/http"
)

type departmentsResponse struct {
	Departments []string `json:"departments"`
}

type departmentRequest struct {
	Name string `json:"name"`
}

func (s *Server) ListDepartmentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, departmentsResponse{Departments: s.services.Directory.List()})
	}
}

func (s *Server) AddDepartmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req departmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed department request", http.StatusBadRequest)
			return
		}
		if !s.services.Directory.Add(req.Name) {
			writeJSONError(w, "department_rejected", "department name is empty or already exists", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusCreated, departmentsResponse{Departments: s.services.Directory.List()})
	}
}

func (s *Server) RenameDepartmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := r.PathValue("name")
		var req departmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed department request", http.StatusBadRequest)
			return
		}
		if !s.services.Directory.Contains(current) {
			writeJSONError(w, "not_found", "department not found", http.StatusNotFound)
			return
		}
		if !s.services.Directory.Rename(current, req.Name) {
			writeJSONError(w, "department_rejected", "department name is empty or already exists", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, departmentsResponse{Departments: s.services.Directory.List()})
	}
}

// RemoveDepartmentHandler deletes a department. Reference checks against teams belong to
// the caller.
func (s *Server) RemoveDepartmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.services.Directory.Remove(r.PathValue("name")) {
			writeJSONError(w, "not_found", "department not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
