package server

import (
	"errors"
	"net/http"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/profiles"
)

const maxAvatarBytes = 5 << 20

func (s *Server) AvatarUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.Avatars == nil {
			writeJSONError(w, "not_configured", "avatar storage is not configured", http.StatusNotImplemented)
			return
		}
		profile := profileFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
		if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
			writeJSONError(w, "invalid_request", "expected a multipart avatar upload", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("avatar")
		if err != nil {
			writeJSONError(w, "invalid_request", "missing avatar file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		url, err := s.services.Avatars.Replace(r.Context(), profile.ID, file, header.Header.Get("Content-Type"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
		case errors.Is(err, profiles.ErrUnsupportedAvatarType):
			writeJSONError(w, "unsupported_media_type", err.Error(), http.StatusUnsupportedMediaType)
		case errors.Is(err, dasherrors.ErrProfileNotFound):
			writeJSONError(w, "not_found", "profile not found", http.StatusNotFound)
		default:
			s.logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "storage_failure", "avatar upload failed", http.StatusBadGateway)
		}
	}
}

// FileHandler serves objects from the in-memory store under the public base URL
func (s *Server) FileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, contentType, err := s.services.Files.Get(r.PathValue("path"))
		if err != nil {
			http.Error(w, "404 - Not Found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(body)
	}
}
