package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"earnzy/internal/auth"
	"earnzy/internal/dashboard"
	"earnzy/internal/tasks"
)

const maxProofSize = 10 << 20 // multipart memory cap for proof uploads

func (s *Server) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Phone) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone is required"})
		return
	}
	if err := s.handlers.Auth.RequestOTP(r.Context(), req.Phone); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "otp_sent"})
}

func (s *Server) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone and code are required"})
		return
	}
	session, err := s.handlers.Auth.VerifyOTP(r.Context(), req.Phone, req.Code)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	s.handlers.Auth.OnAuthEvent(r.Context(), auth.EventSignedIn, session)
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": session.AccessToken,
		"redirect":     s.handlers.Router.Path(),
	})
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := s.handlers.Auth.StartOAuth()
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.handlers.Auth.SignOut(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": s.handlers.Router.Path()})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		return
	}
	if err := s.handlers.Auth.ResolveSession(r.Context(), token); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    s.handlers.Auth.IdentityID(),
		"privileged": s.handlers.Auth.IsPrivileged(r.Context()),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if err := s.handlers.Dashboard.Initialize(r.Context()); err != nil {
		if errors.Is(err, dashboard.ErrNotSignedIn) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"redirect": s.handlers.Router.Path()})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.handlers.Dashboard.View())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	view := s.handlers.Tasks.ListTasks(r.Context(), category)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOpenSubmission(w http.ResponseWriter, r *http.Request) {
	form, err := s.handlers.Tasks.OpenSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if _, err := s.handlers.Tasks.OpenSubmission(r.Context(), taskID); err != nil {
		writeSubmissionError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	if err := s.handlers.Tasks.SetNote(r.FormValue("note")); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if file, header, err := r.FormFile("proof"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read proof image"})
			return
		}
		if _, err := s.handlers.Tasks.AttachImage(header.Filename, data); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
	}

	if err := s.handlers.Tasks.SubmitProof(r.Context()); err != nil {
		switch {
		case errors.Is(err, tasks.ErrProofRequired):
			writeError(w, http.StatusUnprocessableEntity, err)
		case errors.Is(err, tasks.ErrSubmitInFlight):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "submitted",
		"message": "Proof submitted successfully! It will be reviewed by our admin team within 24 hours.",
	})
}

func writeSubmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, tasks.ErrSubmissionPending), errors.Is(err, tasks.ErrTaskCompleted):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, tasks.ErrNotSignedIn):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
