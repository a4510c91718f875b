package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/auth/me", s.authenticated(s.handleMe))
	s.mux.HandleFunc("GET /api/chat/sessions", s.authenticated(s.handleListSessions))
	s.mux.HandleFunc("POST /api/chat/session", s.authenticated(s.handleCreateSession))
	s.mux.HandleFunc("GET /api/chat/session/{id}", s.authenticated(s.handleSessionHistory))
	s.mux.HandleFunc("DELETE /api/chat/session/{id}", s.authenticated(s.handleDeleteSession))
	s.mux.HandleFunc("POST /api/chat/message", s.authenticated(s.handleMessage))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user StoredUser)

// authenticated resolves the bearer token before running the handler.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tok := strings.TrimPrefix(header, "Bearer ")
		if header == "" || tok == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.store.UserByToken(r.Context(), tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := s.store.CreateUser(r.Context(), body.Username, body.Email, body.Password); err != nil {
		writeError(w, http.StatusBadRequest, "username already taken")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": body.Username, "email": body.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	tok, err := s.store.Authenticate(r.Context(), username, password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "token_type": "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user StoredUser) {
	writeJSON(w, http.StatusOK, map[string]string{"username": user.Username, "email": user.Email})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, user StoredUser) {
	sessions, err := s.store.ListSessions(r.Context(), user.Username)
	if err != nil {
		log.Error().Err(err).Msg("list sessions failed")
		writeError(w, http.StatusInternalServerError, "list sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, user StoredUser) {
	id, err := s.store.CreateSession(r.Context(), user.Username)
	if err != nil {
		log.Error().Err(err).Msg("create session failed")
		writeError(w, http.StatusInternalServerError, "create session failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

// ownedSession checks existence and ownership, mirroring the backend's 404
// for both unknown and foreign sessions.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request, user StoredUser, id string) bool {
	owner, err := s.store.SessionOwner(r.Context(), id)
	if err != nil || owner != user.Username {
		if err != nil && !errors.Is(err, errSessionNotFound) {
			log.Error().Err(err).Str("session_id", id).Msg("session lookup failed")
		}
		writeError(w, http.StatusNotFound, "session not found")
		return false
	}
	return true
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request, user StoredUser) {
	id := r.PathValue("id")
	if !s.ownedSession(w, r, user, id) {
		return
	}
	msgs, err := s.store.Messages(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("load messages failed")
		writeError(w, http.StatusInternalServerError, "load messages failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": msgs})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, user StoredUser) {
	id := r.PathValue("id")
	if !s.ownedSession(w, r, user, id) {
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("delete session failed")
		writeError(w, http.StatusInternalServerError, "delete session failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, user StoredUser) {
	var body struct {
		SessionID string `json:"session_id"`
		Role      string `json:"role"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	sessionID := body.SessionID
	if sessionID == "" {
		id, err := s.store.CreateSession(r.Context(), user.Username)
		if err != nil {
			log.Error().Err(err).Msg("implicit session create failed")
			writeError(w, http.StatusInternalServerError, "create session failed")
			return
		}
		sessionID = id
	} else if !s.ownedSession(w, r, user, sessionID) {
		return
	}

	history, err := s.store.Messages(r.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("load context failed")
		writeError(w, http.StatusInternalServerError, "load context failed")
		return
	}
	if err := s.store.SaveMessage(r.Context(), sessionID, "user", body.Content); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("save user message failed")
		writeError(w, http.StatusInternalServerError, "save message failed")
		return
	}
	if err := s.store.EnsureTitle(r.Context(), sessionID, body.Content); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("title update failed")
	}

	reply, err := s.responder.Respond(r.Context(), history, body.Content)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("responder failed")
		writeError(w, http.StatusInternalServerError, "response generation failed")
		return
	}
	if err := s.store.SaveMessage(r.Context(), sessionID, "bot", reply); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("save bot message failed")
		writeError(w, http.StatusInternalServerError, "save message failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"session_id":  sessionID,
		"bot_content": reply,
	})
}
