// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the REST endpoints for accounts, rooms and message edits.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Tyrowin/roomchat/internal/common"
	"github.com/julienschmidt/httprouter"
)

const maxRequestBody = 1 << 20

// handleWebSocket upgrades the request and attaches a new client to the hub.
// The room's recent history is queued before registration so it is always
// the first frame the client receives.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	username := strings.TrimSpace(query.Get("username"))
	if username == "" {
		http.Error(w, "Username required", http.StatusBadRequest)
		return
	}
	room := strings.TrimSpace(query.Get("room"))
	if room == "" {
		room = s.cfg.DefaultRoom
	}

	history, err := s.store.ListRecent(r.Context(), room, s.cfg.HistoryLimit)
	if err != nil {
		s.log.Error(r.Context(), "load history", "room", room, "error", err)
		history = nil
	}
	frame, err := EncodeHistory(history)
	if err != nil {
		s.log.Error(r.Context(), "encode history", "room", room, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, s.store, s.cfg, s.log, username, room)
	client.enqueue(frame)

	if !s.hub.Register(client) {
		client.closeConn()
		return
	}
	client.start()
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "RoomChat server is running!")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"durable": s.durable,
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentials
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.users.Register(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"username": strings.TrimSpace(req.Username)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentials
	if !s.decodeJSON(w, r, &req) {
		return
	}
	u, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"username": u.Username,
		"darkMode": u.DarkMode,
	})
}

func (s *Server) handleGetDarkMode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	username := r.URL.Query().Get("username")
	if username == "" {
		s.writeError(w, r, fmt.Errorf("username required: %w", common.ErrInvalidInput))
		return
	}
	enabled, err := s.users.DarkMode(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]bool{"darkMode": enabled})
}

func (s *Server) handleSetDarkMode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Username string `json:"username"`
		DarkMode bool   `json:"darkMode"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.users.SetDarkMode(r.Context(), req.Username, req.DarkMode); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]bool{"darkMode": req.DarkMode})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := s.rooms.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Creator     string `json:"creator"`
		Password    string `json:"password"`
		IsPrivate   bool   `json:"isPrivate"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	room, err := s.rooms.Create(r.Context(), req.Name, req.Description, req.Creator, req.Password, req.IsPrivate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Password string `json:"password"`
	}
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	room, err := s.rooms.Join(r.Context(), ps.ByName("name"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, room)
}

// handleEditMessage rewrites a message's text and tells its room.
func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		s.writeError(w, r, fmt.Errorf("message id required: %w", common.ErrInvalidInput))
		return
	}

	msg, err := s.store.EditText(r.Context(), req.ID, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload, err := EncodeEdit(msg.ID, msg.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.Broadcast(Envelope{Room: msg.Room, Payload: payload})
	s.writeJSON(w, r, http.StatusOK, msg)
}

// handleDeleteMessage removes a message and tells its room.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, fmt.Errorf("message id required: %w", common.ErrInvalidInput))
		return
	}

	msg, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload, err := EncodeDelete(msg.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.Broadcast(Envelope{Room: msg.Room, Payload: payload})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, fmt.Errorf("invalid JSON: %w", common.ErrInvalidInput))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn(r.Context(), "write response", "path", r.URL.Path, "error", err)
	}
}

// writeError maps domain errors to HTTP status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}
