package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Routes returns the application's HTTP handler: health checks, the
// WebSocket endpoint and the REST wrappers around users, rooms and messages.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()
	router.HandleOPTIONS = true
	router.GlobalOPTIONS = http.HandlerFunc(s.handlePreflight)

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)

	router.POST("/register", s.handleRegister)
	router.POST("/login", s.handleLogin)
	router.GET("/get_dark_mode", s.handleGetDarkMode)
	router.POST("/set_dark_mode", s.handleSetDarkMode)

	router.GET("/rooms", s.handleListRooms)
	router.POST("/rooms", s.handleCreateRoom)
	router.POST("/rooms/:name/join", s.handleJoinRoom)

	router.PUT("/message", s.handleEditMessage)
	router.DELETE("/message", s.handleDeleteMessage)

	return s.cors(router)
}

// cors lets allowed browser origins call the REST endpoints.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.origins.allows(r) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
