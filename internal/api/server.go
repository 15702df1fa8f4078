// ABOUTME: HTTP API for account signup, node listing, and bot lifecycle control.
// ABOUTME: JSON over net/http ServeMux; bearer-token auth on the bot routes.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vireonhq/vireon/internal/auth"
	"github.com/vireonhq/vireon/internal/commands"
	"github.com/vireonhq/vireon/internal/gateway"
	"github.com/vireonhq/vireon/internal/registry"
	"github.com/vireonhq/vireon/internal/store"
)

// Username validation: alphanumeric + underscores, 3-32 characters.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,31}$`)

const minPasswordLength = 8

// Server exposes the hosting API over HTTP.
type Server struct {
	store    store.Store
	registry *registry.Registry
	verifier *auth.JWTVerifier
	catalog  *commands.Catalog
	nodes    []string
	logger   *slog.Logger
}

// Config contains the dependencies for a Server.
type Config struct {
	Store    store.Store
	Registry *registry.Registry
	Verifier *auth.JWTVerifier
	Catalog  *commands.Catalog
	Nodes    []string
	Logger   *slog.Logger
}

// New creates an API server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    cfg.Store,
		registry: cfg.Registry,
		verifier: cfg.Verifier,
		catalog:  cfg.Catalog,
		nodes:    cfg.Nodes,
		logger:   logger.With("component", "api"),
	}
}

// RegisterRoutes attaches all API routes to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/nodes", s.handleNodes)

	// Authenticated routes
	authed := auth.Middleware(s.verifier)
	mux.Handle("GET /api/bots", authed(http.HandlerFunc(s.handleListBots)))
	mux.Handle("POST /api/bots", authed(http.HandlerFunc(s.handleStartBot)))
	mux.Handle("POST /api/bots/{id}/stop", authed(http.HandlerFunc(s.handleStopBot)))
	mux.Handle("GET /api/bots/{id}/commands", authed(http.HandlerFunc(s.handleListCommands)))
	mux.Handle("PUT /api/bots/{id}/commands/{name}", authed(http.HandlerFunc(s.handleToggleCommand)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeBotError maps registry and gateway failures to HTTP statuses. The
// messages are fixed so nothing from the failure path can echo a secret.
func (s *Server) writeBotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrInvalidCredential):
		writeError(w, http.StatusBadRequest, "the gateway rejected the bot token")
	case errors.Is(err, registry.ErrNotOwner):
		writeError(w, http.StatusForbidden, "you do not own this bot")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "bot not found")
	case errors.Is(err, gateway.ErrConnect), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusBadGateway, "could not reach the chat gateway")
	default:
		s.logger.Error("bot operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		writeError(w, http.StatusBadRequest, "username must be 3-32 characters, letters, digits, and underscores")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			writeError(w, http.StatusConflict, "username is taken")
			return
		}
		s.logger.Error("user creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := s.verifier.Generate(user.ID)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, UserID: user.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		s.logger.Error("user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := s.verifier.Generate(user.ID)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UserID: user.ID})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.nodes)
}

type botResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	GatewayID   string `json:"gateway_id,omitempty"`
	Node        string `json:"node"`
	Status      string `json:"status"`
	ConnectedAt string `json:"connected_at,omitempty"`
}

func toBotResponse(s *registry.BotSummary) botResponse {
	resp := botResponse{
		ID:          s.ID,
		DisplayName: s.DisplayName,
		GatewayID:   s.GatewayID,
		Node:        s.Node,
		Status:      s.Status,
	}
	if !s.ConnectedAt.IsZero() {
		resp.ConnectedAt = s.ConnectedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	summaries, err := s.registry.List(r.Context(), userID)
	if err != nil {
		s.writeBotError(w, err)
		return
	}

	out := make([]botResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, toBotResponse(summary))
	}
	writeJSON(w, http.StatusOK, out)
}

type startBotRequest struct {
	Token string `json:"token"`
	Node  string `json:"node"`
}

func (s *Server) handleStartBot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	var req startBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.Node == "" {
		writeError(w, http.StatusBadRequest, "token and node required")
		return
	}
	if !s.validNode(req.Node) {
		writeError(w, http.StatusBadRequest, "unknown node")
		return
	}

	summary, err := s.registry.Start(r.Context(), registry.StartRequest{
		Credential: req.Token,
		Node:       req.Node,
		OwnerID:    userID,
	})
	if err != nil {
		s.writeBotError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBotResponse(summary))
}

func (s *Server) handleStopBot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	botID := r.PathValue("id")

	if err := s.registry.StopByID(r.Context(), userID, botID); err != nil {
		s.writeBotError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commandResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Elevated    bool   `json:"elevated,omitempty"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	botID := r.PathValue("id")

	flags, err := s.registry.GetFlags(r.Context(), userID, botID)
	if err != nil {
		s.writeBotError(w, err)
		return
	}

	out := make([]commandResponse, 0)
	for _, cmd := range s.catalog.List() {
		enabled := true
		if v, overridden := flags[cmd.Name]; overridden {
			enabled = v
		}
		out = append(out, commandResponse{
			Name:        cmd.Name,
			Description: cmd.Description,
			Elevated:    cmd.Elevated,
			Enabled:     enabled,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type toggleCommandRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleToggleCommand(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	botID := r.PathValue("id")
	// Flag rows are keyed by the lowercase name the router looks up.
	name := strings.ToLower(r.PathValue("name"))

	if s.catalog.Get(name) == nil {
		writeError(w, http.StatusNotFound, "unknown command")
		return
	}

	var req toggleCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.registry.ToggleCommand(r.Context(), userID, botID, name, req.Enabled); err != nil {
		s.writeBotError(w, err)
		return
	}

	s.logger.Info("command toggled", "bot_id", botID, "command", name, "enabled", req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) validNode(node string) bool {
	for _, n := range s.nodes {
		if n == node {
			return true
		}
	}
	return false
}
