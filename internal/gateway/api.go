// ABOUTME: HTTP API handlers for login, table creation, and KV operations
// ABOUTME: Maps store/policy outcomes onto the JSON surface and status codes

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tablekv/tablekv/internal/auth"
	"github.com/tablekv/tablekv/internal/store"
)

// LoginRequest is the JSON request body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /login.
type LoginResponse struct {
	SID      string `json:"sid"`
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	Duration int64  `json:"duration"` // seconds
	Expires  string `json:"expires"`
}

// CreateTableRequest is the JSON request body for POST /create_kv.
type CreateTableRequest struct {
	Name            string `json:"name"`
	AllowGuestRead  bool   `json:"allow_guest_read"`
	AllowGuestWrite bool   `json:"allow_guest_write"`
}

// TableResponse describes a table's resolved policy.
type TableResponse struct {
	Name            string `json:"name"`
	AllowGuestRead  bool   `json:"allow_guest_read"`
	AllowGuestWrite bool   `json:"allow_guest_write"`
}

// PutItemRequest is the JSON request body for POST /kv/{table}/{key}.
type PutItemRequest struct {
	Value string `json:"value"`
}

// GetItemResponse is the JSON response for GET /kv/{table}/{key}.
// An absent key is a success with exists=false, never a 404.
type GetItemResponse struct {
	Value  string `json:"value"`
	Exists bool   `json:"exists"`
}

// AckResponse acknowledges a write or delete.
type AckResponse struct {
	OK bool `json:"ok"`
}

// handlePing handles GET /ping requests.
func (g *Gateway) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "pong")
}

// handleLogin handles POST /login requests. Bad credentials are always 401
// with the same body and, via the dummy bcrypt compare, roughly the same
// timing whether or not the username exists.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := g.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			auth.DummyCheck(req.Password)
			g.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		g.logger.Error("failed to look up user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		g.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session, err := g.sessions.Create(r.Context(), user.ID)
	if err != nil {
		g.logger.Error("failed to create session", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    session.SID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	g.logger.Info("login successful", "username", user.Username)
	g.sendJSON(w, http.StatusOK, LoginResponse{
		SID:      session.SID,
		UID:      user.ID,
		Username: user.Username,
		Duration: int64(g.sessions.Duration().Seconds()),
		Expires:  session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleCreateTable handles POST /create_kv requests. The route is wrapped
// in RequireUser, so the identity is never nil here. The store commits the
// registration, the creator's read+write grant, and the audit record in one
// transaction.
func (g *Gateway) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	ident := auth.FromContext(r.Context())

	var req CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tbl := &store.Table{
		Name:            req.Name,
		AllowGuestRead:  req.AllowGuestRead,
		AllowGuestWrite: req.AllowGuestWrite,
		CreatedBy:       ident.UserID,
		CreatedAt:       time.Now(),
	}

	if err := g.store.CreateTable(r.Context(), tbl); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidIdentifier):
			g.sendJSONError(w, http.StatusBadRequest, "invalid table name")
		case errors.Is(err, store.ErrTableExists):
			g.sendJSONError(w, http.StatusConflict, "table already exists")
		default:
			g.logger.Error("failed to create table", "error", err, "table", req.Name)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	g.logger.Info("table created", "table", tbl.Name, "created_by", ident.Username)
	g.sendJSON(w, http.StatusOK, TableResponse{
		Name:            tbl.Name,
		AllowGuestRead:  tbl.AllowGuestRead,
		AllowGuestWrite: tbl.AllowGuestWrite,
	})
}

// handleGetItem handles GET /kv/{table}/{key} requests.
func (g *Gateway) handleGetItem(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	key := r.PathValue("key")

	if !g.authorize(w, r, table, OpRead) {
		return
	}

	value, exists, err := g.store.GetValue(r.Context(), table, key)
	if err != nil {
		g.sendStorageError(w, err, table)
		return
	}

	g.sendJSON(w, http.StatusOK, GetItemResponse{Value: value, Exists: exists})
}

// handlePutItem handles POST /kv/{table}/{key} requests.
func (g *Gateway) handlePutItem(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	key := r.PathValue("key")

	var req PutItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !g.authorize(w, r, table, OpWrite) {
		return
	}

	if err := g.store.PutValue(r.Context(), table, key, req.Value); err != nil {
		g.sendStorageError(w, err, table)
		return
	}

	g.sendJSON(w, http.StatusOK, AckResponse{OK: true})
}

// handleDeleteItem handles DELETE /kv/{table}/{key} requests.
func (g *Gateway) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	key := r.PathValue("key")

	if !g.authorize(w, r, table, OpWrite) {
		return
	}

	if err := g.store.DeleteValue(r.Context(), table, key); err != nil {
		g.sendStorageError(w, err, table)
		return
	}

	g.sendJSON(w, http.StatusOK, AckResponse{OK: true})
}

// authorize evaluates policy for the request and writes the 403 itself when
// denied. Denial does not reveal whether the table exists: a missing table
// denies exactly like one with no guest access, so only callers the policy
// allows (admins, grant holders) can ever observe a 404.
func (g *Gateway) authorize(w http.ResponseWriter, r *http.Request, table string, op Op) bool {
	ident := auth.FromContext(r.Context())

	allowed, err := g.policy.Can(r.Context(), ident, table, op)
	if err != nil {
		g.logger.Error("policy evaluation failed", "error", err, "table", table, "op", op)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if !allowed {
		g.sendJSONError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// sendStorageError maps backend errors from get/put/delete to status codes.
func (g *Gateway) sendStorageError(w http.ResponseWriter, err error, table string) {
	switch {
	case errors.Is(err, store.ErrTableNotFound):
		g.sendJSONError(w, http.StatusNotFound, "table not found")
	case errors.Is(err, store.ErrInvalidIdentifier):
		g.sendJSONError(w, http.StatusBadRequest, "invalid table name")
	default:
		g.logger.Error("storage operation failed", "error", err, "table", table)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSON writes a JSON response body with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response with the given status.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, msg string) {
	g.sendJSON(w, status, map[string]string{"error": msg})
}
