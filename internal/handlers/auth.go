package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/regulens/compliance-core/internal/registry"
	"github.com/regulens/compliance-core/pkg/auth"
)

const maxFailedLoginAttempts = 5

func (h *Handlers) authRoutes() []registry.Endpoint {
	return []registry.Endpoint{
		{Method: http.MethodPost, PathTemplate: "/api/auth/login", Category: "auth", Summary: "credentials in; tokens out", Handler: h.login},
		{Method: http.MethodPost, PathTemplate: "/api/auth/refresh", Category: "auth", Summary: "rotate refresh; new access", Handler: h.refresh},
		{Method: http.MethodPost, PathTemplate: "/api/auth/logout", Category: "auth", Summary: "revoke presented refresh", Handler: h.logout},
		{Method: http.MethodGet, PathTemplate: "/api/auth/me", Category: "auth", AuthRequired: true, Summary: "caller profile", Handler: h.me},
		{Method: http.MethodPost, PathTemplate: "/api/auth/register", Category: "auth", AuthRequired: true, AllowedRoles: []string{"admin"}, Summary: "create a user (admin-only, external creation path)", Handler: h.register},
		{Method: http.MethodPost, PathTemplate: "/api/auth/reset-lock", Category: "auth", AuthRequired: true, AllowedRoles: []string{"admin"}, Summary: "clear failedAttempts", Handler: h.resetLock},
	}
}

type userRow struct {
	UserID       string          `db:"user_id"`
	Username     string          `db:"username"`
	Email        string          `db:"email"`
	PasswordHash string          `db:"password_hash"`
	IsActive     bool            `db:"is_active"`
	Roles        json.RawMessage `db:"roles"`
	FailedLogins int             `db:"failed_login_attempts"`
}

func (row userRow) roles() []string {
	var roles []string
	_ = json.Unmarshal(row.Roles, &roles)
	return roles
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) login(r registry.Request) registry.Response {
	var body loginRequest
	if err := decodeBody(r, &body); err != nil || body.Username == "" || body.Password == "" {
		return errResponse(http.StatusBadRequest, "username and password are required")
	}

	var row userRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT user_id, username, email, password_hash, is_active, roles, failed_login_attempts
		FROM user_authentication WHERE username = $1
	`, body.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return errResponse(http.StatusUnauthorized, "invalid username or password")
	}
	if err != nil {
		h.log.Component("auth").WithError(err).Warn("login lookup failed")
		return errResponse(http.StatusInternalServerError, "lookup failed")
	}

	if !row.IsActive || row.FailedLogins >= maxFailedLoginAttempts {
		return errResponse(http.StatusUnauthorized, "account locked; contact an administrator")
	}

	if !auth.VerifyPassword(body.Password, row.PasswordHash) {
		h.recordFailedLogin(r, row.UserID, row.FailedLogins+1)
		return errResponse(http.StatusUnauthorized, "invalid username or password")
	}

	roles := row.roles()
	access, ttl, err := h.tokens.IssueAccess(row.UserID, row.Username, roles)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "issue access token failed")
	}
	refreshToken, _, err := h.tokens.IssueRefresh(r.Ctx, row.UserID, row.Username, roles)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "issue refresh token failed")
	}

	_, _ = h.pool.Raw().ExecContext(r.Ctx, `
		UPDATE user_authentication SET failed_login_attempts = 0, last_login_at = now() WHERE user_id = $1
	`, row.UserID)

	return registry.JSON(http.StatusOK, map[string]interface{}{
		"accessToken":  access,
		"refreshToken": refreshToken,
		"expiresIn":    int(ttl.Seconds()),
		"user":         map[string]interface{}{"id": row.UserID, "username": row.Username, "roles": roles},
	})
}

func (h *Handlers) recordFailedLogin(r registry.Request, userID string, attempts int) {
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		UPDATE user_authentication SET failed_login_attempts = $2 WHERE user_id = $1
	`, userID, attempts)
	if err != nil {
		h.log.Component("auth").WithError(err).Warn("failed to record login failure")
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handlers) refresh(r registry.Request) registry.Response {
	var body refreshRequest
	if err := decodeBody(r, &body); err != nil || body.RefreshToken == "" {
		return errResponse(http.StatusBadRequest, "refreshToken is required")
	}

	access, newRefresh, ttl, err := h.tokens.Rotate(r.Ctx, body.RefreshToken)
	if err != nil {
		return errResponse(http.StatusUnauthorized, "invalid or expired refresh token")
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{
		"accessToken":  access,
		"refreshToken": newRefresh,
		"expiresIn":    int(ttl.Seconds()),
	})
}

// logout is unauthenticated at the registry level: per the original's
// logout_user, the presented credential is the opaque refresh token itself,
// not a JWT access token, so it must never go through Registry's
// tokens.Identify gate. The refresh token is read straight out of the
// Authorization header (the original's "Bearer <refresh token>" convention),
// falling back to the JSON body or a nonstandard X-Refresh-Token header for
// callers that can't set Authorization on a logout request.
func (h *Handlers) logout(r registry.Request) registry.Response {
	token := bearerToken(r.Headers.Get("Authorization"))
	if token == "" {
		var body refreshRequest
		_ = decodeBody(r, &body)
		token = body.RefreshToken
	}
	if token == "" {
		if v := r.Headers.Get("X-Refresh-Token"); v != "" {
			token = v
		}
	}
	if token == "" {
		return registry.JSON(http.StatusOK, map[string]string{"status": "logged out"})
	}
	if err := h.tokens.Revoke(r.Ctx, token); err != nil {
		h.log.Component("auth").WithError(err).Warn("logout revoke failed")
	}
	return registry.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func (h *Handlers) me(r registry.Request) registry.Response {
	return registry.JSON(http.StatusOK, map[string]interface{}{
		"id":       r.Claims.UserID,
		"username": r.Claims.Username,
		"roles":    r.Claims.Roles,
	})
}

type registerRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

func (h *Handlers) register(r registry.Request) registry.Response {
	var body registerRequest
	if err := decodeBody(r, &body); err != nil || body.Username == "" || body.Password == "" {
		return errResponse(http.StatusBadRequest, "username and password are required")
	}
	if len(body.Roles) == 0 {
		body.Roles = []string{"user"}
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "hash password failed")
	}
	roles, err := json.Marshal(body.Roles)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "marshal roles failed")
	}

	userID := newID("user")
	_, err = h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO user_authentication (user_id, username, email, password_hash, is_active, roles)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`, userID, body.Username, body.Email, hash, roles)
	if err != nil {
		return errResponseCode(http.StatusConflict, "username already exists", "conflict")
	}

	return registry.JSON(http.StatusCreated, map[string]interface{}{"id": userID, "username": body.Username, "roles": body.Roles})
}

type resetLockRequest struct {
	UserID string `json:"userId"`
}

func (h *Handlers) resetLock(r registry.Request) registry.Response {
	var body resetLockRequest
	if err := decodeBody(r, &body); err != nil || body.UserID == "" {
		return errResponse(http.StatusBadRequest, "userId is required")
	}

	result, err := h.pool.Raw().ExecContext(r.Ctx, `
		UPDATE user_authentication SET failed_login_attempts = 0, is_active = TRUE WHERE user_id = $1
	`, body.UserID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "reset lock failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "user not found")
	}
	return registry.JSON(http.StatusOK, map[string]string{"status": "unlocked"})
}
