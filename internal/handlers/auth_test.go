package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/registry"
	"github.com/regulens/compliance-core/pkg/auth"
)

func userColumns() []string {
	return []string{"user_id", "username", "email", "password_hash", "is_active", "roles", "failed_login_attempts"}
}

// fakeRefreshStore is an in-memory auth.RefreshStore, just enough to exercise
// TokenService.Revoke without a database.
type fakeRefreshStore struct {
	revoked map[string]bool
}

func (s *fakeRefreshStore) Insert(ctx context.Context, rt auth.RefreshToken) error { return nil }
func (s *fakeRefreshStore) Get(ctx context.Context, token string) (*auth.RefreshToken, error) {
	return &auth.RefreshToken{Token: token}, nil
}
func (s *fakeRefreshStore) Revoke(ctx context.Context, token string) error {
	if s.revoked == nil {
		s.revoked = map[string]bool{}
	}
	s.revoked[token] = true
	return nil
}

func TestLoginMissingCredentialsIs400(t *testing.T) {
	h, _ := newTestHandlers(t)
	resp := h.login(registry.Request{Ctx: context.Background(), Body: []byte(`{"username":"alice"}`)})
	require.Equal(t, 400, resp.Status)
}

func TestLoginUnknownUsernameIs401(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT user_id, username, email, password_hash").WillReturnError(sql.ErrNoRows)

	resp := h.login(registry.Request{Ctx: context.Background(), Body: []byte(`{"username":"ghost","password":"x"}`)})
	require.Equal(t, 401, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginLockedAccountIs401WithoutPasswordCheck(t *testing.T) {
	h, mock := newTestHandlers(t)
	roles, _ := json.Marshal([]string{"user"})
	mock.ExpectQuery("SELECT user_id, username, email, password_hash").WillReturnRows(
		sqlmock.NewRows(userColumns()).AddRow("user_1", "alice", "a@example.com", "hash", true, roles, maxFailedLoginAttempts),
	)

	resp := h.login(registry.Request{Ctx: context.Background(), Body: []byte(`{"username":"alice","password":"wrong"}`)})
	require.Equal(t, 401, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPasswordRecordsFailureAndReturns401(t *testing.T) {
	h, mock := newTestHandlers(t)
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	roles, _ := json.Marshal([]string{"user"})

	mock.ExpectQuery("SELECT user_id, username, email, password_hash").WillReturnRows(
		sqlmock.NewRows(userColumns()).AddRow("user_1", "alice", "a@example.com", hash, true, roles, 0),
	)
	mock.ExpectExec("UPDATE user_authentication SET failed_login_attempts").WillReturnResult(sqlmock.NewResult(0, 1))

	resp := h.login(registry.Request{Ctx: context.Background(), Body: []byte(`{"username":"alice","password":"wrong"}`)})
	require.Equal(t, 401, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogoutWithNoTokenStillReturnsOK(t *testing.T) {
	h, _ := newTestHandlers(t)
	resp := h.logout(registry.Request{Ctx: context.Background(), Body: []byte(`{}`)})
	require.Equal(t, 200, resp.Status)
}

// TestLogoutRevokesTokenPresentedViaAuthorizationHeader covers spec.md §8
// Scenario S1: logout is called with "Authorization: Bearer <refresh>" (the
// opaque refresh token, not a JWT access token) and must revoke that exact
// value with no JWT validation involved.
func TestLogoutRevokesTokenPresentedViaAuthorizationHeader(t *testing.T) {
	store := &fakeRefreshStore{}
	tokens, err := auth.NewService("test-secret", store, 1, 30)
	require.NoError(t, err)

	h, _ := newTestHandlers(t)
	h.tokens = tokens

	headers := http.Header{}
	headers.Set("Authorization", "Bearer abc123refreshtoken")

	resp := h.logout(registry.Request{Ctx: context.Background(), Headers: headers})

	require.Equal(t, 200, resp.Status)
	require.True(t, store.revoked["abc123refreshtoken"])
}

func TestBearerTokenParsing(t *testing.T) {
	require.Equal(t, "abc123", bearerToken("Bearer abc123"))
	require.Equal(t, "", bearerToken(""))
	require.Equal(t, "", bearerToken("abc123"))
	require.Equal(t, "", bearerToken("Bearer "))
}

func TestMeReturnsCallerClaims(t *testing.T) {
	h, _ := newTestHandlers(t)
	resp := h.me(registry.Request{
		Ctx:    context.Background(),
		Claims: &auth.Identity{UserID: "user_1", Username: "alice", Roles: []string{"admin"}},
	})
	require.Equal(t, 200, resp.Status)
	body, ok := resp.Body.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "alice", body["username"])
}

func TestRegisterMissingFieldsIs400(t *testing.T) {
	h, _ := newTestHandlers(t)
	resp := h.register(registry.Request{Ctx: context.Background(), Body: []byte(`{}`)})
	require.Equal(t, 400, resp.Status)
}

func TestRegisterDuplicateUsernameIsConflict(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectExec("INSERT INTO user_authentication").WillReturnError(sql.ErrTxDone)

	resp := h.register(registry.Request{
		Ctx:  context.Background(),
		Body: []byte(`{"username":"alice","password":"secret123"}`),
	})
	require.Equal(t, 409, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetLockMissingUserIDIs400(t *testing.T) {
	h, _ := newTestHandlers(t)
	resp := h.resetLock(registry.Request{Ctx: context.Background(), Body: []byte(`{}`)})
	require.Equal(t, 400, resp.Status)
}

func TestResetLockNotFoundUserIs404(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectExec("UPDATE user_authentication SET failed_login_attempts = 0").WillReturnResult(sqlmock.NewResult(0, 0))

	resp := h.resetLock(registry.Request{Ctx: context.Background(), Body: []byte(`{"userId":"missing"}`)})
	require.Equal(t, 404, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
