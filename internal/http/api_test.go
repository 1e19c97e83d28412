package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"userstore/internal/domain"
	"userstore/internal/password"
	"userstore/internal/repository/sqlite"
	"userstore/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, service.UserService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(ctx))

	hasher, err := password.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	svc := service.NewUserService(repo, hasher, logger)

	router := gin.New()
	NewHandler(svc, logger).RegisterRoutes(router)
	return router, svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createUser(t *testing.T, router http.Handler, username, email, pass string) UserResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": username, "email": email, "password": pass,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[UserResponse](t, rec)
}

func TestCreateUser(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "al", "email": "al@x.com", "password": "secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	got := decode[UserResponse](t, rec)
	assert.Positive(t, got.ID)
	assert.Equal(t, "al", got.Username)
	assert.Equal(t, "al@x.com", got.Email)
}

func TestCreateUser_Errors(t *testing.T) {
	router, _ := newTestRouter(t)
	createUser(t, router, "a", "a@b.com", "secret")

	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "al", "email": "not-an-email", "password": "abc",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Error  string              `json:"error"`
		Fields []domain.FieldError `json:"fields"`
	}](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	require.Len(t, body.Fields, 2)
	assert.ElementsMatch(t, []string{domain.FieldEmail, domain.FieldPassword},
		[]string{body.Fields[0].Field, body.Fields[1].Field})

	rec = doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "b", "email": "a@b.com", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "b", "email": "A@B.com", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOverlongPasswordIsRejected(t *testing.T) {
	router, svc := newTestRouter(t)
	created := createUser(t, router, "al", "al@x.com", "secret")
	long := strings.Repeat("a", 73)

	rec := doJSON(t, router, http.MethodPost, "/api/users", map[string]string{
		"username": "bo", "email": "bo@x.com", "password": long,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[struct {
		Fields []domain.FieldError `json:"fields"`
	}](t, rec)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, domain.FieldPassword, body.Fields[0].Field)

	rec = doJSON(t, router, http.MethodPatch, "/api/users/"+itoa(created.ID), map[string]string{"password": long})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, svc.VerifyPassword("secret", got))
}

func TestGetUser(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createUser(t, router, "al", "al@x.com", "secret")

	rec := doJSON(t, router, http.MethodGet, "/api/users/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[UserResponse](t, rec))

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/users/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/users/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/users/0", nil).Code)
}

func TestUpdateUser(t *testing.T) {
	router, svc := newTestRouter(t)
	created := createUser(t, router, "al", "al@x.com", "secret")
	path := "/api/users/" + itoa(created.ID)

	before, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPatch, path, map[string]string{"username": "alan"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alan", decode[UserResponse](t, rec).Username)

	after, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	rec = doJSON(t, router, http.MethodPatch, path, map[string]string{"password": "changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	after, err = svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, svc.VerifyPassword("changed", after))

	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPatch, path, map[string]string{"password": "ab"}).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPatch, "/api/users/999", map[string]string{"username": "x"}).Code)

	createUser(t, router, "bo", "bo@x.com", "secret")
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPatch, path, map[string]string{"email": "bo@x.com"}).Code)
}

func TestDeleteUser(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createUser(t, router, "al", "al@x.com", "secret")
	path := "/api/users/" + itoa(created.ID)

	rec := doJSON(t, router, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, created.ID, decode[map[string]float64](t, rec)["deleted"])

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, path, nil).Code)
}

func TestVerifyPassword(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createUser(t, router, "al", "al@x.com", "secret")
	path := "/api/users/" + itoa(created.ID) + "/password/verify"

	rec := doJSON(t, router, http.MethodPost, path, map[string]string{"password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["valid"])

	rec = doJSON(t, router, http.MethodPost, path, map[string]string{"password": "wrong"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["valid"])

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodPost, "/api/users/999/password/verify", map[string]string{"password": "x"}).Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type brokenService struct {
	service.UserService
}

func (brokenService) Get(context.Context, int64) (*domain.User, error) {
	return nil, errors.New("connection reset")
}

func TestInternalErrorIsLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := logtest.NewNullLogger()
	router := gin.New()
	NewHandler(brokenService{}, logger).RegisterRoutes(router)

	rec := doJSON(t, router, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "request failed" {
			found = true
			assert.EqualError(t, e.Data["error"].(error), "connection reset")
		}
	}
	assert.True(t, found, "expected the failure to be logged")
}
