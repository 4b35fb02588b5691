package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/utils"
)

var testSecret = []byte("middleware-test-secret")

type memTokenStore struct {
	revoked map[string]bool
}

func (m *memTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if m.revoked == nil {
		m.revoked = map[string]bool{}
	}
	m.revoked[jti] = true
	return nil
}

func (m *memTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return m.revoked[jti], nil
}

func newTestRouter(store *memTokenStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(testSecret, store), func(c *gin.Context) {
		role, _ := c.Get("userRole")
		c.JSON(http.StatusOK, gin.H{"role": role})
	})
	r.GET("/admin-only",
		AuthMiddleware(testSecret, store),
		RequireRoles(models.RoleAdmin),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return r
}

func doRequest(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r := newTestRouter(&memTokenStore{})
	w := doRequest(r, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r := newTestRouter(&memTokenStore{})
	w := doRequest(r, "/protected", "garbage.token.here")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r := newTestRouter(&memTokenStore{})
	token, err := utils.GenerateJWT(testSecret, "user-1", models.RoleDoctor, "", time.Hour)
	require.NoError(t, err)

	w := doRequest(r, "/protected", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.RoleDoctor)
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	store := &memTokenStore{}
	r := newTestRouter(store)

	token, err := utils.GenerateJWT(testSecret, "user-1", models.RolePatient, "", time.Hour)
	require.NoError(t, err)
	claims, err := utils.ValidateJWT(testSecret, token)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(context.Background(), claims.ID, time.Hour))

	w := doRequest(r, "/protected", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")
}

func TestAuthMiddleware_TokenWithoutExpiry(t *testing.T) {
	r := newTestRouter(&memTokenStore{})

	// A correctly signed token missing the exp claim still validates.
	claims := &utils.Claims{
		UserID: "user-1",
		Role:   models.RoleDoctor,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       "jti-no-exp",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	w := doRequest(r, "/protected", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles(t *testing.T) {
	r := newTestRouter(&memTokenStore{})

	adminToken, err := utils.GenerateJWT(testSecret, "admin-1", models.RoleAdmin, "", time.Hour)
	require.NoError(t, err)
	patientToken, err := utils.GenerateJWT(testSecret, "patient-1", models.RolePatient, "", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doRequest(r, "/admin-only", adminToken).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "/admin-only", patientToken).Code)
}
