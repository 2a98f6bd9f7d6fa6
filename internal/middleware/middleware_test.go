package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyAccessToken(ctx context.Context, raw string) (*auth.AccessToken, error) {
	args := m.Called(ctx, raw)
	token, _ := args.Get(0).(*auth.AccessToken)
	return token, args.Error(1)
}

func setupRouter(verifier TokenVerifier, scopes ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{OAuth2Auth(verifier)}
	if len(scopes) > 0 {
		handlers = append(handlers, RequireScope(scopes...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := c.Get(ContextUserID)
		c.JSON(http.StatusOK, gin.H{
			"client_id": c.GetString(ContextClientID),
			"user_id":   userID,
			"auth_type": c.GetString(ContextAuthType),
		})
	})
	r.GET("/protected", handlers...)
	return r
}

func doRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOAuth2Auth(t *testing.T) {
	uid := "7"
	userToken := &auth.AccessToken{ID: "at-user", ClientID: "app", UserID: &uid, Scopes: []string{"read"}}
	clientToken := &auth.AccessToken{ID: "at-client", ClientID: "svc", Scopes: []string{"read", "admin"}}

	verifier := new(mockVerifier)
	verifier.On("VerifyAccessToken", mock.Anything, "user-token").Return(userToken, nil)
	verifier.On("VerifyAccessToken", mock.Anything, "client-token").Return(clientToken, nil)
	verifier.On("VerifyAccessToken", mock.Anything, "revoked-token").Return(nil, errors.New("invalid_token: token has been revoked or has expired"))
	verifier.On("VerifyAccessToken", mock.Anything, "db-down").Return(nil, &auth.PersistenceError{Op: "find access token", Err: errors.New("connection refused")})

	r := setupRouter(verifier)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", http.StatusUnauthorized, "Missing Authorization header"},
		{"wrong scheme", "Basic abc", http.StatusBadRequest, "invalid_request"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "invalid_token"},
		{"revoked token", "Bearer revoked-token", http.StatusUnauthorized, "invalid_token"},
		{"store unavailable", "Bearer db-down", http.StatusServiceUnavailable, "server_error"},
		{"user token", "Bearer user-token", http.StatusOK, `"auth_type":"user"`},
		{"client token", "Bearer client-token", http.StatusOK, `"auth_type":"client"`},
		{"case-insensitive scheme", "bearer user-token", http.StatusOK, `"user_id":"7"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	token := &auth.AccessToken{ID: "at", ClientID: "svc", Scopes: []string{"read", "admin"}}
	verifier := new(mockVerifier)
	verifier.On("VerifyAccessToken", mock.Anything, "t").Return(token, nil)

	t.Run("all scopes held", func(t *testing.T) {
		w := doRequest(setupRouter(verifier, "read", "admin"), "Bearer t")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("scope missing", func(t *testing.T) {
		w := doRequest(setupRouter(verifier, "admin", "write"), "Bearer t")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "insufficient_scope")
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), `scope="admin write"`)
	})

	t.Run("without authentication", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.GET("/protected", RequireScope("read"), func(c *gin.Context) { c.Status(http.StatusOK) })
		w := doRequest(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
