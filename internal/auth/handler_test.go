package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourusername/blog-backend/internal/account"
	"github.com/yourusername/blog-backend/internal/mail"
)

func newRouter(f *fixture) *gin.Engine {
	router := gin.New()
	NewHandler(f.service, f.sessions).RegisterRoutes(router.Group("/api/auth"))

	protected := router.Group("/api")
	protected.Use(RequireLogin(f.sessions, f.repo))
	protected.GET("/me", func(c *gin.Context) {
		acc, ok := CurrentAccount(c)
		fromCtx, ctxOK := AccountFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"success":  ok && ctxOK,
			"username": acc.Username,
			"sameID":   fromCtx.ID == acc.ID,
			"digest":   acc.PasswordDigest,
		})
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestAuthFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	w, resp := doJSON(t, router, http.MethodPost, "/api/auth/register", gin.H{
		"email": "a@x.com", "password": "pw", "username": "alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, resp["success"])
	user := resp["user"].(map[string]any)
	assert.Equal(t, false, user["isVerified"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordDigest")
	assert.NotContains(t, user, "verificationToken")
	assert.NotContains(t, w.Body.String(), f.mailer.last(t, mail.KindVerification).Data[mail.DataCode])
	sessionCookie(t, w)

	w, resp = doJSON(t, router, http.MethodPost, "/api/auth/verify", gin.H{"code": "wrong0"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Invalid or expired verification code", resp["message"])

	code := f.mailer.last(t, mail.KindVerification).Data[mail.DataCode]
	w, resp = doJSON(t, router, http.MethodPost, "/api/auth/verify", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["user"].(map[string]any)["isVerified"])

	w, resp = doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	w, resp = doJSON(t, router, http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "alice", resp["username"])
	assert.Equal(t, true, resp["sameID"])
	assert.Equal(t, "", resp["digest"])

	w, resp = doJSON(t, router, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Empty(t, sessionCookie(t, w).Value)
}

func TestForgotResetOverHTTP(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	f.registerAndVerify(t, "a@x.com", "pw", "alice")

	w, resp := doJSON(t, router, http.MethodPost, "/api/auth/forgot", gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	token := f.mailer.last(t, mail.KindReset).Data[mail.DataToken]
	assert.NotContains(t, w.Body.String(), token)
	assert.Equal(t, true, resp["success"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/auth/forgot", gin.H{"email": "nobody@x.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/auth/reset", gin.H{"token": token, "password": "new-pw"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/auth/reset", gin.H{"token": token, "password": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{"username": "alice", "password": "new-pw"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterConflictAndMalformedBody(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	f.registerAndVerify(t, "a@x.com", "pw", "alice")

	w, resp := doJSON(t, router, http.MethodPost, "/api/auth/register", gin.H{
		"email": "a@x.com", "password": "pw", "username": "alice",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", resp["code"])

	w, resp = doJSON(t, router, http.MethodPost, "/api/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])

	w, resp = doJSON(t, router, http.MethodPost, "/api/auth/register", gin.H{
		"email": "bad", "password": "pw", "username": "bob",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.True(t, strings.HasPrefix(resp["message"].(string), "Validation failed"))
}

func TestAccessGuard(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	t.Run("no cookie", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodGet, "/api/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, false, resp["success"])
	})

	t.Run("tampered cookie", func(t *testing.T) {
		token, err := f.sessions.Issue(primitive.NewObjectID())
		require.NoError(t, err)
		w, _ := doJSON(t, router, http.MethodGet, "/api/me", nil, &http.Cookie{Name: SessionCookieName, Value: token + "x"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired cookie", func(t *testing.T) {
		acc := f.registerAndVerify(t, "old@x.com", "pw", "oldie")
		token, err := f.sessions.Issue(acc.ID)
		require.NoError(t, err)
		f.clock.Advance(DefaultSessionTTL + time.Second)
		defer f.clock.Advance(-(DefaultSessionTTL + time.Second))

		w, _ := doJSON(t, router, http.MethodGet, "/api/me", nil, &http.Cookie{Name: SessionCookieName, Value: token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("deleted account", func(t *testing.T) {
		acc := f.registerAndVerify(t, "gone@x.com", "pw", "ghost")
		token, err := f.sessions.Issue(acc.ID)
		require.NoError(t, err)
		f.repo.Delete(acc.ID)

		w, resp := doJSON(t, router, http.MethodGet, "/api/me", nil, &http.Cookie{Name: SessionCookieName, Value: token})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Account not found", resp["message"])
	})

	t.Run("store failure", func(t *testing.T) {
		broken := gin.New()
		broken.Use(RequireLogin(f.sessions, finderFunc(func(context.Context, primitive.ObjectID) (*account.Account, error) {
			return nil, errors.New("connection reset")
		})))
		broken.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		token, err := f.sessions.Issue(primitive.NewObjectID())
		require.NoError(t, err)
		w, resp := doJSON(t, broken, http.MethodGet, "/x", nil, &http.Cookie{Name: SessionCookieName, Value: token})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Server error", resp["message"])
	})
}

type finderFunc func(ctx context.Context, id primitive.ObjectID) (*account.Account, error)

func (f finderFunc) FindByID(ctx context.Context, id primitive.ObjectID) (*account.Account, error) {
	return f(ctx, id)
}

func TestCurrentAccountWithoutGuard(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := CurrentAccount(c)
	assert.False(t, ok)

	_, ok = AccountFromContext(context.Background())
	assert.False(t, ok)
}
