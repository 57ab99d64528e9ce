package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portfolio/config"
)

func testConfig() *config.Config {
	return &config.Config{
		AdminUsername: "admin",
		AdminPassword: "admin123",
		JWTSecret:     "test-secret",
	}
}

func TestCredentials_Check(t *testing.T) {
	creds := NewCredentials(testConfig())

	assert.True(t, creds.Check("admin", "admin123"))
	assert.False(t, creds.Check("admin", "wrong"))
	assert.False(t, creds.Check("root", "admin123"))
	assert.False(t, creds.Check("", ""))
	assert.Equal(t, "admin", creds.Username())
}

func TestCredentials_CheckHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.AdminPasswordHash = string(hash)
	creds := NewCredentials(cfg)

	assert.True(t, creds.Check("admin", "s3cret"))
	assert.False(t, creds.Check("admin", "admin123"))
}

func TestTokens_IssueVerify(t *testing.T) {
	tokens := NewTokens("test-secret", false)

	raw, err := tokens.Issue("admin")
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestTokens_VerifyRejects(t *testing.T) {
	tokens := NewTokens("test-secret", false)

	t.Run("wrong secret", func(t *testing.T) {
		raw, err := NewTokens("other-secret", false).Issue("admin")
		require.NoError(t, err)
		_, err = tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := &Tokens{secret: []byte("test-secret"), ttl: -time.Hour}
		raw, err := expired.Issue("admin")
		require.NoError(t, err)
		_, err = tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			Username: "admin",
			IsAdmin:  true,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("not admin", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Username: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func setupTestRouter(tokens *Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/login", func(c *gin.Context) {
		raw, _ := tokens.Issue("admin")
		tokens.SetCookie(c, raw)
		c.Status(http.StatusOK)
	})
	router.GET("/logout", func(c *gin.Context) {
		tokens.ClearCookie(c)
		c.Status(http.StatusOK)
	})
	router.GET("/api/private", RequireAdmin(tokens), func(c *gin.Context) {
		claims, _ := CurrentAdmin(c)
		c.JSON(http.StatusOK, gin.H{"username": claims.Username})
	})
	router.GET("/admin", RequireAdminPage(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, "console")
	})
	return router
}

func loginCookie(t *testing.T, router *gin.Engine) *http.Cookie {
	t.Helper()
	req, _ := http.NewRequest("GET", "/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("admin cookie not set")
	return nil
}

func TestSetCookie_Attributes(t *testing.T) {
	router := setupTestRouter(NewTokens("test-secret", true))
	cookie := loginCookie(t, router)

	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(TokenTTL.Seconds()), cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestClearCookie(t *testing.T) {
	router := setupTestRouter(NewTokens("test-secret", false))

	req, _ := http.NewRequest("GET", "/logout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestRequireAdmin(t *testing.T) {
	router := setupTestRouter(NewTokens("test-secret", false))

	req, _ := http.NewRequest("GET", "/api/private", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized. Admin access required."}`, w.Body.String())

	req, _ = http.NewRequest("GET", "/api/private", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tampered"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("GET", "/api/private", nil)
	req.AddCookie(loginCookie(t, router))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"admin"}`, w.Body.String())
}

func TestRequireAdminPage(t *testing.T) {
	router := setupTestRouter(NewTokens("test-secret", false))

	req, _ := http.NewRequest("GET", "/admin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	req, _ = http.NewRequest("GET", "/admin", nil)
	req.AddCookie(loginCookie(t, router))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console", w.Body.String())
}
