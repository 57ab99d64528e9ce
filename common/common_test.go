package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"portfolio/config"
)

func setupTestRouter(domain string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CanonicalHost(domain))
	router.GET("/blog", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestCanonicalHost_RedirectsWWW(t *testing.T) {
	router := setupTestRouter("https://example.com")

	req := httptest.NewRequest("GET", "/blog?page=2", nil)
	req.Host = "www.example.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "https://example.com/blog?page=2", w.Header().Get("Location"))
}

func TestCanonicalHost_PassesOtherHosts(t *testing.T) {
	router := setupTestRouter("https://example.com")

	for _, host := range []string{"example.com", "localhost:8080", "www.other.com"} {
		req := httptest.NewRequest("GET", "/blog", nil)
		req.Host = host
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, host)
	}
}

func TestCanonicalHost_BadDomain(t *testing.T) {
	router := setupTestRouter("not a url")

	req := httptest.NewRequest("GET", "/blog", nil)
	req.Host = "www.example.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTemplateFuncs(t *testing.T) {
	funcs := TemplateFuncs(&config.Config{Domain: "https://example.com", SiteName: "Site"})
	date := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "https://example.com", funcs["domain"].(func() string)())
	assert.Equal(t, "Site", funcs["siteName"].(func() string)())
	assert.Equal(t, "March 9, 2024", funcs["formatDate"].(func(time.Time) string)(date))
	assert.Equal(t, "2024-03-09", funcs["isoDate"].(func(time.Time) string)(date))
}

func TestConnectAnalyticsDb_Disabled(t *testing.T) {
	db, err := ConnectAnalyticsDb(&config.Config{}, zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, db)
}

func TestConnectDb_Sqlite(t *testing.T) {
	cfg := &config.Config{DbDriver: "sqlite", SqliteDb: t.TempDir() + "/nested/test.db"}

	db, err := ConnectDb(cfg, zap.NewNop())
	assert.NoError(t, err)
	assert.NotNil(t, db)

	_, err = ConnectDb(&config.Config{DbDriver: "mysql"}, zap.NewNop())
	assert.Error(t, err)
}
