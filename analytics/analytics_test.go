package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"portfolio/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	return db
}

func setupTestRouter(a *AnalyticsModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/blog/:id", a.Track(), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.String(http.StatusNotFound, "not found")
			return
		}
		c.String(http.StatusOK, "post")
	})
	return router
}

func read(router *gin.Engine, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Firefox/120.0")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func visitorCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == VisitorCookie {
			return c
		}
	}
	return nil
}

func TestNewAnalyticsModule_Disabled(t *testing.T) {
	a, err := NewAnalyticsModule(nil, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	router := setupTestRouter(a)
	w := read(router, "/blog/abc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, visitorCookie(w))

	assert.Empty(t, a.Counts(context.Background(), []string{"abc"}))
	assert.Empty(t, a.ViewsByDay(context.Background(), 7))
}

func TestTrack_ThrottlesSameVisitor(t *testing.T) {
	db := setupTestDB()
	a, err := NewAnalyticsModule(db, zap.NewNop())
	require.NoError(t, err)
	router := setupTestRouter(a)

	w := read(router, "/blog/post-1")
	cookie := visitorCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	read(router, "/blog/post-1", cookie)
	read(router, "/blog/post-1", cookie)
	read(router, "/blog/post-2", cookie)

	counts := a.Counts(context.Background(), []string{"post-1", "post-2", "post-3"})
	assert.Equal(t, int64(1), counts["post-1"])
	assert.Equal(t, int64(1), counts["post-2"])
	_, ok := counts["post-3"]
	assert.False(t, ok)

	var view models.PostView
	require.NoError(t, db.Where("post_id = ?", "post-1").First(&view).Error)
	assert.Equal(t, cookie.Value, view.VisitorID)
	require.NotNil(t, view.Browser)
	assert.Equal(t, "Firefox", *view.Browser)
	require.NotNil(t, view.Language)
	assert.Equal(t, "en-US", *view.Language)
}

func TestTrack_CountsDistinctVisitors(t *testing.T) {
	a, err := NewAnalyticsModule(setupTestDB(), zap.NewNop())
	require.NoError(t, err)
	router := setupTestRouter(a)

	read(router, "/blog/post-1")
	read(router, "/blog/post-1")

	counts := a.Counts(context.Background(), []string{"post-1"})
	assert.Equal(t, int64(2), counts["post-1"])
}

func TestTrack_IgnoresMissingPosts(t *testing.T) {
	a, err := NewAnalyticsModule(setupTestDB(), zap.NewNop())
	require.NoError(t, err)
	router := setupTestRouter(a)

	w := read(router, "/blog/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, a.Counts(context.Background(), []string{"missing"}))
}

func TestTrack_CountsAgainAfterThrottle(t *testing.T) {
	db := setupTestDB()
	a, err := NewAnalyticsModule(db, zap.NewNop())
	require.NoError(t, err)
	router := setupTestRouter(a)

	visitor := &http.Cookie{Name: VisitorCookie, Value: "returning"}
	db.Create(&models.PostView{
		PostID:    "post-1",
		VisitorID: "returning",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	})

	read(router, "/blog/post-1", visitor)

	counts := a.Counts(context.Background(), []string{"post-1"})
	assert.Equal(t, int64(2), counts["post-1"])
}

func TestViewsByDay(t *testing.T) {
	db := setupTestDB()
	a, err := NewAnalyticsModule(db, zap.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	db.Create(&models.PostView{PostID: "p", VisitorID: "a", CreatedAt: now})
	db.Create(&models.PostView{PostID: "p", VisitorID: "b", CreatedAt: now})
	db.Create(&models.PostView{PostID: "p", VisitorID: "c", CreatedAt: now.AddDate(0, 0, -30)})

	days := a.ViewsByDay(context.Background(), 7)
	require.Len(t, days, 7)
	assert.Equal(t, now.Format("2006-01-02"), days[6].Date)
	assert.Equal(t, int64(2), days[6].Count)

	var total int64
	for _, d := range days {
		total += d.Count
	}
	assert.Equal(t, int64(2), total)
}

func TestExtractBrowser(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 Chrome/120.0 Safari/537.36 Edg/120.0", "Edge"},
		{"Mozilla/5.0 Chrome/120.0 Safari/537.36", "Chrome"},
		{"Mozilla/5.0 Version/17.0 Safari/605.1.15", "Safari"},
		{"Mozilla/5.0 Gecko/20100101 Firefox/121.0", "Firefox"},
		{"Mozilla/5.0 Chrome/120.0 OPR/105.0", "Opera"},
		{"curl/8.0", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := extractBrowser(tt.ua)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, extractBrowser(""))
}

func TestExtractLanguage(t *testing.T) {
	got := extractLanguage("pt-BR;q=0.9,en;q=0.8")
	require.NotNil(t, got)
	assert.Equal(t, "pt-BR", *got)
	assert.Nil(t, extractLanguage(""))
}
