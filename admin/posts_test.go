package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/blog"
	"portfolio/models"
)

func TestNewPostForm(t *testing.T) {
	env := setupTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/admin/blogs/new", nil)
	req.AddCookie(env.adminCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, w.Body.String(), `value="5 min read"`)
}

func TestSavePost_FromMarkdown(t *testing.T) {
	env := setupTestRouter(t, nil)

	req := postForm(t, map[string]string{
		"title":       "Console Post",
		"author":      "Jun",
		"publishedAt": "2024-06-01",
		"tags":        "go, gin",
		"body":        "# Heading\n\nA *paragraph*.\n\n![alt](https://cdn.example.com/x.png \"Cap\")\n",
	}, "image/png", pngBytes())
	req.AddCookie(env.adminCookie(t))
	w := env.do(req)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	blogs, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, blogs, 1)

	created := blogs[0]
	assert.Equal(t, "Console Post", created.Title)
	assert.Equal(t, []string{"go", "gin"}, []string(created.Tags))
	assert.Equal(t, blog.DefaultReadTime, created.ReadTime)
	assert.Regexp(t, `^/api/images/`, created.FeaturedImage)
	require.Len(t, created.Content, 3)
	assert.Equal(t, models.BlockHeading1, created.Content[0].Type)
	assert.Equal(t, "A *paragraph*.", created.Content[1].Text)
	assert.Equal(t, models.ContentBlock{Type: models.BlockImage, Src: "https://cdn.example.com/x.png", Alt: "alt", Caption: "Cap"}, created.Content[2])
}

func TestSavePost_ValidationError(t *testing.T) {
	env := setupTestRouter(t, nil)

	req := postForm(t, map[string]string{"title": "", "author": "Jun", "body": "keep me"}, "", nil)
	req.AddCookie(env.adminCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Title and author are required")
	assert.Contains(t, w.Body.String(), "keep me")
	assert.Equal(t, int64(0), countBlogs(env.db))
}

func TestSavePost_BadImage(t *testing.T) {
	env := setupTestRouter(t, nil)

	req := postForm(t, map[string]string{"title": "T", "author": "A"}, "image/svg+xml", []byte("<svg/>"))
	req.AddCookie(env.adminCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Only JPEG, PNG, GIF, and WebP are allowed.")
	assert.Equal(t, int64(0), countBlogs(env.db))

	var images int64
	env.db.Model(&models.Image{}).Count(&images)
	assert.Equal(t, int64(0), images)
}

func TestDeletePost(t *testing.T) {
	env := setupTestRouter(t, nil)

	created, err := env.store.Create(context.Background(), blog.PostInput{Title: "Doomed", Author: "Jun"}, nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/admin/blogs/"+created.ID+"/delete", nil)
	req.AddCookie(env.adminCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
	assert.Equal(t, int64(0), countBlogs(env.db))

	session := cookieNamed(w, "test-session")
	require.NotNil(t, session)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(env.adminCookie(t))
	req.AddCookie(session)
	w = env.do(req)
	assert.Contains(t, w.Body.String(), "Blog deleted successfully")
}

func TestDeletePost_NotFound(t *testing.T) {
	env := setupTestRouter(t, nil)

	req := httptest.NewRequest("POST", "/admin/blogs/missing/delete", nil)
	req.AddCookie(env.adminCookie(t))
	w := env.do(req)

	assert.Equal(t, http.StatusFound, w.Code)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(env.adminCookie(t))
	req.AddCookie(cookieNamed(w, "test-session"))
	w = env.do(req)
	assert.Contains(t, w.Body.String(), "Blog not found")
}

func TestClearCache(t *testing.T) {
	env := setupTestRouter(t, nil)
	require.NoError(t, env.pages.Write("/blog", []byte("<html>stale</html>")))

	req := httptest.NewRequest("POST", "/admin/cache/clear", nil)
	w := env.do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))
	_, ok := env.pages.Read("/blog", time.Minute)
	assert.True(t, ok)

	req = httptest.NewRequest("POST", "/admin/cache/clear", nil)
	req.AddCookie(env.adminCookie(t))
	w = env.do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
	_, ok = env.pages.Read("/blog", time.Minute)
	assert.False(t, ok)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(env.adminCookie(t))
	req.AddCookie(cookieNamed(w, "test-session"))
	w = env.do(req)
	assert.Contains(t, w.Body.String(), "Page cache cleared")
}
