package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/analytics"
	"portfolio/auth"
	"portfolio/blog"
	"portfolio/cache"
	"portfolio/content"
	"portfolio/images"
	"portfolio/logger"
	"portfolio/models"
)

const chartDays = 14

type AdminModule struct {
	store     *blog.Store
	creds     *auth.Credentials
	tokens    *auth.Tokens
	limiter   *auth.LoginLimiter
	analytics *analytics.AnalyticsModule
	pages     *cache.PageCache
	log       *zap.Logger
}

func NewAdminModule(
	store *blog.Store,
	creds *auth.Credentials,
	tokens *auth.Tokens,
	limiter *auth.LoginLimiter,
	analyticsModule *analytics.AnalyticsModule,
	pages *cache.PageCache,
	log *zap.Logger,
) *AdminModule {
	return &AdminModule{
		store:     store,
		creds:     creds,
		tokens:    tokens,
		limiter:   limiter,
		analytics: analyticsModule,
		pages:     pages,
		log:       log,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/auth")
	{
		api.POST("", a.apiLogin)
		api.DELETE("", a.apiLogout)
		api.GET("/status", a.apiStatus)
	}

	router.GET("/admin/login", a.loginPage)
	router.POST("/admin/login", a.loginPost)
	router.POST("/admin/logout", a.logout)

	adminGroup := router.Group("/admin")
	adminGroup.Use(a.requireAdmin())
	{
		adminGroup.GET("", a.dashboard)
		adminGroup.GET("/blogs/new", a.newPost)
		adminGroup.POST("/blogs", a.savePost)
		adminGroup.POST("/blogs/:id/delete", a.deletePost)
		adminGroup.POST("/cache/clear", a.clearCache)
	}
}

func (a *AdminModule) loginPage(c *gin.Context) {
	if _, ok := a.tokens.Session(c); ok {
		c.Redirect(http.StatusFound, "/admin")
		return
	}

	c.HTML(http.StatusOK, "admin_login.html", gin.H{
		"flashes": a.flashes(c),
	})
}

func (a *AdminModule) loginPost(c *gin.Context) {
	log := logger.WithRequest(a.log, c)
	ip := c.ClientIP()
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	if username == "" || password == "" {
		c.HTML(http.StatusBadRequest, "admin_login.html", gin.H{
			"error":    "Username and password are required",
			"username": username,
		})
		return
	}

	if !a.limiter.Check(ip) {
		log.Warn("login throttled", zap.String("ip", ip))
		c.HTML(http.StatusTooManyRequests, "admin_login.html", gin.H{
			"error":    tooManyAttempts,
			"username": username,
		})
		return
	}

	if !a.creds.Check(username, password) {
		a.limiter.Record(ip)
		log.Warn("failed login", zap.String("ip", ip), zap.String("username", username))
		c.HTML(http.StatusUnauthorized, "admin_login.html", gin.H{
			"error":    "Invalid credentials",
			"username": username,
		})
		return
	}

	token, err := a.tokens.Issue(username)
	if err != nil {
		log.Error("error issuing admin token", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "admin_login.html", gin.H{
			"error": "Something went wrong. Please try again.",
		})
		return
	}

	a.limiter.Reset(ip)
	a.tokens.SetCookie(c, token)
	c.Redirect(http.StatusFound, "/admin")
}

func (a *AdminModule) logout(c *gin.Context) {
	a.tokens.ClearCookie(c)
	a.flash(c, "You have been logged out.")
	c.Redirect(http.StatusFound, "/admin/login")
}

// PostRow is a post line of the dashboard.
type PostRow struct {
	Blog  models.Blog
	Views int64
}

// DayBar is one bar of the daily reads chart.
type DayBar struct {
	Date    string
	Count   int64
	Percent float64
}

func (a *AdminModule) dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	blogs, err := a.store.List(ctx)
	if err != nil {
		logger.WithRequest(a.log, c).Error("error loading posts", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "admin_error.html", gin.H{
			"error": "Failed to load posts",
		})
		return
	}

	ids := make([]string, 0, len(blogs))
	for _, b := range blogs {
		ids = append(ids, b.ID)
	}
	counts := a.analytics.Counts(ctx, ids)

	rows := make([]PostRow, 0, len(blogs))
	for _, b := range blogs {
		rows = append(rows, PostRow{Blog: b, Views: counts[b.ID]})
	}

	claims, _ := auth.CurrentAdmin(c)

	c.HTML(http.StatusOK, "admin_dashboard.html", gin.H{
		"username":         claims.Username,
		"posts":            rows,
		"analyticsEnabled": a.analytics.Enabled(),
		"days":             dayBars(a.analytics.ViewsByDay(ctx, chartDays)),
		"flashes":          a.flashes(c),
	})
}

func dayBars(days []analytics.DayViews) []DayBar {
	max := int64(1)
	for _, d := range days {
		if d.Count > max {
			max = d.Count
		}
	}

	bars := make([]DayBar, len(days))
	for i, d := range days {
		bars[i] = DayBar{
			Date:    d.Date,
			Count:   d.Count,
			Percent: float64(d.Count) / float64(max) * 100,
		}
	}
	return bars
}

func (a *AdminModule) newPost(c *gin.Context) {
	c.HTML(http.StatusOK, "admin_post_form.html", gin.H{
		"form": gin.H{"readTime": blog.DefaultReadTime},
	})
}

// savePost creates a post from the console form. The body is Markdown and is
// split into content blocks.
func (a *AdminModule) savePost(c *gin.Context) {
	log := logger.WithRequest(a.log, c)

	form := gin.H{
		"title":       c.PostForm("title"),
		"author":      c.PostForm("author"),
		"publishedAt": c.PostForm("publishedAt"),
		"readTime":    c.PostForm("readTime"),
		"tags":        c.PostForm("tags"),
		"body":        c.PostForm("body"),
	}

	in := blog.PostInput{
		Title:       c.PostForm("title"),
		Author:      c.PostForm("author"),
		PublishedAt: c.PostForm("publishedAt"),
		ReadTime:    c.PostForm("readTime"),
		Tags:        splitTags(c.PostForm("tags")),
		Content:     content.FromMarkdown(c.PostForm("body")),
	}

	var featured *images.Upload
	fh, err := c.FormFile("featuredImage")
	switch {
	case err == nil && fh.Size > 0:
		u, err := images.ReadUpload(fh)
		if err != nil {
			a.formError(c, log, form, err)
			return
		}
		featured = &u
	case err != nil && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		a.formError(c, log, form, err)
		return
	}

	created, err := a.store.Create(c.Request.Context(), in, featured, nil)
	if err != nil {
		a.formError(c, log, form, err)
		return
	}

	a.invalidatePages(log)
	log.Info("blog created from console", zap.String("blog_id", created.ID))

	a.flash(c, "Post \""+created.Title+"\" published.")
	c.Redirect(http.StatusFound, "/admin")
}

func (a *AdminModule) formError(c *gin.Context, log *zap.Logger, form gin.H, err error) {
	status := http.StatusBadRequest
	var message string

	var verr *content.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
	} else if msg, ok := images.RejectionMessage(err); ok {
		message = msg
	} else {
		log.Error("error creating blog from console", zap.Error(err))
		status = http.StatusInternalServerError
		message = "Failed to create blog"
	}

	c.HTML(status, "admin_post_form.html", gin.H{
		"error": message,
		"form":  form,
	})
}

func (a *AdminModule) deletePost(c *gin.Context) {
	log := logger.WithRequest(a.log, c)
	id := c.Param("id")

	deleted, err := a.store.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, blog.ErrNotFound):
		a.flash(c, "Blog not found")
	case err != nil:
		log.Error("error deleting blog", zap.String("blog_id", id), zap.Error(err))
		a.flash(c, "Failed to delete blog")
	default:
		a.invalidatePages(log)
		log.Info("blog deleted from console", zap.String("blog_id", id), zap.Int64("deleted_images", deleted))
		a.flash(c, "Blog deleted successfully")
	}

	c.Redirect(http.StatusFound, "/admin")
}

func (a *AdminModule) clearCache(c *gin.Context) {
	log := logger.WithRequest(a.log, c)

	if err := a.pages.Clear(); err != nil {
		log.Error("error clearing page cache", zap.Error(err))
		a.flash(c, "Failed to clear page cache")
	} else {
		log.Info("page cache cleared from console")
		a.flash(c, "Page cache cleared")
	}

	c.Redirect(http.StatusFound, "/admin")
}

func (a *AdminModule) invalidatePages(log *zap.Logger) {
	if err := a.pages.Clear(); err != nil {
		log.Warn("error clearing page cache", zap.Error(err))
	}
}

func (a *AdminModule) flash(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	a.saveSession(c, session)
}

func (a *AdminModule) flashes(c *gin.Context) []string {
	session := sessions.Default(c)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	a.saveSession(c, session)

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// saveSession persists flash changes. A failed save only loses the message.
func (a *AdminModule) saveSession(c *gin.Context, session sessions.Session) {
	if err := session.Save(); err != nil {
		logger.WithRequest(a.log, c).Warn("error saving session", zap.Error(err))
	}
}

func splitTags(s string) []string {
	tags := []string{}
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
