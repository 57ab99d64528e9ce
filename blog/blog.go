package blog

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/analytics"
	"portfolio/auth"
	"portfolio/cache"
	"portfolio/content"
	"portfolio/images"
	"portfolio/logger"
	"portfolio/models"
)

const (
	listMaxAge = 30 * time.Second
	postMaxAge = 60 * time.Second

	cardTags       = 3
	excerptLength  = 150
	noPreview      = "No preview available..."
	contentImageFn = "contentImage_"
)

type BlogModule struct {
	store     *Store
	tokens    *auth.Tokens
	pages     *cache.PageCache
	analytics *analytics.AnalyticsModule
	log       *zap.Logger
}

func NewBlogModule(store *Store, tokens *auth.Tokens, pages *cache.PageCache, analyticsModule *analytics.AnalyticsModule, log *zap.Logger) *BlogModule {
	return &BlogModule{
		store:     store,
		tokens:    tokens,
		pages:     pages,
		analytics: analyticsModule,
		log:       log,
	}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/blogs")
	{
		api.GET("", b.apiGet)
		api.GET("/:id", b.apiGetByID)
		api.POST("", auth.RequireAdmin(b.tokens), b.apiCreate)
		api.DELETE("", auth.RequireAdmin(b.tokens), b.apiDelete)
		api.DELETE("/:id", auth.RequireAdmin(b.tokens), b.apiDeleteByID)
	}

	router.GET("/blog", cache.Middleware(b.pages, listMaxAge, b.log), b.index)
	router.GET("/blog/:id", b.analytics.Track(), cache.Middleware(b.pages, postMaxAge, b.log), b.post)
}

func (b *BlogModule) apiGet(c *gin.Context) {
	if id := c.Query("id"); id != "" {
		b.writeBlog(c, id)
		return
	}

	blogs, err := b.store.List(c.Request.Context())
	if err != nil {
		logger.WithRequest(b.log, c).Error("error fetching blogs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch blogs"})
		return
	}
	if blogs == nil {
		blogs = []models.Blog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"blogs": blogs,
		"count": len(blogs),
	})
}

func (b *BlogModule) apiGetByID(c *gin.Context) {
	b.writeBlog(c, c.Param("id"))
}

func (b *BlogModule) writeBlog(c *gin.Context, id string) {
	blog, err := b.store.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Blog not found"})
		return
	}
	if err != nil {
		logger.WithRequest(b.log, c).Error("error fetching blog", zap.String("blog_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch blog"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blog": blog})
}

func (b *BlogModule) apiCreate(c *gin.Context) {
	log := logger.WithRequest(b.log, c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form data"})
		return
	}

	raw := firstValue(form, "blogData")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Blog data is required"})
		return
	}

	var in PostInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid blog data"})
		return
	}

	featured, contentUploads, err := readUploads(form)
	if err != nil {
		b.createFailed(c, log, err)
		return
	}

	blog, err := b.store.Create(c.Request.Context(), in, featured, contentUploads)
	if err != nil {
		b.createFailed(c, log, err)
		return
	}

	b.invalidatePages(log)
	log.Info("blog created", zap.String("blog_id", blog.ID), zap.String("title", blog.Title))

	c.JSON(http.StatusCreated, gin.H{
		"message": "Blog Created Successfully",
		"blog":    blog,
	})
}

func (b *BlogModule) createFailed(c *gin.Context, log *zap.Logger, err error) {
	var verr *content.ValidationError
	if errors.As(err, &verr) {
		log.Warn("invalid blog data", zap.String("reason", verr.Message))
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		return
	}
	if msg, ok := images.RejectionMessage(err); ok {
		log.Warn("rejected blog image", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	log.Error("error creating blog", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create blog"})
}

func (b *BlogModule) apiDelete(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Blog ID is required"})
		return
	}
	b.deleteBlog(c, id)
}

func (b *BlogModule) apiDeleteByID(c *gin.Context) {
	b.deleteBlog(c, c.Param("id"))
}

func (b *BlogModule) deleteBlog(c *gin.Context, id string) {
	log := logger.WithRequest(b.log, c)

	deleted, err := b.store.Delete(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Blog not found"})
		return
	}
	if err != nil {
		log.Error("error deleting blog", zap.String("blog_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete blog"})
		return
	}

	b.invalidatePages(log)
	log.Info("blog deleted", zap.String("blog_id", id), zap.Int64("deleted_images", deleted))

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           "Blog deleted successfully",
		"deletedImageCount": deleted,
	})
}

// invalidatePages drops cached pages after the set of posts changed.
func (b *BlogModule) invalidatePages(log *zap.Logger) {
	if err := b.pages.Clear(); err != nil {
		log.Warn("error clearing page cache", zap.Error(err))
	}
}

// Card is a post as shown in a listing.
type Card struct {
	ID            string
	Title         string
	Author        string
	PublishedAt   time.Time
	ReadTime      string
	Tags          []string
	MoreTags      int
	FeaturedImage string
	Excerpt       string
}

// NewCard summarizes blog for a listing: at most three tags and an excerpt
// of the first paragraph.
func NewCard(blog models.Blog) Card {
	card := Card{
		ID:            blog.ID,
		Title:         blog.Title,
		Author:        blog.Author,
		PublishedAt:   blog.PublishedAt,
		ReadTime:      blog.ReadTime,
		Tags:          blog.Tags,
		FeaturedImage: blog.FeaturedImage,
		Excerpt:       Excerpt(blog.Content),
	}
	if len(card.Tags) > cardTags {
		card.MoreTags = len(card.Tags) - cardTags
		card.Tags = card.Tags[:cardTags]
	}
	return card
}

// Excerpt returns the first non-empty paragraph cut to 150 characters.
func Excerpt(blocks []models.ContentBlock) string {
	for _, block := range blocks {
		if block.Type != models.BlockParagraph || strings.TrimSpace(block.Text) == "" {
			continue
		}
		if utf8.RuneCountInString(block.Text) <= excerptLength {
			return block.Text
		}
		return string([]rune(block.Text)[:excerptLength]) + "..."
	}
	return noPreview
}

func (b *BlogModule) index(c *gin.Context) {
	blogs, err := b.store.List(c.Request.Context())
	if err != nil {
		logger.WithRequest(b.log, c).Error("error fetching blogs", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "blog_error.html", gin.H{
			"error": "Failed to load blogs. Please try again later.",
		})
		return
	}

	cards := make([]Card, 0, len(blogs))
	for _, blog := range blogs {
		cards = append(cards, NewCard(blog))
	}

	c.HTML(http.StatusOK, "blog_index.html", gin.H{
		"title": "Blog",
		"cards": cards,
	})
}

func (b *BlogModule) post(c *gin.Context) {
	blog, err := b.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.HTML(http.StatusNotFound, "blog_error.html", gin.H{
			"error": "Blog post not found",
		})
		return
	}
	if err != nil {
		logger.WithRequest(b.log, c).Error("error fetching blog", zap.String("blog_id", c.Param("id")), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "blog_error.html", gin.H{
			"error": "Failed to load blog post. Please try again later.",
		})
		return
	}

	c.HTML(http.StatusOK, "blog_post.html", gin.H{
		"title": blog.Title,
		"blog":  blog,
	})
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// readUploads collects the featuredImage file and every contentImage_{i}
// file. Empty file parts are treated as absent.
func readUploads(form *multipart.Form) (*images.Upload, map[int]images.Upload, error) {
	var featured *images.Upload
	if files := form.File["featuredImage"]; len(files) > 0 && files[0].Size > 0 {
		u, err := images.ReadUpload(files[0])
		if err != nil {
			return nil, nil, err
		}
		featured = &u
	}

	contentUploads := map[int]images.Upload{}
	for key, files := range form.File {
		if !strings.HasPrefix(key, contentImageFn) || len(files) == 0 || files[0].Size == 0 {
			continue
		}
		i, err := strconv.Atoi(strings.TrimPrefix(key, contentImageFn))
		if err != nil || i < 0 {
			continue
		}
		u, err := images.ReadUpload(files[0])
		if err != nil {
			return nil, nil, err
		}
		contentUploads[i] = u
	}
	return featured, contentUploads, nil
}
