package site

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/blog"
	"portfolio/config"
	"portfolio/logger"
)

const homePosts = 3

type SiteModule struct {
	store *blog.Store
	cfg   *config.Config
	log   *zap.Logger
}

func NewSiteModule(store *blog.Store, cfg *config.Config, log *zap.Logger) *SiteModule {
	return &SiteModule{store: store, cfg: cfg, log: log}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/sitemap.xml", s.sitemap)
	router.GET("/feed.xml", s.feed)
	router.GET("/robots.txt", s.robots)
	router.GET("/health", s.health)
}

func (s *SiteModule) index(c *gin.Context) {
	latest, err := s.store.Latest(c.Request.Context(), homePosts)
	if err != nil {
		// the portfolio still renders without posts
		logger.WithRequest(s.log, c).Error("error loading latest posts", zap.Error(err))
	}

	cards := make([]blog.Card, 0, len(latest))
	for _, b := range latest {
		cards = append(cards, blog.NewCard(b))
	}

	c.HTML(http.StatusOK, "site_index.html", gin.H{
		"name":        s.cfg.SiteName,
		"author":      s.cfg.SiteAuthor,
		"description": s.cfg.SiteDescription,
		"posts":       cards,
	})
}

func (s *SiteModule) sitemap(c *gin.Context) {
	blogs, err := s.store.List(c.Request.Context())
	if err != nil {
		logger.WithRequest(s.log, c).Error("error building sitemap", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	domain := s.cfg.Domain

	var sitemap strings.Builder
	sitemap.WriteString(xml.Header)
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + escape(domain+"/") + "</loc>\n")
	sitemap.WriteString("    <changefreq>weekly</changefreq>\n")
	sitemap.WriteString("    <priority>1.0</priority>\n")
	sitemap.WriteString("  </url>\n")

	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + escape(domain+"/blog") + "</loc>\n")
	sitemap.WriteString("    <changefreq>daily</changefreq>\n")
	sitemap.WriteString("    <priority>0.8</priority>\n")
	sitemap.WriteString("  </url>\n")

	for _, b := range blogs {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + escape(domain+b.URL()) + "</loc>\n")
		sitemap.WriteString("    <lastmod>" + b.UpdatedAt.Format(time.RFC3339) + "</lastmod>\n")
		sitemap.WriteString("    <changefreq>monthly</changefreq>\n")
		sitemap.WriteString("    <priority>0.6</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
}

func (s *SiteModule) feed(c *gin.Context) {
	blogs, err := s.store.List(c.Request.Context())
	if err != nil {
		logger.WithRequest(s.log, c).Error("error building feed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	items := make([]rssItem, 0, len(blogs))
	for _, b := range blogs {
		link := s.cfg.Domain + b.URL()
		items = append(items, rssItem{
			Title:       b.Title,
			Link:        link,
			Description: blog.Excerpt(b.Content),
			Author:      b.Author,
			Categories:  b.Tags,
			PubDate:     b.PublishedAt.Format(time.RFC1123Z),
			GUID:        link,
		})
	}

	feed := rss{
		Version: "2.0",
		Channel: rssChannel{
			Title:       s.cfg.SiteName,
			Link:        s.cfg.Domain,
			Description: s.cfg.SiteDescription,
			Items:       items,
		},
	}

	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		logger.WithRequest(s.log, c).Error("error encoding feed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", append([]byte(xml.Header), out...))
}

func (s *SiteModule) robots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nAllow: /\nDisallow: /admin/\n\nSitemap: %s/sitemap.xml\n", s.cfg.Domain)
}

func (s *SiteModule) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
