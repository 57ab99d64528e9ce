package analytics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"portfolio/models"
)

const (
	VisitorCookie = "portfolio_visitor_id"
	visitorMaxAge = 60 * 60 * 24 * 365 * 2
	throttle      = 30 * time.Minute
)

// AnalyticsModule counts post reads in its own database. A module built
// without a database is disabled and every method is a no-op.
type AnalyticsModule struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAnalyticsModule(db *gorm.DB, log *zap.Logger) (*AnalyticsModule, error) {
	if db == nil {
		log.Info("analytics disabled, ANALYTICS_DB not set")
		return &AnalyticsModule{log: log}, nil
	}

	if err := db.AutoMigrate(&models.PostView{}); err != nil {
		return nil, err
	}

	log.Info("analytics module initialized")
	return &AnalyticsModule{db: db, log: log}, nil
}

func (a *AnalyticsModule) Enabled() bool {
	return a != nil && a.db != nil
}

// Track records a read of the post in the :id route parameter once the
// handler answered 200.
func (a *AnalyticsModule) Track() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only track GET requests
		if !a.Enabled() || c.Request.Method != "GET" {
			c.Next()
			return
		}

		// The cookie has to be set before the handler writes the body
		visitorID := a.visitorID(c)
		c.Next()

		// Only count pages that were actually served
		if c.Writer.Status() != 200 {
			return
		}
		if err := a.TrackRead(c, c.Param("id"), visitorID); err != nil {
			a.log.Warn("error saving post view", zap.String("post_id", c.Param("id")), zap.Error(err))
		}
	}
}

// TrackRead stores a view unless the visitor read the same post within the
// last 30 minutes.
func (a *AnalyticsModule) TrackRead(c *gin.Context, postID, visitorID string) error {
	if !a.Enabled() || postID == "" {
		return nil
	}

	db := a.db.WithContext(c.Request.Context())

	// Throttle: one view per visitor per post every 30 minutes
	var recent models.PostView
	err := db.Where("visitor_id = ? AND post_id = ? AND created_at > ?",
		visitorID, postID, time.Now().UTC().Add(-throttle)).First(&recent).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	view := models.PostView{
		PostID:    postID,
		VisitorID: visitorID,
		Browser:   extractBrowser(c.Request.UserAgent()),
		Language:  extractLanguage(c.GetHeader("Accept-Language")),
		CreatedAt: time.Now().UTC(),
	}
	return db.Create(&view).Error
}

// visitorID reads the visitor cookie, issuing a new id when absent.
func (a *AnalyticsModule) visitorID(c *gin.Context) string {
	if id, err := c.Cookie(VisitorCookie); err == nil && id != "" {
		return id
	}

	id := uuid.NewString()
	c.SetCookie(VisitorCookie, id, visitorMaxAge, "/", "", false, true)
	return id
}

func extractBrowser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	var browser string

	// most specific first
	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		browser = "Opera"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident"):
		browser = "Internet Explorer"
	default:
		browser = "Other"
	}
	return &browser
}

// extractLanguage keeps the first tag of an Accept-Language header.
func extractLanguage(acceptLang string) *string {
	if acceptLang == "" {
		return nil
	}
	lang := strings.TrimSpace(strings.Split(strings.Split(acceptLang, ",")[0], ";")[0])
	if lang == "" {
		return nil
	}
	return &lang
}

// DayViews is the number of reads on one UTC day.
type DayViews struct {
	Date  string
	Count int64
}

// Counts returns the number of reads per post id. Ids without reads are absent.
func (a *AnalyticsModule) Counts(ctx context.Context, postIDs []string) map[string]int64 {
	counts := map[string]int64{}
	if !a.Enabled() || len(postIDs) == 0 {
		return counts
	}

	var rows []struct {
		PostID string
		Count  int64
	}
	err := a.db.WithContext(ctx).Model(&models.PostView{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		a.log.Error("error counting post views", zap.Error(err))
		return counts
	}

	for _, row := range rows {
		counts[row.PostID] = row.Count
	}
	return counts
}

// ViewsByDay returns one entry per day for the last days days, oldest first,
// with zero for days without reads.
func (a *AnalyticsModule) ViewsByDay(ctx context.Context, days int) []DayViews {
	if !a.Enabled() || days <= 0 {
		return []DayViews{}
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -(days - 1))
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	var results []struct {
		Date  string
		Count int64
	}
	err := a.db.WithContext(ctx).Model(&models.PostView{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", start).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results).Error
	if err != nil {
		a.log.Error("error counting views by day", zap.Error(err))
	}

	// Fill in days without reads
	byDate := make(map[string]int64, len(results))
	for _, r := range results {
		byDate[r.Date] = r.Count
	}

	out := make([]DayViews, days)
	for i := range out {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = DayViews{Date: date, Count: byDate[date]}
	}
	return out
}
