package cache

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	maxAge time.Duration
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.markCacheable()
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.markCacheable()
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// markCacheable sets Cache-Control right before the headers go out, and only
// on responses the middleware is going to store.
func (w *responseWriter) markCacheable() {
	if !w.Written() && storable(w.ResponseWriter) {
		w.Header().Set("Cache-Control", cacheControl(w.maxAge))
	}
}

// Middleware serves GET pages from pc while they are younger than maxAge and
// stores fresh 200 HTML responses. The max-age is also sent to clients.
// Pages are keyed by path; query strings never create new entries.
func Middleware(pc *PageCache, maxAge time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only cache GET requests
		if pc == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.Path
		if cached, found := pc.Read(key, maxAge); found {
			c.Header("X-Cache", "HIT")
			c.Header("Cache-Control", cacheControl(maxAge))
			c.Data(http.StatusOK, "text/html; charset=utf-8", cached)
			c.Abort()
			return
		}

		// Cache miss - capture response
		c.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			maxAge:         maxAge,
		}
		c.Writer = writer

		c.Next()

		// Only cache successful HTML responses
		if !storable(c.Writer) || writer.body.Len() == 0 {
			return
		}
		if err := pc.Write(key, writer.body.Bytes()); err != nil {
			log.Warn("error writing page cache", zap.String("path", key), zap.Error(err))
		}
	}
}

func storable(w gin.ResponseWriter) bool {
	return w.Status() == http.StatusOK &&
		strings.HasPrefix(w.Header().Get("Content-Type"), "text/html")
}

func cacheControl(maxAge time.Duration) string {
	return "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
}
