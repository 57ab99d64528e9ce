package common

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CanonicalHost redirects requests for the www. variant of the configured
// domain to the bare domain. Other hosts pass through untouched.
func CanonicalHost(domain string) gin.HandlerFunc {
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return func(c *gin.Context) { c.Next() }
	}
	canonical := stripPort(u.Host)

	return func(c *gin.Context) {
		host := stripPort(c.Request.Host)

		if strings.HasPrefix(host, "www.") && strings.TrimPrefix(host, "www.") == canonical {
			target := *c.Request.URL
			target.Scheme = u.Scheme
			target.Host = u.Host
			c.Redirect(http.StatusMovedPermanently, target.String())
			c.Abort()
			return
		}

		c.Next()
	}
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
