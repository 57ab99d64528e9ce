package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const claimsKey = "admin_claims"

// RequireAdmin rejects API requests without a valid admin cookie.
func RequireAdmin(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := tokens.Session(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Admin access required."})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdminPage sends visitors without a valid admin cookie to the login page.
func RequireAdminPage(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := tokens.Session(c)
		if !ok {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// CurrentAdmin returns the claims stored by RequireAdmin or RequireAdminPage.
func CurrentAdmin(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
