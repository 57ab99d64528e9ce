package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/auth"
	"portfolio/logger"
)

const tooManyAttempts = "Too many login attempts. Please try again later."

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AdminModule) apiLogin(c *gin.Context) {
	log := logger.WithRequest(a.log, c)
	ip := c.ClientIP()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if !a.limiter.Check(ip) {
		log.Warn("login throttled", zap.String("ip", ip))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": tooManyAttempts})
		return
	}

	if !a.creds.Check(req.Username, req.Password) {
		a.limiter.Record(ip)
		log.Warn("failed login", zap.String("ip", ip), zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := a.tokens.Issue(req.Username)
	if err != nil {
		log.Error("error issuing admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	a.limiter.Reset(ip)
	a.tokens.SetCookie(c, token)
	log.Info("admin logged in", zap.String("ip", ip))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
	})
}

func (a *AdminModule) apiLogout(c *gin.Context) {
	a.tokens.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

func (a *AdminModule) apiStatus(c *gin.Context) {
	claims, ok := a.tokens.Session(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"isAdmin": false, "username": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAdmin": true, "username": claims.Username})
}

// requireAdmin guards the console pages.
func (a *AdminModule) requireAdmin() gin.HandlerFunc {
	return auth.RequireAdminPage(a.tokens)
}
