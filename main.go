package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/admin"
	"portfolio/analytics"
	"portfolio/auth"
	"portfolio/blog"
	"portfolio/cache"
	"portfolio/common"
	"portfolio/config"
	"portfolio/database"
	"portfolio/images"
	"portfolio/logger"
	"portfolio/site"
)

// pages older than this are removed at startup; the middleware ignores them anyway
const cachePruneAge = 24 * time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync()

	warnings, err := cfg.Validate()
	if err != nil {
		zlog.Fatal("invalid configuration", zap.Error(err))
	}
	for _, w := range warnings {
		zlog.Warn(w)
	}

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := common.ConnectDb(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.RunMigrations(db, zlog); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	analyticsDB, err := common.ConnectAnalyticsDb(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to analytics database", zap.Error(err))
	}
	analyticsModule, err := analytics.NewAnalyticsModule(analyticsDB, zlog)
	if err != nil {
		zlog.Fatal("failed to set up analytics", zap.Error(err))
	}

	pages, err := cache.New(cfg.CacheDir)
	if err != nil {
		zlog.Fatal("failed to set up page cache", zap.Error(err))
	}
	if err := pages.Prune(cachePruneAge); err != nil {
		zlog.Warn("error pruning page cache", zap.Error(err))
	}

	router := gin.New()
	router.Use(logger.Middleware(zlog), logger.Recovery(zlog))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("portfolio-session", store))
	router.Use(common.CanonicalHost(cfg.Domain))

	router.SetFuncMap(common.TemplateFuncs(cfg))
	router.LoadHTMLGlob("*/views/*.html")

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.IsProd())
	limiter := auth.NewLoginLimiter(auth.DefaultLoginAttempts, auth.DefaultLoginWindow)
	defer limiter.Stop()

	imageModule := images.NewImageModule(db, zlog)
	imageModule.RegisterRoutes(router)

	blogStore := blog.NewStore(db, imageModule, zlog)

	blogModule := blog.NewBlogModule(blogStore, tokens, pages, analyticsModule, zlog)
	blogModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(blogStore, auth.NewCredentials(cfg), tokens, limiter, analyticsModule, pages, zlog)
	adminModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(blogStore, cfg, zlog)
	siteModule.RegisterRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}
