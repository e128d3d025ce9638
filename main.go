package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	constants "kalkulludo/internal/constants"
	game "kalkulludo/internal/game"
	handlers "kalkulludo/internal/handlers"
	models "kalkulludo/internal/models"
	scheduler "kalkulludo/internal/scheduler"
	store "kalkulludo/internal/store"
	util "kalkulludo/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting Kalkulludo in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	db, err := store.Connect()
	if err != nil {
		util.LogFatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	app := &models.App{
		Store:          db,
		Sessions:       make(map[string]*models.PlaySession),
		LimiterMap:     make(map[string]*models.RateLimiterEntry),
		Sampling:       game.DefaultSamplePolicy(),
		IsAdmin:        adminPredicate(os.Getenv("ADMIN_EMAILS")),
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 24*time.Hour),
		SessionTTL:     util.GetEnvDuration("SESSION_TTL", 3*time.Hour),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 30),
	}

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(csrfMiddleware(app))
	router.Use(validateCSRFMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"})))
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	limited := rateLimitMiddleware(app)
	router.POST(constants.RouteNewGame, limited, wrap(app, handlers.NewGameHandler))
	router.POST(constants.RouteAnswer, limited, wrap(app, handlers.AnswerHandler))
	router.POST(constants.RouteFinish, limited, wrap(app, handlers.FinishHandler))
	router.GET(constants.RouteGameState, wrap(app, handlers.GameStateHandler))
	router.GET(constants.RouteDashboard, wrap(app, handlers.DashboardHandler))
	router.GET(constants.RouteMyResults, wrap(app, handlers.MyResultsHandler))
	router.POST(constants.RouteProfile, limited, wrap(app, handlers.ProfileHandler))
	router.GET(constants.RouteAdminResults, wrap(app, handlers.AdminResultsHandler))
	router.GET(constants.RouteAdminExport, wrap(app, handlers.AdminExportHandler))
	router.GET(constants.RouteHealthz, wrap(app, handlers.HealthzHandler))

	jobs := scheduler.New(app)
	jobs.Start()
	defer jobs.Stop()

	startServer(router)
}

func wrap(app *models.App, h func(*models.App, *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) { h(app, c) }
}

// adminPredicate builds the authorization check from the ADMIN_EMAILS env
// value (comma separated). An empty list means nobody is an admin.
func adminPredicate(raw string) func(string) bool {
	emails := lo.FilterMap(strings.Split(raw, ","), func(e string, _ int) (string, bool) {
		e = strings.ToLower(strings.TrimSpace(e))
		return e, e != ""
	})
	return func(email string) bool {
		return lo.Contains(emails, strings.ToLower(strings.TrimSpace(email)))
	}
}

func startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}
