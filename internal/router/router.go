package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/config"
	"github.com/iliyamo/kids-checkin/internal/handler"
	"github.com/iliyamo/kids-checkin/internal/middleware"
	"github.com/iliyamo/kids-checkin/internal/model"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	OAuth    *handler.OAuthHandler
	Users    *handler.UserHandler
	Children *handler.ChildHandler
	Parents  *handler.ParentHandler
	Classes  *handler.ClassHandler
	Checkin  *handler.CheckinHandler
	Stats    *handler.StatsHandler
	Settings *handler.SettingsHandler
	Export   *handler.ExportHandler
	Admin    *handler.AdminHandler
}

// Options carries the middleware configuration.  A nil Redis client turns
// rate limiting and caching into pass-throughs.
type Options struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Login     config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Log       *zap.Logger
}

// New builds the Echo instance with every route registered.
func New(db *sql.DB, h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(opt.Log))

	RegisterRoutes(e, db)
	RegisterAuth(e, h, opt)
	RegisterAPI(e, h, opt)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth mounts login, refresh, logout and the OIDC flow behind the
// login rate limit.
func RegisterAuth(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group("/v1/auth", middleware.NewTokenBucket(opt.Login, opt.Redis, opt.Log))
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)
	g.POST("/logout", h.Auth.Logout)
	if h.OAuth != nil {
		g.GET("/oauth/:provider/start", h.OAuth.Start)
		g.GET("/oauth/:provider/callback", h.OAuth.Callback)
	}
}

// RegisterAPI mounts the authenticated /v1 surface.  Every staff role may
// run check-in; user management, settings writes and the flag job are
// admin only.
func RegisterAPI(e *echo.Echo, h Handlers, opt Options) {
	v1 := e.Group("/v1",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleVolunteer),
		middleware.NewTokenBucket(opt.RateLimit, opt.Redis, opt.Log),
	)
	v1.GET("/me", h.Auth.Me)

	// static segments before :id
	v1.GET("/children/irregular", h.Children.Irregular)
	v1.GET("/children", h.Children.List)
	v1.POST("/children", h.Children.Create)
	v1.GET("/children/:id", h.Children.Get)
	v1.PUT("/children/:id", h.Children.Update)
	v1.DELETE("/children/:id", h.Children.Delete)
	v1.POST("/children/:id/archive", h.Children.Archive)
	v1.POST("/children/:id/unarchive", h.Children.Unarchive)
	v1.GET("/children/:id/attendance", h.Children.AttendanceHistory)

	v1.GET("/parents", h.Parents.List)
	v1.POST("/parents", h.Parents.Create)
	v1.GET("/parents/:id", h.Parents.Get)
	v1.PUT("/parents/:id", h.Parents.Update)
	v1.DELETE("/parents/:id", h.Parents.Delete)
	v1.GET("/parents/:id/children", h.Parents.ChildrenOf)

	v1.GET("/classes", h.Classes.List)
	v1.POST("/classes", h.Classes.Create)
	v1.PUT("/classes/:id", h.Classes.Update)
	v1.DELETE("/classes/:id", h.Classes.Delete)

	v1.POST("/checkin", h.Checkin.CheckIn)
	v1.POST("/checkout", h.Checkin.Checkout)
	v1.GET("/attendance", h.Checkin.ListAttendance)
	v1.GET("/attendance/:id", h.Checkin.GetAttendance)
	v1.GET("/tags/overrides", h.Checkin.ListOverrides)
	v1.GET("/tags/:tag", h.Checkin.GetTag)

	cached := middleware.NewRedisCache(opt.Cache, opt.Redis, opt.Log)
	v1.GET("/stats/summary", h.Stats.Summary, cached)
	v1.GET("/stats/attendance", h.Stats.Attendance, cached)

	v1.GET("/settings", h.Settings.List)
	v1.GET("/export/attendance.csv", h.Export.CSV)
	v1.GET("/export/attendance.xlsx", h.Export.XLSX)

	adminOnly := middleware.RequireRole(model.RoleAdmin)
	v1.PUT("/settings", h.Settings.Update, adminOnly)
	v1.POST("/users", h.Users.Create, adminOnly)
	v1.GET("/users", h.Users.List, adminOnly)
	v1.PATCH("/users/:id/active", h.Users.SetActive, adminOnly)
	v1.POST("/admin/flags/recompute", h.Admin.RecomputeFlags, adminOnly)
}
