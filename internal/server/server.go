package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/handler"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
	"gorm.io/gorm"
)

type Services struct {
	Negotiations  service.NegotiationService
	Chats         service.ChatService
	Orders        service.OrderService
	Samples       service.SampleService
	Crops         service.CropService
	Notifications service.NotificationService
	Advisor       service.AdvisorService
}

type Options struct {
	DB *gorm.DB
	// Auth authenticates the caller and stores uid, role and verified on the context.
	Auth                echo.MiddlewareFunc
	AuthClient          *auth.Client
	Rooms               handler.RoomServer
	AllowedOriginSuffix string
	ChatRatePerMinute   int
	GitSHA              string
	BuildTime           string
}

type Server struct {
	e *echo.Echo
}

func New(opts Options, svcs Services, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(appmw.RequestID(log))
	e.Use(appmw.RequestLogger(log))
	e.Use(appmw.Metrics)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin(opts.AllowedOriginSuffix),
	}))

	negotiationHandler := handler.NewNegotiationHandler(svcs.Negotiations, svcs.Advisor)
	chatHandler := handler.NewChatHandler(svcs.Chats, svcs.Notifications)
	orderHandler := handler.NewOrderHandler(svcs.Orders)
	sampleHandler := handler.NewSampleHandler(svcs.Samples)
	cropHandler := handler.NewCropHandler(svcs.Crops)
	notificationHandler := handler.NewNotificationHandler(svcs.Notifications)

	e.GET("/healthz", func(c echo.Context) error {
		status := http.StatusOK
		dbStatus := "ok"
		if err := ping(c.Request().Context(), opts.DB); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}
		return c.JSON(status, map[string]string{
			"ok":         strconv.FormatBool(status == http.StatusOK),
			"db":         dbStatus,
			"git_sha":    opts.GitSHA,
			"build_time": opts.BuildTime,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	requireAuth := opts.Auth
	farmer := appmw.RequireRole(model.RoleFarmer)
	wholesaler := appmw.RequireRole(model.RoleWholesaler)
	chatLimit := appmw.ChatRateLimit(opts.ChatRatePerMinute)

	if opts.Rooms != nil {
		realtimeHandler := handler.NewRealtimeHandler(svcs.Negotiations, opts.Rooms)
		e.GET("/ws/negotiations/:id", realtimeHandler.Subscribe, requireAuth)
	}

	api := e.Group("/api")
	api.GET("/crops", cropHandler.List)
	api.GET("/crops/:id", cropHandler.Get)

	authed := api.Group("", requireAuth)
	authed.POST("/crops/:id/negotiations", negotiationHandler.Start, wholesaler, appmw.RequireVerified)
	authed.POST("/crops/:id/samples", sampleHandler.Request, wholesaler)

	authed.GET("/negotiations", negotiationHandler.List)
	authed.GET("/negotiations/:id", negotiationHandler.Get)
	authed.POST("/negotiations/:id/offers", negotiationHandler.MakeOffer)
	authed.POST("/negotiations/:id/accept", negotiationHandler.Accept)
	authed.POST("/negotiations/:id/reject", negotiationHandler.Reject)
	authed.POST("/negotiations/:id/cancel", negotiationHandler.Cancel)
	authed.GET("/negotiations/:id/suggestion", negotiationHandler.Suggestion)
	authed.GET("/negotiations/:id/messages", chatHandler.NegotiationMessages)
	authed.POST("/negotiations/:id/messages", chatHandler.PostToNegotiation, chatLimit)
	authed.POST("/negotiations/:id/order", orderHandler.CreateFromNegotiation, wholesaler)

	authed.GET("/threads", chatHandler.ListThreads)
	authed.GET("/threads/:id/messages", chatHandler.ThreadMessages)
	authed.POST("/threads/:id/messages", chatHandler.PostToThread, chatLimit)
	authed.POST("/messages/:id/read", chatHandler.MarkRead)

	authed.GET("/samples", sampleHandler.ListMine)
	authed.POST("/samples/:id/accept", sampleHandler.Accept, farmer)
	authed.POST("/samples/:id/reject", sampleHandler.Reject, farmer)

	authed.GET("/orders", orderHandler.ListMine)
	authed.GET("/orders/:id", orderHandler.Get)
	authed.POST("/orders/:id/ship", orderHandler.MarkShipped, farmer)
	authed.POST("/orders/:id/receive", orderHandler.MarkDelivered, wholesaler)
	authed.POST("/orders/:id/cancel", orderHandler.Cancel, wholesaler)

	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/read", notificationHandler.MarkAllRead)

	if opts.AuthClient != nil {
		userHandler := handler.NewUserHandler(opts.AuthClient)
		api.GET("/users/:uid/public", userHandler.GetPublic)
	}

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// allowOrigin accepts localhost during development and any host ending in suffix.
func allowOrigin(suffix string) func(origin string) (bool, error) {
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		if suffix != "" && strings.HasSuffix(u.Hostname(), suffix) {
			return true, nil
		}
		return false, nil
	}
}
