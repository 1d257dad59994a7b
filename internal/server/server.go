package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/barter-backend/internal/config"
	"github.com/shinyyama/barter-backend/internal/handler"
	appmw "github.com/shinyyama/barter-backend/internal/middleware"
	"github.com/shinyyama/barter-backend/internal/reqctx"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/shinyyama/barter-backend/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the process-level handles the server is built from.
// DB may be nil; repositories then report ErrDBNotReady.
type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Log    *logrus.Logger
	Auth   *appmw.AuthMiddleware
	Valuer service.Valuer
}

type Server struct {
	e   *echo.Echo
	log *logrus.Logger
}

func New(d Deps) (*Server, error) {
	cfg := d.Config
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, rid string) {
			c.SetRequest(c.Request().WithContext(reqctx.WithRID(c.Request().Context(), rid)))
		},
	}))
	e.Use(requestLogger(d.Log))
	e.Use(handler.ContextLogger(d.Log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", appmw.DevUserHeader},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin(cfg.CORSAllowedSuffixes),
	}))

	itemRepo := repository.NewItemRepository(d.DB)
	matchRepo := repository.NewMatchRepository(d.DB)
	bidRepo := repository.NewBidRepository(d.DB)
	notifRepo := repository.NewNotificationRepository(d.DB)
	wishRepo := repository.NewWishlistRepository(d.DB)
	userRepo := repository.NewUserRepository(d.DB)

	valuationSvc, err := service.NewValuationService(d.Valuer, service.ValuationConfig{
		Default:   cfg.ValuationDefault,
		Timeout:   cfg.ValuationTimeout,
		CacheSize: cfg.ValuationCacheSize,
	}, d.Log.WithField("component", "valuation"))
	if err != nil {
		return nil, err
	}
	notifySvc := service.NewNotificationService(notifRepo, service.RetryPolicy{
		Attempts: cfg.NotifyRetryAttempts,
		Backoff:  cfg.NotifyRetryBackoff,
	}, d.Log.WithField("component", "notification"))
	itemSvc := service.NewItemService(itemRepo, userRepo, valuationSvc, d.Log.WithField("component", "item"))
	discoverySvc := service.NewDiscoveryService(itemRepo, valuationSvc, cfg.CandidateBandPercent, d.Log.WithField("component", "discovery"))
	matchSvc := service.NewMatchService(matchRepo, itemRepo, notifySvc, service.MatchConfig{
		RematchCooldown: cfg.MatchRematchCooldown,
		NotifyOnCreate:  cfg.NotifyOnMatchCreated,
	}, d.Log.WithField("component", "match"))
	bidSvc := service.NewBidService(bidRepo, itemRepo, notifySvc, service.BidConfig{
		NotifyOnPlace: cfg.NotifyOnBidPlaced,
	}, d.Log.WithField("component", "bid"))
	wishSvc := service.NewWishlistService(wishRepo, itemRepo)
	userSvc := service.NewUserService(userRepo)

	itemHandler := handler.NewItemHandler(itemSvc)
	swipeHandler := handler.NewSwipeHandler(discoverySvc, matchSvc, wishSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	bidHandler := handler.NewBidHandler(bidSvc)
	notifHandler := handler.NewNotificationHandler(notifySvc)
	wishHandler := handler.NewWishlistHandler(wishSvc)
	aiHandler := handler.NewAIHandler(valuationSvc)
	userHandler := handler.NewUserHandler(d.Auth.Client(), userSvc)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    cfg.GitSHA,
			"build_time": cfg.BuildAt,
		})
	})

	api := e.Group("/api")
	api.GET("/items", itemHandler.List)
	api.GET("/items/:id", itemHandler.Get)
	api.GET("/users/:uid/public", userHandler.GetPublic)

	authed := api.Group("", d.Auth.RequireAuth)
	authed.POST("/items", itemHandler.Create)
	authed.DELETE("/items/:id", itemHandler.Delete)
	authed.POST("/items/:id/revalue", itemHandler.Revalue)
	authed.GET("/me/items", itemHandler.ListMine)

	authed.GET("/items/:id/candidates", swipeHandler.Candidates)
	authed.POST("/items/:id/swipe", swipeHandler.Swipe)
	authed.GET("/me/matches", matchHandler.ListMine)
	authed.POST("/matches/:id/status", matchHandler.SetStatus)

	authed.POST("/items/:id/bids", bidHandler.Place)
	authed.GET("/me/bids/incoming", bidHandler.Incoming)
	authed.GET("/me/bids/outgoing", bidHandler.Outgoing)
	authed.POST("/bids/:id/resolve", bidHandler.Resolve)

	authed.GET("/notifications", notifHandler.List)
	authed.POST("/notifications/read", notifHandler.MarkAllRead)
	authed.POST("/notifications/:id/read", notifHandler.MarkRead)

	authed.GET("/me/wishlist", wishHandler.List)
	authed.POST("/wishlist/:itemId", wishHandler.Add)
	authed.DELETE("/wishlist/:itemId", wishHandler.Remove)
	authed.POST("/wishlist/:itemId/toggle", wishHandler.Toggle)

	authed.POST("/valuations/analyze", aiHandler.Analyze)

	return &Server{e: e, log: d.Log}, nil
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func requestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"rid":     v.RequestID,
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}

// allowOrigin accepts localhost on any port plus hosts ending in one of suffixes.
func allowOrigin(suffixes []string) func(string) (bool, error) {
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
		host := u.Hostname()
		for _, suffix := range suffixes {
			suffix = strings.TrimSpace(suffix)
			if suffix != "" && strings.HasSuffix(host, suffix) {
				return true, nil
			}
		}
		return false, nil
	}
}
