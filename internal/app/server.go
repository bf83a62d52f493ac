package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"github.com/AndrewYakovlev/aso-store/internal/config"
	"github.com/AndrewYakovlev/aso-store/internal/handlers"
	"github.com/AndrewYakovlev/aso-store/internal/middleware"
	"github.com/AndrewYakovlev/aso-store/internal/services"
	"github.com/AndrewYakovlev/aso-store/internal/worker"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

const healthWatchInterval = 15 * time.Second

// Dependencies внешние ресурсы, которые создает main
type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Tasks  *worker.Dispatcher
	// SMS по умолчанию services.SMSService
	SMS    services.SMSSender
	Logger *zap.Logger
}

// Server HTTP-приложение и gRPC health server
type Server struct {
	App    *fiber.App
	Health *HealthChecker

	config *config.Config
	logger *zap.Logger
	grpc   *grpc.Server
	status *health.Server
}

func NewServer(deps Dependencies) *Server {
	cfg := deps.Config
	logger := deps.Logger

	tokens := utils.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.TTL)

	sms := deps.SMS
	if sms == nil {
		sms = services.NewSMSService(cfg, logger)
	}

	audit := services.NewAuditService(deps.DB, deps.Tasks, logger)
	otp := services.NewOTPService(deps.DB, cfg.Security)
	merge := services.NewMergeService(deps.DB, logger)
	anonymous := services.NewAnonymousService(deps.DB, logger)
	auth := services.NewAuthService(deps.DB, deps.Redis, cfg, otp, merge, sms, tokens, audit, logger)
	users := services.NewUserService(deps.DB, audit, logger)
	catalog := services.NewCatalogService(deps.DB, anonymous, deps.Tasks, logger)

	s := &Server{
		Health: NewHealthChecker(deps.DB, deps.Redis, deps.Tasks, logger),
		config: cfg,
		logger: logger,
	}

	s.App = fiber.New(fiber.Config{
		AppName:      "aso-store",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: handlers.NewErrorHandler(logger),
		// значения запроса уходят в фоновые задачи и не должны ссылаться на буфер fasthttp
		Immutable: true,
		// адрес клиента берется из заголовка прокси только от доверенных адресов
		ProxyHeader:             cfg.Server.ProxyHeader,
		EnableTrustedProxyCheck: len(cfg.Server.TrustedProxies) > 0,
		TrustedProxies:          cfg.Server.TrustedProxies,
		EnableIPValidation:      true,
	})

	s.App.Use(recover.New())
	s.App.Use(middleware.NewAuditMiddleware(middleware.AuditConfig{
		ExcludePaths:    []string{"/health"},
		PersistPrefixes: []string{"/api/v1/admin"},
	}, logger, audit).Handler())
	s.App.Use("/api", middleware.NewRateLimiter(deps.Redis, middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.Security.RequestsPerMinute,
		RequestsPerHour:   cfg.Security.RequestsPerHour,
		RequestsPerDay:    cfg.Security.RequestsPerDay,
	}, logger).Handler())
	s.App.Use(middleware.NewSessionMiddleware(
		middleware.DefaultSessionConfig(cfg.Session.AuthCookie), tokens, logger,
	).Handler())

	s.registerRoutes(
		handlers.NewAuthHandler(auth, anonymous, cfg.Session, cfg.IsProduction()),
		handlers.NewAdminHandler(users),
		handlers.NewCatalogHandler(catalog, cfg.Session.AnonCookie),
	)

	s.status = health.NewServer()
	s.grpc = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.status)

	return s
}

func (s *Server) registerRoutes(auth *handlers.AuthHandler, admin *handlers.AdminHandler, catalog *handlers.CatalogHandler) {
	s.App.Get("/health", s.Health.Handler)

	api := s.App.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/anonymous", auth.Anonymous)
	authGroup.Post("/send-otp", auth.SendOTP)
	authGroup.Post("/verify-otp", auth.VerifyOTP)
	authGroup.Post("/refresh", auth.Refresh)
	authGroup.Get("/me", middleware.RequireIdentity(), auth.Me)

	adminGroup := api.Group("/admin", middleware.RequireIdentity())
	adminGroup.Get("/users", admin.ListUsers)
	adminGroup.Get("/users/:id", admin.GetUser)
	adminGroup.Patch("/users/:id/role", admin.UpdateRole)
	adminGroup.Get("/anonymous-sessions", admin.ListAnonymousSessions)
	adminGroup.Get("/stats", s.Health.StatsHandler)

	// /search регистрируется раньше /:idOrSlug
	products := api.Group("/products")
	products.Get("/search", catalog.Search)
	products.Get("/:idOrSlug", catalog.GetProduct)
}

// Run запускает HTTP и gRPC серверы и блокируется до ошибки или отмены ctx
func (s *Server) Run(ctx context.Context) error {
	httpAddr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	grpcAddr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.GRPCPort)

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("gRPC health server started", zap.String("addr", grpcAddr))
		if err := s.grpc.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	go func() {
		s.logger.Info("HTTP server started", zap.String("addr", httpAddr))
		if err := s.App.Listen(httpAddr); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go s.Health.Watch(ctx, s.status, healthWatchInterval)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown останавливает прием запросов и дожидается активных
func (s *Server) Shutdown(ctx context.Context) error {
	s.status.Shutdown()
	s.grpc.GracefulStop()
	return s.App.ShutdownWithContext(ctx)
}
