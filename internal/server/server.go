package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/kay/internal/auth"
	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/config"
	"github.com/smallbiznis/kay/internal/invoice"
	invoicedomain "github.com/smallbiznis/kay/internal/invoice/domain"
	"github.com/smallbiznis/kay/internal/notification"
	notificationdomain "github.com/smallbiznis/kay/internal/notification/domain"
	"github.com/smallbiznis/kay/internal/observability"
	obsmiddleware "github.com/smallbiznis/kay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kay/internal/observability/tracing"
	"github.com/smallbiznis/kay/internal/product"
	productdomain "github.com/smallbiznis/kay/internal/product/domain"
	"github.com/smallbiznis/kay/internal/providers"
	"github.com/smallbiznis/kay/internal/quotation"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	providers.Module,
	auth.Module,
	notification.Module,
	product.Module,
	quotation.Module,
	invoice.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	// Request bodies are typed; unknown fields are rejected.
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(cfg.CORSAllowedOrigins))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, cfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authsvc         authdomain.Service
	quotationSvc    quotationdomain.Service
	invoiceSvc      invoicedomain.Service
	productSvc      productdomain.Service
	notificationSvc notificationdomain.Service
	publicLimiter   *ratelimit.PublicLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Authsvc         authdomain.Service
	QuotationSvc    quotationdomain.Service
	InvoiceSvc      invoicedomain.Service
	ProductSvc      productdomain.Service
	NotificationSvc notificationdomain.Service
	PublicLimiter   *ratelimit.PublicLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authsvc:         p.Authsvc,
		quotationSvc:    p.QuotationSvc,
		invoiceSvc:      p.InvoiceSvc,
		productSvc:      p.ProductSvc,
		notificationSvc: p.NotificationSvc,
		publicLimiter:   p.PublicLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerPublicRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.PublicRateLimit("login"), s.Login)
	auth.GET("/me", s.AdminRequired(), s.Me)
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	// -------- Quotations --------
	api.POST("/quotations", s.PublicRateLimit("quotation_submit"), s.SubmitQuotation)
	api.GET("/quotations/track/:reference", s.PublicRateLimit("quotation_track"), s.TrackQuotation)

	// -------- Catalog --------
	api.GET("/products", s.ListPublicProducts)
	api.GET("/products/:id", s.GetPublicProduct)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	// -------- Quotations --------
	admin.GET("/quotations", s.ListQuotations)
	admin.GET("/quotations/stats", s.GetQuotationStats)
	admin.POST("/quotations/expire", s.ExpireQuotations)
	admin.GET("/quotations/:id", s.OpenQuotation)
	admin.PATCH("/quotations/:id/status", s.UpdateQuotationStatus)
	admin.PATCH("/quotations/:id/notes", s.UpdateQuotationNotes)
	admin.POST("/quotations/:id/convert", s.ConvertQuotation)
	admin.GET("/quotations/:id/pdf", s.RenderQuotationPDF)
	admin.DELETE("/quotations/:id", s.DeleteQuotation)

	// -------- Invoices --------
	admin.GET("/invoices", s.ListInvoices)
	admin.POST("/invoices", s.CreateInvoice)
	admin.GET("/invoices/stats", s.GetInvoiceStats)
	admin.GET("/invoices/number/:number", s.GetInvoiceByNumber)
	admin.GET("/invoices/:id", s.GetInvoiceByID)
	admin.PATCH("/invoices/:id", s.UpdateInvoice)
	admin.DELETE("/invoices/:id", s.DeleteInvoice)
	admin.GET("/invoices/:id/payments", s.ListInvoicePayments)
	admin.POST("/invoices/:id/payments", s.RecordInvoicePayment)
	admin.POST("/invoices/:id/send", s.SendInvoice)
	admin.POST("/invoices/:id/mark-paid", s.MarkInvoicePaid)
	admin.POST("/invoices/:id/duplicate", s.DuplicateInvoice)
	admin.GET("/invoices/:id/pdf", s.RenderInvoicePDF)

	// -------- Products --------
	admin.GET("/products", s.ListProducts)
	admin.POST("/products", s.CreateProduct)
	admin.GET("/products/:id", s.GetProductByID)
	admin.PATCH("/products/:id", s.UpdateProduct)
	admin.DELETE("/products/:id", s.ArchiveProduct)

	// -------- Notifications --------
	admin.GET("/notifications", s.ListNotifications)
	admin.POST("/notifications/read-all", s.MarkAllNotificationsRead)
	admin.POST("/notifications/:id/read", s.MarkNotificationRead)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
