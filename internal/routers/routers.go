package routers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/supplai-io/supplai/internal/docs"
	"github.com/supplai-io/supplai/internal/handlers"
	"github.com/supplai-io/supplai/internal/util"
)

const name = "github.com/supplai-io/supplai/internal/routers"

type APIRouterOptions struct {
	Logger *zap.SugaredLogger
	Api    *handlers.API
	// Origins allowed to call /api from a browser.  CORS is off when empty.
	Origins []string
	// AuthRate and AuthBurst limit the auth form posts per client IP.
	AuthRate  rate.Limit
	AuthBurst int
	// MaxWatchesPerUser bounds the open order status streams of one user.
	MaxWatchesPerUser int
}

func NewAPIRouter(ctx context.Context, o APIRouterOptions) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	loggerMiddleware := ginzap.GinzapWithConfig(o.Logger.Desugar(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{
				zap.String("traceID", trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()),
			}
		},
	})

	r.Use(otelgin.Middleware(name, otelgin.WithPropagators(
		propagation.TraceContext{},
	)))
	r.Use(ginzap.RecoveryWithZap(o.Logger.Desugar(), true))
	r.Use(SecurityHeaders())
	if len(o.Origins) > 0 {
		// engine wide so preflight requests, which match no route, are answered
		r.Use(cors.New(cors.Config{
			AllowOrigins:     o.Origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "traceparent"},
			ExposeHeaders:    []string{handlers.TotalCountHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	newPrometheus().Use(r)

	u, err := url.Parse(o.Api.URL)
	if err != nil {
		return nil, err
	}
	docs.SwaggerInfo.Schemes = []string{u.Scheme}
	docs.SwaggerInfo.Host = u.Host

	r.GET("/openapi/*any", ginSwagger.WrapHandler(swaggerFiles.Handler), loggerMiddleware)

	api := o.Api
	authLimiter := NewIPRateLimiter(o.AuthRate, o.AuthBurst)
	go util.RunPeriodically(ctx, time.Minute, func() {
		authLimiter.Purge()
	})
	limitAuth := authLimiter.Middleware()

	// Public pages
	r.GET("/manifest.webmanifest", api.Manifest)
	r.GET("/icons/icon.svg", api.Icon)

	pages := r.Group("/", loggerMiddleware, NoStore())
	{
		pages.GET("/login", api.LoginPage)
		pages.POST("/login", limitAuth, api.Login)
		pages.GET("/register", api.RegisterPage)
		pages.POST("/register", limitAuth, api.Register)
		pages.GET("/forgot-password", api.ForgotPasswordPage)
		pages.POST("/forgot-password", limitAuth, api.ForgotPassword)
		pages.GET("/reset-password", api.ResetPasswordPage)
		pages.POST("/reset-password", limitAuth, api.ResetPassword)
		pages.GET("/verify-email", api.VerifyEmail)
		pages.POST("/verify-email/resend", limitAuth, api.ResendVerification)
		pages.POST("/logout", api.Logout)
	}

	// Protected pages
	protected := r.Group("/", loggerMiddleware, NoStore(), api.RequireUser(handlers.Pages))
	{
		protected.GET("/", api.Home)
		protected.GET("/onboarding", api.OnboardingPage)
		protected.POST("/onboarding", api.Onboarding)

		org := protected.Group("/org/:slug", api.RequireOrganization(handlers.Pages))
		org.GET("", api.OrdersPage)
		org.GET("/orders", api.OrdersPage)
		org.GET("/orders/new", api.NewOrderPage)
		org.POST("/orders", api.CreateOrderForm)
		org.GET("/orders/:id", api.OrderPage)
		org.GET("/suppliers", api.SuppliersPage)

		admin := org.Group("", api.RequireAdmin(handlers.Pages))
		admin.GET("/suppliers/new", api.NewSupplierPage)
		admin.POST("/suppliers", api.CreateSupplierForm)
	}

	private := r.Group("/api", loggerMiddleware)
	{
		private.Use(api.RequireUser(handlers.JSON))

		// Feature Flags
		private.GET("/fflags", api.ListFeatureFlags)
		private.GET("/fflags/:name", api.GetFeatureFlag)

		// Organizations
		private.GET("/organizations", api.ListOrganizations)
		private.POST("/organizations", api.CreateOrganization)

		org := private.Group("/organizations/:slug", api.RequireOrganization(handlers.JSON))
		org.GET("", api.GetOrganization)
		org.GET("/membership", api.GetMembership)
		org.GET("/members", api.ListMembers)
		org.GET("/suppliers", api.ListSuppliers)
		org.GET("/orders", api.ListOrders)
		org.POST("/orders", api.CreateOrder)

		admin := org.Group("", api.RequireAdmin(handlers.JSON))
		admin.PATCH("/members/:uid", api.UpdateMember)
		admin.DELETE("/members/:uid", api.DeleteMember)
		admin.POST("/suppliers", api.CreateSupplier)
		admin.DELETE("/suppliers/:id", api.DeleteSupplier)

		// Orders
		watches := NewWatchLimiter(o.MaxWatchesPerUser)
		private.GET("/orders/:id", api.GetOrder)
		private.POST("/orders/:id/resend", api.ResendOrderEmails)
		private.GET("/orders/:id/email-status", watches.Middleware(isWatchQuery), api.GetOrderEmailStatus)
		private.GET("/orders/:id/email-status/ws", watches.Middleware(always), api.WatchOrderEmailStatus)
	}

	// Don't log the health/readiness checks.
	r.GET("/ready", api.Ready)
	r.GET("/live", api.Live)

	return r, nil
}

func isWatchQuery(c *gin.Context) bool {
	return c.Query("watch") == "true"
}

func always(*gin.Context) bool {
	return true
}

func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("supplai")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, p := range c.Params {
			switch p.Key {
			case "id", "uid", "slug":
				url = strings.Replace(url, p.Value, ":"+p.Key, 1)
			}
		}
		return url
	}
	return p
}
