package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"server/internal/admin"
	"server/internal/http/handlers"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

// Options carries the router's collaborators beyond the handler set.
type Options struct {
	Guard    *admin.Guard
	GeoIP    geoip.CountryResolver
	Registry *prometheus.Registry
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := middleware.NewMetrics(registry)

	var lookup middleware.CountryLookup
	if opts.GeoIP != nil {
		lookup = opts.GeoIP.CountryCode
	}

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(app.Logger),
		metrics.Handler,
		middleware.I18N("en", lookup),
		middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute),
		cors.Handler(cors.Options{
			AllowedOrigins:   app.Cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Locale", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", app.Login)
		r.Post("/logout", app.Logout)
		r.Post("/otp/send", app.OTPSend)
		r.Post("/otp/verify", app.OTPVerify)
		r.Post("/register", app.Register)
		r.Post("/reset-password", app.ResetPassword)
	})

	r.Route("/v1/me", func(r chi.Router) {
		r.Get("/", app.Me)
		r.Put("/", app.UpdateMe)
	})

	r.Get("/v1/plans", app.PlansList)

	r.Route("/v1/billing", func(r chi.Router) {
		r.Post("/checkout", app.CheckoutStart)
		r.Post("/verify", app.CheckoutVerify)
		r.Get("/status", app.CheckoutStatus)
	})

	r.Post("/v1/coupons/validate", app.CouponValidate)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/login", app.AdminLogin(opts.Guard.Check))
		r.Group(func(r chi.Router) {
			r.Use(opts.Guard.Middleware)
			r.Get("/submissions", app.AdminSubmissions)
			r.Put("/pricing", app.AdminPricingUpdate)
			r.Get("/settings", app.AdminSettingsGet)
			r.Put("/settings", app.AdminSettingsPut)
			r.Post("/coupons", app.AdminCouponCreate)
		})
	})

	return r
}
