package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"

	_ "github.com/aussiebroadwan/zerohunger/api/zerohunger" // Swagger docs
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Options carries the transport settings that do not belong to a service.
type Options struct {
	BuildVersion   string
	CookieSecure   bool
	SessionTTL     time.Duration
	AllowedOrigins []string

	// LocationPushInterval is how often /ws/locations resends the feed.
	LocationPushInterval time.Duration
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys      *jwtx.KeySet
	opts      Options
	startTime time.Time
	logger    *slog.Logger

	store store.Store

	// Health probes for the optional Redis backends. Nil when sessions and
	// locations live in SQLite.
	SessionsHealth  HealthCheck
	LocationsHealth HealthCheck

	AuthService      *service.AuthService
	MFAService       *service.MFAService
	UserService      *service.UserService
	DonationService  *service.DonationService
	FeedbackService  *service.FeedbackService
	LocationService  *service.LocationService
	DashboardService *service.DashboardService
}

func NewRouter(
	keys *jwtx.KeySet,
	opts Options,
	st store.Store,
	logger *slog.Logger,
) *Router {
	if opts.LocationPushInterval <= 0 {
		opts.LocationPushInterval = 5 * time.Second
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = jwtx.DefaultSessionTTL
	}

	r := &Router{
		Mux:       http.NewServeMux(),
		keys:      keys,
		opts:      opts,
		startTime: time.Now(),
		store:     st,
		logger:    logger,
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Order matters: metrics must wrap the mux directly to see the matched
	// route pattern.
	r.middlewares = []httpx.Middleware{
		httpx.Recover(),
		slogx.HTTPMiddleware(r.logger),
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: len(opts.AllowedOrigins) > 0,
			MaxAge:           300,
		}),
		instrument(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSecondFactor()
	r.registerUsers()
	r.registerDonor()
	r.registerAdmin()
	r.registerCollector()
	r.registerAgent()
	r.registerLocations()
	r.registerFeedback()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Zero Hunger API
//	@version		0.1.0
//	@description	Donation coordination between donors, admins, collection agents and collectors.
//	@description
//	@description	Every response is a JSON envelope {success, message, data}. Browsers sending
//	@description	Accept: text/html are redirected with a flash cookie instead.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/zerohunger
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						zh_session
//	@description				Signed session token set by /auth/login.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// gated protects a handler with a verified session of the given role. An
// empty role admits any verified user.
func (r *Router) gated(h http.HandlerFunc, role domain.Role, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		r.requireSession(),
		r.requireRole(role),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService:  r.AuthService,
		CookieSecure: r.opts.CookieSecure,
		TTL:          r.opts.SessionTTL,
	}

	// Signup and login are brute force targets; limit by IP and email.
	r.Mux.Handle("POST /auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.AuthLimit),
		),
	)
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndBodyField(httpx.AuthLimit, "email"),
		),
	)

	// Logout works with or without a live session.
	r.Mux.Handle("GET /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ReadLimit),
		),
	)
}

func (r *Router) registerSecondFactor() {
	h := &SecondFactorHandler{MFAService: r.MFAService, UserService: r.UserService}

	// These run before the session is verified, so they are keyed by IP.
	withSession := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			httpx.RateLimitByIP(limit),
			r.requireSession(),
		)
	}

	r.Mux.Handle("GET /2fa/generate", withSession(h.HandleGenerate, httpx.WriteLimit))
	r.Mux.Handle("POST /2fa/enable", withSession(h.HandleEnable, httpx.AuthLimit))
	r.Mux.Handle("GET /2fa/verify", withSession(h.HandleState, httpx.ReadLimit))
	r.Mux.Handle("POST /2fa/verify", withSession(h.HandleVerify, httpx.AuthLimit))
	r.Mux.Handle("POST /2fa/disable", r.gated(h.HandleDisable, "", httpx.WriteLimit))
}

func (r *Router) registerUsers() {
	h := &UserHandler{
		UserService:      r.UserService,
		DashboardService: r.DashboardService,
	}

	r.Mux.Handle("GET /dashboard", r.gated(h.HandleDashboard, "", httpx.ReadLimit))
	r.Mux.Handle("PUT /profile", r.gated(h.HandleUpdateProfile, "", httpx.WriteLimit))
	r.Mux.Handle("GET /admin/agents", r.gated(h.HandleListAgents, domain.RoleAdmin, httpx.ReadLimit))
}

func (r *Router) registerDonor() {
	h := &DonationHandler{DonationService: r.DonationService}

	r.Mux.Handle("POST /donor/donate", r.gated(h.HandleDonate, domain.RoleDonor, httpx.WriteLimit))
	r.Mux.Handle("GET /donor/donations/pending", r.gated(h.HandleDonorPending, domain.RoleDonor, httpx.ReadLimit))
	r.Mux.Handle("GET /donor/donations/previous", r.gated(h.HandleDonorPrevious, domain.RoleDonor, httpx.ReadLimit))
	r.Mux.Handle("DELETE /donor/donations/{id}", r.gated(h.HandleDelete, domain.RoleDonor, httpx.WriteLimit))
}

func (r *Router) registerAdmin() {
	h := &DonationHandler{DonationService: r.DonationService}

	r.Mux.Handle("GET /admin/donations/pending", r.gated(h.HandleAdminPending, domain.RoleAdmin, httpx.ReadLimit))
	r.Mux.Handle("GET /admin/donations/collected", r.gated(h.HandleAdminCollected, domain.RoleAdmin, httpx.ReadLimit))
	r.Mux.Handle("GET /admin/donation/{id}", r.gated(h.HandleAdminGet, domain.RoleAdmin, httpx.ReadLimit))

	// Accept and reject are GETs so they work as plain links in the admin UI.
	r.Mux.Handle("GET /admin/donation/accept/{id}", r.gated(h.HandleAccept, domain.RoleAdmin, httpx.WriteLimit))
	r.Mux.Handle("GET /admin/donation/reject/{id}", r.gated(h.HandleReject, domain.RoleAdmin, httpx.WriteLimit))
	r.Mux.Handle("POST /admin/donation/assign/{id}", r.gated(h.HandleAssign, domain.RoleAdmin, httpx.WriteLimit))
}

func (r *Router) registerCollector() {
	h := &DonationHandler{DonationService: r.DonationService}

	r.Mux.Handle("GET /collector/donations/available", r.gated(h.HandleCollectorAvailable, domain.RoleCollector, httpx.ReadLimit))
	r.Mux.Handle("GET /collector/donations/assigned", r.gated(h.HandleCollectorAssigned, domain.RoleCollector, httpx.ReadLimit))
	r.Mux.Handle("GET /collector/donations/previous", r.gated(h.HandleCollectorPrevious, domain.RoleCollector, httpx.ReadLimit))
	r.Mux.Handle("POST /collector/donation/collect/{id}", r.gated(h.HandleCollect, domain.RoleCollector, httpx.WriteLimit))
}

func (r *Router) registerAgent() {
	h := &DonationHandler{DonationService: r.DonationService}

	r.Mux.Handle("GET /agent/collections/pending", r.gated(h.HandleAgentPending, domain.RoleAgent, httpx.ReadLimit))
	r.Mux.Handle("GET /agent/collections/previous", r.gated(h.HandleAgentPrevious, domain.RoleAgent, httpx.ReadLimit))
	r.Mux.Handle("GET /agent/collection/{id}", r.gated(h.HandleAgentGet, domain.RoleAgent, httpx.ReadLimit))
	r.Mux.Handle("GET /agent/collection/collect/{id}", r.gated(h.HandleAgentCollect, domain.RoleAgent, httpx.WriteLimit))
}

func (r *Router) registerLocations() {
	h := &LocationHandler{
		LocationService: r.LocationService,
		PushInterval:    r.opts.LocationPushInterval,
	}

	r.Mux.Handle("POST /update-location", r.gated(h.HandleUpdate, domain.RoleAgent, httpx.WriteLimit))
	r.Mux.Handle("GET /location/{agentId}", r.gated(h.HandleGet, domain.RoleAdmin, httpx.ReadLimit))
	r.Mux.Handle("GET /locations", r.gated(h.HandleList, domain.RoleAdmin, httpx.ReadLimit))
	r.Mux.Handle("GET /ws/locations", r.gated(h.HandleStream, domain.RoleAdmin, httpx.ReadLimit))
}

func (r *Router) registerFeedback() {
	h := &FeedbackHandler{FeedbackService: r.FeedbackService}

	r.Mux.Handle("POST /feedback", r.gated(h.HandleSend, "", httpx.WriteLimit))
	r.Mux.Handle("GET /feedback", r.gated(h.HandleList, "", httpx.ReadLimit))
	r.Mux.Handle("POST /admin/feedbacks", r.gated(h.HandleReply, domain.RoleAdmin, httpx.WriteLimit))
}

func (r *Router) registerSystem() {
	// Health check endpoints - generous limits, monitoring polls often
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.opts.BuildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.opts.BuildVersion, r.store, r.keys, r.SessionsHealth, r.LocationsHealth),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(promhttp.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
