package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/mygros-backend/api/controllers"
	"github.com/angelmondragon/mygros-backend/api/middleware"
	"github.com/angelmondragon/mygros-backend/internal/accessrequests"
	"github.com/angelmondragon/mygros-backend/internal/auth"
	"github.com/angelmondragon/mygros-backend/internal/cart"
	"github.com/angelmondragon/mygros-backend/internal/checkout"
	"github.com/angelmondragon/mygros-backend/internal/contact"
	"github.com/angelmondragon/mygros-backend/internal/messages"
	"github.com/angelmondragon/mygros-backend/internal/notifications"
	"github.com/angelmondragon/mygros-backend/internal/orders"
	product "github.com/angelmondragon/mygros-backend/internal/products"
	"github.com/angelmondragon/mygros-backend/internal/promo"
	"github.com/angelmondragon/mygros-backend/internal/tracking"
	"github.com/angelmondragon/mygros-backend/internal/users"
	"github.com/angelmondragon/mygros-backend/internal/visits"
	"github.com/angelmondragon/mygros-backend/pkg/auth/session"
	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

// Store is the Redis surface shared by the idempotency and rate limit
// middleware.
type Store interface {
	middleware.IdempotencyStore
	middleware.RateLimitStore
}

type httpObserver interface {
	Observe(method, route string, status int, elapsed time.Duration)
}

// Params collects everything the router needs. Nil services answer with a
// 500 so a partially wired binary still boots.
type Params struct {
	Config    *config.Config
	Logger    *logger.Logger
	Store     Store
	Sessions  session.AccessSessionChecker
	Metrics   httpObserver
	Gatherer  prometheus.Gatherer
	Readiness map[string]controllers.Pinger

	Auth           auth.Service
	Register       auth.RegisterService
	Users          users.Service
	Products       product.Service
	Contact        contact.Service
	Cart           cart.Service
	Checkout       checkout.Service
	Orders         orders.Service
	Tracking       tracking.Service
	Promo          promo.Service
	AccessRequests accessrequests.Service
	Messages       messages.Service
	Visits         visits.Service
	Notifications  notifications.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
		middleware.Logging(logg),
	)
	if p.Metrics != nil {
		r.Use(middleware.Metrics(p.Metrics))
	}

	idem, orderIdem := passthrough, passthrough
	var limiter middleware.RateLimitStore
	if p.Store != nil {
		idem = middleware.Idempotency(p.Store, middleware.DefaultIdempotencyTTL, logg)
		orderIdem = middleware.Idempotency(p.Store, middleware.OrderIdempotencyTTL, logg)
		limiter = p.Store
	}
	loginLimit := middleware.RateLimit(middleware.LoginPolicy(cfg.AuthRateLimit), limiter, logg)
	registerLimit := middleware.RateLimit(middleware.RegisterPolicy(cfg.AuthRateLimit), limiter, logg)
	contactLimit := middleware.RateLimit(middleware.ContactPolicy(cfg.AuthRateLimit), limiter, logg)

	can := func(c enums.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(c, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.With(registerLimit, idem).Post("/register", controllers.AuthRegister(p.Register, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogListProducts(p.Products, logg))
			r.Get("/products/{productId}", controllers.CatalogGetProduct(p.Products, logg))
			r.Get("/categories", controllers.CatalogListCategories(p.Products, logg))
		})

		r.With(contactLimit).Post("/contact", controllers.ContactSubmit(p.Contact, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

			r.Post("/auth/logout", controllers.AuthLogout(p.Auth, logg))
			r.Get("/auth/me", controllers.AuthMe(p.Users, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationsList(p.Notifications, logg))
				r.Get("/unread-count", controllers.NotificationsUnreadCount(p.Notifications, logg))
				r.Post("/read-all", controllers.NotificationsMarkAllRead(p.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.NotificationsMarkRead(p.Notifications, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Use(can(enums.CapManageCart))
				r.Get("/", controllers.CartGet(p.Cart, logg))
				r.Delete("/", controllers.CartClear(p.Cart, logg))
				r.With(idem).Post("/items", controllers.CartAddItem(p.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(p.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(p.Cart, logg))
			})

			r.With(can(enums.CapPlaceOrder), orderIdem).Post("/checkout", controllers.Checkout(p.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Use(can(enums.CapViewOwnOrders))
				r.Get("/", controllers.BuyerListOrders(p.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(p.Orders, logg))
			})

			r.With(can(enums.CapViewPromo)).Get("/promo", controllers.BuyerPromo(p.Promo, logg))

			r.With(can(enums.CapRequestAccess), idem).Post("/access-requests", controllers.SubmitAccessRequest(p.AccessRequests, logg))
			r.With(can(enums.CapRequestAccess)).Get("/access-requests", controllers.ListMyAccessRequests(p.AccessRequests, logg))

			r.With(can(enums.CapSendMessages)).Get("/messages", controllers.MessagesInbox(p.Messages, logg))
			r.With(can(enums.CapSendMessages), idem).Post("/messages", controllers.MessagesSend(p.Messages, logg))
			r.With(can(enums.CapSendMessages)).Get("/messages/unread-count", controllers.MessagesUnreadCount(p.Messages, logg))
			r.With(can(enums.CapSendMessages)).Post("/messages/{messageId}/read", controllers.MessagesMarkRead(p.Messages, logg))

			r.With(can(enums.CapFileVisitReports)).Get("/visits", controllers.ListMyVisitReports(p.Visits, logg))
			r.With(can(enums.CapFileVisitReports), idem).Post("/visits", controllers.CreateVisitReport(p.Visits, logg))
			r.With(can(enums.CapFileVisitReports)).Get("/visits/{visitId}", controllers.GetVisitReport(p.Visits, logg))
			r.With(can(enums.CapFileVisitReports)).Post("/visits/{visitId}/photos", controllers.AddVisitPhoto(p.Visits, logg))

			r.Route("/driver/deliveries", func(r chi.Router) {
				r.Use(can(enums.CapViewAssignedDeliveries))
				r.Get("/", controllers.DriverListDeliveries(p.Tracking, logg))
				r.Get("/summary", controllers.DriverSummary(p.Tracking, logg))
				r.Get("/{trackingId}", controllers.GetDelivery(p.Tracking, logg))
				r.With(can(enums.CapAdvanceDelivery), idem).Post("/{trackingId}/status", controllers.AdvanceDelivery(p.Tracking, logg))
				r.With(can(enums.CapAdvanceDelivery)).Put("/{trackingId}/location", controllers.UpdateDeliveryLocation(p.Tracking, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.With(can(enums.CapViewDashboard)).Get("/stats", controllers.AdminOrderStats(p.Orders, logg))

				r.Route("/orders", func(r chi.Router) {
					r.Use(can(enums.CapViewAllOrders))
					r.Get("/", controllers.AdminListOrders(p.Orders, logg))
					r.Get("/{orderId}", controllers.GetOrder(p.Orders, logg))
					r.With(can(enums.CapValidateOrders), orderIdem).Post("/{orderId}/validate", controllers.AdminValidateOrder(p.Orders, logg))
				})

				r.Route("/tracking", func(r chi.Router) {
					r.Use(can(enums.CapManageTracking))
					r.Get("/", controllers.AdminListDeliveries(p.Tracking, logg))
					r.Get("/{trackingId}", controllers.GetDelivery(p.Tracking, logg))
					r.With(idem).Post("/{trackingId}/status", controllers.AdvanceDelivery(p.Tracking, logg))
					r.Post("/{trackingId}/driver", controllers.AdminAssignDriver(p.Tracking, logg))
					r.Patch("/{trackingId}", controllers.AdminUpdateDeliveryDetails(p.Tracking, logg))
				})

				r.Route("/promo-rules", func(r chi.Router) {
					r.Use(can(enums.CapManagePromoRules))
					r.Get("/", controllers.AdminListPromoRules(p.Promo, logg))
					r.Post("/", controllers.AdminCreatePromoRule(p.Promo, logg))
					r.Patch("/{ruleId}", controllers.AdminUpdatePromoRule(p.Promo, logg))
				})

				r.Route("/products", func(r chi.Router) {
					r.Use(can(enums.CapManageCatalog))
					r.Get("/", controllers.AdminListProducts(p.Products, logg))
					r.Post("/", controllers.AdminCreateProduct(p.Products, logg))
					r.Get("/{productId}", controllers.AdminGetProduct(p.Products, logg))
					r.Patch("/{productId}", controllers.AdminUpdateProduct(p.Products, logg))
					r.Delete("/{productId}", controllers.AdminDeleteProduct(p.Products, logg))
					r.Post("/{productId}/images", controllers.AdminAddProductImage(p.Products, logg))
				})
				r.With(can(enums.CapManageCatalog)).Get("/categories", controllers.AdminListCategories(p.Products, logg))

				r.Route("/access-requests", func(r chi.Router) {
					r.Use(can(enums.CapReviewAccessRequests))
					r.Get("/", controllers.AdminListAccessRequests(p.AccessRequests, logg))
					r.Post("/{requestId}/review", controllers.AdminReviewAccessRequest(p.AccessRequests, logg))
				})

				r.Route("/contact", func(r chi.Router) {
					r.Use(can(enums.CapManageContact))
					r.Get("/", controllers.AdminListContact(p.Contact, logg))
					r.Patch("/{contactId}", controllers.AdminUpdateContactStatus(p.Contact, logg))
				})

				r.Route("/users", func(r chi.Router) {
					r.Use(can(enums.CapManageUsers))
					r.Get("/", controllers.AdminListUsers(p.Users, logg))
					r.Patch("/{userId}/active", controllers.AdminSetUserActive(p.Users, logg))
				})
				r.With(can(enums.CapManageTracking)).Get("/drivers", controllers.AdminListDrivers(p.Users, logg))

				r.With(can(enums.CapBroadcastMessages), idem).Post("/messages/broadcast", controllers.AdminBroadcast(p.Messages, logg))

				r.Route("/visits", func(r chi.Router) {
					r.Use(can(enums.CapViewAllVisitReports))
					r.Get("/", controllers.AdminListVisitReports(p.Visits, logg))
					r.Get("/{visitId}", controllers.GetVisitReport(p.Visits, logg))
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "mygros-api",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return !strings.HasPrefix(req.URL.Path, "/health") && req.URL.Path != "/metrics"
		}),
		otelhttp.WithSpanNameFormatter(func(operation string, req *http.Request) string {
			return operation + " " + req.Method
		}),
	)
}

func passthrough(next http.Handler) http.Handler { return next }
