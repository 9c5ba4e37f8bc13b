package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsheringp/pharmstock-backend/api/controllers"
	"github.com/tsheringp/pharmstock-backend/api/middleware"
	authsvc "github.com/tsheringp/pharmstock-backend/internal/auth"
	"github.com/tsheringp/pharmstock-backend/internal/chatbot"
	"github.com/tsheringp/pharmstock-backend/internal/dispensing"
	"github.com/tsheringp/pharmstock-backend/internal/drugs"
	"github.com/tsheringp/pharmstock-backend/internal/orders"
	"github.com/tsheringp/pharmstock-backend/internal/taxonomy"
	"github.com/tsheringp/pharmstock-backend/pkg/config"
	"github.com/tsheringp/pharmstock-backend/pkg/db"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
	"github.com/tsheringp/pharmstock-backend/pkg/metrics"
	"github.com/tsheringp/pharmstock-backend/pkg/redis"
)

// Deps carries everything the router needs to build the handler tree.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      db.Pinger
	Redis   redis.Pinger
	Metrics *metrics.APIMetrics

	AuthService       authsvc.Service
	DrugService       drugs.Service
	TaxonomyService   taxonomy.Service
	DispensingService dispensing.Service
	OrderService      orders.Service
	ChatbotService    chatbot.Service

	PromRegistry *prometheus.Registry
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.Metrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})

	if d.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.Login(d.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		inventoryRoles := middleware.RequireAnyRole(logg,
			string(enums.UserRoleInstitute),
			string(enums.UserRolePharmacy),
			string(enums.UserRoleAdmin),
		)

		r.Route("/drugs", func(r chi.Router) {
			r.Use(inventoryRoles)
			r.Get("/", controllers.ListDrugs(d.DrugService, logg))
			r.Post("/", controllers.CreateDrug(d.DrugService, logg))
			r.Post("/import", controllers.ImportDrugsCSV(d.DrugService, logg))
			r.Get("/export", controllers.ExportDrugsCSV(d.DrugService, logg))
			r.Get("/{drugId}", controllers.GetDrug(d.DrugService, logg))
			r.Put("/{drugId}", controllers.UpdateDrug(d.DrugService, logg))
			r.Delete("/{drugId}", controllers.DeleteDrug(d.DrugService, logg))
		})

		r.Route("/drug-types", func(r chi.Router) {
			r.Get("/", controllers.ListDrugTypes(d.TaxonomyService, logg))
			r.Get("/{typeId}/names", controllers.ListDrugNames(d.TaxonomyService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
				r.Post("/", controllers.CreateDrugType(d.TaxonomyService, logg))
				r.Delete("/{typeId}", controllers.DeleteDrugType(d.TaxonomyService, logg))
				r.Post("/names", controllers.AddDrugName(d.TaxonomyService, logg))
				r.Delete("/names/{nameId}", controllers.DeleteDrugName(d.TaxonomyService, logg))
				r.Post("/import", controllers.ImportTaxonomyCSV(d.TaxonomyService, logg))
			})
		})

		r.Route("/daily-dispensing", func(r chi.Router) {
			r.Use(inventoryRoles)
			r.Post("/", controllers.RecordDispensing(d.DispensingService, logg))
			r.Get("/", controllers.ListDispensing(d.DispensingService, logg))
			r.Get("/today", controllers.ListTodayDispensing(d.DispensingService, logg))
			r.Get("/summary", controllers.DispensingSummary(d.DispensingService, logg))
			r.Post("/importcsv", controllers.ImportDispensingCSV(d.DispensingService, logg))
			r.Delete("/{recordId}", controllers.DeleteDispensing(d.DispensingService, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleSeller), logg))
			r.Get("/orders", controllers.SellerListOrders(d.OrderService, logg))
			r.Patch("/order-items/{itemId}/status", controllers.SellerUpdateOrderItem(d.OrderService, logg))
			r.Patch("/orders/{orderId}/approve-all", controllers.SellerApproveAllItems(d.OrderService, logg))
		})

		r.Post("/chatbot", controllers.ChatbotAsk(d.ChatbotService, logg))
	})

	return r
}
