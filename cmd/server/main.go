package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/haulrate/internal/catalog"
	"github.com/Simplici0/haulrate/internal/config"
	"github.com/Simplici0/haulrate/internal/db"
	"github.com/Simplici0/haulrate/internal/feetemplate"
	"github.com/Simplici0/haulrate/internal/logging"
	"github.com/Simplici0/haulrate/internal/migrations"
	"github.com/Simplici0/haulrate/internal/seed"
	"github.com/Simplici0/haulrate/internal/ticket"
)

type server struct {
	log       *zap.Logger
	policy    ticket.Policy
	catalog   *catalog.Store
	templates *feetemplate.Store
	tickets   *ticket.Builder
}

func newServer(database *sql.DB, policy ticket.Policy, logger *zap.Logger) *server {
	materials := catalog.NewStore(database)
	return &server{
		log:       logger,
		policy:    policy,
		catalog:   materials,
		templates: feetemplate.NewStore(database),
		tickets:   ticket.NewBuilder(materials, policy),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/fee-structures", s.handleFeeStructures)
		r.Get("/materials", s.handleMaterialsList)
		r.Get("/materials/{id}", s.handleMaterialGet)
		r.Post("/charges/unit", s.handleUnitCharge)
		r.Post("/charges/container", s.handleContainerCharge)
		r.Post("/plans/tipping", s.handleTippingPlan)
		r.Get("/fee-templates", s.handleFeeTemplatesList)
		r.Post("/fee-templates", s.handleFeeTemplateCreate)
		r.Put("/fee-templates/{id}", s.handleFeeTemplateUpdate)
		r.Post("/tickets", s.handleTicketBuild)
	})
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer database.Close()

	version, err := migrations.New(cfg.MigrationsDir, logger.Named("migrations")).Up(database)
	if err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}
	logger.Info("database schema ready", zap.Int64("version", version))

	if cfg.IsDev() {
		stats, err := seed.Run(database)
		if err != nil {
			logger.Fatal("failed to seed material catalog", zap.Error(err))
		}
		logger.Info("seeded material catalog", zap.Int("inserts", stats.Inserts))
	}

	policy := ticket.Policy{
		TaxRate:         cfg.TaxRate,
		TippingDiscount: cfg.TippingDiscount,
		CustomerMarkup:  cfg.CustomerMarkup,
	}
	srv := newServer(database, policy, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening",
		zap.String("addr", httpServer.Addr),
		zap.Stringer("tax_rate", cfg.TaxRate),
		zap.Stringer("tipping_discount", cfg.TippingDiscount),
		zap.Stringer("customer_markup", cfg.CustomerMarkup),
	)
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
