package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tacklebase.app/internal/approval"
	"tacklebase.app/internal/auth"
	"tacklebase.app/internal/config"
	"tacklebase.app/internal/httpapi"
	"tacklebase.app/internal/inventory"
	"tacklebase.app/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	log.SetFlags(0)
	configPath := flag.String("config", os.Getenv("TB_CONFIG"), "path to YAML config file")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			log.Printf("config: %v", err)
		}
		os.Exit(1)
	}

	// Stores: PostgreSQL when a DSN is configured, in-memory otherwise
	// (local development and demos).
	var (
		db        *sql.DB
		workers   auth.WorkerStore
		products  inventory.Store
		approvals approval.Store
	)
	if cfg.DatabaseDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		workers = auth.NewPGStore(db)
		products = inventory.NewPGStore(db)
		approvals = approval.NewPGStore(db)
	} else {
		if cfg.IsProduction() {
			log.Fatal("database DSN is required in production")
		}
		log.Println("no database DSN configured, using in-memory stores")
		workers = auth.NewMemoryStore()
		products = inventory.NewMemoryStore()
		approvals = approval.NewMemoryStore()
	}

	issuer, err := auth.NewIssuer(cfg.WorkerTokenSecret, auth.WithSessionTTL(cfg.WorkerTokenTTL))
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	verifier, err := auth.NewAdminVerifier(cfg.AdminTokenSecret, cfg.AdminIssuer)
	if err != nil {
		log.Fatalf("admin verifier: %v", err)
	}
	authSvc := auth.NewService(workers, issuer, verifier,
		auth.WithRateLimiter(auth.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst)))

	workflow := approval.NewService(approvals)
	workflow.RegisterApplier(inventory.MutationKeyStockAdjust, inventory.NewStockApplier(products))

	probe := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(probe, version, authSvc, workflow, products)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, httpapi.NewGRPCHealthServer(probe))

	log.Printf("Starting tacklebase-api %s on %s (env=%s)", version, srv.Addr, cfg.Env)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
