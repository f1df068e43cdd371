package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	appanalysis "github.com/carclabs/credit-funnel/internal/application/analysis"
	appleads "github.com/carclabs/credit-funnel/internal/application/leads"
	"github.com/carclabs/credit-funnel/internal/config"
	domleads "github.com/carclabs/credit-funnel/internal/domain/leads"
	aiopenai "github.com/carclabs/credit-funnel/internal/infra/ai/openai"
	mysqlp "github.com/carclabs/credit-funnel/internal/infra/db/mysql"
	postgresp "github.com/carclabs/credit-funnel/internal/infra/db/postgres"
	"github.com/carclabs/credit-funnel/internal/infra/httpserver"
	"github.com/carclabs/credit-funnel/internal/infra/mail"
	minioStore "github.com/carclabs/credit-funnel/internal/infra/storage"
	"github.com/carclabs/credit-funnel/internal/middleware"
)

func main() {
	// .env optional, untuk dev lokal
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect DB sesuai driver
	var (
		db   *sql.DB
		repo domleads.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewLeadRepository(db)
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewLeadRepository(db)
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.EbookKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init mail sender
	var sender appleads.EbookSender
	if cfg.Mail.Host != "" {
		sender = mail.NewEmailSender(
			cfg.Mail.Host,
			cfg.Mail.Port,
			cfg.Mail.User,
			cfg.Mail.Password,
			cfg.Mail.From,
			store,
		)
	}

	// init services
	leadsSvc := &appleads.Service{
		Repo:  repo,
		Mail:  sender,
		Clock: appleads.SystemClock{},
	}
	analysisSvc := &appanalysis.Service{
		Client: aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.Model),
		Leads:  leadsSvc,
		Clock:  appleads.SystemClock{},
	}

	// origin allow-list
	origins, err := middleware.NewOriginPolicy(cfg.Security.AllowedOrigins, cfg.Security.OriginPatterns)
	if err != nil {
		log.Fatalf("origin policy error: %v", err)
	}

	limits := httpserver.Limits{
		MaxRequestBytes: cfg.Security.MaxRequestBytes,
		MaxFileBytes:    cfg.Security.MaxFileBytes,
		RateLimitMax:    cfg.Security.RateLimit.Max,
		RateLimitWindow: time.Duration(cfg.Security.RateLimit.WindowMinutes) * time.Minute,
	}

	// init router; rate limiter kasar di depan sebagai backstop
	mux := chi.NewRouter()
	mux.Use(middleware.RateLimitMiddleware(100, 10))
	mux.Mount("/", httpserver.NewRouter(leadsSvc, analysisSvc, origins, store, limits))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: analysis responses stream for minutes
		IdleTimeout: 60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
