package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/priyav/docshare/internal/auth"
	"github.com/priyav/docshare/internal/chunker"
	"github.com/priyav/docshare/internal/config"
	"github.com/priyav/docshare/internal/handlers"
	"github.com/priyav/docshare/internal/models"
	"github.com/priyav/docshare/internal/storage"
	"github.com/priyav/docshare/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	log.Println("Starting DocShare service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s", cfg.ServiceName, cfg.ServicePort)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize MinIO client
	log.Println("Connecting to MinIO...")
	minioClient, err := storage.NewMinioClient(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucketName,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO client: %v", err)
	}
	log.Println("MinIO client initialized")

	// Initialize MySQL client
	log.Println("Connecting to MySQL...")
	mysqlClient, err := storage.NewMySQLClient(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to initialize MySQL client: %v", err)
	}
	defer mysqlClient.Close()
	log.Println("MySQL client initialized")

	// Initialize Redis client
	log.Println("Connecting to Redis...")
	redisClient, err := storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis client initialized")

	// Provision the two fixed identities
	opsIdentity, err := auth.ProvisionIdentity(cfg.OpsUsername, cfg.OpsPassword, cfg.OpsPasswordHash, models.RoleOps)
	if err != nil {
		log.Fatalf("Failed to provision ops user: %v", err)
	}
	clientIdentity, err := auth.ProvisionIdentity(cfg.ClientUsername, cfg.ClientPassword, cfg.ClientPasswordHash, models.RoleClient)
	if err != nil {
		log.Fatalf("Failed to provision client user: %v", err)
	}
	credStore := auth.NewStaticStore(opsIdentity, clientIdentity)

	// Token machinery: one secret, two token namespaces
	tokens := auth.NewTokens([]byte(cfg.SecretKey), cfg.SessionTTL, cfg.GrantTTL, cfg.GrantSingleUse)
	authenticator := auth.NewAuthenticator(credStore, tokens)

	// Initialize chunker
	chunkerInstance := chunker.NewChunker(cfg.GetChunkSizeBytes())

	// Initialize handlers
	loginHandler := handlers.NewLoginHandler(authenticator)
	uploadHandler := handlers.NewUploadHandler(minioClient, mysqlClient, redisClient, chunkerInstance, cfg)
	listHandler := handlers.NewListHandler(mysqlClient)
	linkHandler := handlers.NewLinkHandler(tokens, mysqlClient, redisClient)
	downloadHandler := handlers.NewDownloadHandler(tokens, redisClient, minioClient, mysqlClient, redisClient)

	// Setup HTTP router
	router := mux.NewRouter()

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	requireOps := handlers.RequireRole(authenticator, models.RoleOps)
	requireClient := handlers.RequireRole(authenticator, models.RoleClient)
	requireAny := handlers.RequireRole(authenticator, "")

	router.Handle("/token",
		otelhttp.NewHandler(loginHandler, "POST /token")).Methods("POST")
	router.Handle("/me",
		otelhttp.NewHandler(requireAny(&handlers.MeHandler{}), "GET /me")).Methods("GET")
	router.Handle("/ops/upload",
		otelhttp.NewHandler(requireOps(uploadHandler), "POST /ops/upload")).Methods("POST")
	router.Handle("/client/files",
		otelhttp.NewHandler(requireClient(listHandler), "GET /client/files")).Methods("GET")
	router.Handle("/client/download/{file_id}",
		otelhttp.NewHandler(requireClient(linkHandler), "GET /client/download/{file_id}")).Methods("GET")
	router.Handle("/download-file/{token}",
		otelhttp.NewHandler(downloadHandler, "GET /download-file/{token}")).Methods("GET")

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
