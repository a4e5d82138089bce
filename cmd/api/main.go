package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"omnihub/api/internal/app"
	"omnihub/api/internal/assist"
	"omnihub/api/internal/auth"
	"omnihub/api/internal/authpw"
	"omnihub/api/internal/config"
	"omnihub/api/internal/docstore"
	"omnihub/api/internal/email"
	"omnihub/api/internal/realtime"
	"omnihub/api/internal/search"
	"omnihub/api/internal/session"
	"omnihub/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessions.Close()

	hub := realtime.NewHub()
	go hub.Run()
	bridge := realtime.NewBridge(sessions.Client(), hub)
	go bridge.Run(ctx)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var docs docstore.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := docstore.NewMinioStore(ctx, docstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		docs = minioStore
	} else {
		log.Printf("MINIO_ENDPOINT not set; document uploads disabled")
	}

	var assistClient *assist.Client
	if strings.TrimSpace(cfg.AssistAPIURL) != "" {
		assistClient = assist.NewClient(cfg.AssistAPIURL, cfg.AssistAPIKey, cfg.AssistModel)
	}

	mail := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	service := app.New(cfg, dataStore, sessions, app.Options{
		Auth:        authpw.NewService(dataStore),
		Broadcaster: bridge,
		Mail:        mail,
		Docs:        docs,
		Search:      searchService,
		Assist:      assistClient,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", realtime.Handler(hub, func(token string) (auth.Claims, error) {
		return auth.ParseToken([]byte(cfg.TokenSecret), token)
	}))
	mux.Handle("/", httpServer.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("OmniHub API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
