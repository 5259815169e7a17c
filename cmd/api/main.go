package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinterp "github.com/bryanwahyu/pawspeak/internal/application/interpretation"
	"github.com/bryanwahyu/pawspeak/internal/config"
	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
	"github.com/bryanwahyu/pawspeak/internal/infra/ai/openai"
	"github.com/bryanwahyu/pawspeak/internal/infra/ai/prompt"
	"github.com/bryanwahyu/pawspeak/internal/infra/ai/retry"
	"github.com/bryanwahyu/pawspeak/internal/infra/httpserver"
	"github.com/bryanwahyu/pawspeak/internal/infra/imaging"
	minioStore "github.com/bryanwahyu/pawspeak/internal/infra/storage"
	"github.com/bryanwahyu/pawspeak/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Model.APIKey == "" {
		log.Printf("warning: model.api_key is empty, upstream calls will fail unless the endpoint needs no key")
	}

	ctx := context.Background()

	// model client + retry
	model := openai.NewClient(openai.Config{
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Model,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
		Timeout:     cfg.Model.Timeout,
	})
	client := retry.NewClient(model, retry.Policy{
		MaxAttempts: cfg.Model.MaxAttempts,
		BaseDelay:   cfg.Model.BaseDelay,
		MaxDelay:    cfg.Model.MaxDelay,
	})
	client.OnRetry = middleware.IncrementRetries

	policy, err := interpretation.ParseConfidencePolicy(cfg.Interpreter.ConfidencePolicy)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	svc := appinterp.NewService(
		client,
		imaging.NewPreparer(cfg.Image.MaxDimension, cfg.Image.MaxPixels),
		prompt.Builder{},
		interpretation.NewParser(policy),
	)

	checkers := map[string]middleware.HealthChecker{"model": model}

	// init minio (optional)
	var images interpretation.ImageSource
	if cfg.MinioEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			cfg.Server.MaxUploadBytes,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		images = store
		checkers["storage"] = store
	}

	handler := httpserver.NewRouter(svc, images, httpserver.Options{
		Source:            "openai:" + model.Model(),
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		Disclaimer:        cfg.DisclaimerEnabled(),
		Variants:          prompt.Variants(),
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		RateLimitCapacity: cfg.RateLimit.Capacity,
		RateLimitRefill:   cfg.RateLimit.RefillPerSecond,
		Checkers:          checkers,
	})

	addr := cfg.Addr()
	// write timeout covers every retry of a slow model
	writeTimeout := time.Duration(cfg.Model.MaxAttempts)*(cfg.Model.Timeout+cfg.Model.MaxDelay) + 15*time.Second
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s model=%s policy=%s storage=%t", addr, model.Model(), policy, images != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
