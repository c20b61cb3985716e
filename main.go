package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/corrigefolio/backend/src/config"
	"github.com/username/corrigefolio/backend/src/database"
	"github.com/username/corrigefolio/backend/src/handlers"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/parsers"
	"github.com/username/corrigefolio/backend/src/processors"
	"github.com/username/corrigefolio/backend/src/security"
	"github.com/username/corrigefolio/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == config.Cfg.AllowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag, Content-Disposition")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Corrigefolio backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing caches...")
	reportCache := cache.New(config.Cfg.ReportCacheTTL, 2*config.Cfg.ReportCacheTTL)
	observationCache := cache.New(cache.NoExpiration, 0)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	operatorPasswordHash, err := authService.HashPassword(config.Cfg.OperatorPassword)
	if err != nil {
		logger.L.Error("Failed to hash operator password", "error", err)
		os.Exit(1)
	}
	authHandler := handlers.NewAuthHandler(authService, operatorPasswordHash)

	sgsClient := services.NewSGSClient(config.Cfg.SGSBaseURL, config.Cfg.SGSTimeout, config.Cfg.SGSMinInterval)
	indexService := services.NewIndexService(sgsClient, observationCache)
	correctionProcessor := processors.NewCorrectionProcessor(indexService)

	statementParser := parsers.NewStatementParser()
	statementService := services.NewStatementService(statementParser, correctionProcessor, reportCache)
	exportService := services.NewExportService()

	statementHandler := handlers.NewStatementHandler(statementService)
	correctionHandler := handlers.NewCorrectionHandler(statementService, correctionProcessor)
	indexHandler := handlers.NewIndexHandler(indexService, statementService)
	exportHandler := handlers.NewExportHandler(statementService, exportService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/login", authHandler.HandleLogin)

	// Read routes are public; everything that writes goes through the
	// operator token.
	apiRouter.HandleFunc("GET /api/indices", indexHandler.HandleGetIndices)
	apiRouter.HandleFunc("GET /api/indices/{name}/observations", indexHandler.HandleGetObservations)
	apiRouter.HandleFunc("GET /api/documents", statementHandler.HandleGetDocuments)
	apiRouter.HandleFunc("GET /api/documents/{id}", statementHandler.HandleGetDocument)
	apiRouter.HandleFunc("GET /api/documents/{id}/export", exportHandler.HandleExport)

	applyAuth := func(handler http.HandlerFunc) http.Handler {
		return authHandler.AuthMiddleware(handler)
	}

	apiRouter.Handle("POST /api/statements", applyAuth(statementHandler.HandleUpload))
	apiRouter.Handle("POST /api/correction", applyAuth(correctionHandler.HandleSingleCorrection))
	apiRouter.Handle("POST /api/documents/{id}/correction", applyAuth(correctionHandler.HandleDocumentCorrection))
	apiRouter.Handle("DELETE /api/indices/cache", applyAuth(indexHandler.HandleClearCache))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "CORRIGEFOLIO Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
