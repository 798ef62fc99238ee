package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiftledger-dev/shiftledger/internal/api"
	"github.com/shiftledger-dev/shiftledger/internal/catalog"
	"github.com/shiftledger-dev/shiftledger/internal/engine"
	"github.com/shiftledger-dev/shiftledger/internal/server"
	"github.com/shiftledger-dev/shiftledger/internal/store"
	"github.com/shiftledger-dev/shiftledger/internal/vault"
)

func main() {
	logConfig := zap.NewProductionConfig()
	logger, err := logConfig.Build()
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	dataDir := envOr("SHIFTLEDGER_DATA_DIR", "./data")
	port := envOr("SHIFTLEDGER_PORT", "7101")
	httpPort := envOr("SHIFTLEDGER_HTTP_PORT", "7102")
	storeKind := envOr("SHIFTLEDGER_STORE", "file")
	useTLS := os.Getenv("SHIFTLEDGER_DISABLE_TLS") != "true"

	// 1. Build the section catalog, with any site-specific overlay.
	cat := catalog.Builtin()
	if overlay := os.Getenv("SHIFTLEDGER_CATALOG"); overlay != "" {
		if err := cat.LoadOverlay(overlay); err != nil {
			logger.Fatal("failed to load catalog overlay", zap.String("path", overlay), zap.Error(err))
		}
		logger.Info("catalog overlay loaded", zap.String("path", overlay))
	}

	// 2. Initialize the record store.
	var (
		recordStore store.RecordStore
		memStore    *store.MemStore
		sqlStore    *store.SQLiteStore
	)
	switch storeKind {
	case "sqlite":
		sqlStore, err = store.NewSQLiteStore(dataDir + "/records.db")
		if err != nil {
			logger.Fatal("failed to open sqlite store", zap.Error(err))
		}
		recordStore = sqlStore
	case "file":
		persister, err := store.NewPersistence(dataDir)
		if err != nil {
			logger.Fatal("failed to initialize persistence", zap.Error(err))
		}
		initialData, err := persister.LoadAll()
		if err != nil {
			logger.Warn("could not load existing data", zap.Error(err))
		}
		memStore = store.NewMemStore(initialData, persister)
		recordStore = memStore
		logger.Info("engine started", zap.Int("kinds_loaded", len(initialData)))
	default:
		logger.Fatal("unknown SHIFTLEDGER_STORE", zap.String("value", storeKind))
	}

	service := engine.NewService(cat, recordStore, logger)

	// 3. Initialize the TCP router.
	router := server.NewRouter(service, logger)

	if useTLS {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			logger.Fatal("failed to generate TLS certificate", zap.Error(err))
		}
		router.SetCertificate(cert)
		logger.Info("tls encryption enabled")
	} else {
		logger.Info("tls encryption disabled (SHIFTLEDGER_DISABLE_TLS=true)")
	}

	// 4. Initialize the HTTP API.
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS for the form frontends.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &api.Handler{Ledger: service}
	h.Register(r.Group("/api"))

	go func() {
		logger.Info("http api listening", zap.String("port", httpPort))
		if err := r.Run(":" + httpPort); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutdown signal received, finalizing disk writes")
		router.Stop()
		if memStore != nil {
			memStore.Wait()
		}
		if sqlStore != nil {
			sqlStore.Close()
		}
		logger.Info("persistence complete, exiting")
		logger.Sync()
		os.Exit(0)
	}()

	// 6. Start the TCP server.
	logger.Info("tcp protocol starting", zap.String("port", port))
	if err := router.Listen(port); err != nil {
		logger.Fatal("tcp server failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
