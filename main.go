package main

import (
	"context"
	"log"

	"apply-platform/internal"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, _ := cfg.Build()
	return logger
}

func main() {
	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	var store internal.Store
	if cfg.DatabaseURL != "" {
		db := internal.MustDB(cfg.DatabaseURL, logger)
		defer db.Close()
		pg, err := internal.NewPGStore(context.Background(), db)
		if err != nil {
			logger.Fatal("init applications table", zap.Error(err))
		}
		store = pg
		logger.Info("using postgres application store")
	} else {
		store = internal.NewMemStore()
		logger.Warn("using in-memory application store, records are lost on restart")
	}

	oauth := internal.NewOAuthClient(cfg.ClientID, cfg.ClientSecret, cfg.FrontendURL, logger)
	notifier := internal.NewNotifier(logger)
	defer notifier.Wait()

	r := gin.New()
	r.Use(gin.Recovery(), internal.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	internal.Routes(r, store, oauth, notifier)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("listening", zap.String("port", cfg.Port), zap.String("version", internal.Version))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
