package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/core/config"
	"gin-todo-lists/internal/core/database"
	"gin-todo-lists/internal/core/logger"
	"gin-todo-lists/internal/repo"
)

// 单独跑迁移，生产环境一般关掉 db.auto_migrate 用这个
func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "config file path")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load(*cfgPath)
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		LogWriter:          logger.ToWriter(log.Named("gorm"), zapcore.InfoLevel),
	})
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}
	log.Info("database connected", zap.String("driver", cfg.DB.Driver), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))

	if err := auth.AutoMigrate(db); err != nil {
		log.Fatal("migrate auth_identities", zap.Error(err))
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal("migrate profiles/lists/items", zap.Error(err))
	}
	log.Info("migrate done")
}
