package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/core/cache"
	"gin-todo-lists/internal/core/config"
	"gin-todo-lists/internal/core/database"
	"gin-todo-lists/internal/core/logger"
	"gin-todo-lists/internal/core/server"
	"gin-todo-lists/internal/domain"
	"gin-todo-lists/internal/repo"
	"gin-todo-lists/internal/service"
	mdw "gin-todo-lists/internal/transport/http/middleware"
	"gin-todo-lists/internal/transport/http/router"
	"gin-todo-lists/internal/web"
)

const profileCacheTTL = 10 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))

	log, cleanup := newLogger(cfg)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))

	if cfg.DB.AutoMigrate {
		if err := migrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.Session.Secret),
		Issuer: cfg.Session.Issuer,
		TTL:    time.Duration(cfg.Session.AccessTokenTTLMin) * time.Minute,
	}

	// 会话存储：memory 单实例；redis 可多实例共享，同时给 profile 加缓存
	var (
		reg      auth.Registry            = auth.NewMemoryRegistry()
		profiles domain.ProfileRepository = repo.NewProfileRepo(db)
	)
	if cfg.Session.Store == "redis" {
		rc := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rc.Prefix = cfg.App.Name + ":"
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(ctx)
		cancel()
		if err != nil {
			log.Fatal("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer func() { _ = rc.Close() }()
		reg = auth.NewRedisRegistry(rc)
		profiles = repo.NewCachedProfileRepo(profiles, rc, profileCacheTTL)
		log.Info("redis session store enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var opts []auth.Option
	if g := cfg.OAuth.Google; g.Enabled() {
		opts = append(opts, auth.WithProvider(auth.NewGoogleProvider(auth.GoogleOpts{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  strings.TrimSuffix(cfg.App.BaseURL, "/") + mdw.PathCallback,
			AuthURL:      g.AuthURL,
			TokenURL:     g.TokenURL,
			UserInfoURL:  g.UserInfoURL,
		})))
		log.Info("oauth provider enabled", zap.String("provider", auth.ProviderGoogle))
	}
	authSvc := auth.NewService(db, jwter, reg, log, opts...)

	tmpl, err := web.Templates()
	if err != nil {
		log.Fatal("parse templates", zap.Error(err))
	}

	r := router.NewAPIEngine(router.Deps{
		Log:       log,
		Auth:      authSvc,
		Profiles:  profiles,
		Store:     service.NewStore(repo.NewListRepo(db), repo.NewItemRepo(db), log),
		Templates: tmpl,
		Cookie: mdw.CookieOpts{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
			MaxAge: jwter.TTL,
		},
		Manager:        service.ManagerOpts{RollbackOnProfileFailure: cfg.Registration.RollbackOnProfileFailure},
		Mode:           server.ModeFor(cfg.App.Env),
		Origins:        []string{strings.TrimSuffix(cfg.App.BaseURL, "/")},
		RequestTimeout: time.Duration(cfg.App.HTTP.RequestTimeoutSec) * time.Second,
		MaxBodyBytes:   cfg.App.HTTP.MaxBodyBytes,
		MaxConcurrent:  cfg.App.HTTP.MaxConcurrent,
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	log.Info("todo app starting",
		zap.String("addr", addr),
		zap.String("open", cfg.App.BaseURL),
		zap.String("health", cfg.App.BaseURL+"/health"),
		zap.String("api_v1", cfg.App.BaseURL+"/api/v1"),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("todo app start FAILED", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("todo app stopped gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, func()) {
	f := cfg.Log.File
	if !f.Enable {
		return logger.New(cfg.Log.Level, cfg.Log.JSON)
	}
	return logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, logger.FileRotate{
		Filename:   f.Filename,
		MaxSizeMB:  f.MaxSizeMB,
		MaxBackups: f.MaxBackups,
		MaxAgeDays: f.MaxAgeDays,
		Compress:   f.Compress,
	})
}

func migrate(db *gorm.DB) error {
	if err := auth.AutoMigrate(db); err != nil {
		return err
	}
	return repo.AutoMigrate(db)
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		LogWriter:          logger.ToWriter(l.Named("gorm"), zapcore.WarnLevel),
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
