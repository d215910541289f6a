// Package app 两个入口共用的依赖组装
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"instantclip/internal/core/auth"
	"instantclip/internal/core/cache"
	"instantclip/internal/core/config"
	"instantclip/internal/core/database"
	"instantclip/internal/core/logger"
	"instantclip/internal/core/mail"
	"instantclip/internal/repo"
	"instantclip/internal/service"
	"instantclip/internal/transport/http/router"
)

type App struct {
	Cfg   *config.Config
	Log   *zap.Logger
	DB    *gorm.DB
	Cache *cache.Cache // redis.addr 为空时为 nil

	Auth  *service.AuthService
	Reset *service.ResetService
	Users *service.UserService
}

// Build 打开 DB / redis 并组装 service；返回的 cleanup 负责关闭连接
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, func(), error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		SlowQuery:          time.Duration(cfg.DB.SlowQueryMs) * time.Millisecond,
		Log:                l,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	a := &App{Cfg: cfg, Log: l, DB: db}
	cleanup := func() {
		if a.Cache != nil {
			_ = a.Cache.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	// redis 不可用只告警：会话校验回退到直接读库
	if cfg.Redis.Addr != "" {
		a.Cache = cache.New(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "instantclip:",
		})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := a.Cache.Ping(pctx); err != nil {
			l.Warn("redis unavailable, user cache degraded", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.AccessTokenTTL(),
		Leeway: time.Duration(cfg.JWT.LeewaySec) * time.Second,
		Now:    func() time.Time { return time.Now().UTC() },
	}
	hasher := auth.NewHasher(cfg.Security.BcryptCost, cfg.Security.HashWorkers)
	users := repo.NewUserRepo(db)
	uc := service.NewUserCache(a.Cache, time.Duration(cfg.Redis.UserTTLSec)*time.Second, l)

	a.Auth = service.NewAuthService(service.AuthDeps{
		Users: users, Hasher: hasher, JWT: jwter, Cache: uc,
		ChangeSkew: cfg.ChangeSkew(), Log: l,
	})
	a.Reset = service.NewResetService(service.ResetDeps{
		Users: users, Hasher: hasher, JWT: jwter, Mailer: NewMailer(cfg, l), Cache: uc,
		TTL: cfg.ResetTokenTTL(), URLBase: cfg.Reset.URLBase, ChangeSkew: cfg.ChangeSkew(), Log: l,
	})
	a.Users = service.NewUserService(users, uc, l)
	return a, cleanup, nil
}

// NewMailer mail.driver = log 时只写日志，不真正发送
func NewMailer(cfg *config.Config, l *zap.Logger) mail.Sender {
	if cfg.Mail.Driver == "smtp" {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			Timeout:  time.Duration(cfg.Mail.TimeoutSec) * time.Second,
		})
	}
	return mail.LogSender{L: l}
}

func (a *App) RouterOptions() router.Options {
	return router.Options{
		Debug:          a.Cfg.IsDevelopment(),
		RequestTimeout: time.Duration(a.Cfg.App.HTTP.WriteTimeoutSec) * time.Second,
	}
}

func LoggerOptions(cfg *config.Config, service string) logger.Options {
	return logger.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		Service:    service,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
}
