package main // Entry point package

import (
	"context"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ration-connect/internal/config"
	"github.com/iliyamo/ration-connect/internal/database"
	"github.com/iliyamo/ration-connect/internal/handler"
	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/middleware"
	"github.com/iliyamo/ration-connect/internal/queue"
	"github.com/iliyamo/ration-connect/internal/ratelimit"
	"github.com/iliyamo/ration-connect/internal/repository"
	"github.com/iliyamo/ration-connect/internal/router"
	"github.com/iliyamo/ration-connect/internal/service"
	"github.com/iliyamo/ration-connect/internal/sms"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		stdlog.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	log, logCloser, err := logger.Setup(cfg.Env, cfg.LogPath)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer logCloser.Close()

	otpCfg, err := config.LoadOTPConfig(cfg.Env)
	if err != nil {
		fatal(log, "otp config", err)
	}
	smsCfg, err := config.LoadSMSConfig(cfg.Env)
	if err != nil {
		fatal(log, "sms config", err)
	}
	rlCfg := config.LoadRateLimitConfig()
	loc, _ := cfg.Location() // validated by config.Load

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		fatal(log, "database", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		fatal(log, "schema", err)
	}

	var scripter redis.Scripter
	if rdb := config.NewRedisClient(); rdb != nil {
		scripter = rdb
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable, rate limiting disabled")
	}

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.RabbitURL, log)
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, "", log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", logger.Err(err))
			}
		}()
	}

	otpRepo := repository.NewOTPRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	quotaRepo := repository.NewQuotaRepo(db)

	sessions := service.SessionIssuer{Secret: cfg.JWTSecret, TTL: cfg.SessionTTL()}
	sendLimiter := ratelimit.NewOTPSendLimiter(scripter, rlCfg.Prefix+":otp", otpCfg.SendCooldown, otpCfg.SendWindow, otpCfg.SendMax)

	otpSvc := service.NewOTPService(otpRepo, profileRepo, roleRepo, sms.New(smsCfg, log), sendLimiter, sessions, otpCfg, log)
	regSvc := service.NewRegistrationService(profileRepo, roleRepo, events, sessions, log)
	profSvc := service.NewProfileService(profileRepo, roleRepo, log)
	quotaSvc := service.NewQuotaService(profileRepo, quotaRepo, events, loc, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(requestLogger(log))

	h := router.Handlers{
		Health:       handler.Health(db),
		OTP:          handler.NewOTPHandler(otpSvc),
		Registration: handler.NewRegistrationHandler(regSvc),
		Profile:      handler.NewProfileHandler(profSvc),
		Quota:        handler.NewQuotaHandler(quotaSvc),
	}
	limit := middleware.NewTokenBucket(rlCfg, scripter, log)
	router.RegisterRoutes(e, h)
	router.RegisterOTP(e, h, limit)
	router.RegisterV1(e, h, cfg.JWTSecret, limit)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env), slog.String("quota_tz", loc.String()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", logger.Err(err))
	}
	log.Info("stopped")
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	log = log.With(logger.Module("http"))
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, logger.Err(v.Error))
				log.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	})
}

func fatal(log *slog.Logger, what string, err error) {
	log.Error(what, logger.Err(err))
	os.Exit(1)
}
