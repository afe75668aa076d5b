package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/festival-ticketing/internal/authz"
	"github.com/iliyamo/festival-ticketing/internal/cache"
	"github.com/iliyamo/festival-ticketing/internal/config"
	"github.com/iliyamo/festival-ticketing/internal/database"
	"github.com/iliyamo/festival-ticketing/internal/handler"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/importer"
	"github.com/iliyamo/festival-ticketing/internal/middleware"
	"github.com/iliyamo/festival-ticketing/internal/queue"
	"github.com/iliyamo/festival-ticketing/internal/repository"
	"github.com/iliyamo/festival-ticketing/internal/router"
	"github.com/iliyamo/festival-ticketing/internal/schedule"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDB(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if cfg.Migrate {
		if err := database.Migrate(ctx, db, dialect); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, running without cache and with local rate limits")
	} else {
		defer rdb.Close()
	}

	dir, err := config.LoadDirectory(cfg.RoleDirectory)
	if err != nil {
		log.Fatalf("role directory: %v", err)
	}
	roles, err := identity.NewResolver(dir)
	if err != nil {
		log.Fatalf("role directory: %v", err)
	}
	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		log.Fatalf("token verifier: %v", err)
	}

	cacheCfg := config.LoadCacheConfig()
	store := cache.New(rdb, cacheCfg, logger)
	pub := queue.NewPublisher(cfg.AMQPURL, logger)
	defer pub.Close()

	az := authz.New(roles, repository.NewOwnerRepo(db))
	policy := config.LoadPolicy()
	opts := ticketing.Options{Notifier: pub, Cache: store, Logger: logger}
	ledger := ticketing.NewLedger(db, dialect, az, policy, opts)
	votes := ticketing.NewVoteLedger(db, dialect, roles, policy, opts)
	svc := schedule.NewService(db, az, store, logger)
	im := importer.New(db, roles, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))
	e.Use(middleware.NewRedisCache(cacheCfg, store))

	router.RegisterRoutes(e, db, rdb)
	router.RegisterPublic(e, handler.NewPublicHandler(svc, ledger, store, logger))
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
	router.RegisterUser(e, verifier, limit,
		handler.NewUserHandler(ledger, votes, az, logger),
		handler.NewTicketHandler(ledger, svc, logger),
		handler.NewVoteHandler(votes, logger))
	router.RegisterAdmin(e, verifier, roles, handler.NewAdminHandler(svc, im, store, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info("listening", slog.String("addr", addr), slog.String("db", string(dialect)))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.AMQPURL != "" && cfg.RunConsumer {
		g.Go(func() error {
			err := queue.StartTicketConsumer(gctx, cfg.AMQPURL, cfg.AuditLog, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openDB(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.DBDriver == string(database.SQLite) {
		return database.Open(cfg.DBDriver, "", "", "", "", cfg.SQLitePath)
	}
	return database.Open(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// buildVerifier accepts locally signed tokens when JWT_SECRET is set and
// tokens of every configured OIDC provider.
func buildVerifier(ctx context.Context, cfg config.Config) (identity.Verifier, error) {
	var chain identity.Chain
	if cfg.JWTSecret != "" {
		chain = append(chain, identity.NewHMACVerifier(cfg.JWTSecret))
	}
	if len(cfg.OIDCProviders) > 0 {
		v, err := identity.NewOIDCVerifier(ctx, cfg.OIDCProviders)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	return chain, nil
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
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
				slog.String("remote_ip", v.RemoteIP),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
