package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/vpnbot/internal/api/grpc/router"
	grpcServer "github.com/dtroode/vpnbot/internal/api/grpc/server"
	"github.com/dtroode/vpnbot/internal/bot"
	"github.com/dtroode/vpnbot/internal/config"
	"github.com/dtroode/vpnbot/internal/diagnostics"
	"github.com/dtroode/vpnbot/internal/identity"
	"github.com/dtroode/vpnbot/internal/lock"
	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/metrics"
	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/provisioner"
	"github.com/dtroode/vpnbot/internal/repository/memory"
	"github.com/dtroode/vpnbot/internal/repository/postgres"
	"github.com/dtroode/vpnbot/internal/server"
	"github.com/dtroode/vpnbot/internal/service"
	storage "github.com/dtroode/vpnbot/internal/storage/minio"
	"github.com/dtroode/vpnbot/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const tokenIssuer = "vpnbot"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	deps := make(map[string]model.Pinger)

	var (
		userStore    model.UserStore
		profileStore model.ProfileStore
	)
	if cfg.Database.DSN != "" {
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer db.Close()

		userStore = postgres.NewUserRepository(db.DB)
		profileStore = postgres.NewProfileRepository(db.DB)
		deps["database"] = db
	} else {
		logger.Warn("DATABASE_DSN is empty, profiles are kept in memory")
		userStore = memory.NewUserRepository()
		profileStore = memory.NewProfileRepository()
	}

	var locker model.Locker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		redisLock := lock.NewRedis(rdb, cfg.Redis.LockTTL, logger)
		locker = redisLock
		deps["redis"] = redisLock
	} else {
		locker = lock.NewKeyed()
	}

	var archive service.Archiver
	if cfg.Storage.Enabled {
		store, err := storage.Dial(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("failed to initialize storage client", "error", err)
		}
		archive = diagnostics.NewArchive(store)
		deps["storage"] = store
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	syncMetrics := metrics.NewSync(registry)

	provOpts := provisioner.Options{
		URL:              cfg.Provision.URL,
		Token:            cfg.Provision.Token,
		Timeout:          cfg.Provision.Timeout,
		MaxResponseBytes: cfg.Provision.MaxResponseBytes,
		Logger:           logger,
	}
	if cfg.Provision.JWTSecret != "" {
		provOpts.Issuer = token.NewJWT(cfg.Provision.JWTSecret, tokenIssuer, token.DefaultTTL)
	}
	prov := provisioner.New(provOpts)
	if !prov.Configured() {
		logger.Warn("VLESS_PROVISION_URL is empty, profiles will not be confirmed remotely")
	}

	// Validate already rejected unknown values.
	transport, _ := model.ParseTransport(cfg.VLESS.Transport)
	security, _ := model.ParseSecurity(cfg.VLESS.Security)
	deriver := identity.NewDeriver(identity.Defaults{
		NamespaceSeed: cfg.VLESS.UUIDNamespace,
		LabelTemplate: cfg.VLESS.LabelTemplate,
		Server:        cfg.VLESS.Host,
		Port:          cfg.VLESS.Port,
		Transport:     transport,
		Security:      security,
		Flow:          cfg.VLESS.Flow,
		SNI:           cfg.VLESS.ServerName(),
		Path:          cfg.VLESS.WSPath,
	})

	profileSync := service.NewProfileSync(profileStore, prov, deriver, locker, archive, syncMetrics, logger)
	users := service.NewUsers(userStore, logger)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("failed to connect to Telegram", "error", err)
	}
	api.Debug = cfg.Telegram.Debug
	logger.Info("authorized on Telegram", "account", api.Self.UserName)

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	servers := []model.Server{
		registerGRPCServer(logger, deps, fmt.Sprintf(":%s", cfg.GRPC.Port)),
		metrics.NewHTTPServer(registry, cfg.Metrics.Addr),
	}

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
			}
		}(s)
	}

	logAppVersion()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.UpdateTimeout
	updates := api.GetUpdatesChan(u)

	handler := bot.NewHandler(api, users, profileSync, cfg.VLESS.ALPN, logger)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := handler.Run(ctx, updates); err != nil {
			logger.Error("bot stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	api.StopReceivingUpdates()
	<-botDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func registerGRPCServer(
	logger *logger.Logger,
	deps map[string]model.Pinger,
	addr string,
) *grpcServer.GRPCServer {
	r := router.New(deps, logger)
	return grpcServer.NewGRPCServer(r.Register(), addr)
}
