// Command server boots the delta-sync engine: loads configuration from the
// environment, wires the tenant store manager, version oracle, notification
// bus, and write pipeline together, registers HTTP routes, and serves until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"deltasync/api"
	"deltasync/common"
	"deltasync/config"
	"deltasync/http"
	"deltasync/notifybus"
	"deltasync/oracle"
	"deltasync/pipeline"
	"deltasync/security"
	"deltasync/tenant"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		common.Logger.WithError(err).Fatal("invalid configuration")
	}

	log := common.NewLogger(common.LoggerConfig{
		Level:   common.LogLevel(cfg.Service.LogLevel),
		Format:  cfg.Service.LogFormat,
		Service: cfg.Service.Name,
		Version: cfg.Service.Version,
	})

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Coordination.Addr})
	defer redisClient.Close()

	vo := oracle.NewWithClient(redisClient)
	defer vo.Close()

	stores := tenant.New(tenant.Config{
		DataDir:     cfg.TenantStore.DataDir,
		CacheSize:   cfg.TenantStore.CacheSize,
		BusyTimeout: int(cfg.TenantStore.BusyTimeout / time.Millisecond),
	}, log)
	defer stores.CloseAll()

	bus := notifybus.New(redisClient, cfg.Stream.QueueDepth, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)
	defer bus.Stop()

	pipe := pipeline.New(stores, vo, bus, log)
	jwtService := security.NewJWTService(cfg.Auth.JWTSecret)

	handlers := api.NewHandlers(jwtService, stores, bus, pipe)
	handlers.Auth.TokenTTL = cfg.Auth.JWTExpiry

	serverConfig := http.DefaultServerConfig()
	serverConfig.Port = cfg.Server.Port
	serverConfig.Debug = cfg.Server.Debug
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	serverConfig.AllowedOrigins = cfg.CORS.AllowedOrigins

	e := http.NewEchoServer(serverConfig, log)
	api.SetupRoutes(e, handlers, []byte(cfg.Auth.JWTSecret))

	e.GET("/healthz", http.HealthCheckHandlerWithDetails(cfg.Service.Name, cfg.Service.Version, func() map[string]interface{} {
		details := map[string]interface{}{
			"tenant_stores_open": stores.Len(),
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.TenantStore.BusyTimeout)
		defer pingCancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			details["coordination"] = "unreachable"
		} else {
			details["coordination"] = "ok"
		}
		return details
	}))

	go func() {
		if err := http.StartServer(e, serverConfig, log); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := http.GracefulShutdown(e, serverConfig.ShutdownTimeout, log); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
}
