package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/logger/pkg/logger"
	"github.com/cwrk-planet/messaging-service/config"
	"github.com/cwrk-planet/messaging-service/internal/cache"
	"github.com/cwrk-planet/messaging-service/internal/postgres"
	"github.com/cwrk-planet/messaging-service/internal/service"
	grpcx "github.com/cwrk-planet/messaging-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/messaging-service/internal/transport/http"
	"github.com/cwrk-planet/messaging-service/internal/transport/ws"

	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting messaging-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- redis ---
	listCache, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.CacheTTL())
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer listCache.Close()

	// --- repos ---
	channelRepo := postgres.NewChannelRepository(db.Pool)
	memberRepo := postgres.NewMembershipRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)
	notifRepo := postgres.NewNotificationRepository(db.Pool)
	presenceRepo := postgres.NewPresenceRepository(db.Pool)

	// --- WS Hub ---
	hub := ws.NewHub()
	typing := ws.NewTypingTracker(cfg.TypingTTL())

	// --- services ---
	channelSvc := service.NewChannelService(channelRepo, memberRepo, listCache)
	messageSvc := service.NewMessageService(messageRepo, memberRepo, channelRepo, listCache)
	notifSvc := service.NewNotificationService(notifRepo, hub, listCache)
	presenceSvc := service.NewPresenceService(presenceRepo)

	// --- WS Server ---
	wsServer := ws.NewServer(hub, typing, channelSvc, messageSvc, notifSvc, presenceSvc)
	wsServer.SetPingInterval(cfg.PingInterval())
	wsServer.SetSendBuffer(cfg.WS.SendBuffer)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go wsServer.RunTypingSweeper(sweepCtx)

	// --- HTTP ---
	handler := httpx.NewHandler(channelSvc, messageSvc, notifSvc, presenceSvc, wsServer)
	router := httpx.NewRouter(handler, presenceSvc, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
	)
	grpcSrv := grpcx.NewServer()
	grpcx.Register(grpcServer, grpcSrv)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopSweep()
	grpcSrv.Shutdown(ctxShutdown)
	grpcServer.GracefulStop()
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
