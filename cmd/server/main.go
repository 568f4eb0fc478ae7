package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/booking"
	"workshop-agenda/internal/config"
	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/handler"
	"workshop-agenda/internal/jobs"
	"workshop-agenda/internal/logger"
	"workshop-agenda/internal/middleware"
	"workshop-agenda/internal/rpc"
	"workshop-agenda/internal/store"
	"workshop-agenda/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	pool, err := pgxpool.New(ctx, cfg.Database())
	if err != nil {
		lg.Fatal("db", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		lg.Fatal("db ping", zap.Error(err))
	}
	lg.Info("connected to postgres")

	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		lg.Fatal("migrate", zap.Error(err))
	}
	lg.Info("migration applied")

	svc := booking.New(st, cfg.PublicOrigin, lg.Named("booking"))
	hub := feed.NewHub(st, lg.Named("feed"))
	go listen(ctx, st, hub, lg)

	tokens := auth.NewSigner(cfg.JWTSecret)

	// grpc server
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(middleware.Auth(tokens)),
		grpc.ChainStreamInterceptor(middleware.StreamAuth(tokens)),
	)
	h := handler.New(st, svc, hub, tokens, lg.Named("rpc")).Admins(cfg.Admins()...)
	rpc.RegisterAgendaServer(srv, h)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		lg.Fatal("listen", zap.Error(err))
	}
	go func() {
		lg.Info("grpc listening", zap.String("port", cfg.GRPCPort))
		if err := srv.Serve(lis); err != nil {
			lg.Error("grpc", zap.Error(err))
		}
	}()

	// public pages, tickets and the websocket feed
	site := web.New(svc, hub, web.Options{
		Tokens:         tokens,
		Location:       cfg.Location(),
		AllowedOrigins: cfg.Origins(),
	}, lg.Named("web"))
	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           site.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("http listening", zap.String("port", cfg.WebPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http", zap.Error(err))
		}
	}()

	sched := jobs.New(lg.Named("jobs"))
	if err := sched.SweepTokens(cfg.SweepSchedule, st); err != nil {
		lg.Fatal("jobs", zap.Error(err))
	}
	sched.Start()

	// graceful shutdown
	<-ctx.Done()
	lg.Info("shutting down")
	hub.Resync()
	srv.GracefulStop()
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdown); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
}

// listen forwards event notifications to the hub, reconnecting on failure.
func listen(ctx context.Context, st *store.Store, hub *feed.Hub, lg *zap.Logger) {
	wait := time.Second
	for {
		err := st.Listen(ctx, store.EventsChannel, func(n store.Notice) {
			hub.Notify(ctx, n.Op, n.ID)
		})
		if ctx.Err() != nil {
			return
		}
		lg.Warn("event listener stopped, reconnecting", zap.Error(err), zap.Duration("in", wait))
		// notifications sent while disconnected are lost
		hub.Resync()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if wait < 30*time.Second {
			wait *= 2
		}
	}
}
