package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arith-live-service/internal/app"
	"arith-live-service/internal/config"
	"arith-live-service/internal/infra/memory"
	pgresults "arith-live-service/internal/infra/postgres"
	redissession "arith-live-service/internal/infra/redis"
	"arith-live-service/internal/problems"
	transport "arith-live-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// identityHeader carries the opaque identity of an embedding platform's user.
const identityHeader = "X-Student-Ref"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := migrateResults(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	retention := config.Duration(cfg.Sessions.Retention, app.DefaultRetention)
	sweepInterval := config.Duration(cfg.Sessions.SweepInterval, app.DefaultSweepInterval)

	var store app.SessionRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		store = redissession.NewSessionStore(client, retention)
		logger.Info("join codes reserved in redis", "addr", cfg.Redis.Addr)
	} else {
		store = memory.NewSessionStore()
	}

	var sink app.ResultSink
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sink = pgresults.NewResultSink(pool)
	} else {
		sink = memory.NewResultSink(0)
	}

	service := app.NewLiveService(store, problems.NewGenerator(nil),
		app.WithRetention(retention),
		app.WithResultSink(sink),
		app.WithLogger(logger),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, transport.HeaderIdentity(identityHeader)),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting live session service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return service.RunSweeper(gctx, sweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	service.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
