package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	migrations "github.com/lumenhq/lumen/db"
	"github.com/lumenhq/lumen/internal/attachment"
	"github.com/lumenhq/lumen/internal/chat"
	"github.com/lumenhq/lumen/internal/cleanup"
	"github.com/lumenhq/lumen/internal/config"
	"github.com/lumenhq/lumen/internal/db"
	"github.com/lumenhq/lumen/internal/handlers"
	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/logger"
	"github.com/lumenhq/lumen/internal/router"
	"github.com/lumenhq/lumen/internal/server"
	"github.com/lumenhq/lumen/internal/storage"
	"github.com/lumenhq/lumen/internal/stream"
	"github.com/lumenhq/lumen/internal/upload"
	"github.com/lumenhq/lumen/internal/upstream"
	"github.com/lumenhq/lumen/internal/variant"
	"github.com/lumenhq/lumen/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:     "lumen",
		Short:   "Lumen multimodal chat backend",
		Version: version.GetInfo(),
	}
	root.AddCommand(serveCmd(), migrateCmd())
	root.RunE = serveCmd().RunE

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runApp()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := provideConfig()
			if err != nil {
				return err
			}
			log := provideLogger(cfg)
			fsys, err := migrations.MigrationsFS()
			if err != nil {
				return fmt.Errorf("migrations fs: %w", err)
			}
			return db.RunMigrate(log, cfg.Postgres, fsys, args[0])
		},
	}
}

func runApp() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideUpstreamClient,
			provideStorageProvider,
			provideUploadService,
			provideRouter,
			provideMultiplexer,
			provideOrchestrator,

			attachment.NewResolver,
			history.NewService,
			provideCompactor,
			provideCleanupReactor,
			stream.NewSupervisor,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewModelsHandler),
			provideServerHandler(handlers.NewChatHandler),
			provideServerHandler(handlers.NewConversationsHandler),
			provideServerHandler(provideFilesHandler),

			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideUpstreamClient(log *slog.Logger, cfg config.Config) (*upstream.Client, error) {
	return upstream.NewClient(context.Background(), log, cfg.Gemini)
}

func provideStorageProvider(cfg config.Config) (storage.Provider, error) {
	return storage.NewLocalProvider(cfg.Storage.Root, cfg.Storage.BaseURL)
}

func provideUploadService(log *slog.Logger, provider storage.Provider, client *upstream.Client) *upload.Service {
	return upload.NewService(log, provider, client)
}

func provideRouter(log *slog.Logger, client *upstream.Client) *router.Router {
	return router.NewRouter(log, client)
}

func provideCompactor(log *slog.Logger, provider storage.Provider) *history.Compactor {
	return history.NewCompactor(log, provider)
}

func provideCleanupReactor(log *slog.Logger, hist *history.Service, provider storage.Provider) *cleanup.Reactor {
	return cleanup.NewReactor(log, hist, provider)
}

func provideMultiplexer(log *slog.Logger, client *upstream.Client, uploader *upload.Service) *stream.Multiplexer {
	return stream.NewMultiplexer(log, client, uploader)
}

func provideOrchestrator(
	log *slog.Logger,
	rt *router.Router,
	resolver *attachment.Resolver,
	compactor *history.Compactor,
	supervisor *stream.Supervisor,
	client *upstream.Client,
	hist *history.Service,
) *chat.Orchestrator {
	return chat.NewOrchestrator(log, rt, resolver, compactor, supervisor, client, hist)
}

func provideFilesHandler(log *slog.Logger, uploader *upload.Service, provider storage.Provider) *handlers.FilesHandler {
	return handlers.NewFilesHandler(log, uploader, provider)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	fmt.Printf("Starting Lumen %s\n", version.GetInfo())
	logger.Info("variants available", slog.Int("count", len(variant.All())))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
