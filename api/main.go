package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/jimiolaniyan/accounts/auth"
	"github.com/jimiolaniyan/accounts/config"
	"github.com/jimiolaniyan/accounts/logs"
)

func main() {
	fx.New(
		fx.Provide(
			config.New,
			logs.New,
			newRepository,
			newHasher,
			auth.NewService,
			auth.NewMetrics,
			newServer,
		),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}

func newHasher(cfg *config.Config) auth.PasswordHasher {
	return auth.NewBcryptHasherWithCost(cfg.Hasher.Cost)
}

func newRepository(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (auth.Repository, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := auth.OpenSQLite(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
		logger.Info("using sqlite storage", slog.String("path", cfg.Storage.SQLite.Path))
		return auth.NewSQLiteRepository(db), nil

	case "mongo":
		m := cfg.Storage.Mongo
		ctx, cancel := context.WithTimeout(context.Background(), m.ConnectTimeout)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.URI))
		if err != nil {
			return nil, err
		}
		repo, err := newMongoRepository(ctx, client, m)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: client.Disconnect})

		logger.Info("using mongo storage", slog.String("database", m.Database), slog.String("collection", m.Collection))
		return repo, nil

	default:
		logger.Warn("using in-memory storage, accounts are lost on restart")
		return auth.NewAccountRepository(), nil
	}
}

// newMongoRepository checks the connection and prepares the collection. The
// client is disconnected when either step fails.
func newMongoRepository(ctx context.Context, client *mongo.Client, m config.Mongo) (auth.Repository, error) {
	err := client.Ping(ctx, nil)
	if err == nil {
		var repo auth.Repository
		if repo, err = auth.NewMongoRepository(ctx, client.Database(m.Database).Collection(m.Collection)); err == nil {
			return repo, nil
		}
	}

	if derr := client.Disconnect(context.Background()); derr != nil {
		return nil, errors.Join(err, derr)
	}
	return nil, err
}

func newServer(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, svc auth.Service, metrics *auth.Metrics) *http.Server {
	handler := auth.NewRouter(svc, auth.HandlerOptions{
		Logger:             logger,
		Metrics:            metrics,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		ExposePasswordHash: cfg.Listing.ExposePasswordHash,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.HTTP.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("Server started", slog.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down server")
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
