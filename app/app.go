package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/putto11262002/gymchat/core"
	"github.com/putto11262002/gymchat/pkg/router"
)

type App struct {
	config    *Config
	db        *core.SQLiteDB
	context   context.Context
	server    *http.Server
	logger    *slog.Logger
	router    *router.Router
	wsManager *core.ConnManager
	registry  *prometheus.Registry
	metrics   *Metrics
	limiter   *RateLimiter

	userStore core.UserStore
	chatStore core.ChatStore
	authStore core.AuthStore

	userHandler *UserHandler
	chatHandler *ChatHandler
	authHandler *AuthHandler
	feedHandler *FeedHandler

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

// New wires the stores, the change feed and the HTTP API.
// The app stops serving feed connections when ctx is done.
func New(ctx context.Context, config *Config, logger *slog.Logger) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%s", FormatValidationErrors(err))
	}

	app := &App{
		config:   config,
		context:  ctx,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	var err error
	app.db, err = openDB(config.SQLite.File)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		app.db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	app.metrics = NewMetrics(app.registry)
	app.registry.MustRegister(collectors.NewGoCollector())
	app.limiter = NewRateLimiter(config.RateLimit.MessagesPerSecond, config.RateLimit.Burst)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	go app.limiter.Run(pruneCtx, time.Minute, max(5*time.Minute, app.limiter.RefillTime()))
	app.AddCleanupFunc(func(context.Context) { stopPrune() })

	userStore := core.NewSQLiteUserStore(app.db.DB)
	app.userStore = userStore
	app.authStore = core.NewSQLiteAuthStore(app.db.DB, userStore, config.Auth.Secret,
		core.WithTokenExp(config.Auth.TokenExp))
	app.chatStore = core.NewSQLiteChatStore(app.db.DB, userStore)

	app.wsManager = core.NewConnManager(ctx, &app.wg, logger.With(slog.String("component", "feed")),
		core.WithCheckOrigin(app.checkOrigin))
	app.wsManager.OnConnectionOpened(func(string, int) { app.metrics.FeedConnections.Inc() })
	app.wsManager.OnConnectionClosed(func(string, int) { app.metrics.FeedConnections.Dec() })
	app.wsManager.OnSlowConsumer(func(string, int) { app.metrics.SlowConsumers.Inc() })
	app.AddCleanupFunc(func(ctx context.Context) {
		if err := app.wsManager.Shutdown(ctx); err != nil {
			app.logger.Warn("feed shutdown", slog.String("err", err.Error()))
		}
	})

	app.userHandler = NewUserHandler(app.userStore, config.IsAdmin)
	app.chatHandler = NewChatHandler(app.chatStore, app.wsManager, app.metrics, logger)
	app.authHandler = NewAuthHandler(app.authStore, config.Mode == ProdMode)
	app.feedHandler = NewFeedHandler(app.chatHandler, app.wsManager, logger)

	app.routes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Hostname, config.Port),
		Handler: app.router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}
	if config.TLS.Crt != "" && config.TLS.Key != "" {
		tlsConfig, err := serverTLSConfig(config.TLS.Crt, config.TLS.Key)
		if err != nil {
			app.Shutdown(ctx)
			return nil, err
		}
		app.server.TLSConfig = tlsConfig
	}

	return app, nil
}

func openDB(file string) (*core.SQLiteDB, error) {
	if file == ":memory:" {
		return core.NewSQLiteDB(uuid.NewString(), &core.SQLiteDBOption{
			Mode:        "memory",
			Cache:       "shared",
			ForeignKeys: true,
		})
	}
	return core.NewSQLiteDB(file, &core.SQLiteDBOption{
		Mode:        "rwc",
		Cache:       "shared",
		JournalMode: "WAL",
		ForeignKeys: true,
	})
}

func (app *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(app.config.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(app.config.AllowedOrigins, origin)
}

func (app *App) routes() {
	authMiddleware := core.JWTMiddleware(app.authStore)

	app.router = router.New(router.WithLogger(app.logger))
	registerErrorMappers(app.router)

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.With(authMiddleware).Get("/ws", app.feedHandler.SubscribeHandler)
	app.router.Router.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	app.router.Route("/api", func(api *router.Router) {
		api.Route("/users", func(r *router.Router) {
			r.Post("/", app.userHandler.RegisterUserHandler)
			r.With(authMiddleware).Get("/me", app.userHandler.MeHandler)
			r.With(authMiddleware).Put("/{userID}/role", app.userHandler.SetRoleHandler)
		})

		api.Route("/auth", func(r *router.Router) {
			r.Post("/signin", app.authHandler.SigninHandler)
			r.With(authMiddleware).Post("/signout", app.authHandler.SignoutHandler)
		})

		api.Group(func(r *router.Router) {
			r.Use(authMiddleware)
			chat := app.chatHandler

			r.Get("/profiles", app.userHandler.ProfilesHandler)

			r.Get("/rooms", chat.GetMyRoomsHandler)
			r.Post("/rooms", chat.CreateRoomHandler)
			r.Get("/rooms/{roomID}", chat.GetRoomByIDHandler)
			r.Post("/rooms/{roomID}/members", chat.JoinRoomHandler)
			r.Post("/rooms/{roomID}/read", chat.MarkReadHandler)
			r.Get("/rooms/{roomID}/messages", chat.GetRoomMessagesHandler)
			r.Post("/rooms/{roomID}/messages",
				chat.rejected("insert", app.limiter.Limit(chat.SendMessageHandler)))
			r.Put("/messages/{messageID}", chat.rejected("update", chat.UpdateMessageHandler))
			r.Delete("/messages/{messageID}", chat.rejected("delete", chat.DeleteMessageHandler))
		})
	})
}

// Handler returns the root HTTP handler of the app.
func (app *App) Handler() http.Handler {
	return app.router
}

// Start serves until the app context is done, then shuts down gracefully.
func (app *App) Start() error {
	errc := make(chan error, 1)
	go func() {
		app.logger.Info(fmt.Sprintf("app running in %s mode on: %s", app.config.Mode, app.server.Addr))
		var err error
		if app.server.TLSConfig != nil {
			err = app.server.ListenAndServeTLS("", "")
		} else {
			err = app.server.ListenAndServe()
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-app.context.Done():
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := app.server.Shutdown(closeCtx); err != nil {
		app.logger.Warn("server shutdown", slog.String("err", err.Error()))
	}
	if err := app.Shutdown(closeCtx); err != nil {
		return err
	}
	app.logger.Info("app shutdown gracefully")
	return nil
}

// Shutdown runs the cleanup funcs in reverse order of registration.
func (app *App) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		for _, f := range slices.Backward(app.cleanupFuncs) {
			f(ctx)
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("app shutdown timed out")
	}
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}
