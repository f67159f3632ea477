package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	"github.com/yukikurage/kanban-realtime-api/internal/config"
	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	"github.com/yukikurage/kanban-realtime-api/internal/database"
	"github.com/yukikurage/kanban-realtime-api/internal/handlers"
	"github.com/yukikurage/kanban-realtime-api/internal/middleware"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/realtime"
	"github.com/yukikurage/kanban-realtime-api/internal/repository"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
	"github.com/yukikurage/kanban-realtime-api/internal/syncclient"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 15 * time.Second
	busChannel      = "kanban:realtime"
	dedupeTTL       = 10 * time.Minute
)

type runner struct {
	log *logrus.Logger
	out io.Writer
}

// setup loads configuration and configures the logger from it.
func (r *runner) setup(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cfg.GinMode == gin.ReleaseMode {
		r.log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		r.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Debug {
		r.log.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

func (r *runner) openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg, r.log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, r.log); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema and exits.
func (r *runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	db, err := r.openDatabase(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}

// Serve runs the HTTP API and the realtime hub until the process is signalled.
func (r *runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.setup(cmd)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := r.openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	store, err := r.sessionStore(cfg, redisClient)
	if err != nil {
		return err
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	columnRepo := repository.NewColumnRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	resolver := rbac.NewResolver(workspaceRepo)

	authService := services.NewAuthService(userRepo, tokens)
	workspaceService := services.NewWorkspaceService(workspaceRepo, userRepo, resolver)
	boardService := services.NewBoardService(boardRepo, workspaceRepo, resolver)
	columnService := services.NewColumnService(columnRepo, boardRepo, resolver)
	taskService := services.NewTaskService(taskRepo, columnRepo, boardRepo, resolver)

	hubOpts := realtime.Options{
		Logger:          r.log,
		PersistTimeout:  cfg.PersistTimeout,
		EventsPerSecond: cfg.SocketEventsPerSecond,
		EventBurst:      cfg.SocketEventBurst,
		CheckOrigin:     allowOrigin(cfg.FrontendURL),
	}
	if redisClient != nil {
		hubOpts.Deduper = realtime.NewRedisDeduper(redisClient, dedupeTTL)
		hubOpts.Bus = realtime.NewRedisBus(redisClient, busChannel, r.log)
	}
	hub := realtime.NewHub(tokens, boardService, taskService, hubOpts)

	h := handlers.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Workspace: handlers.NewWorkspaceHandler(workspaceService),
		Board:     handlers.NewBoardHandler(boardService, workspaceService),
		Column:    handlers.NewColumnHandler(columnService),
		Task:      handlers.NewTaskHandler(taskService, hub),
		Realtime:  handlers.NewRealtimeHandler(hub),
	}
	if redisClient != nil {
		h.Health = handlers.NewHealthHandler(db, redisClient)
	} else {
		h.Health = handlers.NewHealthHandler(db, nil)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(r.log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(sessions.Sessions(constants.SessionCookieName, store))
	handlers.RegisterRoutes(router, tokens, h)

	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.WithError(err).Error("realtime bus stopped")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		r.log.WithField("addr", srv.Addr).Info("Server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
	}

	r.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	// sockets are hijacked, so the hub closes them and drains queued writes
	if err := hub.Shutdown(shutdownCtx); err != nil {
		r.log.WithError(err).Warn("realtime shutdown incomplete")
	}
	return nil
}

func (r *runner) sessionStore(cfg *config.Config, client *redis.Client) (sessions.Store, error) {
	options := sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	}

	if client == nil {
		store := cookie.NewStore([]byte(cfg.SessionSecret))
		store.Options(options)
		return store, nil
	}

	opts := client.Options()
	store, err := redisStore.NewStore(10, "tcp", opts.Addr, opts.Username, opts.Password, []byte(cfg.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis session store: %w", err)
	}
	store.Options(options)
	return store, nil
}

// allowOrigin accepts same-origin and non-browser handshakes plus the frontend.
func allowOrigin(frontendURL string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if strings.EqualFold(origin, frontendURL) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, req.Host)
	}
}

// Watch mounts a board with the sync agent and prints it after each change.
func (r *runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.setup(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := strings.TrimRight(cmd.String("url"), "/")
	token := cmd.String("token")

	wsURL, err := realtimeURL(base)
	if err != nil {
		return err
	}

	conn := syncclient.NewConn(wsURL, token, r.log)
	if err := conn.Dial(ctx); err != nil {
		return err
	}
	defer conn.Close()

	agent := syncclient.NewAgent(conn, syncclient.NewAPIClient(base, token, nil), r.log)
	agent.OnChange(r.printBoard)

	board, err := agent.Mount(ctx, cmd.String("board"))
	if err != nil {
		return err
	}
	r.printBoard(board)

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func realtimeURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid --url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (r *runner) printBoard(board *syncclient.Board) {
	out := r.out
	if out == nil {
		out = os.Stdout
	}

	byColumn := make(map[string][]models.Task)
	for _, task := range board.Tasks() {
		byColumn[task.ColumnID] = append(byColumn[task.ColumnID], task)
	}

	fmt.Fprintf(out, "== %s ==\n", board.Slug)
	for _, column := range board.Columns() {
		tasks := byColumn[column.ID]
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].Title < tasks[j].Title })
		fmt.Fprintf(out, "%s (%d)\n", column.Title, len(tasks))
		for _, task := range tasks {
			fmt.Fprintf(out, "  - %s [%s]\n", task.Title, task.Status)
		}
	}
}
