package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/config"
	"github.com/thereayou/coursechat/internal/database"
	"github.com/thereayou/coursechat/internal/database/memdb"
	"github.com/thereayou/coursechat/internal/handlers"
	"github.com/thereayou/coursechat/internal/handlers/dto"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/internal/middleware"
	"github.com/thereayou/coursechat/internal/services"
	"github.com/thereayou/coursechat/internal/websocket"
	"github.com/thereayou/coursechat/pkg/auth"
)

// Backend — хранилище сообщений, оракул членства и справочник пользователей
// плюс key-value для чёрного списка токенов и кэша доступа
type Backend struct {
	Store  chat.Store
	Access chat.AccessOracle
	Users  chat.UserDirectory
	KV     services.KeyValue

	closers []func() error
}

func (b *Backend) Close() {
	for _, closeFn := range b.closers {
		_ = closeFn()
	}
}

// OpenBackend подключает Postgres (или память) и Redis (если задан REDIS_URL)
func OpenBackend(cfg *config.Config, log logger.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		db := memdb.New()
		b.Store, b.Access, b.Users = db, db, db
		log.Warnf("STORE_DRIVER=memory: messages are kept in process memory only")
	default:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "postgres connect failed")
		}
		b.Store, b.Access, b.Users = db, db, db
		b.closers = append(b.closers, db.Close)
	}

	if cfg.RedisURL == "" {
		log.Warnf("REDIS_URL is not set: token blacklist is process-local, course access is not cached")
		b.KV = services.NewMemoryKV()
		return b, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		b.Close()
		return nil, errors.Wrap(err, "invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		b.Close()
		return nil, errors.Wrap(err, "redis connect failed")
	}
	b.closers = append(b.closers, rdb.Close)

	b.KV = services.NewRedisKV(rdb)
	// Нулевой TTL отключает кэш прав: в Redis он означал бы вечную запись
	if cfg.AccessCacheTTL > 0 {
		b.Access = services.NewCachedAccessOracle(b.Access, b.KV, cfg.AccessCacheTTL, log)
	}
	return b, nil
}

type Server struct {
	Config     *config.Config
	Router     *gin.Engine
	Backend    *Backend
	JWTManager *auth.JWTManager
	Hub        *websocket.Hub
	Chat       *chat.Service
	Log        logger.Logger

	cron *cron.Cron
	http *http.Server
}

// NewServer собирает сервер из окружения
func NewServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)

	backend, err := OpenBackend(cfg, log)
	if err != nil {
		return nil, err
	}

	return New(cfg, backend, log)
}

func newLogger(cfg *config.Config) logger.Logger {
	std := logger.NewStdLogger(nil, !cfg.IsProduction())
	if cfg.RollbarToken == "" {
		return std
	}
	host, _ := os.Hostname()
	return logger.NewRollbarLogger(std, logger.RollbarOptions{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		ServerHost:  host,
	})
}

// New связывает компоненты: hub, сервис чата, обработчики, маршруты и планировщик
func New(cfg *config.Config, backend *Backend, log logger.Logger) (*Server, error) {
	if err := dto.RegisterValidators(); err != nil {
		return nil, err
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	blacklist := services.NewBlacklist(backend.KV)
	verifier := services.NewIdentityVerifier(jwtMgr, backend.Users, blacklist, log)

	hub := websocket.NewHub(log,
		websocket.WithTypingTimeout(cfg.TypingTimeout),
		websocket.WithUserDirectory(backend.Users),
	)

	service := chat.NewService(backend.Store, backend.Access, hub, log,
		chat.WithEditWindow(cfg.EditWindow),
		chat.WithSnapshotSize(cfg.SnapshotSize),
	)

	messageH := handlers.NewMessageHandler(service, hub, log)
	h := Handlers{
		Auth:      handlers.NewAuthHandler(jwtMgr, blacklist, log),
		Messages:  handlers.NewHTTPMessageHandler(service, hub),
		WebSocket: handlers.NewWebSocketHandler(hub, messageH, cfg.OriginAllowed, log),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	APIEndpoints(router, h,
		middleware.AuthMiddleware(verifier, cfg.AuthTimeout),
		middleware.WSAuthMiddleware(verifier, cfg.AuthTimeout),
	)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1s", func() { hub.SweepTyping() }); err != nil {
		return nil, errors.Wrap(err, "schedule typing sweep")
	}

	return &Server{
		Config:     cfg,
		Router:     router,
		Backend:    backend,
		JWTManager: jwtMgr,
		Hub:        hub,
		Chat:       service,
		Log:        log,
		cron:       scheduler,
	}, nil
}

// Start запускает hub и планировщик; HTTP поднимает Run
func (s *Server) Start() {
	go s.Hub.Run()
	s.cron.Start()
}

// Shutdown останавливает приём соединений, затем hub и планировщик
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}

	<-s.cron.Stop().Done()
	s.Hub.Stop()
	s.Backend.Close()

	if rl, ok := s.Log.(*logger.RollbarLogger); ok {
		rl.Close()
	}
	return err
}

func (s *Server) Run() error {
	s.Start()

	s.http = &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Infof("Server starting on port %s", s.Config.Port)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server run error")
		}
		return nil
	case sig := <-quit:
		s.Log.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
