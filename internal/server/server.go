package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"dataportal/internal/chart"
	"dataportal/internal/config"
	"dataportal/internal/database"
	"dataportal/internal/handlers"
	"dataportal/internal/logger"
	"dataportal/internal/middlewares"
	"dataportal/internal/models"
	"dataportal/internal/pages"
	"dataportal/internal/persistence"
	"dataportal/internal/repositories"
	"dataportal/internal/routes"
	"dataportal/internal/scheduler"
	"dataportal/internal/services"
	"dataportal/internal/utils"
)

// Server owns every long lived resource of the portal.
type Server struct {
	cfg  *config.AppConfig
	lggr logger.Logger

	pool   *pgxpool.Pool
	gormDB *gorm.DB
	rdb    *redis.Client
	store  *persistence.Store
	charts *chart.FileStore
	jobs   *scheduler.Scheduler

	Auth       *services.AuthService
	HTTPServer *http.Server
}

// SystemDB is the portal's own database: users, query history and page
// configuration overrides.
type SystemDB struct {
	Pool *pgxpool.Pool
	Gorm *gorm.DB
}

// OpenSystemDB creates the system database when missing, connects to it
// and applies the migrations.
func OpenSystemDB(ctx context.Context, cfg config.DatabaseConfig, lggr logger.Logger) (*SystemDB, error) {
	if err := database.EnsureDatabaseExists(ctx, cfg, lggr); err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg, lggr)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, pool, lggr); err != nil {
		pool.Close()
		return nil, err
	}
	gormDB, err := database.OpenGorm(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &SystemDB{Pool: pool, Gorm: gormDB}, nil
}

func (db *SystemDB) Close() {
	if sqlDB, err := db.Gorm.DB(); err == nil {
		_ = sqlDB.Close()
	}
	db.Pool.Close()
}

// LoadStore builds the persistence store from the connections and model
// files. A missing model file installs an empty model that the first sync
// will write.
func LoadStore(ctx context.Context, cfg config.ModelConfig, history persistence.HistoryRecorder, lggr logger.Logger) (*persistence.Store, error) {
	store := persistence.NewStore(lggr, history)
	if err := store.LoadConnections(ctx, cfg.ConnectionsFile); err != nil {
		return nil, err
	}
	if err := store.LoadModel(cfg.ModelFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = store.Close()
			return nil, err
		}
		lggr.Warnw("Model file not found, starting with an empty model", "file", cfg.ModelFile)
		store.InstallModel(&models.Model{})
		store.SetModelFile(cfg.ModelFile)
	}
	return store, nil
}

// NewRedis connects to redis and fails fast when it does not answer.
func NewRedis(ctx context.Context, cfg config.RedisConfig, lggr logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	lggr.Infow("Connected to Redis", "addr", cfg.Addr)
	return rdb, nil
}

func tokenConfig(cfg config.AuthConfig) utils.TokenConfig {
	return utils.TokenConfig{
		AccessTokenSecret:  []byte(cfg.AccessTokenSecret),
		RefreshTokenSecret: []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
	}
}

// NewAuthService wires the auth service to the system database and redis.
func NewAuthService(pool *pgxpool.Pool, rdb *redis.Client, cfg config.AuthConfig, lggr logger.Logger) *services.AuthService {
	return services.NewAuthService(
		repositories.NewUserRepository(pool),
		repositories.NewRedisRepository(rdb, cfg.RefreshTokenTTL),
		tokenConfig(cfg),
		lggr,
	)
}

func NewServer(ctx context.Context, cfg *config.AppConfig, lggr logger.Logger) (*Server, error) {
	s := &Server{cfg: cfg, lggr: lggr.Named("Server")}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	sysDB, err := OpenSystemDB(ctx, cfg.SystemDB, lggr)
	if err != nil {
		return nil, err
	}
	s.pool, s.gormDB = sysDB.Pool, sysDB.Gorm

	if s.rdb, err = NewRedis(ctx, cfg.Redis, lggr); err != nil {
		return nil, err
	}

	userRepo := repositories.NewUserRepository(s.pool)
	historyRepo := repositories.NewQueryHistoryRepository(s.pool)
	pageConfRepo := repositories.NewPageConfigurationRepository(s.gormDB)

	if s.store, err = LoadStore(ctx, cfg.Model, historyRepo, lggr); err != nil {
		return nil, err
	}

	tree, err := pages.LoadTree(cfg.Model.PagesFile)
	if err != nil {
		return nil, err
	}
	dispatcher := pages.NewDispatcher(tree, routes.APIPath+routes.PagesPath, pageConfRepo, lggr)
	if err := dispatcher.LoadOverrides(ctx); err != nil {
		return nil, err
	}

	if s.charts, err = chart.NewFileStore(cfg.Chart.Dir, cfg.Chart.CacheSizeBytes, lggr); err != nil {
		return nil, err
	}
	chartAction := chart.NewAction(chart.DefaultRegistry(), s.charts, s.store, dispatcher, lggr)

	s.Auth = services.NewAuthService(
		userRepo,
		repositories.NewRedisRepository(s.rdb, cfg.Auth.RefreshTokenTTL),
		tokenConfig(cfg.Auth),
		lggr,
	)
	queryService := services.NewQueryService(s.store, historyRepo, lggr)
	modelService := services.NewModelService(s.store, lggr)
	crudService := services.NewCrudService(s.store, lggr)

	s.jobs, err = scheduler.New(scheduler.Config{
		SyncSchedule:    cfg.Sync.Schedule,
		CleanupSchedule: cfg.Chart.CleanupSchedule,
		ChartTTL:        cfg.Chart.TTL,
	}, modelService, s.charts, lggr)
	if err != nil {
		return nil, err
	}

	h := routes.Handlers{
		Auth:  handlers.NewAuthHandler(s.Auth),
		User:  handlers.NewUserHandler(s.Auth),
		Page:  handlers.NewPageHandler(dispatcher, chartAction, s.store, crudService, lggr),
		Model: handlers.NewModelHandler(modelService),
		Query: handlers.NewQueryHandler(queryService),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(lggr))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(router, h,
		middlewares.Authenticate(s.Auth),
		middlewares.Session(s.store, userRepo, lggr),
	)

	s.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ok = true
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.jobs.Start()
	defer s.jobs.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.lggr.Infow("Server listening", "addr", s.HTTPServer.Addr)
		if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.lggr.Info("Shutting down server gracefully ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.HTTPServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.lggr.Info("Server exiting")
	return nil
}

// Close releases whatever NewServer managed to open.
func (s *Server) Close() {
	if s.charts != nil {
		s.charts.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.lggr.Warnw("Failed to close persistence store", "err", err)
		}
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.gormDB != nil {
		if sqlDB, err := s.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
