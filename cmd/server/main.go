// Package main runs the church site HTTP server with realtime updates and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-church/backend/config"
	"github.com/lumen-church/backend/internal/auth"
	"github.com/lumen-church/backend/internal/content"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/interactions"
	"github.com/lumen-church/backend/internal/middleware"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/internal/realtime"
	"github.com/lumen-church/backend/internal/registrations"
	"github.com/lumen-church/backend/internal/worker"
	"github.com/lumen-church/backend/pkg/database"
	"github.com/lumen-church/backend/pkg/queue"
	"github.com/lumen-church/backend/pkg/redis"
	"github.com/lumen-church/backend/pkg/response"
	"github.com/lumen-church/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	// Change source. With PostgreSQL, triggers announce writes; the other
	// sources are fed by the repositories themselves.
	var source realtime.Source
	var publisher entity.Publisher
	switch cfg.Realtime.Source {
	case config.SourceRedis:
		ps := realtime.NewRedisPubSub(rdb.Client, logger)
		source, publisher = ps, ps
	case config.SourceMemory:
		broker := realtime.NewBroker()
		source, publisher = broker, broker
	default:
		source = realtime.NewPGSource(pool, logger)
	}

	store, err := newBackend(ctx, cfg, pool, publisher, logger)
	if err != nil {
		logger.Fatal("storage backend", zap.Error(err))
	}
	defer store.Close()

	// Content
	eventsRepo := repository[models.Event, *models.Event](store, entity.EventSchema)
	sermonsRepo := repository[models.Sermon, *models.Sermon](store, entity.SermonSchema)
	events := content.NewEvents(eventsRepo, logger)
	sermons := content.NewSermons(sermonsRepo, logger)
	posts := content.NewPosts(repository[models.BlogPost, *models.BlogPost](store, entity.BlogPostSchema), logger)
	ministries := content.NewMinistries(repository[models.Ministry, *models.Ministry](store, entity.MinistrySchema), logger)
	categories := content.CategorySet{}
	for _, kind := range entity.CategoryKinds {
		schema, err := entity.CategorySchema(kind)
		if err != nil {
			logger.Fatal("category schema", zap.Error(err))
		}
		categories[kind] = content.NewCategories(repository[models.Category, *models.Category](store, schema), schema, logger)
	}
	defer func() {
		events.Close()
		sermons.Close()
		posts.Close()
		ministries.Close()
		categories.Close()
	}()

	refreshers := map[string]func(context.Context) error{
		entity.EventSchema.Table:    events.Refresh,
		entity.SermonSchema.Table:   sermons.Refresh,
		entity.BlogPostSchema.Table: posts.Refresh,
		entity.MinistrySchema.Table: ministries.Refresh,
	}
	for kind, r := range categories {
		schema, _ := entity.CategorySchema(kind)
		refreshers[schema.Table] = r.Refresh
	}
	for table, refresh := range refreshers {
		if err := refresh(ctx); err != nil {
			logger.Warn("initial load failed", zap.String("table", table), zap.Error(err))
		}
	}

	// Interactions
	interactionServices := interactions.NewRegistry(store.interactionStore, logger)
	interactionServices.Bind(models.NamespaceEvent, exists(events.Repository()))
	interactionServices.Bind(models.NamespaceSermon, exists(sermons.Repository()))
	interactionServices.Bind(models.NamespaceBlogPost, exists(posts.Repository()))
	if err := interactionServices.LoadAll(ctx); err != nil {
		logger.Warn("initial interactions load failed", zap.Error(err))
	}
	interactionHandler := interactions.NewHandler(interactionServices, logger)

	// Registrations
	regRepo, err := store.registrations(eventsRepo)
	if err != nil {
		logger.Fatal("registrations", zap.Error(err))
	}
	regService := registrations.NewService(regRepo, eventsRepo, logger,
		registrations.WithCollection(events.Collection()),
		registrations.OnSuccess(func(reg models.EventRegistration, ev models.Event) {
			logger.Debug("attendees updated", zap.String("event_id", ev.ID.String()), zap.Int("current_attendees", ev.CurrentAttendees))
		}),
	)
	regHandler := registrations.NewHandler(regService, logger)

	// Sermon media
	var archiver content.Archiver
	var presigner content.Presigner
	var jobQueue *queue.Queue
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
		archiver = jobQueue
	}
	if s3Client != nil {
		presigner = s3Client
	}
	media := content.NewSermonMedia(sermons, archiver, presigner, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Realtime
	subs := changeSubscriptions(refreshers, interactionServices, cfg.Realtime.Tables, logger)
	watched := make(map[string]bool, len(subs))
	for _, s := range subs {
		watched[s.Table] = true
	}
	hub := realtime.NewHub(logger, func(table string) bool { return watched[table] })
	manager := realtime.NewManager(source, realtime.Options{
		ReconnectDelay:   cfg.Realtime.ReconnectDelay,
		ResubscribeDelay: cfg.Realtime.ResubscribeDelay,
		Logger:           logger,
	})
	defer manager.Close()
	manager.OnAny(hub.Broadcast)
	manager.OnStatus(func(s realtime.Status) {
		logger.Info("realtime status", zap.String("status", string(s)))
	})
	if err := manager.Subscribe(ctx, subs...); err != nil {
		logger.Warn("realtime subscribe failed, retrying in background", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "realtime": manager.Status()})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.GET("/me", middleware.JWT(jwtService), authHandler.Me)
	}

	// Public reads; a token, when present, identifies the requester.
	public := router.Group("", middleware.OptionalJWT(jwtService))
	admin := router.Group("/admin", middleware.JWT(jwtService))
	gate := middleware.RequirePermission

	events.Routes(public.Group("/events"), admin.Group("/events", gate(models.PermEventsWrite)))
	sermons.Routes(public.Group("/sermons"), admin.Group("/sermons", gate(models.PermSermonsWrite)))
	posts.Routes(public.Group("/posts"), admin.Group("/posts", gate(models.PermContentWrite)))
	ministries.Routes(public.Group("/ministries"), admin.Group("/ministries", gate(models.PermMinistriesWrite)))
	categories.Routes(public.Group("/categories"), admin.Group("/categories", gate(models.PermContentWrite)))

	public.GET("/events/:slug/calendar", content.Calendar(events, cfg.Server.Location()))
	public.POST("/events/:slug/register", regHandler.Register)
	public.GET("/sermons/:slug/download", media.Download)
	admin.GET("/events/:id/registrations", gate(models.PermEventsWrite), regHandler.ListByEvent)
	admin.POST("/registrations/:id/cancel", gate(models.PermEventsWrite), regHandler.Cancel)
	admin.POST("/sermons/:id/archive", gate(models.PermSermonsWrite), media.Archive)

	// Interactions
	public.GET("/interactions/:ns/:id", interactionHandler.Get)
	signedIn := router.Group("/interactions", middleware.JWT(jwtService))
	{
		signedIn.POST("/:ns/:id/like", interactionHandler.ToggleLike)
		signedIn.POST("/:ns/:id/comments", interactionHandler.AddComment)
		signedIn.DELETE("/:ns/comments/:commentId", interactionHandler.DeleteComment)
	}
	admin.GET("/interactions/:ns/pending", gate(models.PermCommentsModerate), interactionHandler.Pending)
	admin.PATCH("/interactions/:ns/comments/:commentId/approve", gate(models.PermCommentsModerate), interactionHandler.ApproveComment)

	// Users
	admin.GET("/users", gate(models.PermUsersManage), authHandler.List)
	admin.PATCH("/users/:id/role", gate(models.PermUsersManage), authHandler.UpdateRole)
	admin.PATCH("/users/:id/active", gate(models.PermUsersManage), authHandler.SetActive)

	// Realtime (token in query; no Authorization header required)
	public.GET("/realtime/status", realtime.StatusHandler(manager, hub))
	public.GET("/ws", realtime.ServeWs(hub, logger, canSeeDrafts))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (sermon media to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil && s3Client != nil {
		if sermonStore, ok := sermonsRepo.(worker.Sermons); ok {
			go worker.NewMediaArchiver(sermonStore, s3Client, jobQueue, logger).Run(workerCtx)
			logger.Info("media worker started")
		}
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// changeSubscriptions refreshes cached collections and reloads interaction
// services when their tables change. only, when set, limits the tables.
func changeSubscriptions(refreshers map[string]func(context.Context) error, services interactions.Registry, only []string, logger *zap.Logger) []realtime.Config {
	keep := func(table string) bool {
		if len(only) == 0 {
			return true
		}
		for _, t := range only {
			if t == table {
				return true
			}
		}
		return false
	}
	var subs []realtime.Config
	for table, refresh := range refreshers {
		if !keep(table) {
			continue
		}
		table, refresh := table, refresh
		subs = append(subs, realtime.Config{
			Table: table,
			OnChange: func(c realtime.Change) {
				if err := refresh(context.Background()); err != nil {
					logger.Warn("refresh after change failed", zap.String("table", table), zap.Error(err))
				}
			},
		})
	}
	for table, svc := range services.Tables() {
		if !keep(table) {
			continue
		}
		table, svc := table, svc
		subs = append(subs, realtime.Config{
			Table: table,
			OnChange: func(c realtime.Change) {
				if err := svc.Load(context.Background()); err != nil {
					logger.Warn("interactions reload failed", zap.String("table", table), zap.Error(err))
				}
			},
		})
	}
	return subs
}

func exists[T any](repo entity.Repository[T]) interactions.Lookup {
	return func(ctx context.Context, id uuid.UUID) error {
		_, err := repo.Get(ctx, id)
		return err
	}
}

// canSeeDrafts lets editors receive changes to unpublished rows.
func canSeeDrafts(c *gin.Context) bool {
	for _, p := range []models.Permission{models.PermContentWrite, models.PermEventsWrite, models.PermSermonsWrite, models.PermMinistriesWrite} {
		if middleware.HasPermission(c, p) {
			return true
		}
	}
	return false
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
