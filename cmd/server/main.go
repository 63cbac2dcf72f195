package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"planningpoker/internal/cache"
	"planningpoker/internal/config"
	"planningpoker/internal/logger"
	"planningpoker/internal/realtime"
	"planningpoker/internal/repository"
	"planningpoker/internal/repository/memstore"
	"planningpoker/internal/service"
	"planningpoker/internal/transport/rest"
	"planningpoker/internal/transport/rest/middleware"
	"planningpoker/internal/transport/ws"
)

type stores struct {
	stories  repository.StoryRepo
	votes    repository.VoteRepo
	sessions repository.SessionRepo
	users    repository.UserRepo
}

// @title Planning Poker API
// @version 1.0
// @description Story estimation rounds with blind votes, countdown and live updates
// @host localhost:8080
// @BasePath /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	var st stores
	switch cfg.Storage {
	case config.StorageMongo:
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoClient.Disconnect(context.Background())

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = mongoClient.Ping(pingCtx, nil)
		cancel()
		if err != nil {
			log.Fatal("failed to ping MongoDB", zap.Error(err))
		}

		db := mongoClient.Database(cfg.Mongo.Database)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			log.Fatal("failed to create indexes", zap.Error(err))
		}
		st = stores{
			stories:  repository.NewStoryRepo(db),
			votes:    repository.NewVoteRepo(db),
			sessions: repository.NewSessionRepo(db),
			users:    repository.NewUserRepo(db),
		}
		log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	default:
		st = stores{
			stories:  memstore.NewStoryRepo(),
			votes:    memstore.NewVoteRepo(),
			sessions: memstore.NewSessionRepo(),
			users:    memstore.NewUserRepo(),
		}
		log.Warn("using in-memory storage; data is lost on restart")
	}

	var rdb *redis.Client
	if !cfg.Redis.Disabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatal("failed to ping Redis", zap.Error(err))
		}
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var bus realtime.Bus
	if cfg.Bus == config.BusRedis {
		bus = realtime.NewRedisBus(rdb, log)
	} else {
		bus = realtime.NewLocalBus(log)
	}

	// Initialize services
	directory := service.NewDirectoryService(st.users)
	authSvc := service.NewAuthService(st.users, cfg.JWT.Secret, cfg.JWT.TTL, log)
	sessionSvc := service.NewSessionService(st.sessions, log)
	storySvc := service.NewStoryService(st.stories, st.votes, st.sessions, log)
	roundSvc := service.NewRoundService(st.stories, st.votes, st.sessions, directory, log)
	monitor := service.NewRoundMonitor(roundSvc, service.MonitorConfig{
		TickInterval: cfg.Round.TickInterval,
		PollInterval: cfg.Round.PollInterval,
	}, log)

	storySvc.SetBroadcaster(bus)
	storySvc.SetWatcher(monitor)
	roundSvc.SetBroadcaster(bus)
	roundSvc.SetWatcher(monitor)
	monitor.SetBroadcaster(bus)
	monitor.SetEventSource(bus)
	if rdb != nil {
		roundCache := cache.NewRoundCache(rdb)
		storySvc.SetRoundCache(roundCache)
		roundSvc.SetRoundCache(roundCache)
	}

	if _, err := monitor.Resume(ctx, st.stories); err != nil {
		log.Error("failed to resume round monitors", zap.Error(err))
	}

	router := rest.NewRouter(&rest.Container{
		AuthService:    authSvc,
		SessionService: sessionSvc,
		StoryService:   storySvc,
		RoundService:   roundSvc,
		Directory:      directory,
		WSHub:          ws.NewHub(bus, log),
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
			AllowedMethods: cfg.Server.CORSAllowedMethods,
			AllowedHeaders: cfg.Server.CORSAllowedHeaders,
		},
		Logger: log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage),
			zap.String("event_bus", cfg.Bus),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen and serve", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	monitor.Close()

	log.Info("server exited")
}
