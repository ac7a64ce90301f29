package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appchat "bchat/internal/app/chat"
	"bchat/internal/app/errbus"
	appfriends "bchat/internal/app/friends"
	appoutbox "bchat/internal/app/outbox"
	"bchat/internal/app/presence"
	"bchat/internal/app/realtime"
	authsvc "bchat/internal/app/services/auth"
	"bchat/internal/app/uow"
	appusers "bchat/internal/app/users"
	domainauth "bchat/internal/domain/auth"
	"bchat/internal/infra/broker/kafka"
	"bchat/internal/infra/config"
	ginserver "bchat/internal/infra/http/gin"
	"bchat/internal/infra/obs"
	infraoutbox "bchat/internal/infra/outbox"
	"bchat/internal/infra/security"
	"bchat/internal/infra/storage/memory"
	mongostore "bchat/internal/infra/storage/mongo"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	errorBus := errbus.New()
	defer errorBus.Close()
	unsubscribeErrors := errorBus.Subscribe(func(ev errbus.PermissionError) {
		logger.Warn("storage permission denied", "path", ev.Path, "operation", ev.Operation)
	})
	defer unsubscribeErrors()

	storeSet, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store initialization failed", "error", err)
		os.Exit(1)
	}

	if storeSet.claims != nil && len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		worker := &infraoutbox.Worker{
			Store:       storeSet.claims,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      "bchat",
			Backoff:     cfg.RetryBackoff,
		}
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
		logger.Info("outbox worker started", "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("outbox worker disabled, no brokers configured")
	}

	handlers := buildHandlers(cfg, storeSet, errorBus, logger)
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: storeSet.ready,
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// storeSet bundles the storage ports a deployment mode provides.
type storeSet struct {
	factory  uow.Factory
	notifier realtime.Notifier
	sessions domainauth.SessionStore
	claims   infraoutbox.ClaimStore
	ready    func() error
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (storeSet, error) {
	// Sessions are process-local in both modes; a restart signs everyone out.
	sessions := memory.NewSessionStore()

	if cfg.StoreMode == "mongo" {
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storeSet{}, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			return storeSet{}, err
		}
		logger.Info("mongo store ready", "db", cfg.MongoDB)
		return storeSet{
			factory:  mongostore.Factory{DB: client.DB},
			notifier: &mongostore.Watcher{DB: client.DB, Logger: logger},
			sessions: sessions,
			claims:   mongostore.NewOutboxStore(client.DB),
			ready: func() error {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return client.Ping(pingCtx)
			},
		}, nil
	}

	store := memory.NewStore()
	logger.Info("memory store ready")
	return storeSet{
		factory:  memory.Factory{Store: store},
		notifier: store,
		sessions: sessions,
		claims:   memory.NewOutboxStore(store),
		ready:    func() error { return nil },
	}, nil
}

func buildHandlers(cfg config.Config, stores storeSet, errorBus *errbus.Bus, logger *slog.Logger) ginserver.Handlers {
	encoder := appoutbox.JSONEventEncoder{}

	tracker := &presence.Tracker{UoW: stores.factory, Errors: errorBus}
	syncer := &realtime.Syncer{UoW: stores.factory, Notify: stores.notifier, Logger: logger}

	authService := &authsvc.Service{
		UoW:        stores.factory,
		Sessions:   stores.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Presence:   tracker,
		Errors:     errorBus,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	usersService := &appusers.Service{UoW: stores.factory, Errors: errorBus, Logger: logger}
	friendsService := &appfriends.Service{UoW: stores.factory, Errors: errorBus, Encoder: encoder, Logger: logger}
	directory := &appchat.Directory{UoW: stores.factory, Errors: errorBus, Encoder: encoder, Logger: logger}
	messageLog := &appchat.Log{UoW: stores.factory, Errors: errorBus, Sync: syncer, Encoder: encoder, Logger: logger}

	return ginserver.Handlers{
		Auth:     ginserver.AuthHandler{Service: authService, Users: usersService, Logger: logger},
		Users:    ginserver.UsersHandler{Service: usersService, Logger: logger},
		Friends:  ginserver.FriendsHandler{Service: friendsService, Logger: logger},
		Chat:     ginserver.ChatHandler{Directory: directory, Log: messageLog, Sync: syncer, Logger: logger},
		Realtime: ginserver.NewRealtimeHandler(directory, syncer, tracker, logger),
		AuthMiddleware: ginserver.AuthMiddleware{
			Service: authService,
			Logger:  logger,
		}.Handle,
	}
}
