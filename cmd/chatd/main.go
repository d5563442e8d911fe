package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/sportsmeet/listing-chat/internal/config"
	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/internal/handler"
	"github.com/sportsmeet/listing-chat/internal/hub"
	"github.com/sportsmeet/listing-chat/internal/membership"
	"github.com/sportsmeet/listing-chat/internal/moderation"
	"github.com/sportsmeet/listing-chat/internal/repository"
	"github.com/sportsmeet/listing-chat/internal/service"
	"github.com/sportsmeet/listing-chat/pkg/database"
	"github.com/sportsmeet/listing-chat/pkg/log"
	"github.com/sportsmeet/listing-chat/pkg/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log.Init(cfg.Log)
	logger := log.L()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Listings, members and users belong to the marketplace core; this
	// service only migrates its own tables.
	if err := database.AutoMigrate(db, &domain.MessageModel{}, &domain.UnreadMarkModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	members := membership.NewGormProvider(db)
	messages := repository.NewGormMessageRepository(db)
	unread := repository.NewGormUnreadRepository(db)

	denylist := append(append([]string{}, moderation.DefaultDenylist...), cfg.Chat.BannedWords...)
	pipeline := moderation.NewPipeline(cfg.Chat.MaxMessageLen, denylist)
	chatSvc := service.NewChatService(messages, members, pipeline)
	inboxSvc := service.NewInboxService(unread, members)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wsHub := hub.NewHub(cfg.WebSocket)
	if cfg.Redis.Enabled {
		ps, err := pubsub.NewRedisPubSub(cfg.Redis.PubSub)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer ps.Close()
		wsHub = hub.NewHubWithBackplane(cfg.WebSocket, ps, cfg.Redis.InstanceID)
		logger.Info().Str("address", cfg.Redis.PubSub.Address).Msg("fan-out backplane enabled")
	}
	go wsHub.Run()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(logger))

	handler.NewHandler(chatSvc, inboxSvc, members, cfg.Chat.PageSize).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, members, cfg.WebSocket).RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listing chat listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Redis.Enabled {
		g.Go(func() error {
			return wsHub.RunBackplane(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("service error")
	}
	logger.Info().Msg("listing chat stopped")
}
