package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/broker"
	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/config"
	"chat-pipeline/internal/db"
	"chat-pipeline/internal/handlers"
	"chat-pipeline/internal/middleware"
	"chat-pipeline/internal/observability"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/repositories"
	"chat-pipeline/internal/telemetry"
	"chat-pipeline/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, "chat-pipeline", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	store, err := cache.NewRedisStore(ctx, cfg.RedisURL, cfg.Deployment, cfg.CacheCap, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("failed to configure cache: %v", err)
	}
	defer store.Close()

	messageRepo := repositories.NewMessageRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)

	hub := ws.NewHub(store, presenceRepo)
	go hub.Run(ctx)

	publisher := broker.NewPublisher(cfg.AMQPURL, cfg.Exchange, cfg.BrokerTimeout)
	defer publisher.Close()

	state := pipeline.NewState()
	state.SetBrokerUp(broker.PublisherMode(publisher) == "amqp")
	state.SetStoreUp(true)

	audit := telemetry.NewAuditEmitter(publisher, "audit.pipeline", "chat-pipeline", cfg.Env)

	consumer, err := broker.NewConsumer(cfg.AMQPURL, cfg.Exchange, cfg.Deployment, store, messageRepo, state, cfg.MaxBodyBytes)
	if err != nil {
		log.Printf("consumer disabled: %v", err)
	} else {
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer stopped: %v", err)
			}
		}()
	}

	owner := uuid.NewString()
	writer := pipeline.NewBatchWriter(store, messageRepo, state, owner, cfg.LockTTL, cfg.BatchMax)
	reconciler := pipeline.NewReconciler(store, presenceRepo, hub, state)
	supervisor := pipeline.NewSupervisor(state, writer, reconciler, audit, cfg.WriterPeriod, cfg.ReconcilePeriod)
	supervisor.Start(ctx)
	defer supervisor.Stop()

	// Stand-ins for the external auth service; swap for real clients in
	// deployment wiring.
	validator := auth.DevValidator{}
	authorizer := auth.DevAuthorizer{}

	messageHandler := handlers.NewMessageHandler(publisher, messageRepo, store, hub, authorizer, state, cfg.MaxBodyBytes)
	healthHandler := handlers.NewHealthHandler(state, store, database, hub)
	roomWS := ws.NewRoomWebSocketHandler(hub, authorizer, validator)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-pipeline"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator)

	router.POST("/rooms/:room_key/messages", authMiddleware, messageHandler.PostRoomMessage)
	router.GET("/rooms/:room_key/messages", authMiddleware, messageHandler.GetRoomMessages)
	router.GET("/ws/rooms/:room_key", roomWS.Handle)
	router.GET("/healthz", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("listening on :%s deployment=%s owner=%s publisher=%s", cfg.Port, cfg.Deployment, owner, broker.PublisherMode(publisher))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
