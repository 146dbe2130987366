package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finite-life/finitelife/broker"
	"finite-life/finitelife/config"
	"finite-life/finitelife/database"
	"finite-life/finitelife/middleware"
	"finite-life/finitelife/routes"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(config.Load())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg config.Config) error {
	db, err := database.Setup(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	natsAvailable := true
	if err := broker.InitProducer(cfg); err != nil {
		log.Printf("Warning: Failed to initialize NATS producer: %v", err)
		log.Println("The application will continue, but realtime events will be disabled")
		natsAvailable = false
	} else {
		defer broker.CloseProducer()
	}

	tracker := services.NewSessionTracker()
	defer tracker.Close()

	authService := services.NewAuthService(cfg, services.LogMailer{}, tracker)
	services.AuthServiceInstance = authService

	webSocketService := services.NewWebSocketService(tracker, nil)
	services.WebSocketServiceInstance = webSocketService

	if natsAvailable {
		eventHandlerService := services.NewEventHandlerService(db, broker.DefaultProducer, cfg.EventDispatchSchedule)
		services.EventHandlerServiceInstance = eventHandlerService
		if err := eventHandlerService.Start(); err != nil {
			return err
		}
		defer eventHandlerService.Stop()

		consumer, err := broker.InitConsumer(cfg, []string{broker.AllSubjects}, "")
		if err != nil {
			log.Printf("Warning: Failed to initialize NATS consumer: %v", err)
		} else {
			webSocketService.SetMessageInput(consumer.GetMessageChannel())
		}
		defer broker.CloseAllConsumers()
	} else {
		log.Println("Event dispatcher is disabled due to NATS unavailability")
	}

	webSocketService.Start()
	defer webSocketService.Stop()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	cookie := routes.SessionCookie{Name: cfg.SessionCookie, Secure: cfg.AppEnv == "production"}
	routes.RegisterHealthRoutes(router, db)
	routes.RegisterAuthRoutes(router, db, authService, cookie)
	routes.RegisterWebSocketRoutes(router, db, authService, webSocketService, cfg.SessionCookie)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(db, authService, cfg.SessionCookie))
	routes.RegisterUserRoutes(api, db, services.UserServiceInstance)
	routes.RegisterSettingsRoutes(api, db, services.SettingsServiceInstance)
	routes.RegisterTaskRoutes(api, db, services.TaskServiceInstance)

	if cfg.AppEnv == "development" {
		routes.SetupDebugRoutes(router, db)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("API server is running on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-quit:
		log.Println("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
