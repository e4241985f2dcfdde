package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/adapters/bridge"
	"github.com/openmico/speakerbridge/adapters/engine"
	"github.com/openmico/speakerbridge/adapters/mongo"
	"github.com/openmico/speakerbridge/adapters/telemetry"
	"github.com/openmico/speakerbridge/domain/repositories"
	"github.com/openmico/speakerbridge/internal/api"
	"github.com/openmico/speakerbridge/internal/auth"
	"github.com/openmico/speakerbridge/usecase/ingest"
	"github.com/openmico/speakerbridge/usecase/speaker"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	bridgeURL := os.Getenv("BRIDGE_URL")
	if bridgeURL == "" {
		bridgeURL = "ws://127.0.0.1:8389/bridge"
	}

	// Bridge client and playback controller
	client := bridge.NewClient(bridge.Config{URL: bridgeURL}, logger)
	controller := speaker.NewController(client, logger)

	// Optional conversation log
	var conversations repositories.ConversationRepository
	var mongoClient *mongo.Client
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		var err error
		mongoClient, err = mongo.NewClient(uri, logger)
		if err != nil {
			logger.Fatal("Failed to connect conversation log store", zap.Error(err))
		}
		conversations = mongo.NewConversationRepository(mongoClient.Database)
	}

	// Optional telemetry
	var publisher repositories.EventPublisher
	var mqttPublisher *telemetry.MQTTPublisher
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		var err error
		mqttPublisher, err = telemetry.NewMQTTPublisher(telemetry.MQTTConfig{
			Broker:   broker,
			ClientID: os.Getenv("MQTT_CLIENT_ID"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect telemetry publisher", zap.Error(err))
		}
		publisher = mqttPublisher
	}

	// Conversational engine boundary: webhook when configured, log-only
	// otherwise
	var conversationEngine repositories.ConversationEngine
	if webhookURL := os.Getenv("ENGINE_WEBHOOK_URL"); webhookURL != "" {
		webhook, err := engine.NewWebhookEngine(engine.WebhookConfig{URL: webhookURL}, controller, logger)
		if err != nil {
			logger.Fatal("Failed to configure engine webhook", zap.Error(err))
		}
		conversationEngine = webhook
	} else {
		logger.Warn("ENGINE_WEBHOOK_URL not set, utterances will only be logged")
		conversationEngine = engine.NewMockEngine(logger)
	}

	// Connect to the native bridge. Callbacks must be registered before
	// Start; the device ID for the ingestor is read once the connection is
	// up.
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	ingestor := ingest.NewIngestor(controller, conversationEngine, conversations, publisher, "", logger)
	client.OnEvent(ingestor.OnEvent)
	client.OnInputData(ingestor.OnInputData)
	if err := client.Start(startCtx); err != nil {
		logger.Fatal("Failed to connect to native bridge", zap.Error(err))
	}

	info := controller.GetDevice(startCtx)
	ingestor.SetDeviceID(info.SerialNumber)
	logger.Info("Speaker identified",
		zap.String("model", info.Model),
		zap.String("serial_number", info.SerialNumber))

	// Control API
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	authn := auth.NewAuthenticator(os.Getenv("JWT_SECRET"))
	if !authn.Enabled() {
		logger.Warn("JWT_SECRET not set, control API authentication disabled")
	}
	api.InitRoutes(e, controller, conversations, authn, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("speakerbridge started",
		zap.String("port", port),
		zap.String("bridge_url", bridgeURL))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	client.Close()
	if mqttPublisher != nil {
		mqttPublisher.Close()
	}
	if mongoClient != nil {
		if err := mongoClient.Close(shutdownCtx); err != nil {
			logger.Error("Conversation log shutdown failed", zap.Error(err))
		}
	}
}
