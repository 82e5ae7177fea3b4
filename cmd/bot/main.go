package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsekit/pulseboard/internal/bot"
	"github.com/pulsekit/pulseboard/internal/database/batch"
	"github.com/pulsekit/pulseboard/internal/setup"
	"github.com/pulsekit/pulseboard/internal/worker/core"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	ctx := context.Background()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	// Batch writer coalesces gateway events into grouped database writes
	writer := batch.NewWriter(app.DB.Model(), &app.Config.Bot.Batch, app.Logger)

	// Create bot instance
	discordBot, err := bot.New(
		&app.Config.Bot,
		app.DB,
		writer,
		app.Metrics,
		app.HealthChecker(),
		core.NewMonitor(app.StatusClient, app.Logger),
		app.Logger,
	)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures all pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the Discord session and flush pending writes
	discordBot.Close()
	writer.Close()
}
