package main

import (
	"context"
	"estate-chat/internal"
	"estate-chat/internal/app"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// ViewerConfig only needs the badger location, the server settings are not required here.
type ViewerConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config ViewerConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Open Badger in read-only mode, the server may hold the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Debug server only, no engine runs here
	stats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}
	fmt.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
	internal.StartDebugServer(ctx, logger, db, config.DebugPort, app.InspectMapper, stats)
	<-ctx.Done()
}
