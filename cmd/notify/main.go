// Command notify announces a rebuilt co-occurrence table so that running
// servers drop their cached networks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/legitrack/relnet/backend/internal/queue"
	"github.com/legitrack/relnet/backend/internal/util"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	if !queue.Configured() {
		logger.Fatal("RABBITMQ_HOST is not set")
	}

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	msg := queue.RefreshMessage{
		Source:      util.GetEnvString("REFRESH_SOURCE", "notify"),
		RefreshedAt: time.Now().UTC(),
		Rows:        int64(util.GetEnvNumeric("REFRESH_ROWS", 0)),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := queue.PublishRefresh(ctx, ch, msg); err != nil {
		logger.Fatal("Failed to publish refresh", "err", err)
	}
	logger.Info("Published refresh", "source", msg.Source, "rows", msg.Rows)
}
