package main

import (
	"github.com/legitrack/relnet/backend/internal/server"
	"github.com/legitrack/relnet/backend/internal/util"
	"github.com/legitrack/relnet/backend/pkg/logger"
	"github.com/legitrack/relnet/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	server.Init()
}
