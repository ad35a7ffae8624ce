package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/clusterconf/internal/configtool"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
)

func main() {
	// .env opcional (CONFIGTOOL_*, LOG_LEVEL)
	_ = godotenv.Load()

	logger.Init(logger.Config{
		Env:         "dev",
		Level:       envOr("LOG_LEVEL", "warn"),
		ServiceName: "configtool",
	})
	defer func() { _ = logger.Sync() }()

	timeout := 30 * time.Second
	if v := os.Getenv("CONFIGTOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: CONFIGTOOL_TIMEOUT:", err)
			os.Exit(2)
		}
		timeout = d
	}

	transport := protocol.NewHTTPTransport(timeout)
	if envOr("CONFIGTOOL_SCHEME", "http") == "https" {
		transport.Scheme = "https"
	}
	root := configtool.NewCommand(transport, configtool.Options{
		Timeout: 2 * timeout,
		Logger:  logger.Named("configtool"),
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
