package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clusterconf/internal/config"
	"github.com/dropDatabas3/clusterconf/internal/node"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/setting"
)

var version = "dev"

func main() {
	var (
		daemonConfig string
		configFile   string
		envFile      string
	)
	values := map[*setting.Setting]*string{}

	root := &cobra.Command{
		Use:           "node",
		Short:         "Nodo del cluster: bootstrap de la topología y API del protocolo de cambios",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("env file: %w", err)
			}
			cfg, err := config.Load(daemonConfig)
			if err != nil {
				return err
			}
			if cfg.App.Version == "" {
				cfg.App.Version = version
			}
			if configFile != "" {
				cfg.Node.ConfigFile = configFile
			}

			// sólo los flags pasados explícitamente
			cli := map[*setting.Setting]string{}
			for s, v := range values {
				if cmd.Flags().Changed(s.Name()) {
					cli[s] = *v
				}
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: "clusterconf-node",
				Version:     cfg.App.Version,
				NodeName:    cli[setting.NodeName],
			})
			defer func() { _ = logger.Sync() }()
			log := logger.S()
			log.Infow("starting node", "configFile", cfg.Node.ConfigFile, "store", cfg.Store.Driver)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n, err := node.New(ctx, cfg, node.Params{ConfigFile: cfg.Node.ConfigFile, CLI: cli}, logger.Named("node"))
			if err != nil {
				log.Errorw("node bootstrap failed", "error", err)
				return err
			}
			return n.Run(ctx)
		},
	}

	root.Flags().StringVar(&daemonConfig, "config", envOr("CONFIG_PATH", "config.yaml"), "YAML del daemon (env CONFIG_PATH)")
	root.Flags().StringVarP(&configFile, "config-file", "f", "", "Archivo de propiedades con el cluster")
	root.Flags().StringVar(&envFile, "env-file", ".env", "Archivo .env opcional")
	for _, s := range setting.CLISettings() {
		v := new(string)
		values[s] = v
		root.Flags().StringVar(v, s.Name(), "", fmt.Sprintf("Setting %s (scope %s)", s.Name(), s.Scope()))
	}

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
