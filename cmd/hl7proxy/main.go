// Command hl7proxy runs the HL7 MLLP bridge in Server, Client, or Proxy
// mode per the nested "Hl7" configuration document (spec.md §6).
//
// CLI wiring follows the cobra root/flags pattern in the pack's
// Sentinel-Gate and Nirmitee-tech-headless-ehr-fhir command entrypoints;
// graceful shutdown follows the signal.NotifyContext shape in
// alxayo-rtmp-go's cmd/rtmp-server/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/d3sync/hl7proxy/internal/adminhttp"
	"github.com/d3sync/hl7proxy/internal/config"
	"github.com/d3sync/hl7proxy/internal/listener"
	"github.com/d3sync/hl7proxy/internal/metrics"
	"github.com/d3sync/hl7proxy/internal/obslog"
	"github.com/d3sync/hl7proxy/internal/proxy"
	"github.com/d3sync/hl7proxy/internal/stdinclient"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "hl7proxy",
		Short: "HL7 v2 MLLP proxy/bridge",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the Hl7 JSON config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the configured mode and run it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.AddCommand(serveCmd)

	return cmd
}

func run(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := obslog.New(settings.LogFilePath)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.AdminAddr != "" {
		admin := adminhttp.New(settings.AdminAddr, reg, log)
		go func() {
			if err := admin.Run(ctx); err != nil {
				log.Error().Err(err).Msg("admin http server exited")
			}
		}()
	}

	log.Info().Str("mode", string(settings.Mode)).Msg("starting hl7proxy")

	switch settings.Mode {
	case config.ModeProxy:
		return proxy.New(settings, m, log).Run(ctx)
	case config.ModeServer:
		return listener.New(settings, m, log).Run(ctx)
	case config.ModeClient:
		return stdinclient.New(settings, m, log).Run(ctx)
	default:
		return fmt.Errorf("unknown mode %q", settings.Mode)
	}
}
