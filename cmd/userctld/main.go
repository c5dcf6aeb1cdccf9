// Command userctld is the per-user resource-control daemon: it loads class
// files, evaluates active and newly-logged-in users against them, enforces
// the winning class's controls via systemctl, and exports its RPC surface
// over D-Bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/api"
	"github.com/dylangardner/userctl/pkg/config"
	"github.com/dylangardner/userctl/pkg/daemon"
	"github.com/dylangardner/userctl/pkg/metrics"
	"github.com/dylangardner/userctl/pkg/rpc"
	"github.com/dylangardner/userctl/pkg/session"
	"github.com/dylangardner/userctl/pkg/watch"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	cfgFile  string
	watchDir bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "userctld",
		Short: "Per-user resource-control daemon",
		Long: `userctld loads resource-control class files from a directory, evaluates
active and newly logged-in users against them by priority, and enforces the
winning class's controls on the user's systemd slice unit via
"systemctl set-property". Its RPC surface (ListClasses, GetClass, Evaluate,
Reload, DaemonReload, SetProperty) is exported over D-Bus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/userctl/config.yaml)")
	rootCmd.Flags().BoolVar(&watchDir, "watch", false, "watch the class directory and reload automatically on changes")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("userctld %s (commit: %s)\n", version, commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var daemonMetrics *metrics.DaemonMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		daemonMetrics = metrics.NewDaemonMetrics()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	sessionMgr, err := session.Connect()
	if err != nil {
		return fmt.Errorf("connect to logind: %w", err)
	}
	defer sessionMgr.Close()

	dc, err := daemon.New(daemon.Options{
		ClassDir:         cfg.ClassDir,
		ClassExt:         cfg.ClassExt,
		RegistryCapacity: cfg.RegistryCapacity,
		SystemctlBinary:  cfg.SystemctlBinary,
		Session:          sessionMgr,
		Metrics:          daemonMetrics,
	})
	if err != nil {
		return fmt.Errorf("init daemon: %w", err)
	}
	logger.Info("class registry loaded", "class_dir", cfg.ClassDir, "classes", len(dc.ListClasses()))

	server, err := rpc.NewServer(dc, daemonMetrics, cfg.DBus.BusName, dbus.ObjectPath(cfg.DBus.ObjectPath), cfg.DBus.SessionBus)
	if err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	defer func() { _ = server.Close() }()
	logger.Info("rpc surface exported", "bus_name", cfg.DBus.BusName, "object_path", cfg.DBus.ObjectPath)

	eventLoopDone := make(chan error, 1)
	go func() {
		eventLoopDone <- daemon.RunEventLoop(ctx, dc, sessionMgr)
	}()

	if watchDir {
		go func() {
			if err := watch.Run(ctx, cfg.ClassDir, dc); err != nil {
				logger.Warn("class directory watch stopped", logger.Err(err))
			}
		}()
	}

	ambientServers := startAmbientServers(ctx, cfg, dc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("userctld running")
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-eventLoopDone:
		if err != nil {
			logger.Error("event loop stopped with error", logger.Err(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	for _, s := range ambientServers {
		_ = s.Stop(shutdownCtx)
	}
	cancel()

	return nil
}

func startAmbientServers(ctx context.Context, cfg *config.Config, dc *daemon.Context) []*api.Server {
	var servers []*api.Server

	if cfg.Health.Enabled {
		healthSrv := api.NewHealthServer(api.ServerConfig{Enabled: true, Port: cfg.Health.Port}, dc.Registry())
		go func() { _ = healthSrv.Start(ctx) }()
		servers = append(servers, healthSrv)
	}

	if cfg.Metrics.Enabled {
		metricsSrv := api.NewMetricsServer(api.ServerConfig{Enabled: true, Port: cfg.Metrics.Port}, metrics.GetRegistry())
		go func() { _ = metricsSrv.Start(ctx) }()
		servers = append(servers, metricsSrv)
	}

	return servers
}
