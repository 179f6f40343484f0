package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cnt "github.com/R3DPanda1/LWN-Sim-Node/controllers"
	"github.com/R3DPanda1/LWN-Sim-Node/models"
	repo "github.com/R3DPanda1/LWN-Sim-Node/repositories"
	"github.com/R3DPanda1/LWN-Sim-Node/shared"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/logging"
	ws "github.com/R3DPanda1/LWN-Sim-Node/webserver"
)

type Options struct {
	Config   string `short:"c" long:"config" default:"config.json" description:"Path to the JSON configuration file"`
	Product  string `short:"p" long:"product" description:"Override the node product (model4928, catena4610)"`
	Inactive bool   `long:"inactive" description:"Start with the measurement loop deactivated"`

	Verbose     []bool `short:"v" long:"verbose" description:"Verbose logging, repeat for trace"`
	ShowVersion func() `short:"V" long:"version" description:"Show application version"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts Options
	opts.ShowVersion = func() {
		fmt.Printf("lwn-sim-node %s\n", shared.Version)
		os.Exit(0)
	}
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Printf("Argument parser error: %s\n", err)
		return 1
	}

	cfg, err := models.GetConfigFile(opts.Config)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = models.DefaultServerConfig()
	case err != nil:
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}
	applyOptions(cfg, opts)

	logging.Setup(cfg.Logging)
	slog.Info("simulator starting", "version", shared.Version, "config", opts.Config)
	if cfg.Verbose {
		shared.Verbose = true
		shared.DebugPrint("Verbose mode enabled")
	}

	simulatorRepository := repo.NewSimulatorRepository()
	simulatorController := cnt.NewSimulatorController(simulatorRepository)
	if err := simulatorController.GetInstance(cfg); err != nil {
		slog.Error("simulator setup failed", "error", err)
		return 1
	}
	slog.Info("simulator ready", "dev_addr", simulatorController.DevAddr(), "product", cfg.Node.Product)

	go startMetrics(cfg)

	if cfg.AutoStart {
		slog.Info("auto-starting simulation")
		simulatorController.Run()
	} else {
		slog.Info("autostart not enabled")
	}

	webServer := ws.NewWebServer(cfg, simulatorController)
	go func() {
		if err := webServer.Run(); err != nil {
			slog.Error("web server stopped", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	slog.Info("signal received, shutting down", "signal", s.String())

	simulatorController.Stop()
	_ = webServer.Close()
	return 0
}

// applyOptions lets command line flags override the configuration file.
func applyOptions(cfg *models.ServerConfig, opts Options) {
	if opts.Product != "" {
		cfg.Node.Product = opts.Product
	}
	if opts.Inactive {
		cfg.Node.Loop.Active = false
	}
	switch len(opts.Verbose) {
	case 0:
	case 1:
		cfg.Verbose = true
		cfg.Logging.Level = "debug"
	default:
		cfg.Verbose = true
		cfg.Logging.Level = "trace"
	}
}

// Prometheus metrics server
func startMetrics(cfg *models.ServerConfig) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(cfg.Address+":"+strconv.Itoa(cfg.MetricsPort), mux)
	if err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
