// Command prodhub runs the production control hub: it loads a YAML
// device configuration, connects every configured driver, and relays
// OSC traffic between upstream controllers and the devices until it
// receives a shutdown signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mousetraptech/productionhub/internal/config"
	"github.com/mousetraptech/productionhub/internal/diag"
	"github.com/mousetraptech/productionhub/internal/hub"
	"github.com/mousetraptech/productionhub/internal/logging"
)

// REVISION: prodhub-main-v1
const mainRevision = "prodhub-main-v1"

var log = logging.New("main")

func init() {
	log.Debugf("REVISION: %s loaded", mainRevision)
}

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is separated from main so tests can exercise the --check path
// without os.Exit tearing down the test binary.
func run(args []string) int {
	fs := flag.NewFlagSet("prodhub", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML device configuration (required)")
	check := fs.Bool("check", false, "load and validate the configuration, then exit without connecting to any device")
	diagInterval := fs.Duration("diag-interval", 30*time.Second, "periodic memory/goroutine stat logging interval")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "prodhub: -config is required")
		return 2
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Errorf("loading config %q: %v", *configPath, err)
		return 1
	}

	h, err := hub.Build(cfg)
	if err != nil {
		log.Errorf("building hub: %v", err)
		return 1
	}

	if *check {
		log.Infof("config %q is valid: %d device(s) configured", *configPath, len(cfg.Devices))
		return 0
	}

	monitor := diag.NewMonitor(*diagInterval)
	monitor.Start()
	defer monitor.Stop()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	debugDump := make(chan os.Signal, 1)
	signal.Notify(debugDump, syscall.SIGQUIT)
	go func() {
		for range debugDump {
			monitor.DumpGoroutineStacks()
		}
	}()

	log.Infof("starting hub: listen=%s:%d devices=%d", cfg.ListenAddr, cfg.ListenPort, len(cfg.Devices))
	h.Start()

	sig := <-shutdown
	log.Infof("received signal %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
		return 1
	}
	return 0
}
