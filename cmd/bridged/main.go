// bridged serves a scriptbridge session over Connect and gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/config"
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/server"
	"github.com/chazu/scriptbridge/statestore"
)

var log = commonlog.GetLogger("scriptbridge.bridged")

func main() {
	configPath := flag.String("config", "", "Config file (default: scriptbridge.toml found from the working directory up)")
	addr := flag.String("addr", "", "Listen address (overrides the config)")
	verbosity := flag.Int("v", 0, "Log verbosity (overrides the config when non-zero)")
	fixtures := flag.Bool("fixtures", false, "Register the test fixture modules (needs -tags fixtures)")
	noStore := flag.Bool("no-store", false, "Do not open the saved-state store")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bridged [options]\n\n")
		fmt.Fprintf(os.Stderr, "Serves a script bridge session to remote clients.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bridged -fixtures -v 2               # Serve the fixture modules (built with -tags fixtures)\n")
		fmt.Fprintf(os.Stderr, "  bridged -config ./bridge.yaml        # Use a YAML config\n")
		fmt.Fprintf(os.Stderr, "  bridged -addr :7420 -no-store        # No saved-state service\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *verbosity != 0 {
		cfg.Log.Verbosity = *verbosity
	}

	var logPath *string
	if cfg.Log.Path != "" {
		logPath = &cfg.Log.Path
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	if err := run(cfg, *fixtures, !*noStore); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func run(cfg *config.Config, fixtures, withStore bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := script.NewRuntime()
	if fixtures {
		var err error
		if rt, err = fixtureRuntime(); err != nil {
			return err
		}
	}
	if cfg.Path != "" {
		log.Infof("config: %s", cfg.Path)
	}

	sess := bridge.Open(rt, cfg.SessionOptions()...)
	defer sess.Close()

	var opts []server.ServerOption
	if withStore {
		store, err := statestore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("state store: %w", err)
		}
		defer store.Close()
		log.Infof("state store: %s %s", store.Driver(), cfg.Store.DSN)
		opts = append(opts, server.WithStateStore(store))
	}

	srv := server.New(sess, opts...)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
