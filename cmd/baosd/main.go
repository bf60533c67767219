// Command baosd is the KNX-blind gateway process: it opens the serial
// link to the bus interface, runs the core estimator/planner, and
// serves the TCP control protocol and optional mDNS advertisement.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/User65k/baos/internal/config"
	"github.com/User65k/baos/internal/discovery"
	"github.com/User65k/baos/internal/ft12"
	"github.com/User65k/baos/internal/gateway"
	"github.com/User65k/baos/internal/hotplug"
	"github.com/User65k/baos/internal/hwreset"
	"github.com/User65k/baos/internal/logging"
	"github.com/User65k/baos/internal/planner"
	"github.com/User65k/baos/internal/serialio"
	"github.com/User65k/baos/internal/tcpctl"
)

func main() {
	var configFile = pflag.StringP("config", "c", "", "Configuration file (YAML). Flags below override its fields.")
	var device = pflag.StringP("device", "d", "", "Serial device overriding the config file.")
	var listen = pflag.StringP("listen", "l", "", "Control server listen address overriding the config file.")
	var verbose = pflag.BoolP("verbose", "v", false, "Log at debug level.")
	var dryRun = pflag.Bool("dry-run", false, "Load config and log the resolved settings without touching hardware.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - KNX-bus blind gateway.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *listen != "" {
		cfg.TCP.Listen = *listen
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	logger, trace, err := logging.New(cfg.Log.Level, cfg.Log.TraceFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("resolved configuration",
		"device", cfg.Serial.Device, "baud", cfg.Serial.Baud,
		"listen", cfg.TCP.Listen, "mdns", cfg.MDNS.Enabled)

	if *dryRun {
		logger.Info("dry run requested, exiting without touching hardware")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, trace); err != nil {
		logger.Error("gateway exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger, trace *log.Logger) error {
	if cfg.Serial.ResetGPIO.Chip != "" {
		line := hwreset.Line{Chip: cfg.Serial.ResetGPIO.Chip, Offset: cfg.Serial.ResetGPIO.Line}
		if err := hwreset.Pulse(line, 100*time.Millisecond, logger); err != nil {
			return fmt.Errorf("hardware reset: %w", err)
		}
	}

	if cfg.Serial.WaitForDevice {
		if err := hotplug.WaitForDevice(ctx, cfg.Serial.Device, logger); err != nil {
			return fmt.Errorf("waiting for serial device: %w", err)
		}
	}

	ch, err := serialio.Open(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		return fmt.Errorf("open serial device: %w", err)
	}
	defer ch.Close()

	link := ft12.New(ch, logger, trace)
	if err := link.Reset(ctx); err != nil {
		return fmt.Errorf("link reset: %w", err)
	}
	if err := link.Initialize(ctx); err != nil {
		return fmt.Errorf("device initialization: %w", err)
	}

	timing := planner.Timing{FullTravel: cfg.Timing.FullTravel, FullTurn: cfg.Timing.FullTurn}
	gw := gateway.New(link, timing, logger, trace)
	go gw.Run(ctx)

	ln, err := net.Listen("tcp", cfg.TCP.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.TCP.Listen, err)
	}
	defer ln.Close()

	if cfg.MDNS.Enabled {
		port := tcpPort(ln.Addr())
		if err := discovery.Announce(ctx, cfg.MDNS.Instance, port, logger); err != nil {
			logger.Warn("mdns announcement failed, continuing without it", "err", err)
		}
	}

	srv := tcpctl.New(gw, logger)
	logger.Info("control server listening", "addr", ln.Addr())

	errs := make(chan error, 2)
	go func() { errs <- srv.Serve(ctx, ln) }()
	go func() {
		for err := range gw.Errs() {
			errs <- err
			return
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

func tcpPort(addr net.Addr) int {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}
