// Command registry serves the node registry used by ralock nodes in multi
// mode to find each other.
package main

import (
	"bufio"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jathurchan/ralock/discovery"
	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/transport"
)

const (
	exitSuccess = 0
	exitFailure = 1

	defaultListenAddr = ":1099"
)

func main() {
	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	listen := fs.String("listen", defaultListenAddr, "Address to serve the registry on")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitSuccess)
		}
		os.Exit(exitFailure)
	}

	lg := logger.NewStdLogger(*logLevel)

	srv, err := discovery.NewRegistryServer(discovery.NewMemoryRegistry(lg), *listen, lg, transport.DefaultServerOptions())
	if err != nil {
		log.Printf("Failed to create registry server: %v", err)
		os.Exit(exitFailure)
	}
	if err := srv.Start(); err != nil {
		log.Printf("Failed to start registry server: %v", err)
		os.Exit(exitFailure)
	}
	lg.Infow("Registry ready, press Enter to stop", "addr", srv.Addr())

	stop := make(chan struct{}, 2)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		lg.Infow("Received signal", "signal", sig)
		stop <- struct{}{}
	}()
	go func() {
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err == nil {
			stop <- struct{}{}
		}
	}()
	<-stop

	if err := srv.Stop(); err != nil {
		lg.Errorw("Registry shutdown failed", "error", err)
		os.Exit(exitFailure)
	}
	lg.Infow("Registry stopped")
	os.Exit(exitSuccess)
}
