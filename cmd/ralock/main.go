// Command ralock runs Ricart–Agrawala nodes that repeatedly compete for a
// shared critical section.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	exitInterrupted = 130 // Exit code for SIGINT or SIGTERM
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitSuccess)
		}
		log.Printf("Configuration error: %v", err)
		os.Exit(exitFailure)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		os.Exit(exitFailure)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	interrupted := make(chan struct{})
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		close(interrupted)
		cancel()
	}()
	go watchQuit(os.Stdin, cancel)

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Printf("ralock failed: %v", err)
		os.Exit(exitFailure)
	}

	select {
	case <-interrupted:
		os.Exit(exitInterrupted)
	default:
		os.Exit(exitSuccess)
	}
}

// watchQuit cancels when a line reading "q" arrives on r.
func watchQuit(r io.Reader, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
			log.Printf("Quit requested, shutting down...")
			cancel()
			return
		}
	}
}
