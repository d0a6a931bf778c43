// Command nntpsink is a dummy NNTP feed sink for load-testing NNTP
// feeders: it accepts connections, speaks just enough of CAPABILITIES,
// MODE STREAM, CHECK, TAKETHIS, IHAVE and QUIT to let a feeder believe
// articles are being accepted, and discards everything. Grounded on
// original_source/nntpsink.c's main().
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/go-eventloop/internal/config"
	"github.com/joeycumines/go-eventloop/internal/nntplog"
	"github.com/joeycumines/go-eventloop/internal/server"
	"github.com/joeycumines/go-eventloop/internal/stats"
)

func main() {
	os.Exit(run())
}

func run() int {
	// SIGPIPE must be ignored process-wide so a write to a peer that has
	// already closed its read side surfaces as EPIPE on the failing
	// write(2), handled by the ordinary close path, rather than killing
	// the process.
	signal.Ignore(syscall.SIGPIPE)

	progname := "nntpsink"
	if len(os.Args) > 0 {
		progname = os.Args[0]
	}

	cfg, err := config.Parse(progname, os.Args[1:], os.Stderr)
	if err != nil {
		switch err {
		case config.ErrVersionRequested, config.ErrHelpRequested:
			return 0
		default:
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	log := nntplog.New(os.Stderr)

	counters := &stats.Counters{}
	srv, err := server.New(server.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Threads:     cfg.Threads,
		DoIhave:     cfg.DoIhave,
		DoStreaming: cfg.DoStreaming,
		Debug:       cfg.Debug,
	}, log, counters)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ticker := stats.NewTicker(counters, os.Stdout)
	tickerStop := make(chan struct{})
	go ticker.Run(tickerStop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Stop()
	}()

	runErr := srv.Run()
	close(tickerStop)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}
