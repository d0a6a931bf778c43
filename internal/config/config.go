// Package config parses the nntpsink CLI surface with pflag, grounded on
// the -V/-D/-S/-I/-h/-l/-p/-t flag set in original_source/nntpsink.c's
// getopt(3) loop and the telemetry tool flag style in
// malbeclabs-doublezero's cmd/packet-sender.
package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Version is reported by -V. The CAPABILITIES IMPLEMENTATION line uses
// proto.Version, which holds the same value.
const Version = "1.0"

// Config holds the fully parsed and validated CLI surface.
type Config struct {
	Debug       bool
	DoIhave     bool
	DoStreaming bool
	Host        string
	Port        string
	Threads     int
}

// ErrVersionRequested and ErrHelpRequested are returned by Parse when -V or
// -h was given; the caller should print nothing further and exit 0.
var (
	ErrVersionRequested = errors.New("config: version requested")
	ErrHelpRequested    = errors.New("config: help requested")
)

// Parse parses args (excluding the program name, i.e. os.Args[1:]) and
// returns a validated Config. On any fatal condition — both -I and -S
// given, a non-option positional argument, -t <= 0, or an unparseable flag
// — it returns an error and the caller should print it to stderr and exit
// nonzero, per the three-error-class design's startup-error class.
func Parse(progname string, args []string, stderr io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet(progname, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usageText(progname)) }

	version := fs.BoolP("version", "V", false, "print version and exit")
	debug := fs.BoolP("debug", "D", false, "show data received")
	ihaveOnly := fs.BoolP("ihave-only", "I", false, "support IHAVE only (not streaming)")
	streamingOnly := fs.BoolP("streaming-only", "S", false, "support streaming only (not IHAVE)")
	host := fs.StringP("listen", "l", "localhost", "address to listen on")
	port := fs.StringP("port", "p", "119", "port to listen on")
	threads := fs.IntP("threads", "t", 1, "number of processing threads")
	help := fs.BoolP("help", "h", false, "print this text")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *help {
		fs.Usage()
		return nil, ErrHelpRequested
	}
	if *version {
		fmt.Fprintf(stderr, "nntpsink %s\n", Version)
		return nil, ErrVersionRequested
	}

	cfg := &Config{
		Debug:       *debug,
		DoIhave:     !*streamingOnly,
		DoStreaming: !*ihaveOnly,
		Host:        *host,
		Port:        *port,
		Threads:     *threads,
	}

	if *ihaveOnly && *streamingOnly {
		return nil, fmt.Errorf("%s: -I and -S may not both be specified", progname)
	}
	if *threads <= 0 {
		return nil, fmt.Errorf("%s: threads must be greater than zero", progname)
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("%s: unexpected argument %q", progname, fs.Arg(0))
	}

	return cfg, nil
}

func usageText(progname string) string {
	return fmt.Sprintf(
		"usage: %s [-VDhIS] [-t <threads>] [-l <host>] [-p <port>]\n"+
			"\n"+
			"    -V                   print version and exit\n"+
			"    -h                   print this text\n"+
			"    -D                   show data received\n"+
			"    -I                   support IHAVE only (not streaming)\n"+
			"    -S                   support streaming only (not IHAVE)\n"+
			"    -l <host>            address to listen on (default: localhost)\n"+
			"    -p <port>            port to listen on (default: 119)\n"+
			"    -t <threads>         number of processing threads (default: 1)\n",
		progname)
}
