// Command peapod is a transparent IEEE 802.1X EAPOL proxy between two
// or more Ethernet interfaces.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kangtastic/peapod/internal/config"
	"github.com/kangtastic/peapod/internal/daemon"
	"github.com/kangtastic/peapod/internal/logging"
	"github.com/kangtastic/peapod/internal/metrics"
	"github.com/kangtastic/peapod/internal/pidfile"
	"github.com/kangtastic/peapod/internal/proxy"
)

const (
	defaultPIDPath = "/var/run/peapod.pid"
	defaultLogPath = "/var/log/peapod.log"
)

type cliArgs struct {
	help        bool
	daemonize   bool
	pidPath     string
	configPath  string
	testConfig  bool
	logPath     string
	logGiven    bool
	syslog      bool
	verbosity   int
	quietScript bool
	noColor     bool
	oneshot     bool
	metricsAddr string
}

func parseArgs() *cliArgs {
	a := &cliArgs{pidPath: defaultPIDPath, configPath: config.DefaultPath}

	bothBool := func(short, long string, dst *bool, usage string) {
		flag.BoolVar(dst, short, false, usage)
		flag.BoolVar(dst, long, false, usage)
	}
	bothString := func(short, long string, dst *string, def, usage string) {
		flag.StringVar(dst, short, def, usage)
		flag.StringVar(dst, long, def, usage)
	}

	bothBool("h", "help", &a.help, "print this help message")
	bothBool("d", "daemon", &a.daemonize, "daemonize after startup")
	bothString("p", "pid", &a.pidPath, defaultPIDPath, "PID file path")
	bothString("c", "config", &a.configPath, config.DefaultPath, "config file path")
	bothBool("t", "test-config", &a.testConfig, "load and print the config, then exit")
	bothBool("s", "syslog", &a.syslog, "also log to syslog")
	bothBool("q", "quiet-script", &a.quietScript, "log action scripts at info instead of notice level")
	bothBool("n", "no-color", &a.noColor, "disable ANSI color in console log output")
	bothBool("o", "oneshot", &a.oneshot, "exit instead of restarting after a runtime error")
	flag.StringVar(&a.metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (disabled if empty)")

	logFlag := func(name string) {
		flag.Func(name, "log file path (default "+defaultLogPath+" if given with no value)", func(v string) error {
			a.logGiven = true
			if v != "" {
				a.logPath = v
			} else {
				a.logPath = defaultLogPath
			}
			return nil
		})
	}
	logFlag("l")
	logFlag("log")

	verbosity := func() flag.Value { return countingFlag{&a.verbosity} }
	flag.Var(verbosity(), "v", "increase log verbosity (up to 3 times)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	return a
}

// countingFlag implements flag.Value for a boolean-looking flag that
// accumulates each time it's given, for repeatable -v/-vv/-vvv.
type countingFlag struct{ n *int }

func (c countingFlag) String() string { return "" }
func (c countingFlag) Set(string) error {
	*c.n++
	return nil
}
func (c countingFlag) IsBoolFlag() bool { return true }

func main() {
	args := parseArgs()
	if args.help {
		flag.Usage()
		os.Exit(0)
	}

	if err := logging.Init(logging.Options{
		Verbosity: args.verbosity,
		LogFile:   args.logPath,
		NoColor:   args.noColor,
		Syslog:    args.syslog,
		Daemon:    args.daemonize,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "peapod: cannot initialize logging: %v\n", err)
		os.Exit(1)
	}

	table, err := config.Load(args.configPath)
	if err != nil {
		fail("cannot load config: %v", err)
	}

	if args.testConfig {
		out, err := config.Dump(table)
		if err != nil {
			fail("cannot render config: %v", err)
		}
		fmt.Print(out)
		os.Exit(0)
	}

	if args.daemonize {
		if err := daemon.Daemonize(args.pidPath); err != nil {
			fail("cannot daemonize: %v", err)
		}
	} else {
		pf, err := pidfile.Open(args.pidPath)
		if err != nil {
			fail("cannot open PID file: %v", err)
		}
		if err := pf.Write(os.Getpid()); err != nil {
			fail("cannot write PID file: %v", err)
		}
		defer pidfile.Remove(args.pidPath)
		defer pf.Close()
	}

	var collector *metrics.Collector
	if args.metricsAddr != "" {
		collector = metrics.New()
		collector.Serve(args.metricsAddr)
		defer collector.Shutdown()
	}

	loop := &proxy.Loop{
		Table:   table,
		Oneshot: args.oneshot,
		Quiet:   args.quietScript,
		Metrics: collector,
	}

	if err := loop.Run(); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	logging.L().Error().Msgf(format, args...)
	os.Exit(1)
}
