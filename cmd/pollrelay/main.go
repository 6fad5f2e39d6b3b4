// pollrelay
// poll an upstream HTTP endpoint on a delay-after-work interval:
// the next poll is scheduled when the previous one is fully handled,
// so a recovering upstream never gets hit by a burst of overdue polls.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pollrelay/pollrelay/cfg"
	"github.com/pollrelay/pollrelay/clock"
	"github.com/pollrelay/pollrelay/logger"
	"github.com/pollrelay/pollrelay/poller"
	"github.com/pollrelay/pollrelay/stats"
	"github.com/pollrelay/pollrelay/ui/web"
)

var (
	config_file string
	config      = cfg.NewConfig()
	enablePprof = flag.Bool("enable-pprof", false, "Will enable debug endpoints on /debug/pprof/")
	Version     = "unknown"
)

// how often the status summary gets logged, aligned to the wall clock
const statusLogPeriod = time.Minute

func usage() {
	header := `Usage:
        pollrelay version
        pollrelay <path-to-config>
	`
	fmt.Fprintln(os.Stderr, header)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	config_file = "/etc/pollrelay.toml"
	if 1 == flag.NArg() {
		val := flag.Arg(0)
		if val == "version" {
			fmt.Printf("pollrelay %s (built with %s)\n", Version, runtime.Version())
			return
		}
		config_file = val
	}

	var err error
	config, _, err = cfg.NewFromFile(config_file)
	if err != nil {
		log.Fatalf("%s", err.Error())
	}

	formatter := &logger.TextFormatter{}
	formatter.TimestampFormat = "2006-01-02 15:04:05.000"
	log.SetFormatter(formatter)
	lvl, err := log.ParseLevel(config.Log_level)
	if err != nil {
		log.Fatalf("failed to parse log-level %q: %s", config.Log_level, err.Error())
	}
	log.SetLevel(lvl)

	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config file %q: %s", config_file, err.Error())
	}

	log.Infof("===== pollrelay instance '%s' starting. (version %s) =====", config.Instance, Version)

	stats.New(config.Instance)

	if config.Pid_file != "" {
		f, err := os.Create(config.Pid_file)
		if err != nil {
			log.Fatalf("error creating pidfile: %s", err.Error())
		}
		_, err = f.Write([]byte(fmt.Sprintf("%d", os.Getpid())))
		if err != nil {
			log.Fatalf("error writing to pidfile: %s", err.Error())
		}
		f.Close()
	}

	p, err := poller.New(
		clock.System(),
		config.Upstream_url,
		config.Poll_interval.Duration,
		config.Request_timeout.Duration,
		config.Retry_max,
		config.Backoff_min.Duration,
		config.Backoff_max.Duration,
	)
	if err != nil {
		log.Fatalf("can't create poller: %s", err.Error())
	}

	if config.Http_addr != "" {
		go web.Start(config.Http_addr, config, p, *enablePprof)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go logStatus(ctx, p)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("Received signal %q. Shutting down", sig)
		cancel()
	}()

	if err := p.Run(ctx); err != nil {
		log.Fatalf("%s", err.Error())
	}
	log.Info("pollrelay shutdown complete")
}

// logStatus periodically logs a one-line poller summary on a
// grid-aligned tick, so summaries from multiple instances line up.
func logStatus(ctx context.Context, p *poller.Poller) {
	tick := clock.AlignedTick(statusLogPeriod, 0, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s := p.Snapshot()
			if s.LastError != "" {
				log.Warnf("status: %d polls, %d consecutive failures, last error: %s", s.Polls, s.ConsecutiveFails, s.LastError)
			} else {
				log.Infof("status: %d polls, last success %s, roundtrip %s", s.Polls, s.LastSuccess.Format(time.RFC3339), s.LastRoundtrip)
			}
		}
	}
}
