// Command ransom-agentd is the detection agent entrypoint.
//
// Startup sequence:
//  1. Parse CLI flags (-c/--config, -l/--log-file, --write-limit, -v/--verbose,
//     -V/--version, -h/--help), or dispatch to the "ledger" subcommand.
//  2. Resolve and load configuration (-c path > ./ransom.conf >
//     /etc/ransom-bpf/ransom.conf > embedded defaults).
//  3. Initialise the three log sinks.
//  4. Print the startup summary.
//  5. Register the SIGSEGV/SIGABRT flush-then-exit handler.
//  6. Open the optional incident ledger and prune stale entries.
//  7. Open the pinned ring buffer map.
//  8. Start the Prometheus metrics server.
//  9. Register the SIGHUP handler (re-reads and checks the config file and
//     logs the result; the running config is not replaced) and the
//     SIGINT/SIGTERM graceful-shutdown handler.
//  10. Run the ingest loop until shutdown.
//
// Shutdown sequence: cancel the root context, wait (bounded) for the ingest
// loop to drain, close the ledger, flush the logger, exit 0.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ransom-agent/ransom-agentd/internal/agentlog"
	"github.com/ransom-agent/ransom-agentd/internal/bpfring"
	"github.com/ransom-agent/ransom-agentd/internal/config"
	"github.com/ransom-agent/ransom-agentd/internal/ingest"
	"github.com/ransom-agent/ransom-agentd/internal/ledger"
	"github.com/ransom-agent/ransom-agentd/internal/metrics"
	"github.com/ransom-agent/ransom-agentd/internal/response"
	"github.com/ransom-agent/ransom-agentd/internal/scorer"
	"github.com/ransom-agent/ransom-agentd/internal/whitelist"
)

const banner = `
  ____                                  ____  ____  _____
 |  _ \ __ _ _ __  ___  ___  _ __ ___  | __ )|  _ \|  ___|
 | |_) / _` + "`" + ` | '_ \/ __|/ _ \| '_ ` + "`" + ` _ \ |  _ \| |_) | |_
 |  _ < (_| | | | \__ \ (_) | | | | | || |_) |  __/|  _|
 |_| \_\__,_|_| |_|___/\___/|_| |_| |_||____/|_|   |_|   v%s
`

func main() {
	if len(os.Args) > 1 && os.Args[1] == "ledger" {
		runLedgerCommand(os.Args[2:])
		return
	}

	configPath := flag.String("c", "", "Path to configuration file")
	flag.StringVar(configPath, "config", "", "Path to configuration file")
	logFile := flag.String("l", "", "Override the service log path")
	flag.StringVar(logFile, "log-file", "", "Override the service log path")
	writeLimit := flag.Int("write-limit", 0, "Override the write operation threshold (legacy)")
	verbose := flag.Bool("v", false, "Enable verbose debug output")
	flag.BoolVar(verbose, "verbose", false, "Enable verbose debug output")
	showVersion := flag.Bool("V", false, "Display version information and exit")
	flag.BoolVar(showVersion, "version", false, "Display version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ransom-agentd version %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		return
	}

	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "FATAL: ransom-agentd must run as root (UID 0)")
		os.Exit(1)
	}

	path, found, err := config.ResolvePath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Defaults()
	configSource := "Default (Embedded)"
	if found {
		cfg, err = config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
			os.Exit(1)
		}
		cfg.ConfigPath = path
		configSource = path
	}

	if *logFile != "" {
		cfg.ServiceLog = *logFile
	}
	if *writeLimit > 0 {
		cfg.ScoreWrite = *writeLimit
	}
	if *verbose {
		cfg.VerboseMode = true
	}

	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := agentlog.New(agentlog.Config{
		ServiceLogPath: cfg.ServiceLog,
		AuditLogPath:   cfg.AuditLog,
		AlertLogPath:   cfg.AlertLog,
		Verbose:        cfg.VerboseMode,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	printStartupSummary(cfg, configSource)
	log.Info("ransom-agentd starting",
		zap.String("version", config.Version),
		zap.String("config_source", configSource),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registerCrashHandlers(log)

	var ledgerDB *ledger.DB
	if cfg.LedgerDB != "" {
		ledgerDB, err = ledger.Open(cfg.LedgerDB, cfg.LedgerRetentionDays)
		if err != nil {
			log.Warn("incident ledger disabled: open failed", zap.Error(err))
		} else {
			defer ledgerDB.Close()
			if n, err := ledgerDB.PruneOld(); err != nil {
				log.Warn("ledger pruning failed", zap.Error(err))
			} else if n > 0 {
				log.Info("pruned stale ledger entries", zap.Int("count", n))
			}
		}
	}

	reader, err := bpfring.Open(cfg.BPFPinPath)
	if err != nil {
		log.Error("failed to open pinned ring buffer map", zap.Error(err))
		os.Exit(1)
	}
	defer reader.Close()

	m := metrics.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.ServeMetrics(ctx, cfg.MetricsAddr); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
	}

	wl := whitelist.New(cfg.WhitelistStr)
	budget := response.NewKillBudget(cfg.KillBudgetCapacity, cfg.KillBudgetRefillPeriod())
	defer budget.Close()
	terminator := response.NewTerminator(wl, budget)
	controller := response.NewController(log, terminator, cfg.ActiveBlocking, ledgerDB)

	loop := ingest.New(reader, wl, scorer.Default{}, controller, log, m, cfg)

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received, re-reading config")
			if !found {
				log.Warn("no config file in use, nothing to reload")
				continue
			}
			if _, reloadErr := config.Load(path); reloadErr != nil {
				log.Error("config re-read failed, retaining running config", zap.Error(reloadErr))
				continue
			}
			log.Info("config file re-read; in-flight tracking state is not affected")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx) }()

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		select {
		case <-runDone:
			log.Info("ingest loop drained")
		case <-time.After(5 * time.Second):
			log.Warn("shutdown drain timeout — forcing exit")
		}
	case err := <-runDone:
		if err != nil {
			log.Error("ingest loop exited with error", zap.Error(err))
		}
	}

	log.Info("ransom-agentd shutdown complete")
}

func printStartupSummary(cfg config.Config, source string) {
	fmt.Printf(banner, config.Version)
	fmt.Println("--------------------------------------------------")
	fmt.Println(" ACTIVE CONFIGURATION")
	fmt.Println("--------------------------------------------------")
	fmt.Printf(" PID            : %d\n", os.Getpid())
	fmt.Printf(" Config Source  : %s\n", source)
	fmt.Printf(" Service Log    : %s\n", cfg.ServiceLog)
	fmt.Printf(" Alert Log      : %s\n", cfg.AlertLog)
	fmt.Printf(" Audit Log      : %s\n", cfg.AuditLog)
	mode := "NORMAL"
	if cfg.VerboseMode {
		mode = "DEBUG (Verbose)"
	}
	fmt.Printf(" Config Mode    : %s\n", mode)
	if cfg.WhitelistStr == "" {
		fmt.Println(" Whitelist      : [EMPTY]")
	} else if len(cfg.WhitelistStr) > 50 {
		fmt.Printf(" Whitelist      : %.47s... (Total %d chars)\n", cfg.WhitelistStr, len(cfg.WhitelistStr))
	} else {
		fmt.Printf(" Whitelist      : %s\n", cfg.WhitelistStr)
	}
	fmt.Println("--------------------------------------------------")
	fmt.Println(" RISK SCORING ENGINE")
	fmt.Println("--------------------------------------------------")
	fmt.Printf(" Risk Threshold : %d points\n", cfg.RiskThreshold)
	fmt.Printf(" Write Score    : %d\n", cfg.ScoreWrite)
	fmt.Printf(" Rename Score   : %d\n", cfg.ScoreRename)
	fmt.Printf(" Honeypot Score : %d\n", cfg.ScoreHoneypot)
	fmt.Printf(" Active Blocking: %v\n", cfg.ActiveBlocking)
	fmt.Println("--------------------------------------------------")
}

// registerCrashHandlers flushes the logger before exiting on a delivered
// SIGSEGV/SIGABRT. Go's runtime handles most real segfaults itself; this
// covers the case where such a signal is delivered externally (e.g. by a
// supervisor).
func registerCrashHandlers(log *agentlog.Logger) {
	crashCh := make(chan os.Signal, 1)
	signal.Notify(crashCh, syscall.SIGSEGV, syscall.SIGABRT)
	go func() {
		sig := <-crashCh
		log.Error("CRITICAL: signal received", zap.String("signal", sig.String()))
		log.Sync()
		os.Exit(1)
	}()
}
