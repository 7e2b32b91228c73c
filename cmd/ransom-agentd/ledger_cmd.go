package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ransom-agent/ransom-agentd/internal/config"
	"github.com/ransom-agent/ransom-agentd/internal/ledger"
)

// runLedgerCommand implements the read-only "ledger" subcommand: lists
// incident ledger entries matching the given filters as JSON to stdout.
// It never touches the main detection loop's flag surface or exit codes.
func runLedgerCommand(args []string) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	dbPath := fs.String("db", config.Defaults().LedgerDB, "Path to the incident ledger database")
	pid := fs.Uint("pid", 0, "Filter by PID (0 = no filter)")
	alertType := fs.String("type", "", "Filter by alert type (empty = no filter)")
	fs.Parse(args)

	db, err := ledger.Open(*dbPath, ledger.DefaultRetentionDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: ledger open failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	entries, err := db.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: ledger read failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if *pid != 0 && e.PID != uint32(*pid) {
			continue
		}
		if *alertType != "" && e.Outcome != *alertType {
			continue
		}
		if err := enc.Encode(e); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: failed to encode entry: %v\n", err)
		}
	}
}
