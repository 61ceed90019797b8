package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rustyguts/strangerchat/internal/config"
)

// RunCLI handles subcommand execution, adapted from the teacher's
// cli.go dispatch table: instead of SQLite-backed channel/settings
// administration, these subcommands give an operator a point-in-time
// view of a running server's stats and the process's resolved
// configuration. Returns true if a subcommand was handled.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("strangerchat server %s\n", Version)
		return true
	case "config":
		return cliConfig()
	case "stats":
		return cliStats(args[1:])
	default:
		return false
	}
}

func cliConfig() bool {
	cfg := config.Load()
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error encoding config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	return true
}

// cliStats fetches /stats from a running server (default
// http://localhost:8080, overridden by a base URL given as the first
// argument) and prints it.
func cliStats(args []string) bool {
	addr := "http://localhost:8080"
	if len(args) > 0 {
		addr = args[0]
	}

	resp, err := http.Get(addr + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error fetching stats: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading stats: %v\n", err)
		os.Exit(1)
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return true
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return true
}
