// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/wingedpig/logharbor/internal/app"
	"github.com/wingedpig/logharbor/internal/config"
)

var (
	version = "0.9"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Parse flags
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if showVersion {
		fmt.Printf("logharbor %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified. Running without one is fine; the
	// defaults give a working local setup.
	if configPath == "" {
		loader := config.NewLoader()
		if found, err := loader.FindConfig(); err == nil {
			configPath = found
		}
	}

	if configPath != "" {
		log.Printf("Using config: %s", configPath)
	} else {
		log.Printf("No config file found, using defaults")
	}

	// Create and run app
	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Debug:      debug,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "logharbor init" command
func runInit() error {
	// Parse init-specific flags
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: logharbor init [options]

Create a new logharbor.hjson configuration file in the current directory.

This command walks you through setting up a Logharbor configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - Server port (defaults to 9220)
  - Metadata store path
  - Index directory
  - Discovery and ingestion cadences

After running init:
  1. Review and edit logharbor.hjson as needed
  2. Run: ./logharbor
  3. Register SSH configs and watchers via the API`)
		return nil
	}

	configFile := "logharbor.hjson"

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Logharbor Configuration Setup")
	fmt.Println("=============================")
	fmt.Println()
	fmt.Println("This will create a logharbor.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	portStr := prompt(reader, "Server port", "9220")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 9220
	}

	storePath := prompt(reader, "Metadata store path", "logharbor.db")
	indexDir := prompt(reader, "Index directory", "lucene-indexes")

	discoveryStr := prompt(reader, "Discovery cadence (minutes)", "15")
	discovery, err := strconv.Atoi(discoveryStr)
	if err != nil || discovery < 1 {
		discovery = 15
	}

	ingestionStr := prompt(reader, "Ingestion cadence (minutes)", "15")
	ingestion, err := strconv.Atoi(ingestionStr)
	if err != nil || ingestion < 1 {
		ingestion = 15
	}

	configContent := generateConfig(port, storePath, indexDir, discovery, ingestion)

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit logharbor.hjson as needed")
	fmt.Println("  2. Run: ./logharbor")
	fmt.Println("  3. Register SSH configs and watchers:")
	fmt.Println("     curl -X POST http://localhost:" + strconv.Itoa(port) + "/api/v1/configs -d '{...}'")
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(port int, storePath, indexDir string, discovery, ingestion int) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Logharbor Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).
  // SSH configs and watchers are not configured here; register them through
  // the HTTP API and they are persisted in the metadata store.

  // ---------------------------------------------------------------------------
  // Server Settings
  // ---------------------------------------------------------------------------
  server: {
    // Host to bind to (use "0.0.0.0" to allow remote access)
    host: "127.0.0.1"

    // Port for the admin API
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`

    // For HTTPS, uncomment and set paths to your certificates:
    // tls_cert: "~/.logharbor/cert.pem"
    // tls_key: "~/.logharbor/key.pem"
  }

  // ---------------------------------------------------------------------------
  // Metadata Store
  // ---------------------------------------------------------------------------
  //
  // SQLite database holding SSH configs, watchers, and discovery records.
  store: {
    path: "`)
	sb.WriteString(escapeHJSONValue(storePath))
	sb.WriteString(`"
  }

  // ---------------------------------------------------------------------------
  // Search Indexes
  // ---------------------------------------------------------------------------
  //
  // Each watcher gets its own index under this directory.
  index: {
    dir: "`)
	sb.WriteString(escapeHJSONValue(indexDir))
	sb.WriteString(`"

    // Trade indexing speed for smaller on-disk indexes
    // use_deflate_compression: true
  }

  // ---------------------------------------------------------------------------
  // Scheduler
  // ---------------------------------------------------------------------------
  //
  // How often to look for new remote files and to ingest what discovery found.
  // Overlapping runs of the same phase are skipped, not queued.
  scheduler: {
    discovery_cadence: `)
	sb.WriteString(strconv.Itoa(discovery))
	sb.WriteString(`
    ingestion_cadence: `)
	sb.WriteString(strconv.Itoa(ingestion))
	sb.WriteString(`
  }

  // ---------------------------------------------------------------------------
  // SSH Transport
  // ---------------------------------------------------------------------------
  ssh: {
    // Dial and command timeout
    timeout: "30s"

    // Reuse authenticated connections across discovery and ingestion
    cache_clients: true
  }

  // ---------------------------------------------------------------------------
  // Ingestion
  // ---------------------------------------------------------------------------
  ingest: {
    // Upper bound on concurrent file downloads per watcher (0 = CPU count)
    max_parallelism: 0
  }

  // ---------------------------------------------------------------------------
  // Event Bus
  // ---------------------------------------------------------------------------
  //
  // Recent events are kept in memory for the /api/v1/events endpoint.
  events: {
    history: {
      max_events: 10000
      max_age: "1h"
    }
  }

  // ---------------------------------------------------------------------------
  // Logging
  // ---------------------------------------------------------------------------
  logging: {
    level: "info"  // "debug", "info", "warn", "error"
  }
}
`)

	return sb.String()
}
