// Package main provides the RuneDB CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runedb/runedb/pkg/auth"
	"github.com/runedb/runedb/pkg/config"
	"github.com/runedb/runedb/pkg/graph"
	"github.com/runedb/runedb/pkg/runedb"
	"github.com/runedb/runedb/pkg/vm"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runedb",
		Short: "RuneDB - a miniature graph database with a Cypher-like query language",
		Long: `RuneDB is an embedded graph database with a compact query pipeline:
queries are tokenized, parsed, compiled to bytecode, and executed
against an in-memory graph backed by Badger snapshots.`,
	}

	rootCmd.PersistentFlags().String("config", getEnvStr("RUNEDB_CONFIG", ""), "Path to YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().String("token", getEnvStr("RUNEDB_TOKEN", ""), "Write token for token auth mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("RuneDB v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create an empty database in the data directory",
		RunE:  runInit,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "query [query text]",
		Short: "Execute a single query and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Start an interactive query shell",
		RunE:  runRepl,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "info [node-id]",
		Short: "Show graph statistics, or one node when an id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInfo,
	})

	hashCmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of a write token for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
	rootCmd.AddCommand(hashCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getEnvStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig resolves configuration for a command and applies the
// logging settings.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid log level %q", cfg.Logging.Level)
	}
	logrus.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return cfg, nil
}

func openDB(cmd *cobra.Command) (*runedb.DB, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	db, err := runedb.Open(cfg.Storage.DataDir, cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return db, cfg, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	db, cfg, err := openDB(cmd)
	if err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}
	fmt.Printf("Initialized database at %s\n", cfg.Storage.DataDir)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	db, _, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	token, _ := cmd.Flags().GetString("token")
	result, err := db.Execute(cmd.Context(), runedb.Request{Text: args[0], Token: token})
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func runRepl(cmd *cobra.Command, args []string) error {
	db, cfg, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	token, _ := cmd.Flags().GetString("token")

	fmt.Printf("Connected to RuneDB at %s\n", cfg.Storage.DataDir)
	fmt.Println("Type 'exit' or Ctrl+D to quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("runedb> ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}
		if query == "stats" {
			printStats(db.Stats())
			continue
		}

		result, err := db.Execute(ctx, runedb.Request{Text: query, Token: token})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printResult(result)
	}
	return scanner.Err()
}

func runInfo(cmd *cobra.Command, args []string) error {
	db, _, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 0 {
		printStats(db.Stats())
		return nil
	}

	id, err := graph.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid node id %q", args[0])
	}
	node, err := db.NodeInfo(id)
	if err != nil {
		return err
	}

	fmt.Printf("Node %s\n", node.ID)
	if node.Label != "" {
		fmt.Printf("  Label: %s\n", node.Label)
	}
	for _, attr := range node.Attributes {
		fmt.Printf("  %s: %s\n", attr.Key, attr.Value)
	}
	fmt.Printf("  Outgoing edges: %d\n", len(node.Outgoing))
	return nil
}

func printStats(stats runedb.Stats) {
	fmt.Printf("Nodes:   %d\n", stats.NodeCount)
	fmt.Printf("Edges:   %d\n", stats.EdgeCount)
	fmt.Printf("Next id: %s\n", stats.NextID)
}

func printResult(result *vm.Result) {
	switch result.Kind {
	case vm.ResultNodes:
		for _, id := range result.Nodes {
			fmt.Println(id)
		}
		fmt.Printf("(%d nodes)\n", len(result.Nodes))
	case vm.ResultScalar:
		fmt.Println(result.Scalar)
	default:
		fmt.Println("(no results)")
	}
}
