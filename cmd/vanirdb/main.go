// Package main provides the VanirDB CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/orneryd/vanirdb/pkg/config"
	"github.com/orneryd/vanirdb/pkg/vanirdb"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	flagDataDir  string
	flagGraph    string
	flagInMemory bool
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vanirdb",
		Short: "VanirDB - embedded labeled property graph database",
		Long: `VanirDB is an embedded graph database over an ordered key-value
store, with a Cypher-subset query language and built-in graph traversal.`,
	}
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "./data", "Data directory")
	rootCmd.PersistentFlags().StringVar(&flagGraph, "graph", "default", "Graph namespace")
	rootCmd.PersistentFlags().BoolVar(&flagInMemory, "in-memory", false, "Run without touching disk")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("VanirDB v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "query [cypher]",
		Short: "Run a Cypher statement",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Export the graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON graph dump",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print graph statistics",
		RunE:  runStats,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openDB() (*vanirdb.DB, error) {
	cfg := config.LoadFromEnv()
	cfg.DataDir = flagDataDir
	cfg.Graph = flagGraph
	cfg.InMemory = flagInMemory
	cfg.LogLevel = flagLogLevel
	return vanirdb.Open(cfg)
}

func runQuery(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Execute(context.Background(), args[0], nil)
	if err != nil {
		return err
	}

	if len(result.Columns) > 0 {
		fmt.Println(strings.Join(result.Columns, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.Display()
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
	}

	s := result.Stats
	if s.VerticesCreated+s.EdgesCreated+s.VerticesDeleted+s.EdgesDeleted+s.PropertiesSet > 0 {
		fmt.Printf("created %d vertices, %d edges; deleted %d vertices, %d edges; set %d properties\n",
			s.VerticesCreated, s.EdgesCreated, s.VerticesDeleted, s.EdgesDeleted, s.PropertiesSet)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return db.DumpJSON(f)
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	if err := db.LoadJSON(f); err != nil {
		return err
	}
	fmt.Println("import complete")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("labels:   %s\n", humanize.Comma(int64(stats.Labels)))
	fmt.Printf("vertices: %s\n", humanize.Comma(int64(stats.Vertices)))
	fmt.Printf("edges:    %s\n", humanize.Comma(int64(stats.Edges)))
	return nil
}
