// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/patent-jump/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent resolutions from the history database",
	Long: `History lists resolutions recorded by serve and resolve, newest first.
It requires history.db_path (or --history-db) to point at the database.
Tokens are never stored, only outcomes.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("history-db", "", "SQLite history file (default: history.db_path)")
	historyCmd.Flags().String("doc", "", "only show this document id")
	historyCmd.Flags().String("result", "", "only show this result (refreshed, reused, exhausted, canceled)")
	historyCmd.Flags().Int("limit", 20, "maximum rows to show")
	historyCmd.Flags().Bool("summary", false, "show counts per result instead of rows")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyCmd.Flags().Bool("yaml", false, "output as YAML")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("history-db")
	if path == "" {
		path = viper.GetString("history.db_path")
	}
	if path == "" {
		return fmt.Errorf("no history database: set history.db_path or --history-db")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("history database %s: %w", path, err)
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	var data any
	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		counts, err := store.Summary(cmd.Context())
		if err != nil {
			return err
		}
		if !asJSON && !asYAML {
			printSummary(os.Stdout, counts)
			return nil
		}
		data = counts
	} else {
		opts := history.QueryOptions{}
		opts.DocID, _ = cmd.Flags().GetString("doc")
		opts.Result, _ = cmd.Flags().GetString("result")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		entries, err := store.Recent(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if !asJSON && !asYAML {
			return printEntries(os.Stdout, entries)
		}
		data = entries
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}

func printEntries(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No resolutions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDOCUMENT\tRESULT\tMODE\tSTEP\tSTATUS\tATTEMPTS\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%dms\n",
			e.At.Local().Format("2006-01-02 15:04:05"),
			e.DocID, e.Result, dash(e.Mode), dash(e.Step),
			e.FirstStatus, e.Attempts, e.DurationMS)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-10s %d\n", k, counts[k])
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
