// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/patent-jump/internal/acquire"
	"github.com/pdiddy/patent-jump/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <document-id>",
	Short: "Resolve one document id to its download URL",
	Long: `Resolve runs token acquisition once for the given patent or publication
number and prints the token-qualified download URL. When no token can be
obtained it prints the upstream diagnostics and exits non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("token", "", "seed token to try first")
	resolveCmd.Flags().Bool("json", false, "output the resolution as JSON")
	resolveCmd.Flags().Bool("stale-redirect", false, "print the stale seed URL when acquisition fails")
	resolveCmd.Flags().String("history-db", "", "SQLite file for the resolution history (empty disables)")

	rootCmd.AddCommand(resolveCmd)
}

// resolveOutput is the --json shape of a resolution.
type resolveOutput struct {
	DocID       string                `json:"doc_id"`
	URL         string                `json:"url,omitempty"`
	Mode        string                `json:"mode,omitempty"`
	Step        string                `json:"step,omitempty"`
	Token       string                `json:"token,omitempty"`
	Attempts    []types.SearchAttempt `json:"attempts"`
	Error       string                `json:"error,omitempty"`
	Diagnostics *acquire.Diagnostics  `json:"diagnostics,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("stale-redirect") {
		cfg.Server.StaleRedirect, _ = cmd.Flags().GetBool("stale-redirect")
	}
	if path, _ := cmd.Flags().GetString("history-db"); path != "" {
		cfg.History.DBPath = path
	}
	seed, _ := cmd.Flags().GetString("token")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	docID := args[0]
	res, resolveErr := a.resolver.Resolve(cmd.Context(), docID, seed)
	out := buildResolveOutput(docID, cfg.Upstream.TokenHeader, res, resolveErr)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
	} else {
		printResolution(os.Stdout, os.Stderr, out)
	}
	return resolveErr
}

func buildResolveOutput(docID, tokenHeader string, res acquire.Resolution, err error) resolveOutput {
	out := resolveOutput{
		DocID:    docID,
		URL:      res.URL,
		Mode:     res.Mode,
		Step:     res.Result.Step,
		Token:    types.MaskToken(res.Token),
		Attempts: make([]types.SearchAttempt, 0, len(res.Result.Attempts)),
	}
	for _, at := range res.Result.Attempts {
		out.Attempts = append(out.Attempts, at.Redacted(tokenHeader))
	}

	exhausted := res.Exhausted
	if err != nil {
		out.Error = err.Error()
		errors.As(err, &exhausted)
	}
	if exhausted != nil {
		d := exhausted.Diagnostics(tokenHeader)
		out.Diagnostics = &d
		out.Attempts = d.Attempts
	}
	return out
}

// printResolution writes the URL to stdout and everything else to stderr
// so the URL can be piped.
func printResolution(stdout, stderr io.Writer, out resolveOutput) {
	if out.URL != "" {
		fmt.Fprintln(stdout, out.URL)
		fmt.Fprintf(stderr, "mode: %s  step: %s  token: %s\n", out.Mode, out.Step, out.Token)
	}
	if out.Diagnostics == nil {
		return
	}

	d := out.Diagnostics
	fmt.Fprintf(stderr, "first attempt: HTTP %d\n", d.Status)
	for name, values := range d.Header {
		for _, v := range values {
			fmt.Fprintf(stderr, "  %s: %s\n", name, v)
		}
	}
	if d.BodySnippet != "" {
		fmt.Fprintf(stderr, "body: %s\n", d.BodySnippet)
	}
	for i, at := range d.Attempts {
		line := fmt.Sprintf("attempt %d: %-11s sent_token=%-5t status=%d", i+1, at.Step, at.SentToken, at.Status)
		if at.Err != "" {
			line += " error=" + at.Err
		}
		fmt.Fprintln(stderr, line)
	}
}
