package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// client talks to a running ledger's status server.
type client struct {
	baseURL string
	http    *http.Client
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)
	c := &client{out: out}

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Query a running ledger",
		Long:          `A command line client for the ledger status server (METRICS_ADDR).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			c.baseURL = baseURL
			c.http = &http.Client{Timeout: timeout}
		},
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:9090", "Base URL of the status server")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "client <id>",
			Short: "Show one client's balances",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return c.get("/api/v1/clients/" + args[0])
			},
		},
		&cobra.Command{
			Use:   "clients",
			Short: "List every client's balances",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return c.get("/api/v1/clients/")
			},
		},
		&cobra.Command{
			Use:   "tx <id>",
			Short: "Show a stored deposit or withdrawal",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return c.get("/api/v1/transactions/" + args[0])
			},
		},
		&cobra.Command{
			Use:   "ready",
			Short: "Check that the ledger store is reachable",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return c.get("/ready")
			},
		},
	)

	return rootCmd
}

// get fetches path and pretty-prints the JSON body. Non-200 responses are
// printed too and returned as an error.
func (c *client) get(path string) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	c.printJSON(result)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *client) printJSON(v any) {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
