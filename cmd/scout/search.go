package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trend-scout/internal/config"
	"trend-scout/internal/pumpfun"
)

var (
	searchJSON    bool
	searchLimit   int
	searchTimeout time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search <name|symbol|mint>",
	Short: "Look up tokens on the upstream API",
	Long: `Looks up a single token when the term is a mint address, otherwise lists
recent coins whose name or symbol contains the term (case-insensitive).`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print JSON instead of a table")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum listing results")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 30*time.Second, "Lookup timeout")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	coins, err := search(ctx, newAPI(cfg), args[0], searchLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(coins)
	}
	return printCoins(out, coins)
}

// coinAPI is the subset of the upstream client used by search.
type coinAPI interface {
	Coin(ctx context.Context, mint string) (*pumpfun.Coin, error)
	Search(ctx context.Context, p pumpfun.SearchParams) ([]pumpfun.Coin, error)
}

// search resolves a mint address directly and filters listing results by
// substring for anything else.
func search(ctx context.Context, api coinAPI, term string, limit int) ([]pumpfun.Coin, error) {
	term = strings.TrimSpace(term)
	if config.ValidateMint(term) == nil {
		coin, err := api.Coin(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", term, err)
		}
		return []pumpfun.Coin{*coin}, nil
	}

	params := pumpfun.DefaultSearchParams(term)
	if limit > 0 {
		params.Limit = limit
	}
	listed, err := api.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	needle := strings.ToLower(term)
	var out []pumpfun.Coin
	for _, c := range listed {
		if strings.Contains(strings.ToLower(c.Name), needle) || strings.Contains(strings.ToLower(c.Symbol), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func printCoins(w io.Writer, coins []pumpfun.Coin) error {
	if len(coins) == 0 {
		_, err := fmt.Fprintln(w, "no matches")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MINT\tNAME\tSYMBOL\tMCAP USD\tCOMPLETE\tCREATED")
	for _, c := range coins {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%t\t%s\n",
			c.Mint, c.Name, c.Symbol, c.USDMarketCap, c.Complete, c.CreatedAt().Format(time.RFC3339))
	}
	return tw.Flush()
}
