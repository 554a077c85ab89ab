package cmd

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"factorio-mods-cli/internal/registry"
)

var (
	searchOrder    string
	searchTags     []string
	searchPageSize int
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the Mod Portal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := buildRegistryClient()
		if err != nil {
			return err
		}

		order := registry.SearchOrder(searchOrder)
		switch order {
		case registry.OrderAlphabetical, registry.OrderMostDownloaded, registry.OrderRecentlyUpdated, "":
		default:
			return nil
		}

		opts := registry.SearchOptions{
			Query:    args[0],
			Tags:     searchTags,
			Order:    order,
			PageSize: searchPageSize,
		}

		count := 0
		err = client.Search(ctx, opts, func(r registry.SearchResult) error {
			count++
			printSearchResult(r)
			return nil
		})
		if err != nil {
			return err
		}
		if count == 0 {
			pterm.Info.Println("No results.")
		}
		return nil
	},
}

func printSearchResult(r registry.SearchResult) {
	pterm.Printf("%s (%s) [%d downloads]\n", r.Title, r.Name, r.DownloadsCount)
	if len(r.Tags) > 0 {
		pterm.Printf("  tags: %s\n", strings.Join(r.Tags, ", "))
	}
	wrappingPrintln("  ", r.Summary)
	pterm.Println()
}

// wrappingPrintln prints text word-wrapped to the terminal width,
// falling back to printing it on one line when the width can't be
// determined (e.g. output is piped).
func wrappingPrintln(indent, text string) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= len(indent) {
		pterm.Printf("%s%s\n", indent, text)
		return
	}
	limit := width - len(indent)

	words := strings.Fields(text)
	line := ""
	for _, w := range words {
		if line != "" && len(line)+1+len(w) > limit {
			pterm.Printf("%s%s\n", indent, line)
			line = w
			continue
		}
		if line == "" {
			line = w
		} else {
			line += " " + w
		}
	}
	if line != "" {
		pterm.Printf("%s%s\n", indent, line)
	}
}

func init() {
	searchCmd.Flags().StringVarP(&searchOrder, "order", "o", string(registry.DefaultSearchOrder), "sort order: alpha, top, or updated")
	searchCmd.Flags().StringSliceVarP(&searchTags, "tag", "t", nil, "filter by tag (repeatable)")
	searchCmd.Flags().IntVarP(&searchPageSize, "page-size", "p", 25, "results per page fetched from the portal")
	rootCmd.AddCommand(searchCmd)
}
