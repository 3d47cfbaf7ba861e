package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generations",
	Long: `Show recent mosaic generations, newest first. Failed generations are
included with their error.`,
	Args: cobra.NoArgs,
	RunE: showHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of generations to show")
}

func showHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	defer st.Close()

	gens, err := st.Generations(historyLimit)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(gens)
	}

	if len(gens) == 0 {
		fmt.Println("No generations yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tGRID\tTILES\tDURATION\tAGE\tRESULT")
	for _, g := range gens {
		result := shortenPath(g.Output)
		if g.Error != "" {
			result = "failed: " + g.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d×%d\t%d\t%s\t%s\t%s\n",
			g.Name,
			g.ID,
			g.GridSide, g.GridSide,
			g.TileCount,
			formatDuration(g.Duration),
			formatAge(g.CreatedAt),
			result,
		)
	}
	return w.Flush()
}
