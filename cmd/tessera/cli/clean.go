package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/config"
	"github.com/tesseralab/tessera/internal/tiles"
	"github.com/tesseralab/tessera/internal/ui"
)

var (
	cleanTiles bool
	cleanAll   bool
	cleanForce bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Prune the tile cache or reset the index store",
	Long: `Remove stale data from the index store.

--tiles removes cache entries for files no longer present in the tile
directory. --all resets the store entirely: the tile cache and the
generation history.

Asks for confirmation before proceeding. Use --force to skip the prompt
(for scripts). Use --dry-run to see what would be removed.`,
	Args: cobra.NoArgs,
	RunE: cleanStore,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanTiles, "tiles", false, "prune cache entries for tiles no longer on disk")
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "reset the store: tile cache and generation history")
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "skip confirmation prompt")
}

func cleanStore(cmd *cobra.Command, args []string) error {
	if !cleanTiles && !cleanAll {
		return fmt.Errorf("nothing to clean: use --tiles to prune the tile cache or --all to reset the store")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	defer st.Close()

	tileRows, err := st.TileCount()
	if err != nil {
		return err
	}
	genRows, err := st.GenerationCount()
	if err != nil {
		return err
	}

	if cleanAll {
		fmt.Printf("Store: %s\n", shortenPath(st.Path()))
		fmt.Printf("  %d cached tiles, %d generations\n\n", tileRows, genRows)

		if dryRun {
			fmt.Println("Dry run - no changes made")
			return nil
		}
		if !confirm("Reset the store?") {
			fmt.Println("Canceled")
			return nil
		}
		if err := st.Reset(); err != nil {
			return err
		}
		fmt.Printf("%s store reset\n", ui.OKTag())
		return nil
	}

	// --tiles: prune entries whose file is gone from the tile directory.
	m, mdir, err := loadManifest()
	if err != nil {
		return err
	}
	if m == nil {
		m = config.DefaultManifest()
	}
	dir, err := filepath.Abs(filepath.Join(mdir, m.Tiles))
	if err != nil {
		return fmt.Errorf("resolving tiles dir: %w", err)
	}

	valid, err := tiles.Scan(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Tile cache: %d entries, %d files in %s\n\n", tileRows, len(valid), shortenPath(dir))

	if dryRun {
		fmt.Println("Dry run - no changes made")
		return nil
	}
	if !confirm("Prune cache entries for tiles no longer on disk?") {
		fmt.Println("Canceled")
		return nil
	}

	pruned, err := st.PruneTiles(dir, valid)
	if err != nil {
		return err
	}
	fmt.Printf("%s pruned %d stale entries\n", ui.OKTag(), pruned)
	return nil
}

// confirm prompts with a [y/N] question on stdout and reads the answer from
// stdin. --force answers yes without prompting.
func confirm(question string) bool {
	if cleanForce {
		return true
	}
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
