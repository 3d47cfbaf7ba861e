package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/config"
)

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs [date]",
	Short: "View debug logs",
	Long: `View tessera's debug log. Every command writes a full debug trace to
~/.tessera/debug/YYYY-MM-DD.jsonl regardless of --verbose; this shows it.

With no argument, shows today's log (the latest file). Pass a date to read
an older one.

Examples:
  tessera logs                 # Today's log
  tessera logs -n 50           # Last 50 entries
  tessera logs 2026-08-19      # A specific day
  tessera logs --json          # Raw JSONL, for jq`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "number of entries to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(config.GlobalConfigDir(), "debug")

	name := "latest"
	if len(args) > 0 {
		name = args[0] + ".jsonl"
	}
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no debug log at %s", path)
		}
		return fmt.Errorf("reading debug log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > logsLines {
		lines = lines[len(lines)-logsLines:]
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		if jsonOut {
			fmt.Println(line)
			continue
		}
		fmt.Println(formatLogEntry(line))
	}
	return nil
}

// formatLogEntry renders one slog JSON line for humans. Lines that don't
// parse come back untouched.
func formatLogEntry(line string) string {
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	ts := ""
	if s, ok := entry["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ts = t.Format("15:04:05.000")
		}
	}
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k == "time" || k == "level" || k == "msg" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-5s %s", ts, level, msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry[k])
	}
	return b.String()
}
