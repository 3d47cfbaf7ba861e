package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks defined in tessera.yaml",
	Args:  cobra.NoArgs,
	RunE:  listTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func listTasks(cmd *cobra.Command, args []string) error {
	m, dir, err := loadManifest()
	if err != nil {
		return err
	}

	set, err := task.FromManifest(m, dir)
	if err != nil {
		return err
	}

	tasks := set.Tasks()

	if jsonOut {
		type taskInfo struct {
			Name        string   `json:"name"`
			Params      []string `json:"params,omitempty"`
			Description string   `json:"description,omitempty"`
		}
		out := make([]taskInfo, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, taskInfo{Name: t.Name, Params: t.Params, Description: t.Description})
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks defined in tessera.yaml")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
	for _, t := range tasks {
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = "<" + p + ">"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, strings.Join(params, " "), t.Description)
	}
	return w.Flush()
}
