package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tesseralab/tessera/internal/log"
	"github.com/tesseralab/tessera/internal/task"
)

var runCmd = &cobra.Command{
	Use:   "run <task> [args...]",
	Short: "Run a task defined in tessera.yaml",
	Long: `Run a named task from the project manifest.

Positional arguments bind to the task's declared params in order. Anything
beyond the declared params is forwarded to the command verbatim, so task
aliases can take extra flags without quoting tricks.

The task inherits the current environment, plus the project's .env file
(next to tessera.yaml), plus the task's own env block. Its exit code
becomes tessera's exit code.

Examples:
  # Run the "run" alias with side 128
  tessera run run 128

  # Same, forwarding an extra flag to the underlying command
  tessera run run 128 --no-cache

  # See the exact command line without executing it
  tessera run run 128 --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	rootCmd.AddCommand(runCmd)
	// Flags after the task name belong to the task, not to tessera.
	runCmd.Flags().SetInterspersed(false)
}

func runTask(cmd *cobra.Command, args []string) error {
	m, dir, err := loadManifest()
	if err != nil {
		return err
	}

	set, err := task.FromManifest(m, dir)
	if err != nil {
		return err
	}

	t, err := set.Lookup(args[0])
	if err != nil {
		return err
	}

	inv, err := task.Bind(t, args[1:])
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Println(inv.String())
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Debug("running task", "task", t.Name, "command", inv.String())

	runner := &task.Runner{}
	if err := runner.Run(ctx, inv); err != nil {
		// The child already wrote its own failure output; an extra
		// "Error:" line from cobra would just repeat it.
		var exitErr *task.ExitError
		if errors.As(err, &exitErr) {
			cmd.SilenceErrors = true
		}
		return err
	}
	return nil
}
