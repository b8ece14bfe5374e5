package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ushell/ush/core"
	"github.com/ushell/ush/core/interp"
	"github.com/ushell/ush/core/parse"
)

var (
	commandLine string
	skipStartup bool
)

// runCmd is the explicit form of the bare root command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive shell.",
	RunE:  runShell,
}

func addShellFlags(c *cobra.Command) {
	c.Flags().StringVarP(&commandLine, "command", "c", "", "execute one line and exit")
	c.Flags().BoolVar(&skipStartup, "norc", false, "skip startup file processing")
}

func runShell(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// One-shot mode: no prompt, no startup file.
	if commandLine != "" {
		eng := interp.New(cfg)
		if err := eng.ExecSequence(parse.Parse(commandLine)); err != nil && !errors.Is(err, interp.ErrLogout) {
			return err
		}
		return nil
	}

	shell, err := core.NewShell(cfg)
	if err != nil {
		return err
	}
	defer shell.Close()

	if !skipStartup {
		if err := shell.RunStartup(); err != nil {
			if errors.Is(err, interp.ErrLogout) {
				return nil
			}
			return err
		}
	}

	if err := shell.Run(); err != nil && !errors.Is(err, interp.ErrLogout) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	addShellFlags(runCmd)
}
