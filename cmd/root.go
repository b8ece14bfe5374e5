package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ushell/ush/core/config"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	return config.Load(afero.NewOsFs(), cfgPath)
}

// rootCmd represents the base command when called without any subcommands.
// Bare `ush` starts the interactive shell.
var rootCmd = &cobra.Command{
	Use:   "ush",
	Short: "A micro shell",
	Long:  `ush is a command interpreter with a syntax similar to the UNIX C shell.`,
	RunE:  runShell,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	addShellFlags(rootCmd)
}
