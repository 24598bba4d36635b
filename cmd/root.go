// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"errors"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/branch-usage-checker/internal/report"
)

// reportedError is an error whose message was already shown to the user.
type reportedError struct {
	msg string
}

func (e *reportedError) Error() string { return e.msg }

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	verbose    bool
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "branch-usage-checker",
		Short: "A CLI tool to find unused development branches of a Packagist package.",
		Long: `branch-usage-checker reads the development ("dev-") branches of a package
published on Packagist, downloads their monthly download statistics and
suggests the branches nobody installed within the lookback window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.WarnLevel
			if opts.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		},
	}

	// Add a persistent flag for verbose output, available to all commands.
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose/debug logging")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (default: ./branch-usage.yaml)")

	root.AddCommand(newCheckCmd(opts))
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// execute runs root and prints the errors cobra raises itself, such as
// wrong argument counts or unknown flags.
func execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	var reported *reportedError
	if err != nil && !errors.As(err, &reported) {
		report.NewPrinter(root.OutOrStdout()).Error("%v", err)
	}
	return err
}
