// Command metacore manages sparse sample-metadata tables: importing
// delimited or XLS sheets, resolving values, replacing values and keeping
// sample pools in sync.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every command that opens the service.
type globalFlags struct {
	configPath string
	actor      string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "metacore",
		Short:         "Sparse sample-metadata tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("METACORE_CONFIG"), "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&flags.actor, "actor", defaultActor(), "User the command acts as")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "metacore v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(
		newTableCmd(flags),
		newImportCmd(flags),
		newUploadCmd(flags),
		newResolveCmd(flags),
		newColumnsCmd(flags),
		newReplaceCmd(flags),
		newPoolsCmd(flags),
		newExportCmd(flags),
		newGrantCmd(flags),
	)
	return root
}

func defaultActor() string {
	if v := os.Getenv("METACORE_ACTOR"); v != "" {
		return v
	}
	return os.Getenv("USER")
}
