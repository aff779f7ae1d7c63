package main

import (
	"fmt"
	"io"
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	verbosity int
	stdout    io.Writer
	stderr    io.Writer
}

func (o *rootOptions) logger() logr.Logger {
	stdr.SetVerbosity(o.verbosity)
	return stdr.New(log.New(o.stderr, "", log.LstdFlags))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	options := &rootOptions{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:   "floor",
		Short: "In-process execution kernel",
		Long: `floor loads an office definition (teams, managed objects, governances
and functions) and runs its functions as processes.`,
		SilenceUsage: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().IntVarP(&options.verbosity, "verbosity", "v", 0, "log verbosity")
	cmd.AddCommand(newValidateCmd(options), newRunCmd(options), &cobra.Command{
		Use:   "version",
		Short: "Print the floor version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "floor", version)
		},
	})
	return cmd
}
