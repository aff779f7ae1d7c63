package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/floor/service/dao/office"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <office>",
		Short: "Load an office and check its references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anOffice, err := office.New().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(root.stdout, "office %v: %d teams, %d managed objects, %d governances, %d functions\n",
				anOffice.Name, len(anOffice.Teams), len(anOffice.ManagedObjects), len(anOffice.Governances), len(anOffice.Functions))
			return err
		},
	}
}
