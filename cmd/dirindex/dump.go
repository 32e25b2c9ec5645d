package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDumpCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every record of the index image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, _, _, err := openBackend(v, true)
			if err != nil {
				return err
			}
			return backend.Dump(cmd.OutOrStdout())
		},
	}
}
