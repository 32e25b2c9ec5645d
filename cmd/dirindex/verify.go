package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the structural invariants of the index image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, _, _, err := openBackend(v, true)
			if err != nil {
				return err
			}
			stats, err := backend.Verify()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d records, %d entries\n", stats.Records, stats.Entries)
			for _, p := range stats.Problems {
				fmt.Fprintf(out, "problem: %s\n", p)
			}
			if !stats.OK() {
				return fmt.Errorf("%d structural problems found", len(stats.Problems))
			}
			fmt.Fprintln(out, "index is consistent")
			return nil
		},
	}
}
