package main

import (
	"fmt"

	"github.com/jrsteele09/go-dashboard-core/directory"
	"github.com/spf13/cobra"
)

func newDirectoryCmd() *cobra.Command {
	var seed []string
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Print the department directory the daemon starts with",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []directory.Option
			if len(seed) > 0 {
				opts = append(opts, directory.WithSeed(seed...))
			}
			for i, name := range directory.New(opts...).List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, name)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&seed, "seed", nil, "override the seeded department names")
	return cmd
}
