package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-dashboard-core/internal/config"
	"github.com/spf13/cobra"
)

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the HTTP routes the daemon registers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			app, err := buildApp(ctx, config.New())
			if err != nil {
				return err
			}
			defer app.Close()
			for _, route := range app.Server.Routes() {
				fmt.Fprintln(cmd.OutOrStdout(), route)
			}
			return nil
		},
	}
}
