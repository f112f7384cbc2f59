package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"planrelay/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Print())
			return err //nolint:wrapcheck // stdout write
		},
	}
}
