package main

import (
	"fmt"

	pbversion "github.com/fluxpanel/panelbridge/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Show the panelctl version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runVersion,
	}
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	v := pbversion.String()

	if out.jsonMode {
		return out.Print(map[string]any{
			"client": v,
		})
	}
	fmt.Printf("panelctl %s\n", pbversion.FormatVersion(v))
	return nil
}
