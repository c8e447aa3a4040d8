package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import URL...",
		Short: "Import definition documents into the store",
		Long: `Import one or more YAML or JSON definition documents into the configured
store. Documents are validated and decoded before they are saved.

Examples:
  obpel import --store-kind fs --store-url /var/lib/obpel order.yaml
  OBPEL_STORE_KIND=bolt OBPEL_STORE_URL=defs.db obpel import s3://bucket/billing.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer srv.Close()
			for _, URL := range args {
				p, err := srv.Import(ctx, URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d nodes\n", p.ID(), p.LiveNodes())
			}
			return nil
		},
	}
}
