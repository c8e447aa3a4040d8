package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/viant/obpel/model"
	"gopkg.in/yaml.v3"
)

func newShowCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer srv.Close()
			p, err := srv.Definition(ctx, args[0])
			if err != nil {
				return err
			}
			doc, err := model.Encode(p)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), output, doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func write(w io.Writer, format string, value interface{}) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return err
		}
		return encoder.Close()
	}
	return fmt.Errorf("unsupported output format %q", format)
}
