package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/viant/obpel/service/dao"
)

type summary struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	TargetNamespace string `json:"targetNamespace,omitempty" yaml:"targetNamespace,omitempty"`
	Version         int    `json:"version" yaml:"version"`
	Nodes           int    `json:"nodes" yaml:"nodes"`
}

func newListCmd(a *app) *cobra.Command {
	var (
		name      string
		namespace string
		version   int
		output    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer srv.Close()
			var parameters []*dao.Parameter
			if name != "" {
				parameters = append(parameters, dao.NewParameter(dao.ParameterName, name))
			}
			if namespace != "" {
				parameters = append(parameters, dao.NewParameter(dao.ParameterTargetNamespace, namespace))
			}
			if version > 0 {
				parameters = append(parameters, dao.NewParameter(dao.ParameterVersion, strconv.Itoa(version)))
			}
			docs, err := srv.List(ctx, parameters...)
			if err != nil {
				return err
			}
			result := make([]*summary, 0, len(docs))
			for _, doc := range docs {
				result = append(result, &summary{ID: doc.ID, Name: doc.Name, TargetNamespace: doc.TargetNamespace, Version: doc.Version, Nodes: len(doc.Nodes)})
			}
			return write(cmd.OutOrStdout(), output, result)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "filter by process name")
	cmd.Flags().StringVar(&namespace, "namespace", "", "filter by target namespace")
	cmd.Flags().IntVar(&version, "version", 0, "filter by version")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}
