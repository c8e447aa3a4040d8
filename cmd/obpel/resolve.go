package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/obpel/model"
)

const (
	resolveVariable       = "variable"
	resolvePartnerLink    = "partnerLink"
	resolveCorrelationSet = "correlationSet"
)

func newResolveCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "resolve ID SCOPE NAME",
		Short: "Show which declaration a name resolves to from a scope",
		Long: `Resolve NAME the way an activity inside SCOPE would see it: the innermost
enclosing declaration wins.

Examples:
  obpel resolve '{urn:shop}order-1' iteration status
  obpel resolve '{urn:shop}order-1' iteration client --kind partnerLink`,
		Args: cobra.ExactArgs(3),
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
			scope := findScope(p, args[1])
			if scope == nil {
				return fmt.Errorf("scope %s not found in %s", args[1], p.ID())
			}
			found, declaring, err := resolve(scope, kind, args[2])
			if err != nil {
				return err
			}
			if declaring == nil {
				return fmt.Errorf("%s %s is not visible from %s", kind, args[2], scope.Name())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v declared in %v\n", found, declaring)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", resolveVariable, "declaration kind: variable, partnerLink or correlationSet")
	return cmd
}

func findScope(p *model.Process, name string) *model.Scope {
	for _, n := range p.Nodes() {
		if scope, ok := n.(*model.Scope); ok && scope.Name() == name {
			return scope
		}
	}
	return nil
}

func resolve(scope *model.Scope, kind, name string) (fmt.Stringer, *model.Scope, error) {
	switch kind {
	case resolveVariable:
		if v, ok := scope.ResolveVariable(name); ok {
			return v, v.DeclaringScope(), nil
		}
	case resolvePartnerLink:
		if pl, ok := scope.ResolvePartnerLink(name); ok {
			return pl, pl.DeclaringScope(), nil
		}
	case resolveCorrelationSet:
		if cs, ok := scope.ResolveCorrelationSet(name); ok {
			return cs, cs.DeclaringScope(), nil
		}
	default:
		return nil, nil, fmt.Errorf("unsupported kind %q", kind)
	}
	return nil, nil, nil
}
