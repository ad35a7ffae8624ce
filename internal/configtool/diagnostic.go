package configtool

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clusterconf/internal/protocol"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

func (t *tool) diagnosticCommand() *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "diagnostic",
		Short: "Muestra el estado del protocolo en cada nodo del cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if node == "" {
				return fmt.Errorf("-s es requerido")
			}
			ep, err := parseEndpoint(node)
			if err != nil {
				return err
			}
			ctx, cancel := t.context(cmd)
			defer cancel()
			_, eps, err := t.runtimeCluster(ctx, ep)
			if err != nil {
				return err
			}
			found, err := t.coord.Discover(ctx, eps)
			w := cmd.OutOrStdout()
			writeDiagnostic(w, eps, found)
			if err != nil {
				// algunos nodos no respondieron; la tabla muestra lo que hay
				return err
			}
			if _, err := protocol.CheckConsistency(eps, found); err != nil {
				if errors.Is(err, protocol.ErrInconsistent) {
					fmt.Fprintf(w, "\n%v\n", err)
					return nil
				}
				return err
			}
			fmt.Fprintln(w, "\nCluster configuration is consistent")
			return nil
		},
	}
	cmd.Flags().StringVarP(&node, "node", "s", "", "Cualquier nodo del cluster (host[:port])")
	return cmd
}

func writeDiagnostic(w io.Writer, eps []topology.Endpoint, found []protocol.DiscoverResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tADDRESS\tACTIVATED\tRESTART\tCHANGES\tLAST CHANGE\tSTATE\tBY")
	for i, d := range found {
		name, last, state, by := d.NodeName, "-", "-", "-"
		if name == "" {
			name = "?"
		}
		if d.LatestChange != nil {
			last = d.LatestChange.Summary
			state = string(d.LatestChange.State)
		}
		if d.LastMutationUser != "" {
			by = d.LastMutationUser + "@" + d.LastMutationHost
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%d\t%s\t%s\t%s\n",
			name, eps[i], d.Activated, d.RestartRequired, d.MutationCount, last, state, by)
	}
	_ = tw.Flush()
}

func (t *tool) lifecycleCommand(action string) *cobra.Command {
	var (
		nodes []string
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("Programa un %s diferido en los nodos indicados", action),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, ok := t.transport.(Lifecycle)
			if !ok {
				return fmt.Errorf("%s is not supported by this transport", action)
			}
			if len(nodes) == 0 {
				return fmt.Errorf("al menos un -s es requerido")
			}
			eps, err := parseEndpoints(nodes)
			if err != nil {
				return err
			}
			ctx, cancel := t.context(cmd)
			defer cancel()
			for _, ep := range eps {
				if action == "restart" {
					err = lc.Restart(ctx, ep, delay)
				} else {
					err = lc.Stop(ctx, ep, delay)
				}
				if err != nil {
					return fmt.Errorf("%s %s: %w", action, ep, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Node %s: %s scheduled in %s\n", ep, action, delay)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&nodes, "node", "s", nil, "Nodo (host[:port], repetible)")
	cmd.Flags().DurationVar(&delay, "delay", 2*time.Second, "Demora antes de ejecutar la acción")
	return cmd
}
