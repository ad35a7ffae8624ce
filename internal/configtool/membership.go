package configtool

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

func (t *tool) activateCommand() *cobra.Command {
	var (
		node        string
		file        string
		imported    bool
		clusterName string
		licenseFile string
	)
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activa un cluster: desde la topología de un nodo (-s) o desde un archivo (-f)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (node == "") == (file == "") {
				return fmt.Errorf("se requiere exactamente uno de -s o -f")
			}
			ctx, cancel := t.context(cmd)
			defer cancel()

			var cluster *topology.Cluster
			if file != "" {
				c, err := t.loadClusterFile(file, imported)
				if err != nil {
					return err
				}
				cluster = c
			} else {
				ep, err := parseEndpoint(node)
				if err != nil {
					return err
				}
				nc, err := t.transport.Topology(ctx, ep, true)
				if err != nil {
					return fmt.Errorf("read topology of %s: %w", ep, err)
				}
				cluster = nc.Cluster()
			}
			if clusterName != "" {
				cluster.Name = clusterName
			}
			if cluster.Name == "" {
				return fmt.Errorf("cluster name is missing: use -n or set cluster-name")
			}
			var license string
			if licenseFile != "" {
				raw, err := os.ReadFile(licenseFile)
				if err != nil {
					return fmt.Errorf("read license: %w", err)
				}
				license = strings.TrimSpace(string(raw))
			}

			w := cmd.OutOrStdout()
			act := &change.ClusterActivation{Cluster: cluster, License: license}
			fmt.Fprintln(w, act.Summary())
			out, err := t.coord.Run(ctx, clusterEndpoints(cluster), act)
			return report(w, out, err)
		},
	}
	cmd.Flags().StringVarP(&node, "node", "s", "", "Nodo cuya topología se activa (host[:port])")
	cmd.Flags().StringVarP(&file, "config-file", "f", "", "Archivo de propiedades con el cluster a activar")
	cmd.Flags().BoolVar(&imported, "import", false, "El archivo viene de export (acepta UIDs)")
	cmd.Flags().StringVarP(&clusterName, "cluster-name", "n", "", "Nombre del cluster")
	cmd.Flags().StringVarP(&licenseFile, "license-file", "l", "", "Archivo de licencia")
	return cmd
}

// membershipTarget es lo que attach/detach necesita del cluster destino.
type membershipTarget struct {
	nc        topology.NodeContext
	endpoints []topology.Endpoint
}

func (t *tool) activatedCluster(ctx context.Context, dest string) (membershipTarget, error) {
	ep, err := parseEndpoint(dest)
	if err != nil {
		return membershipTarget{}, err
	}
	d, err := t.transport.Discover(ctx, ep)
	if err != nil {
		return membershipTarget{}, fmt.Errorf("discover %s: %w", ep, err)
	}
	if !d.Activated {
		return membershipTarget{}, fmt.Errorf("destination node %s is not activated", ep)
	}
	nc, eps, err := t.runtimeCluster(ctx, ep)
	if err != nil {
		return membershipTarget{}, err
	}
	return membershipTarget{nc: nc, endpoints: eps}, nil
}

func (t *tool) attachCommand() *cobra.Command {
	var (
		dest   string
		source string
		stripe bool
	)
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Agrega un nodo (o su stripe completo) a un cluster activado",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" || source == "" {
				return fmt.Errorf("-d y -s son requeridos")
			}
			ctx, cancel := t.context(cmd)
			defer cancel()
			target, err := t.activatedCluster(ctx, dest)
			if err != nil {
				return err
			}
			srcEp, err := parseEndpoint(source)
			if err != nil {
				return err
			}
			d, err := t.transport.Discover(ctx, srcEp)
			if err != nil {
				return fmt.Errorf("discover %s: %w", srcEp, err)
			}
			if d.Activated {
				return fmt.Errorf("source node %s is already part of an activated cluster", srcEp)
			}
			src, err := t.transport.Topology(ctx, srcEp, true)
			if err != nil {
				return fmt.Errorf("read topology of %s: %w", srcEp, err)
			}

			var (
				ch     change.Change
				joined []topology.Endpoint
			)
			if stripe {
				ch = &change.StripeAddition{Stripe: src.Stripe()}
				for _, n := range src.Stripe().Nodes {
					joined = append(joined, n.InternalEndpoint())
				}
			} else {
				ch = &change.NodeAddition{StripeUID: target.nc.Stripe().UID, Node: src.Node()}
				joined = []topology.Endpoint{srcEp}
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ch.Summary())
			out, err := t.coord.Run(ctx, target.endpoints, ch)
			if err := report(w, out, err); err != nil {
				return err
			}
			return t.syncJoined(ctx, w, target.endpoints[0], joined)
		},
	}
	cmd.Flags().StringVarP(&dest, "destination", "d", "", "Nodo del cluster destino (host[:port])")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Nodo a agregar (host[:port])")
	cmd.Flags().BoolVar(&stripe, "stripe", false, "Agregar el stripe completo del nodo fuente")
	return cmd
}

// syncJoined copia el historial del cluster a los nodos recién agregados,
// lo que además los activa.
func (t *tool) syncJoined(ctx context.Context, w io.Writer, from topology.Endpoint, joined []topology.Endpoint) error {
	hist, err := t.transport.History(ctx, from)
	if err != nil {
		return fmt.Errorf("read change history of %s: %w", from, err)
	}
	for _, ep := range joined {
		ack, err := t.transport.Sync(ctx, ep, hist)
		if err != nil {
			return fmt.Errorf("sync %s: %w", ep, err)
		}
		if !ack.Accepted {
			return &protocol.RejectionError{Node: ep.String(), Phase: protocol.PhaseSync, Reason: ack.Reason}
		}
		fmt.Fprintf(w, "Node %s synchronized (%d change(s))\n", ep, len(hist.Records))
	}
	return nil
}

func (t *tool) detachCommand() *cobra.Command {
	var (
		dest   string
		source string
		stripe bool
	)
	cmd := &cobra.Command{
		Use:   "detach",
		Short: "Quita un nodo (o su stripe completo) de un cluster activado",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" || source == "" {
				return fmt.Errorf("-d y -s son requeridos")
			}
			ctx, cancel := t.context(cmd)
			defer cancel()
			target, err := t.activatedCluster(ctx, dest)
			if err != nil {
				return err
			}
			srcEp, err := parseEndpoint(source)
			if err != nil {
				return err
			}
			cluster := target.nc.Cluster()
			n, stripeID, _, ok := cluster.NodeByEndpoint(srcEp)
			if !ok {
				return fmt.Errorf("node %s is not part of the cluster", srcEp)
			}
			if n.UID == target.nc.NodeUID() || (stripe && stripeID == target.nc.StripeID()) {
				return fmt.Errorf("destination %s cannot detach itself; use another node of the cluster", dest)
			}

			var ch change.Change
			if stripe {
				s, _ := cluster.Stripe(stripeID)
				ch = &change.StripeRemoval{StripeUID: s.UID}
			} else {
				ch = &change.NodeRemoval{NodeUID: n.UID}
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ch.Summary())
			out, err := t.coord.Run(ctx, target.endpoints, ch)
			return report(w, out, err)
		},
	}
	cmd.Flags().StringVarP(&dest, "destination", "d", "", "Nodo del cluster (host[:port])")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Nodo a quitar (host[:port])")
	cmd.Flags().BoolVar(&stripe, "stripe", false, "Quitar el stripe completo del nodo")
	return cmd
}
