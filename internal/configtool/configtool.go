// Package configtool arma los comandos del CLI de operación del cluster:
// lectura y cambio de settings, export/validate, activación, attach/detach
// y diagnóstico. Todo cambio pasa por el Coordinator.
package configtool

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/protocol"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// Lifecycle lo implementan los transports que pueden pedir restart/stop.
type Lifecycle interface {
	Restart(ctx context.Context, ep topology.Endpoint, delay time.Duration) error
	Stop(ctx context.Context, ep topology.Endpoint, delay time.Duration) error
}

type Options struct {
	// Coordinator opcional; por defecto uno nuevo sobre el transport.
	Coordinator *protocol.Coordinator
	Timeout     time.Duration
	Logger      *zap.Logger
}

type tool struct {
	transport protocol.Transport
	coord     *protocol.Coordinator
	timeout   time.Duration
	log       *zap.Logger
}

// NewCommand devuelve el comando raíz con todos los subcomandos.
func NewCommand(t protocol.Transport, opts Options) *cobra.Command {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Coordinator == nil {
		opts.Coordinator = protocol.NewCoordinator(t, protocol.WithCoordinatorLogger(opts.Logger))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	tl := &tool{transport: t, coord: opts.Coordinator, timeout: opts.Timeout, log: opts.Logger}

	root := &cobra.Command{
		Use:           "configtool",
		Short:         "Operación de la configuración del cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		tl.getCommand(),
		tl.setCommand(),
		tl.unsetCommand(),
		tl.exportCommand(),
		tl.validateCommand(),
		tl.activateCommand(),
		tl.attachCommand(),
		tl.detachCommand(),
		tl.diagnosticCommand(),
		tl.lifecycleCommand("restart"),
		tl.lifecycleCommand("stop"),
	)
	return root
}

func (t *tool) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, t.timeout)
}

var defaultPort = func() int {
	p, _ := strconv.Atoi(setting.NodePort.DefaultValue())
	return p
}()

// parseEndpoint acepta host o host:port; sin puerto usa el node-port por defecto.
func parseEndpoint(s string) (topology.Endpoint, error) {
	ep, err := topology.ParseEndpoint(s, defaultPort)
	if err != nil {
		return topology.Endpoint{}, fmt.Errorf("invalid node address: %w", err)
	}
	return ep, nil
}

func parseEndpoints(ss []string) ([]topology.Endpoint, error) {
	out := make([]topology.Endpoint, 0, len(ss))
	for _, s := range ss {
		ep, err := parseEndpoint(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// clusterEndpoints lista la dirección interna de cada nodo del cluster.
func clusterEndpoints(c *topology.Cluster) []topology.Endpoint {
	nodes := c.Nodes()
	out := make([]topology.Endpoint, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.InternalEndpoint())
	}
	return out
}

// runtimeCluster lee la topología runtime del nodo y devuelve sus endpoints.
func (t *tool) runtimeCluster(ctx context.Context, ep topology.Endpoint) (topology.NodeContext, []topology.Endpoint, error) {
	nc, err := t.transport.Topology(ctx, ep, false)
	if err != nil {
		return topology.NodeContext{}, nil, fmt.Errorf("read topology of %s: %w", ep, err)
	}
	if nc.Cluster() == nil {
		return topology.NodeContext{}, nil, fmt.Errorf("node %s returned an empty topology", ep)
	}
	return nc, clusterEndpoints(nc.Cluster()), nil
}

// report imprime el resultado de un cambio y devuelve el error tal cual.
func report(w io.Writer, out protocol.Outcome, err error) error {
	if err != nil {
		for _, r := range out.Rejections {
			fmt.Fprintf(w, "  %s\n", r.Error())
		}
		return err
	}
	fmt.Fprintf(w, "Change %s committed on %d node(s)\n", out.ChangeUUID, len(out.Contexts))
	return nil
}
