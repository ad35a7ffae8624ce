// Package node arma un nodo completo: bootstrap de la topología, store de
// cambios, servidor del protocolo, scheduler de restart/stop y API HTTP.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/audit"
	"github.com/dropDatabas3/clusterconf/internal/bootstrap"
	"github.com/dropDatabas3/clusterconf/internal/config"
	"github.com/dropDatabas3/clusterconf/internal/configuration"
	httpserver "github.com/dropDatabas3/clusterconf/internal/http"
	healthctrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/health"
	lifectrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/lifecycle"
	protoctrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/protocol"
	topoctrl "github.com/dropDatabas3/clusterconf/internal/http/controllers/topology"
	mw "github.com/dropDatabas3/clusterconf/internal/http/middlewares"
	"github.com/dropDatabas3/clusterconf/internal/http/router"
	"github.com/dropDatabas3/clusterconf/internal/manager"
	"github.com/dropDatabas3/clusterconf/internal/metrics"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// ErrNodeNotFound: el archivo de configuración no contiene a este nodo.
var ErrNodeNotFound = errors.New("node: this node is not part of the configuration file")

// Params son los parámetros de arranque que no vienen del YAML del daemon.
type Params struct {
	// ConfigFile es un archivo de propiedades con el cluster completo.
	// Si está vacío el nodo se arma sólo con CLI.
	ConfigFile string
	// CLI son los settings pasados por flag. Con ConfigFile sólo se usan
	// node-name, node-hostname y node-port para ubicar al nodo.
	CLI map[*setting.Setting]string
	// Substitutor resuelve placeholders (%h, %i, ...). Default: del host.
	Substitutor setting.Substitutor
}

// Node es un proceso de nodo listo para correr.
type Node struct {
	cfg       *config.Config
	log       *zap.Logger
	store     protocol.ChangeStore
	topo      *manager.TopologyService
	server    *protocol.Server
	scheduler *manager.Scheduler
	registry  *prometheus.Registry
	handler   *httpserver.Server
	addr      string
	restored  bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New hace el bootstrap y arma todas las piezas; no abre puertos.
func New(ctx context.Context, cfg *config.Config, p Params, log *zap.Logger) (*Node, error) {
	if log == nil {
		log = logger.Named("node")
	}
	if p.Substitutor == nil {
		p.Substitutor = setting.NewSubstitutor()
	}
	opts := bootstrap.Options{Substitutor: p.Substitutor, Logger: log.Named("bootstrap")}

	nc, err := bootstrapContext(p, opts)
	if err != nil {
		return nil, err
	}
	log = log.With(logger.NodeName(nc.Node().Name))

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	n := &Node{cfg: cfg, log: log, store: store}

	n.topo = manager.NewTopologyService(nc, log.Named("topology"))
	lic := manager.NewLicenseService()
	n.server, err = protocol.NewServer(protocol.ServerConfig{
		Store:      store,
		Topology:   n.topo,
		License:    lic,
		OutcomeTTL: cfg.Protocol.OutcomeTTL,
		Audit:      audit.LogSink{Logger: log.Named("audit")},
		Logger:     log.Named("protocol"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if n.restored, err = n.server.Restore(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("node: restore: %w", err)
	}

	n.scheduler = manager.NewScheduler(cfg.Manager.MinRestartDelay, manager.Actions{
		Restart: n.restart,
		Stop:    n.stop,
	}, log.Named("scheduler"))

	n.registry = prometheus.NewRegistry()
	n.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := multierr.Combine(metrics.Register(n.registry), mw.RegisterMetrics(n.registry)); err != nil {
		_ = store.Close()
		return nil, err
	}

	h := router.New(router.Deps{
		Protocol:       protoctrl.NewController(n.server),
		Topology:       topoctrl.NewController(n.topo, lic),
		Lifecycle:      lifectrl.NewController(n.scheduler),
		Health:         healthctrl.NewController(n.topo, cfg.App.Version),
		Metrics:        promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}),
		Logger:         log.Named("http"),
		RequestTimeout: cfg.Protocol.PrepareTimeout,
	})
	n.addr = listenAddr(cfg, nc.Node())
	n.handler = httpserver.NewServer(n.addr, h, log.Named("http"))
	return n, nil
}

// bootstrapContext arma el cluster inicial y ubica a este nodo en él.
func bootstrapContext(p Params, opts bootstrap.Options) (topology.NodeContext, error) {
	if p.ConfigFile == "" {
		c, err := bootstrap.FromCLI(p.CLI, opts)
		if err != nil {
			return topology.NodeContext{}, err
		}
		return topology.NewNodeContext(c, 1, 1)
	}

	f, err := os.Open(p.ConfigFile)
	if err != nil {
		return topology.NodeContext{}, err
	}
	defer f.Close()
	props, _, err := configuration.ParseProperties(f)
	if err != nil {
		return topology.NodeContext{}, fmt.Errorf("%s: %w", p.ConfigFile, err)
	}
	c, err := bootstrap.FromProperties(props, opts)
	if err != nil {
		return topology.NodeContext{}, err
	}
	return locate(c, p)
}

// locate busca al nodo por node-name y si no por hostname:port. Con un único
// nodo en el archivo no hace falta nada.
func locate(c *topology.Cluster, p Params) (topology.NodeContext, error) {
	if name, ok := p.CLI[setting.NodeName]; ok && name != "" {
		n, found := c.NodeByName(name)
		if !found {
			return topology.NodeContext{}, fmt.Errorf("%w: no node named '%s'", ErrNodeNotFound, name)
		}
		return topology.NewNodeContextByUID(c, n.UID)
	}
	host, hostSet := p.CLI[setting.NodeHostname]
	port, portSet := p.CLI[setting.NodePort]
	if !hostSet && !portSet && c.NodeCount() == 1 {
		return topology.NewNodeContext(c, 1, 1)
	}
	if !hostSet {
		host = setting.NodeHostname.DefaultValue()
	}
	if !portSet {
		port = setting.NodePort.DefaultValue()
	}
	host = p.Substitutor.Substitute(host)
	pn, err := strconv.Atoi(port)
	if err != nil {
		return topology.NodeContext{}, fmt.Errorf("invalid node-port '%s'", port)
	}
	ep := topology.Endpoint{Host: host, Port: pn}
	n, _, _, found := c.NodeByEndpoint(ep)
	if !found {
		return topology.NodeContext{}, fmt.Errorf("%w: no node at %s", ErrNodeNotFound, ep)
	}
	return topology.NewNodeContextByUID(c, n.UID)
}

func openStore(cfg *config.Config) (protocol.ChangeStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return protocol.NewMemoryStore(), nil
	case "bolt":
		return protocol.NewBoltStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("node: unknown store driver %q", cfg.Store.Driver)
	}
}

// listenAddr: http.addr del YAML o, si está vacío, bind-address:port del nodo.
func listenAddr(cfg *config.Config, n *topology.Node) string {
	if cfg.HTTP.Addr != "" {
		return cfg.HTTP.Addr
	}
	bind := n.BindAddress
	if bind == "" {
		bind = setting.NodeBindAddress.DefaultValue()
	}
	return net.JoinHostPort(bind, strconv.Itoa(n.Port))
}

func (n *Node) Addr() string                       { return n.addr }
func (n *Node) Server() *protocol.Server           { return n.server }
func (n *Node) Topology() *manager.TopologyService { return n.topo }
func (n *Node) Restored() bool                     { return n.restored }

// restart recarga la topología upcoming en runtime, que es lo que haría un
// reinicio del proceso.
func (n *Node) restart() {
	n.topo.Reload()
	n.log.Info("node restarted: upcoming topology is now runtime")
}

func (n *Node) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.log.Info("node stopping")
		n.cancel()
	}
}

// Run sirve la API hasta que ctx se cancela o llega un stop programado.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()
	defer cancel()

	n.scheduler.Start(ctx)
	n.log.Info("node started",
		logger.String("addr", n.addr),
		logger.String("state", n.topo.State().String()),
		logger.Bool("restored", n.restored))
	err := n.handler.Run(ctx)
	cancel()
	n.scheduler.Wait()
	return multierr.Append(err, n.store.Close())
}
