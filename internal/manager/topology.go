// Package manager guarda el estado mutable de un nodo: las topologías
// runtime/upcoming, la licencia y las acciones diferidas de restart/stop.
package manager

import (
	"errors"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

var (
	ErrNotActivated     = errors.New("manager: node is not activated")
	ErrAlreadyActivated = errors.New("manager: node is already activated")
)

// TopologyService mantiene las dos vistas del nodo bajo un único RWMutex:
// runtime (lo que corre ahora) y upcoming (lo que cargará tras reiniciar).
// Los lectores reciben siempre una copia profunda.
type TopologyService struct {
	mu       sync.RWMutex
	runtime  topology.NodeContext
	upcoming topology.NodeContext
	state    topology.ClusterState
	log      *zap.Logger
}

// NewTopologyService arranca en estado UNCONFIGURED con la topología inicial
// del nodo (resultado del bootstrap).
func NewTopologyService(nc topology.NodeContext, log *zap.Logger) *TopologyService {
	if log == nil {
		log = logger.Named("topology-manager")
	}
	return &TopologyService{runtime: nc.Clone(), upcoming: nc.Clone(), state: topology.Unconfigured, log: log}
}

func (s *TopologyService) RuntimeNodeContext() topology.NodeContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime.Clone()
}

func (s *TopologyService) UpcomingNodeContext() topology.NodeContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upcoming.Clone()
}

func (s *TopologyService) State() topology.ClusterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *TopologyService) IsActivated() bool { return s.State() == topology.Activated }

// RestartRequired indica cambios confirmados que aún no están en runtime.
func (s *TopologyService) RestartRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !reflect.DeepEqual(s.runtime.Cluster(), s.upcoming.Cluster())
}

// Install reemplaza ambas vistas (bootstrap o restart).
func (s *TopologyService) Install(nc topology.NodeContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtime, s.upcoming = nc.Clone(), nc.Clone()
	s.log.Info("topology installed",
		logger.NodeName(nc.Node().Name),
		logger.StripeID(nc.StripeID()),
		logger.NodeID(nc.NodeID()))
}

// Activate instala la topología de activación y pasa a ACTIVATED. Sólo una vez.
func (s *TopologyService) Activate(c *topology.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == topology.Activated {
		return ErrAlreadyActivated
	}
	nc := s.upcoming.WithCluster(c.Clone())
	s.runtime, s.upcoming = nc.Clone(), nc
	s.state = topology.Activated
	s.log.Info("node activated", logger.String("cluster", c.Name), logger.NodeName(nc.Node().Name))
	return nil
}

// CommitUpgrade instala el cluster propuesto en upcoming y, si el cambio es
// aplicable en caliente, también en runtime. Un nodo que ya no figura en el
// cluster queda aislado en un cluster propio.
func (s *TopologyService) CommitUpgrade(c *topology.Cluster, alsoRuntime bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != topology.Activated {
		return ErrNotActivated
	}
	s.upcoming = s.upcoming.WithCluster(c.Clone())
	if alsoRuntime {
		s.runtime = s.runtime.WithCluster(c.Clone())
	}
	s.log.Debug("topology committed", logger.Bool("runtime", alsoRuntime))
	return nil
}

// Reload copia upcoming a runtime (lo que hace un restart del proceso).
func (s *TopologyService) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtime = s.upcoming.Clone()
}
