package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/audit"
	"github.com/dropDatabas3/clusterconf/internal/cache"
	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/manager"
	"github.com/dropDatabas3/clusterconf/internal/metrics"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/topology"
	"github.com/dropDatabas3/clusterconf/internal/validator"
)

// DefaultOutcomeTTL es cuánto recuerda un nodo el resultado de un cambio
// ya resuelto para responder commit/rollback repetidos.
const DefaultOutcomeTTL = 10 * time.Minute

// ChangeProcessor es un chequeo externo que corre en prepare después del
// validador de cluster. Un error rechaza el cambio.
type ChangeProcessor interface {
	Validate(nc topology.NodeContext, proposed *topology.Cluster, ch change.Change) error
}

// ProcessorFunc adapta una función a ChangeProcessor.
type ProcessorFunc func(nc topology.NodeContext, proposed *topology.Cluster, ch change.Change) error

func (f ProcessorFunc) Validate(nc topology.NodeContext, proposed *topology.Cluster, ch change.Change) error {
	return f(nc, proposed, ch)
}

// ServerConfig agrupa las dependencias de un Server.
type ServerConfig struct {
	Store      ChangeStore
	Topology   *manager.TopologyService
	License    *manager.LicenseService
	Processors []ChangeProcessor
	Version    topology.Version
	OutcomeTTL time.Duration
	// Audit recibe commits, rollbacks y syncs. Default: audit.LogSink.
	Audit  audit.Sink
	Logger *zap.Logger
}

type pendingChange struct {
	record   Record
	change   change.Change
	proposed *topology.Cluster
	// self es la ubicación del nodo en el cluster a activar.
	self topology.NodeContext
}

// Server es el lado nodo del protocolo. Todas las fases se serializan en
// un único mutex: mientras hay un cambio PROPOSED no se acepta otro.
type Server struct {
	mu         sync.Mutex
	pending    *pendingChange
	store      ChangeStore
	topo       *manager.TopologyService
	license    *manager.LicenseService
	processors []ChangeProcessor
	version    topology.Version
	outcomes   cache.Client
	outcomeTTL time.Duration
	audit      audit.Sink
	log        *zap.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Topology == nil {
		return nil, fmt.Errorf("protocol: store and topology are required")
	}
	if cfg.License == nil {
		cfg.License = manager.NewLicenseService()
	}
	if cfg.Version == 0 {
		cfg.Version = topology.CurrentVersion
	}
	if cfg.OutcomeTTL <= 0 {
		cfg.OutcomeTTL = DefaultOutcomeTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("protocol")
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.LogSink{}
	}
	s := &Server{
		store:      cfg.Store,
		topo:       cfg.Topology,
		license:    cfg.License,
		processors: cfg.Processors,
		version:    cfg.Version,
		outcomes:   cache.NewMemory(cache.Config{Prefix: "outcome:", DefaultTTL: cfg.OutcomeTTL}),
		outcomeTTL: cfg.OutcomeTTL,
		audit:      cfg.Audit,
		log:        cfg.Logger,
	}
	if n, err := cfg.Store.Count(context.Background()); err == nil {
		metrics.TopologyMutationCount.Set(float64(n))
	}
	return s, nil
}

func (s *Server) Topology() *manager.TopologyService { return s.topo }
func (s *Server) License() *manager.LicenseService   { return s.license }

// Restore reinstala la topología del último cambio confirmado, si existe.
// Se llama al arrancar el nodo con un store durable; el nodo se ubica en el
// cluster guardado por su dirección interna. Si ya no figura (fue removido)
// queda aislado, igual que tras el commit del detach.
func (s *Server) Restore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok, err := s.store.Latest(ctx)
	if err != nil || !ok {
		return false, err
	}
	self := s.topo.RuntimeNodeContext().Node()
	if self == nil {
		return false, fmt.Errorf("protocol: node has no topology to restore into")
	}
	var nc topology.NodeContext
	if n, _, _, found := rec.Cluster.NodeByEndpoint(self.InternalEndpoint()); found {
		if nc, err = topology.NewNodeContextByUID(rec.Cluster, n.UID); err != nil {
			return false, err
		}
	} else {
		nc = s.topo.RuntimeNodeContext().WithCluster(rec.Cluster)
		s.log.Warn("node is not part of the stored cluster, restoring it isolated",
			logger.String("endpoint", self.InternalEndpoint().String()), logger.ChangeID(rec.UUID))
	}
	s.topo.Install(nc)
	if err := s.topo.Activate(rec.Cluster); err != nil {
		return false, err
	}
	metrics.TopologyMutationCount.Set(float64(rec.Version))
	s.log.Info("topology restored from change store",
		logger.ChangeID(rec.UUID), logger.Version(rec.Version))
	return true, nil
}

func (s *Server) outcome(ctx context.Context, uuid string) (ChangeState, bool) {
	v, err := s.outcomes.Get(ctx, uuid)
	if err != nil {
		return "", false
	}
	return ChangeState(v), true
}

func (s *Server) remember(ctx context.Context, uuid string, st ChangeState) {
	_ = s.outcomes.Set(ctx, uuid, string(st), s.outcomeTTL)
}

func reject(format string, args ...any) PrepareResponse {
	return PrepareResponse{Reason: fmt.Sprintf(format, args...)}
}

// Prepare aplica el cambio sobre una copia de la topología upcoming, valida
// el resultado y, si todo pasa, deja el cambio PROPOSED.
func (s *Server) Prepare(ctx context.Context, req PrepareRequest) PrepareResponse {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := s.prepare(ctx, req)
	metrics.Phase(PhasePrepare, resp.Accepted)
	metrics.ChangePrepareLatency.Observe(float64(time.Since(start).Milliseconds()))
	log := s.log.With(logger.ChangeID(req.ChangeUUID))
	if resp.Accepted {
		log.Info("change prepared", logger.String("summary", s.pending.record.Summary))
	} else {
		log.Warn("change rejected", logger.String("reason", resp.Reason))
	}
	return resp
}

func (s *Server) prepare(ctx context.Context, req PrepareRequest) PrepareResponse {
	if req.ChangeUUID == "" {
		return reject("Change UUID is missing")
	}
	if st, ok := s.outcome(ctx, req.ChangeUUID); ok {
		return reject("Change %s is already resolved: %s", req.ChangeUUID, st)
	}
	if _, err := s.store.Get(ctx, req.ChangeUUID); err == nil {
		return reject("Change %s is already resolved: %s", req.ChangeUUID, StateCommitted)
	}
	if s.pending != nil {
		if s.pending.record.UUID == req.ChangeUUID {
			nc := s.pending.self.Clone()
			return PrepareResponse{Accepted: true, NodeContext: &nc}
		}
		return reject("Another change (%s) is already in progress", s.pending.record.UUID)
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return reject("Unable to read change store: %v", err)
	}
	if req.ExpectedMutationCount != count {
		return reject("Mutation count mismatch: expected %d, but node has %d", req.ExpectedMutationCount, count)
	}
	ch, err := req.Mutation.Unwrap()
	if err != nil {
		return reject("%v", err)
	}

	_, activation := ch.(*change.ClusterActivation)
	activated := s.topo.IsActivated()
	switch {
	case activation && activated:
		return reject("Node is already activated")
	case !activation && !activated:
		return reject("Node is not activated")
	}

	current := s.topo.UpcomingNodeContext()
	proposed, err := ch.Apply(current.Cluster())
	if err != nil {
		return reject("Error when applying change '%s': %v", ch.Summary(), err)
	}
	nc := current.WithCluster(proposed)
	if activation {
		self, ok := locate(current, proposed)
		if !ok {
			return reject("Node %s is not part of the cluster to activate", current.Node().Name)
		}
		nc = self
	}
	v := validator.New(proposed, validator.WithVersion(s.version), validator.WithLogger(s.log))
	if err := v.Validate(topology.Activated); err != nil {
		return reject("Error when validating change '%s': %v", ch.Summary(), err)
	}
	for _, p := range s.processors {
		if err := p.Validate(nc.Clone(), proposed.Clone(), ch); err != nil {
			return reject("Error when processing change '%s': %v", ch.Summary(), err)
		}
	}

	s.pending = &pendingChange{
		record: Record{
			UUID:      req.ChangeUUID,
			State:     StateProposed,
			Mutation:  req.Mutation,
			User:      req.User,
			Host:      req.Host,
			Timestamp: time.Now().UTC(),
			Summary:   ch.Summary(),
		},
		change:   ch,
		proposed: proposed,
		self:     nc,
	}
	return PrepareResponse{Accepted: true, NodeContext: &nc}
}

// locate ubica al nodo en el cluster a activar: primero por UID y, si el
// cluster se armó aparte (archivo de config), por su dirección interna.
func locate(current topology.NodeContext, c *topology.Cluster) (topology.NodeContext, bool) {
	if _, _, ok := c.Coordinates(current.NodeUID()); ok {
		return current.WithCluster(c), true
	}
	self := current.Node()
	if self == nil {
		return topology.NodeContext{}, false
	}
	n, _, _, ok := c.NodeByEndpoint(self.InternalEndpoint())
	if !ok {
		return topology.NodeContext{}, false
	}
	nc, err := topology.NewNodeContextByUID(c, n.UID)
	if err != nil {
		return topology.NodeContext{}, false
	}
	return nc, true
}

// Commit guarda el cambio PROPOSED y actualiza la topología upcoming (y la
// runtime si el cambio es aplicable en caliente). Repetir el commit de un
// cambio ya confirmado es aceptado.
func (s *Server) Commit(ctx context.Context, req CommitRequest) Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack := s.commit(ctx, req)
	metrics.Phase(PhaseCommit, ack.Accepted)
	if !ack.Accepted {
		s.log.Warn("commit rejected", logger.ChangeID(req.ChangeUUID), logger.String("reason", ack.Reason))
	}
	return ack
}

func (s *Server) commit(ctx context.Context, req CommitRequest) Ack {
	if st, ok := s.outcome(ctx, req.ChangeUUID); ok {
		if st == StateCommitted {
			return Ack{Accepted: true}
		}
		return Ack{Reason: fmt.Sprintf("Change %s was %s", req.ChangeUUID, st)}
	}
	if s.pending == nil || s.pending.record.UUID != req.ChangeUUID {
		if _, err := s.store.Get(ctx, req.ChangeUUID); err == nil {
			return Ack{Accepted: true}
		}
		return Ack{Reason: fmt.Sprintf("No change in progress with UUID %s", req.ChangeUUID)}
	}

	p := s.pending
	_, activation := p.change.(*change.ClusterActivation)
	if activation == s.topo.IsActivated() {
		// el estado cambió entre prepare y commit; no se guarda nada
		if activation {
			return Ack{Reason: "Node is already activated"}
		}
		return Ack{Reason: "Node is not activated"}
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return Ack{Reason: fmt.Sprintf("Unable to read change store: %v", err)}
	}
	rec := p.record
	rec.State = StateCommitted
	rec.Version = uint64(count) + 1
	rec.Cluster = p.proposed.Clone()
	if err := s.store.Save(ctx, rec); err != nil {
		return Ack{Reason: fmt.Sprintf("Unable to save change: %v", err)}
	}

	// desde acá el cambio es durable: pase lo que pase con la topología en
	// memoria, el cambio queda resuelto como COMMITTED
	s.pending = nil
	s.remember(ctx, rec.UUID, StateCommitted)
	if err := s.install(p); err != nil {
		s.log.Error("change saved but topology not updated",
			logger.ChangeID(rec.UUID), logger.Version(rec.Version), logger.Err(err))
		return Ack{Reason: fmt.Sprintf("Change %s saved but topology not updated: %v", rec.UUID, err)}
	}
	s.audit.Write(ctx, audit.Event{
		Name: audit.EventChangeCommitted, Change: rec.UUID, Summary: rec.Summary,
		User: rec.User, Host: rec.Host, Version: rec.Version,
	})
	metrics.TopologyMutationCount.Set(float64(rec.Version))
	s.log.Info("change committed",
		logger.ChangeID(rec.UUID),
		logger.Version(rec.Version),
		logger.String("summary", rec.Summary))
	return Ack{Accepted: true}
}

func (s *Server) install(p *pendingChange) error {
	if act, ok := p.change.(*change.ClusterActivation); ok {
		s.topo.Install(p.self)
		if err := s.topo.Activate(p.proposed); err != nil {
			return err
		}
		s.license.Install(act.License)
		return nil
	}
	hot := p.change.CanUpdateRuntimeTopology(s.topo.RuntimeNodeContext())
	return s.topo.CommitUpgrade(p.proposed, hot)
}

// Rollback descarta el cambio PROPOSED. No toca el store. Sobre un UUID
// desconocido no hace nada y acepta.
func (s *Server) Rollback(ctx context.Context, req RollbackRequest) Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack := s.rollback(ctx, req)
	metrics.Phase(PhaseRollback, ack.Accepted)
	return ack
}

func (s *Server) rollback(ctx context.Context, req RollbackRequest) Ack {
	if st, ok := s.outcome(ctx, req.ChangeUUID); ok {
		if st == StateRolledBack {
			return Ack{Accepted: true}
		}
		return Ack{Reason: fmt.Sprintf("Change %s was already %s", req.ChangeUUID, st)}
	}
	if _, err := s.store.Get(ctx, req.ChangeUUID); err == nil {
		return Ack{Reason: fmt.Sprintf("Change %s was already %s", req.ChangeUUID, StateCommitted)}
	}
	if s.pending != nil && s.pending.record.UUID == req.ChangeUUID {
		p := s.pending.record
		s.pending = nil
		s.log.Info("change rolled back", logger.ChangeID(req.ChangeUUID))
		s.audit.Write(ctx, audit.Event{
			Name: audit.EventChangeRolledBack, Change: p.UUID, Summary: p.Summary,
			User: p.User, Host: p.Host,
		})
	}
	s.remember(ctx, req.ChangeUUID, StateRolledBack)
	return Ack{Accepted: true}
}

// Discover describe el historial de cambios del nodo.
func (s *Server) Discover(ctx context.Context) (DiscoverResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nc := s.topo.RuntimeNodeContext()
	resp := DiscoverResponse{
		Activated:       s.topo.IsActivated(),
		RestartRequired: s.topo.RestartRequired(),
		InProgress:      s.pending != nil,
	}
	if n := nc.Node(); n != nil {
		resp.NodeName = n.Name
		resp.Endpoint = n.InternalEndpoint().String()
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return resp, err
	}
	resp.MutationCount = count
	latest, ok, err := s.store.Latest(ctx)
	if err != nil {
		return resp, err
	}
	if ok {
		resp.CurrentVersion = latest.Version
		resp.HighestVersion = latest.Version
		resp.LastMutationUser = latest.User
		resp.LastMutationHost = latest.Host
		resp.LastMutationTimestamp = latest.Timestamp
		resp.LatestChange = details(latest)
	}
	if s.pending != nil {
		resp.HighestVersion = resp.CurrentVersion + 1
		pending := s.pending.record
		pending.Version = resp.HighestVersion
		resp.LatestChange = details(pending)
	}
	metrics.Phase(PhaseDiscover, true)
	return resp, nil
}

func details(r Record) *ChangeDetails {
	return &ChangeDetails{UUID: r.UUID, State: r.State, Summary: r.Summary, Version: r.Version, Timestamp: r.Timestamp}
}

// History devuelve todos los cambios confirmados y la licencia instalada.
func (s *Server) History(ctx context.Context) (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.store.List(ctx)
	if err != nil {
		return History{}, err
	}
	h := History{Records: recs}
	if lic, ok := s.license.License(); ok {
		h.License = lic.Content
	}
	return h, nil
}

// Sync pone al día a un nodo sin historial copiando el de otro miembro del
// cluster y lo activa con la topología del último cambio. Después de Sync
// el nodo pasa el chequeo de consistencia de discover.
func (s *Server) Sync(ctx context.Context, h History) Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack := s.sync(ctx, h)
	metrics.Phase(PhaseSync, ack.Accepted)
	if !ack.Accepted {
		s.log.Warn("sync rejected", logger.String("reason", ack.Reason))
	}
	return ack
}

func (s *Server) sync(ctx context.Context, h History) Ack {
	if s.pending != nil {
		return Ack{Reason: fmt.Sprintf("Another change (%s) is already in progress", s.pending.record.UUID)}
	}
	if s.topo.IsActivated() {
		return Ack{Reason: "Node is already activated"}
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return Ack{Reason: fmt.Sprintf("Unable to read change store: %v", err)}
	}
	if count != 0 {
		return Ack{Reason: fmt.Sprintf("Node already has %d change(s)", count)}
	}
	if len(h.Records) == 0 {
		return Ack{Reason: "No change to synchronize"}
	}
	for i, rec := range h.Records {
		if rec.Version != uint64(i)+1 || rec.UUID == "" || rec.State != StateCommitted || rec.Cluster == nil {
			return Ack{Reason: fmt.Sprintf("Invalid change history at position %d", i+1)}
		}
	}

	last := h.Records[len(h.Records)-1]
	current := s.topo.UpcomingNodeContext()
	self, ok := locate(current, last.Cluster)
	if !ok {
		return Ack{Reason: fmt.Sprintf("Node %s is not part of the synchronized cluster", current.Node().Name)}
	}
	v := validator.New(last.Cluster, validator.WithVersion(s.version), validator.WithLogger(s.log))
	if err := v.Validate(topology.Activated); err != nil {
		return Ack{Reason: fmt.Sprintf("Error when validating synchronized cluster: %v", err)}
	}
	for _, rec := range h.Records {
		if err := s.store.Save(ctx, rec); err != nil {
			return Ack{Reason: fmt.Sprintf("Unable to save change: %v", err)}
		}
	}

	s.topo.Install(self)
	if err := s.topo.Activate(last.Cluster); err != nil {
		return Ack{Reason: err.Error()}
	}
	if h.License != "" {
		s.license.Install(h.License)
	}
	metrics.TopologyMutationCount.Set(float64(last.Version))
	s.audit.Write(ctx, audit.Event{
		Name: audit.EventHistorySynced, Change: last.UUID, Summary: last.Summary, Version: last.Version,
	})
	s.log.Info("change history synchronized",
		logger.ChangeID(last.UUID), logger.Version(last.Version))
	return Ack{Accepted: true}
}
