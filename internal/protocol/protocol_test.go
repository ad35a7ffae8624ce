package protocol

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/audit"
	"github.com/dropDatabas3/clusterconf/internal/bootstrap"
	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/manager"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

func threeNodeCluster(t *testing.T) *topology.Cluster {
	t.Helper()
	props := map[string]string{
		"cluster-name":      "tc",
		"failover-priority": "availability",
	}
	for i := 1; i <= 3; i++ {
		prefix := fmt.Sprintf("stripe.1.node.%d.", i)
		props[prefix+"node-name"] = fmt.Sprintf("node-%d", i)
		props[prefix+"node-hostname"] = "localhost"
		props[prefix+"node-port"] = strconv.Itoa(9410 + i)
		props[prefix+"node-group-port"] = strconv.Itoa(9430 + i)
	}
	c, err := bootstrap.FromProperties(props, bootstrap.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	return c
}

type harness struct {
	cluster   *topology.Cluster
	transport *LocalTransport
	servers   []*Server
	endpoints []topology.Endpoint
	coord     *Coordinator
}

func newServer(t *testing.T, nc topology.NodeContext, store ChangeStore, processors ...ChangeProcessor) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Store:      store,
		Topology:   manager.NewTopologyService(nc, zap.NewNop()),
		Processors: processors,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return srv
}

func newHarness(t *testing.T, processors map[int]ChangeProcessor) *harness {
	t.Helper()
	h := &harness{cluster: threeNodeCluster(t), transport: NewLocalTransport()}
	for i := 1; i <= 3; i++ {
		nc, err := topology.NewNodeContext(h.cluster.Clone(), 1, i)
		require.NoError(t, err)
		var ps []ChangeProcessor
		if p, ok := processors[i]; ok {
			ps = append(ps, p)
		}
		srv := newServer(t, nc, NewMemoryStore(), ps...)
		ep := nc.Node().InternalEndpoint()
		h.transport.Register(ep, srv)
		h.servers = append(h.servers, srv)
		h.endpoints = append(h.endpoints, ep)
	}
	h.coord = NewCoordinator(h.transport, WithIdentity("tester", "test-host"), WithCoordinatorLogger(zap.NewNop()))
	return h
}

func (h *harness) activate(t *testing.T) {
	t.Helper()
	out, err := h.coord.Run(context.Background(), h.endpoints, &change.ClusterActivation{Cluster: h.cluster, License: "license-content"})
	require.NoError(t, err)
	require.True(t, out.Committed)
}

func mustSet(t *testing.T, address string) change.Change {
	t.Helper()
	c, err := change.Set(address)
	require.NoError(t, err)
	return c
}

func TestCoordinator_ActivationInstallsClusterAndLicense(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	for _, srv := range h.servers {
		assert.True(t, srv.Topology().IsActivated())
		lic, ok := srv.License().License()
		require.True(t, ok)
		assert.Equal(t, "license-content", lic.Content)

		d, err := srv.Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, d.MutationCount)
		assert.Equal(t, uint64(1), d.CurrentVersion)
		assert.Equal(t, "tester", d.LastMutationUser)
		assert.Equal(t, "test-host", d.LastMutationHost)
		assert.False(t, d.InProgress)
		require.NotNil(t, d.LatestChange)
		assert.Equal(t, StateCommitted, d.LatestChange.State)
		assert.Equal(t, "Activating cluster: tc", d.LatestChange.Summary)
	}
}

func TestCoordinator_HotSettingUpdatesRuntime(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	out, err := h.coord.Run(context.Background(), h.endpoints, mustSet(t, "client-reconnect-window=60s"))
	require.NoError(t, err)
	require.True(t, out.Committed)
	require.Len(t, out.Contexts, 3)

	for _, srv := range h.servers {
		assert.Equal(t, "60s", srv.Topology().UpcomingNodeContext().Cluster().ClientReconnectWindow.String())
		assert.Equal(t, "60s", srv.Topology().RuntimeNodeContext().Cluster().ClientReconnectWindow.String())
		assert.False(t, srv.Topology().RestartRequired())
	}
}

func TestCoordinator_ColdSettingOnlyUpdatesUpcoming(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	_, err := h.coord.Run(context.Background(), h.endpoints, mustSet(t, "stripe.1.node.1.node-group-port=9500"))
	require.NoError(t, err)

	for _, srv := range h.servers {
		up, _ := srv.Topology().UpcomingNodeContext().Cluster().Node(1, 1)
		rt, _ := srv.Topology().RuntimeNodeContext().Cluster().Node(1, 1)
		assert.Equal(t, 9500, up.GroupPort)
		assert.Equal(t, 9431, rt.GroupPort)
		assert.True(t, srv.Topology().RestartRequired())
	}
}

func TestCoordinator_OneRejectionRollsBackEveryone(t *testing.T) {
	veto := ProcessorFunc(func(topology.NodeContext, *topology.Cluster, change.Change) error {
		return errors.New("disk full")
	})
	h := newHarness(t, nil)
	h.activate(t)

	// el veto sólo se instala después de activar
	h.servers[2].processors = []ChangeProcessor{veto}

	out, err := h.coord.Run(context.Background(), h.endpoints, mustSet(t, "client-lease-duration=20s"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRejected)
	assert.False(t, out.Committed)
	require.Len(t, out.Rejections, 1)
	assert.Equal(t, "localhost:9413", out.Rejections[0].Node)
	assert.Contains(t, out.Rejections[0].Reason, "disk full")

	for _, srv := range h.servers {
		d, err := srv.Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, d.MutationCount)
		assert.False(t, d.InProgress)
		assert.Equal(t, "150s", srv.Topology().UpcomingNodeContext().Cluster().ClientLeaseDuration.String())
	}
}

func TestCoordinator_InvalidClusterIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	// dos nodos con el mismo nombre no pasan la validación
	_, err := h.coord.Run(context.Background(), h.endpoints, mustSet(t, "stripe.1.node.2.node-name=node-1"))
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Found duplicate node name: 'node-1'")
}

func TestCoordinator_DetachIsolatesRemovedNode(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	removed := h.servers[2].Topology().RuntimeNodeContext().NodeUID()
	out, err := h.coord.Run(context.Background(), h.endpoints, &change.NodeRemoval{NodeUID: removed})
	require.NoError(t, err)
	require.True(t, out.Committed)

	assert.Equal(t, 2, h.servers[0].Topology().UpcomingNodeContext().Cluster().NodeCount())

	alone := h.servers[2].Topology().UpcomingNodeContext()
	assert.Equal(t, 1, alone.Cluster().NodeCount())
	assert.Equal(t, "node-3", alone.Node().Name)
}

func TestCoordinator_InconsistentClusterIsRefused(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t)

	mut, err := change.Wrap(mustSet(t, "cluster-name=other"))
	require.NoError(t, err)
	resp := h.servers[0].Prepare(context.Background(), PrepareRequest{ChangeUUID: "stuck", ExpectedMutationCount: 1, Mutation: mut})
	require.True(t, resp.Accepted)

	_, err = h.coord.Run(context.Background(), h.endpoints, mustSet(t, "cluster-name=again"))
	require.ErrorIs(t, err, ErrInconsistent)
}

func TestServer_PrepareRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	srv := h.servers[0]

	setName, err := change.Wrap(mustSet(t, "cluster-name=other"))
	require.NoError(t, err)

	resp := srv.Prepare(ctx, PrepareRequest{ChangeUUID: "a", Mutation: setName})
	assert.False(t, resp.Accepted)
	assert.Equal(t, "Node is not activated", resp.Reason)

	h.activate(t)

	activation, err := change.Wrap(&change.ClusterActivation{Cluster: h.cluster})
	require.NoError(t, err)
	resp = srv.Prepare(ctx, PrepareRequest{ChangeUUID: "b", ExpectedMutationCount: 1, Mutation: activation})
	assert.False(t, resp.Accepted)
	assert.Equal(t, "Node is already activated", resp.Reason)

	resp = srv.Prepare(ctx, PrepareRequest{ChangeUUID: "c", ExpectedMutationCount: 0, Mutation: setName})
	assert.False(t, resp.Accepted)
	assert.Equal(t, "Mutation count mismatch: expected 0, but node has 1", resp.Reason)

	resp = srv.Prepare(ctx, PrepareRequest{ChangeUUID: "d", ExpectedMutationCount: 1, Mutation: change.Mutation{Type: "bogus"}})
	assert.False(t, resp.Accepted)
	assert.Contains(t, resp.Reason, "unknown change type")

	resp = srv.Prepare(ctx, PrepareRequest{ChangeUUID: "e", ExpectedMutationCount: 1, Mutation: setName})
	require.True(t, resp.Accepted)
	require.NotNil(t, resp.NodeContext)
	assert.Equal(t, "other", resp.NodeContext.Cluster().Name)

	// el mismo UUID otra vez es idempotente, otro UUID es rechazado
	again := srv.Prepare(ctx, PrepareRequest{ChangeUUID: "e", ExpectedMutationCount: 1, Mutation: setName})
	assert.True(t, again.Accepted)
	other := srv.Prepare(ctx, PrepareRequest{ChangeUUID: "f", ExpectedMutationCount: 1, Mutation: setName})
	assert.False(t, other.Accepted)
	assert.Equal(t, "Another change (e) is already in progress", other.Reason)

	// prepare no toca la topología
	assert.Equal(t, "tc", srv.Topology().UpcomingNodeContext().Cluster().Name)
}

func TestServer_CommitAndRollbackAreIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.activate(t)
	srv := h.servers[0]

	mut, err := change.Wrap(mustSet(t, "cluster-name=renamed"))
	require.NoError(t, err)

	require.True(t, srv.Prepare(ctx, PrepareRequest{ChangeUUID: "x", ExpectedMutationCount: 1, Mutation: mut}).Accepted)
	assert.True(t, srv.Commit(ctx, CommitRequest{ChangeUUID: "x"}).Accepted)
	assert.True(t, srv.Commit(ctx, CommitRequest{ChangeUUID: "x"}).Accepted)
	assert.False(t, srv.Rollback(ctx, RollbackRequest{ChangeUUID: "x"}).Accepted)
	assert.Equal(t, "renamed", srv.Topology().RuntimeNodeContext().Cluster().Name)

	require.True(t, srv.Prepare(ctx, PrepareRequest{ChangeUUID: "y", ExpectedMutationCount: 2, Mutation: mut}).Accepted)
	assert.True(t, srv.Rollback(ctx, RollbackRequest{ChangeUUID: "y"}).Accepted)
	assert.True(t, srv.Rollback(ctx, RollbackRequest{ChangeUUID: "y"}).Accepted)
	ack := srv.Commit(ctx, CommitRequest{ChangeUUID: "y"})
	assert.False(t, ack.Accepted)
	assert.Equal(t, "Change y was ROLLED_BACK", ack.Reason)

	// prepare de un cambio ya resuelto
	resp := srv.Prepare(ctx, PrepareRequest{ChangeUUID: "y", ExpectedMutationCount: 2, Mutation: mut})
	assert.False(t, resp.Accepted)

	// commit sin prepare
	ack = srv.Commit(ctx, CommitRequest{ChangeUUID: "nope"})
	assert.False(t, ack.Accepted)
	assert.Equal(t, "No change in progress with UUID nope", ack.Reason)

	// rollback de algo desconocido no hace nada
	assert.True(t, srv.Rollback(ctx, RollbackRequest{ChangeUUID: "unknown"}).Accepted)

	count, err := srv.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStore_RejectsOutOfOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.Error(t, s.Save(ctx, Record{UUID: "a", Version: 2}))
	require.NoError(t, s.Save(ctx, Record{UUID: "a", Version: 1, State: StateCommitted}))
	require.Error(t, s.Save(ctx, Record{UUID: "a", Version: 2}))

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "node-1", "changes.db")
	c := threeNodeCluster(t)

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	_, ok, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, Record{UUID: "first", Version: 1, State: StateCommitted, Cluster: c, Summary: "one"}))
	require.NoError(t, s.Save(ctx, Record{UUID: "second", Version: 2, State: StateCommitted, Cluster: c, Summary: "two"}))
	require.Error(t, s.Save(ctx, Record{UUID: "third", Version: 5}))
	require.Error(t, s.Save(ctx, Record{UUID: "first", Version: 3}))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, ok, err := s.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", latest.UUID)
	assert.Equal(t, uint64(2), latest.Version)
	assert.Equal(t, 3, latest.Cluster.NodeCount())
	assert.Equal(t, "tc", latest.Cluster.Name)

	first, err := s.Get(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "one", first.Summary)

	_, err = s.Get(ctx, "third")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestServer_RestoreFromBoltStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "changes.db")
	c := threeNodeCluster(t)
	single := topology.NewCluster(c.Stripes[0].Clone())
	single.Name = "solo"
	single.UID = c.UID
	single.Stripes[0].Nodes = single.Stripes[0].Nodes[:1]
	single.FailoverPriority = c.FailoverPriority
	single.ClientReconnectWindow = c.ClientReconnectWindow
	single.ClientLeaseDuration = c.ClientLeaseDuration
	single.OffheapResources = c.OffheapResources
	single.SecuritySSLTLS = c.SecuritySSLTLS
	single.SecurityWhitelist = c.SecurityWhitelist

	nc, err := topology.NewNodeContext(single, 1, 1)
	require.NoError(t, err)

	store, err := NewBoltStore(path)
	require.NoError(t, err)
	srv := newServer(t, nc, store)
	tr := NewLocalTransport()
	tr.Register(nc.Node().InternalEndpoint(), srv)
	coord := NewCoordinator(tr, WithCoordinatorLogger(zap.NewNop()))
	_, err = coord.Run(ctx, []topology.Endpoint{nc.Node().InternalEndpoint()}, &change.ClusterActivation{Cluster: single})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// un reinicio vuelve a bootstrappear con otra identidad generada
	fresh := single.Clone()
	fresh.Stripes[0].Nodes[0].UID = topology.NewUID()
	freshNC, err := topology.NewNodeContext(fresh, 1, 1)
	require.NoError(t, err)

	store, err = NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()
	restarted := newServer(t, freshNC, store)
	ok, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, restarted.Topology().IsActivated())
	assert.Equal(t, "solo", restarted.Topology().RuntimeNodeContext().Cluster().Name)
	assert.Equal(t, nc.NodeUID(), restarted.Topology().RuntimeNodeContext().NodeUID())
}

func TestCoordinator_ActivationLocatesNodeByAddress(t *testing.T) {
	h := newHarness(t, nil)
	// mismo contenido, otros UIDs: como si viniera de un archivo aparte
	other := threeNodeCluster(t)
	require.NotEqual(t, h.cluster.Nodes()[0].UID, other.Nodes()[0].UID)

	out, err := h.coord.Run(context.Background(), h.endpoints, &change.ClusterActivation{Cluster: other})
	require.NoError(t, err)
	require.True(t, out.Committed)

	for i, srv := range h.servers {
		nc := srv.Topology().RuntimeNodeContext()
		assert.Equal(t, other.Nodes()[i].UID, nc.NodeUID())
		assert.Equal(t, 3, nc.Cluster().NodeCount())
	}
}

func TestServer_SyncBringsNewNodeUpToDate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.activate(t)

	single, err := bootstrap.FromProperties(map[string]string{
		"cluster-name":                    "other",
		"stripe.1.node.1.node-name":       "node-4",
		"stripe.1.node.1.node-hostname":   "localhost",
		"stripe.1.node.1.node-port":       "9414",
		"stripe.1.node.1.node-group-port": "9434",
	}, bootstrap.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	nc, err := topology.NewNodeContext(single, 1, 1)
	require.NoError(t, err)
	srv := newServer(t, nc, NewMemoryStore())
	ep := nc.Node().InternalEndpoint()
	h.transport.Register(ep, srv)

	out, err := h.coord.Run(ctx, h.endpoints, &change.NodeAddition{StripeUID: h.cluster.Stripes[0].UID, Node: nc.Node()})
	require.NoError(t, err)
	require.True(t, out.Committed)

	hist, err := h.servers[0].History(ctx)
	require.NoError(t, err)
	require.Len(t, hist.Records, 2)
	assert.Equal(t, "license-content", hist.License)

	ack := srv.Sync(ctx, hist)
	require.True(t, ack.Accepted, ack.Reason)
	assert.True(t, srv.Topology().IsActivated())
	assert.Equal(t, 4, srv.Topology().RuntimeNodeContext().Cluster().NodeCount())
	assert.Equal(t, "node-4", srv.Topology().RuntimeNodeContext().Node().Name)
	lic, ok := srv.License().License()
	require.True(t, ok)
	assert.Equal(t, "license-content", lic.Content)

	// con el historial igualado el siguiente cambio incluye al nodo nuevo
	all := append(append([]topology.Endpoint{}, h.endpoints...), ep)
	out, err = h.coord.Run(ctx, all, mustSet(t, "client-reconnect-window=60s"))
	require.NoError(t, err)
	require.True(t, out.Committed)

	ack = srv.Sync(ctx, hist)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "Node is already activated", ack.Reason)
}

func TestServer_AuditsCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	c := threeNodeCluster(t)
	nc, err := topology.NewNodeContext(c, 1, 1)
	require.NoError(t, err)

	var events []audit.Event
	srv, err := NewServer(ServerConfig{
		Store:    NewMemoryStore(),
		Topology: manager.NewTopologyService(nc, zap.NewNop()),
		Audit:    audit.SinkFunc(func(_ context.Context, e audit.Event) { events = append(events, e) }),
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)

	act, err := change.Wrap(&change.ClusterActivation{Cluster: c})
	require.NoError(t, err)
	require.True(t, srv.Prepare(ctx, PrepareRequest{ChangeUUID: "a", Mutation: act, User: "ops", Host: "box"}).Accepted)
	require.True(t, srv.Commit(ctx, CommitRequest{ChangeUUID: "a"}).Accepted)

	set, err := change.Wrap(mustSet(t, "client-lease-duration=20s"))
	require.NoError(t, err)
	require.True(t, srv.Prepare(ctx, PrepareRequest{ChangeUUID: "b", ExpectedMutationCount: 1, Mutation: set}).Accepted)
	require.True(t, srv.Rollback(ctx, RollbackRequest{ChangeUUID: "b"}).Accepted)

	require.Len(t, events, 2)
	assert.Equal(t, audit.EventChangeCommitted, events[0].Name)
	assert.Equal(t, "ops", events[0].User)
	assert.Equal(t, uint64(1), events[0].Version)
	assert.Equal(t, audit.EventChangeRolledBack, events[1].Name)
	assert.Equal(t, "b", events[1].Change)
}

func TestServer_CommitSavesNothingWhenStateChangedSincePrepare(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	srv := h.servers[0]

	activation, err := change.Wrap(&change.ClusterActivation{Cluster: h.cluster})
	require.NoError(t, err)
	require.True(t, srv.Prepare(ctx, PrepareRequest{ChangeUUID: "act", Mutation: activation}).Accepted)

	// otro camino activó el nodo mientras el cambio estaba PROPOSED
	require.NoError(t, srv.Topology().Activate(h.cluster))

	ack := srv.Commit(ctx, CommitRequest{ChangeUUID: "act"})
	assert.False(t, ack.Accepted)
	assert.Equal(t, "Node is already activated", ack.Reason)
	count, err := srv.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.True(t, srv.Rollback(ctx, RollbackRequest{ChangeUUID: "act"}).Accepted)
	d, err := srv.Discover(ctx)
	require.NoError(t, err)
	assert.False(t, d.InProgress)
}

func TestServer_RestoreIsolatesDetachedNode(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.activate(t)

	removed := h.servers[2]
	out, err := h.coord.Run(ctx, h.endpoints, &change.NodeRemoval{NodeUID: removed.Topology().RuntimeNodeContext().NodeUID()})
	require.NoError(t, err)
	require.True(t, out.Committed)

	// reinicio del nodo removido sobre su mismo store
	nc, err := topology.NewNodeContext(threeNodeCluster(t), 1, 3)
	require.NoError(t, err)
	restarted := newServer(t, nc, removed.store)
	ok, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, restarted.Topology().IsActivated())
	alone := restarted.Topology().RuntimeNodeContext()
	assert.Equal(t, 1, alone.Cluster().NodeCount())
	assert.Equal(t, "node-3", alone.Node().Name)
	assert.Equal(t, "tc", alone.Cluster().Name)
}
