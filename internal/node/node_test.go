package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/config"
	"github.com/dropDatabas3/clusterconf/internal/protocol"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

const twoNodes = `
cluster-name=tc
failover-priority=availability
stripe.1.node.1.node-name=node-1
stripe.1.node.1.node-hostname=localhost
stripe.1.node.1.node-port=9411
stripe.1.node.2.node-name=node-2
stripe.1.node.2.node-hostname=localhost
stripe.1.node.2.node-port=9412
stripe.1.node.2.node-group-port=9432
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster.properties")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Manager.MinRestartDelay = 10 * time.Millisecond
	return cfg
}

func singleNodeCLI(port string) map[*setting.Setting]string {
	return map[*setting.Setting]string{
		setting.NodeName:     "solo",
		setting.NodeHostname: "localhost",
		setting.NodePort:     port,
	}
}

func TestLocate_ByNameAndByAddress(t *testing.T) {
	path := writeFile(t, twoNodes)

	n, err := New(context.Background(), memoryConfig(), Params{
		ConfigFile: path,
		CLI:        map[*setting.Setting]string{setting.NodeName: "node-2"},
	}, zap.NewNop())
	require.NoError(t, err)
	nc := n.Topology().RuntimeNodeContext()
	assert.Equal(t, "node-2", nc.Node().Name)
	assert.Equal(t, 2, nc.NodeID())
	assert.Equal(t, 2, nc.Cluster().NodeCount())

	n, err = New(context.Background(), memoryConfig(), Params{
		ConfigFile: path,
		CLI: map[*setting.Setting]string{
			setting.NodeHostname: "localhost",
			setting.NodePort:     "9411",
		},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "node-1", n.Topology().RuntimeNodeContext().Node().Name)

	_, err = New(context.Background(), memoryConfig(), Params{
		ConfigFile: path,
		CLI:        map[*setting.Setting]string{setting.NodeName: "node-9"},
	}, zap.NewNop())
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNew_FromCLI(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTP.Addr = ""
	n, err := New(context.Background(), cfg, Params{CLI: singleNodeCLI("9499")}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9499", n.Addr())
	assert.Equal(t, topology.Unconfigured, n.Topology().State())
	assert.False(t, n.Restored())
}

func activate(t *testing.T, n *Node) {
	t.Helper()
	tr := protocol.NewLocalTransport()
	self := n.Topology().RuntimeNodeContext()
	ep := self.Node().InternalEndpoint()
	tr.Register(ep, n.Server())
	coord := protocol.NewCoordinator(tr, protocol.WithCoordinatorLogger(zap.NewNop()))
	out, err := coord.Run(context.Background(), []topology.Endpoint{ep}, &change.ClusterActivation{Cluster: self.Cluster()})
	require.NoError(t, err)
	require.True(t, out.Committed)
}

func TestNew_RestoresFromBoltStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = "bolt"
	cfg.Store.Path = filepath.Join(t.TempDir(), "data", "changes.db")
	params := Params{CLI: map[*setting.Setting]string{
		setting.NodeName:     "solo",
		setting.NodeHostname: "localhost",
		setting.NodePort:     "9499",
		setting.ClusterName:  "tc",
	}}

	n, err := New(context.Background(), cfg, params, zap.NewNop())
	require.NoError(t, err)
	activate(t, n)
	require.NoError(t, n.store.Close())

	n, err = New(context.Background(), cfg, params, zap.NewNop())
	require.NoError(t, err)
	defer n.store.Close()
	assert.True(t, n.Restored())
	assert.True(t, n.Topology().IsActivated())
	assert.Equal(t, "tc", n.Topology().RuntimeNodeContext().Cluster().Name)
}

func TestRestartActionReloadsUpcoming(t *testing.T) {
	params := Params{CLI: singleNodeCLI("9499")}
	params.CLI[setting.ClusterName] = "tc"
	n, err := New(context.Background(), memoryConfig(), params, zap.NewNop())
	require.NoError(t, err)
	activate(t, n)

	set, err := change.Set("stripe.1.node.1.node-group-port=9555")
	require.NoError(t, err)
	tr := protocol.NewLocalTransport()
	ep := n.Topology().RuntimeNodeContext().Node().InternalEndpoint()
	tr.Register(ep, n.Server())
	_, err = protocol.NewCoordinator(tr, protocol.WithCoordinatorLogger(zap.NewNop())).
		Run(context.Background(), []topology.Endpoint{ep}, set)
	require.NoError(t, err)
	require.True(t, n.Topology().RestartRequired())

	n.restart()
	assert.False(t, n.Topology().RestartRequired())
	assert.Equal(t, 9555, n.Topology().RuntimeNodeContext().Node().GroupPort)
}

func TestRun_StopsOnScheduledStop(t *testing.T) {
	n, err := New(context.Background(), memoryConfig(), Params{CLI: singleNodeCLI("9499")}, zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- n.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return n.scheduler.Stop(20*time.Millisecond) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
}
