package topology

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(name, host string, port int) *Node {
	return &Node{UID: NewUID(), Name: name, Hostname: host, Port: port}
}

func sampleCluster() *Cluster {
	s1 := NewStripe(newNode("n1", "h1", 9410), newNode("n2", "h2", 9410))
	s1.UID, s1.Name = NewUID(), "stripe1"
	s2 := NewStripe(newNode("n3", "h3", 9410))
	s2.UID, s2.Name = NewUID(), "stripe2"
	c := NewCluster(s1, s2)
	c.UID, c.Name = NewUID(), "tc"
	return c
}

func TestCluster_Lookups(t *testing.T) {
	c := sampleCluster()
	assert.Equal(t, 2, c.StripeCount())
	assert.Equal(t, 3, c.NodeCount())

	n, ok := c.Node(1, 2)
	require.True(t, ok)
	assert.Equal(t, "n2", n.Name)

	_, ok = c.Node(3, 1)
	assert.False(t, ok)
	_, ok = c.Stripe(0)
	assert.False(t, ok)

	s, id, ok := c.StripeByName("stripe2")
	require.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Equal(t, s.UID, c.Stripes[1].UID)

	sid, nid, ok := c.Coordinates(n.UID)
	require.True(t, ok)
	assert.Equal(t, [2]int{1, 2}, [2]int{sid, nid})

	_, sid, nid, ok = c.NodeByEndpoint(Endpoint{Host: "H3", Port: 9410})
	require.True(t, ok)
	assert.Equal(t, [2]int{2, 1}, [2]int{sid, nid})
}

func TestCluster_PublicEndpoint(t *testing.T) {
	c := sampleCluster()
	n, _ := c.Node(1, 1)
	n.PublicHostname, n.PublicPort = "pub1", 19410

	assert.True(t, c.ContainsEndpoint(Endpoint{Host: "pub1", Port: 19410}))
	assert.True(t, c.ContainsEndpoint(Endpoint{Host: "h1", Port: 9410}))
	assert.Equal(t, "pub1:19410", n.Endpoint().String())
}

func TestCluster_CloneIsDeep(t *testing.T) {
	c := sampleCluster()
	m := MustMeasure("512MB", MemoryUnits)
	c.OffheapResources = map[string]Measure{"main": m}
	c.Stripes[0].Nodes[0].DataDirs = map[string]string{"main": "/data"}

	cp := c.Clone()
	cp.Name = "other"
	cp.OffheapResources["main"] = MustMeasure("1GB", MemoryUnits)
	cp.Stripes[0].Nodes[0].DataDirs["main"] = "/other"
	cp.Stripes[0].Nodes = cp.Stripes[0].Nodes[:1]

	assert.Equal(t, "tc", c.Name)
	assert.Equal(t, m, c.OffheapResources["main"])
	assert.Equal(t, "/data", c.Stripes[0].Nodes[0].DataDirs["main"])
	assert.Len(t, c.Stripes[0].Nodes, 2)
}

func TestCluster_AddRemove(t *testing.T) {
	c := sampleCluster()

	dup := NewStripe(newNode("x", "h1", 9410))
	dup.UID = NewUID()
	err := c.AddStripe(dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 2, c.StripeCount())

	twice := NewStripe(newNode("a", "h9", 1), newNode("b", "h9", 1))
	require.ErrorIs(t, c.AddStripe(twice), ErrDuplicate)

	ok := NewStripe(newNode("n4", "h4", 9410))
	ok.UID = NewUID()
	require.NoError(t, c.AddStripe(ok))
	assert.Equal(t, 3, c.StripeCount())

	require.ErrorIs(t, c.AddNode(NewUID(), newNode("n5", "h5", 1)), ErrNotFound)
	require.NoError(t, c.AddNode(ok.UID, newNode("n5", "h5", 9410)))
	assert.Equal(t, 2, ok.NodeCount())

	n := ok.Nodes[0]
	assert.True(t, c.RemoveNode(n.UID))
	assert.False(t, c.RemoveNode(n.UID))

	assert.True(t, c.RemoveStripe(ok.UID))
	assert.Equal(t, 2, c.StripeCount())

	only := c.Stripes[1]
	require.True(t, only.RemoveNode(only.Nodes[0].UID))
	assert.NotNil(t, only.Nodes)
	assert.Empty(t, only.Nodes)
}

func TestNodeContext_WithCluster(t *testing.T) {
	c := sampleCluster()
	nc, err := NewNodeContext(c, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "n2", nc.Node().Name)

	next := c.Clone()
	next.Name = "renamed"
	moved := nc.WithCluster(next)
	assert.Equal(t, "renamed", moved.Cluster().Name)
	assert.Equal(t, 2, moved.NodeID())

	// detach: el nodo desaparece del nuevo cluster
	next.RemoveNode(nc.NodeUID())
	alone := nc.WithCluster(next)
	assert.Equal(t, 1, alone.Cluster().NodeCount())
	assert.Equal(t, "renamed", alone.Cluster().Name)
	assert.Equal(t, "stripe1", alone.Stripe().Name)
	assert.Equal(t, nc.NodeUID(), alone.Node().UID)

	_, err = NewNodeContext(c, 5, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNodeContext_JSON(t *testing.T) {
	nc, err := NewNodeContext(sampleCluster(), 2, 1)
	require.NoError(t, err)
	b, err := json.Marshal(nc)
	require.NoError(t, err)

	var back NodeContext
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "n3", back.Node().Name)
	assert.Equal(t, nc.NodeUID(), back.NodeUID())
}

func TestParseMeasure(t *testing.T) {
	m, err := ParseMeasure("0s", TimeUnits)
	require.NoError(t, err)
	assert.Equal(t, Measure{Quantity: 0, Unit: "s"}, m)
	d, ok := m.Duration()
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), d)

	_, err = ParseMeasure("10", TimeUnits)
	assert.EqualError(t, err, "<unit> is missing. Measure should be specified in <quantity><unit> format")

	_, err = ParseMeasure("MB", MemoryUnits)
	assert.Error(t, err)

	_, err = ParseMeasure("10d", TimeUnits)
	assert.EqualError(t, err, "<unit> must be one of [ms, s, m, h]")

	b, ok := MustMeasure("2KB", MemoryUnits).Bytes()
	assert.True(t, ok)
	assert.Equal(t, uint64(2048), b)
}

func TestFailoverPriority(t *testing.T) {
	fp, err := ParseFailoverPriority("consistency:2")
	require.NoError(t, err)
	assert.Equal(t, Consistency(2), fp)
	assert.Equal(t, "consistency:2", fp.String())

	fp, err = ParseFailoverPriority("availability")
	require.NoError(t, err)
	assert.False(t, fp.IsConsistency())

	for _, bad := range []string{"consistency:0", "consistency:-1", "consistency:x", "both"} {
		_, err := ParseFailoverPriority(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("host1:9411", 9410)
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "host1", Port: 9411}, ep)

	ep, err = ParseEndpoint("host1", 9410)
	require.NoError(t, err)
	assert.Equal(t, 9410, ep.Port)

	_, err = ParseEndpoint("host1:0", 9410)
	assert.Error(t, err)

	_, err = ParseUID("nope")
	assert.Error(t, err)
}
