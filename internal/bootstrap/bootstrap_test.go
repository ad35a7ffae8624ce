package bootstrap

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

var uuidName = regexp.MustCompile(`^node-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func quiet() Options { return Options{Logger: zap.NewNop()} }

func TestFromProperties_SingleHostnameUsesDefaults(t *testing.T) {
	c, err := FromProperties(map[string]string{"stripe.1.node.1.node-hostname": "localhost"}, quiet())
	require.NoError(t, err)
	require.Equal(t, 1, c.StripeCount())
	require.Equal(t, 1, c.NodeCount())

	n := c.Stripes[0].Nodes[0]
	assert.Equal(t, "localhost", n.Hostname)
	assert.Regexp(t, uuidName, n.Name)
	assert.Equal(t, 9410, n.Port)
	assert.Equal(t, 9430, n.GroupPort)
	assert.Equal(t, "0.0.0.0", n.BindAddress)
	assert.Equal(t, "0.0.0.0", n.GroupBindAddress)
	assert.Equal(t, "%H/terracotta/metadata", n.MetadataDir)
	assert.Equal(t, "%H/terracotta/logs", n.LogDir)
	assert.Equal(t, map[string]string{"main": "%H/terracotta/user-data/main"}, n.DataDirs)
	assert.Empty(t, n.BackupDir)
	assert.False(t, n.UID.IsZero())

	assert.Regexp(t, `^stripe-`, c.Stripes[0].Name)
	assert.False(t, c.Stripes[0].UID.IsZero())
	assert.False(t, c.UID.IsZero())
	assert.Empty(t, c.Name)
	assert.Equal(t, "120s", c.ClientReconnectWindow.String())
	assert.Equal(t, "150s", c.ClientLeaseDuration.String())
	assert.Equal(t, map[string]topology.Measure{"main": topology.MustMeasure("512MB", topology.MemoryUnits)}, c.OffheapResources)
	require.NotNil(t, c.SecuritySSLTLS)
	assert.False(t, *c.SecuritySSLTLS)
	assert.Nil(t, c.FailoverPriority)
}

func TestFromProperties_EmptyIsOneNode(t *testing.T) {
	_, err := FromProperties(map[string]string{}, quiet())
	// sin hostname y sin substitutor el default %h no se puede resolver
	require.ErrorIs(t, err, setting.ErrUnresolvedPlaceholder)

	opts := quiet()
	opts.Substitutor = setting.SubstitutorFunc(func(s string) string {
		if s == "%h" {
			return "myhost"
		}
		return s
	})
	c, err := FromProperties(map[string]string{"cluster-name": "tc"}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, c.NodeCount())
	assert.Equal(t, "myhost", c.Stripes[0].Nodes[0].Hostname)
	assert.Equal(t, "tc", c.Name)
}

func TestFromProperties_Contiguity(t *testing.T) {
	gap := map[string]string{
		"stripe.1.node.1.node-hostname": "h1",
		"stripe.1.node.2.node-hostname": "h2",
		"stripe.1.node.4.node-hostname": "h4",
	}
	_, err := FromProperties(gap, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Node ID must end at 3 in stripe 1")
	assert.ErrorIs(t, err, ErrMalformedShape)

	_, err = FromProperties(map[string]string{
		"stripe.1.node.2.node-hostname": "h2",
	}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Node ID must start at 1 in stripe 1")

	_, err = FromProperties(map[string]string{
		"stripe.2.node.1.node-hostname": "h1",
	}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stripe ID must start at 1")

	_, err = FromProperties(map[string]string{
		"stripe.1.node.1.node-hostname": "h1",
		"stripe.3.node.1.node-hostname": "h3",
	}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stripe ID must end at 2")
}

func TestFromProperties_ScopeOrderAndMaps(t *testing.T) {
	props := map[string]string{
		"cluster-name":                      "tc",
		"failover-priority":                 "availability",
		"node-log-dir":                      "/logs",
		"stripe.1.node-log-dir":             "/logs-s1",
		"stripe.1.node.1.node-log-dir":      "/logs-n1",
		"stripe.1.node.1.node-hostname":     "h1",
		"stripe.1.node.2.node-hostname":     "h2",
		"stripe.2.node.1.node-hostname":     "h3",
		"data-dirs.main":                    "/data/main",
		"data-dirs.extra":                   "/data/extra",
		"offheap-resources.big":             "2GB",
		"stripe.1.stripe-name":              "first",
		"stripe.2.node.1.tc-properties.a.b": "c",
	}
	c, err := FromProperties(props, quiet())
	require.NoError(t, err)
	require.Equal(t, 2, c.StripeCount())

	assert.Equal(t, "/logs-n1", c.Stripes[0].Nodes[0].LogDir)
	assert.Equal(t, "/logs-s1", c.Stripes[0].Nodes[1].LogDir)
	assert.Equal(t, "/logs", c.Stripes[1].Nodes[0].LogDir)

	for _, n := range c.Nodes() {
		assert.Equal(t, map[string]string{"main": "/data/main", "extra": "/data/extra"}, n.DataDirs)
	}
	// el mapa enumerado no hereda el default main:512MB
	assert.Equal(t, map[string]topology.Measure{"big": topology.MustMeasure("2GB", topology.MemoryUnits)}, c.OffheapResources)
	assert.Equal(t, "first", c.Stripes[0].Name)
	assert.Equal(t, map[string]string{"a.b": "c"}, c.Stripes[1].Nodes[0].TCProperties)
}

func TestFromProperties_RejectsInvalid(t *testing.T) {
	_, err := FromProperties(map[string]string{
		"stripe.1.node.1.node-hostname": "h1",
		"cluster-uid":                   topology.NewUID().String(),
	}, quiet())
	require.ErrorIs(t, err, setting.ErrOperationNotPermitted)

	_, err = FromProperties(map[string]string{
		"stripe.1.node.1.node-hostname": "h1",
		"offheap-resources":             "main:1GB",
		"offheap-resources.other":       "1GB",
	}, quiet())
	require.ErrorIs(t, err, configuration.ErrIncompatibleConfigurations)

	_, err = FromProperties(map[string]string{
		"stripe.1.node.1.node-hostname": "h1",
		"stripe.1.node.2.node-hostname": "h1",
	}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "have the same address")
}

func TestFromProperties_ExportRoundTrip(t *testing.T) {
	props := map[string]string{
		"cluster-name":                  "tc",
		"stripe.1.node.1.node-hostname": "h1",
		"stripe.1.node.2.node-hostname": "h2",
		"stripe.1.node.2.node-port":     "9510",
		"node-backup-dir":               "/backup",
		"data-dirs.extra":               "/x",
	}
	first, err := FromProperties(props, quiet())
	require.NoError(t, err)

	exported := configuration.Export(first)
	again := map[string]string{}
	for _, c := range exported {
		v, _ := c.Value()
		again[c.Address()] = v
	}
	opts := quiet()
	opts.Operation = setting.OpImport
	second, err := FromProperties(again, opts)
	require.NoError(t, err)

	var a, b []string
	for _, c := range exported {
		a = append(a, c.String())
	}
	for _, c := range configuration.Export(second) {
		b = append(b, c.String())
	}
	assert.Equal(t, a, b)
}

func TestFromCLI(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sub := &setting.HostSubstitutor{Resolve: func(p byte) string {
		if p == 'h' {
			return "box1"
		}
		return "/home/x"
	}}
	c, err := FromCLI(map[*setting.Setting]string{
		setting.ClusterName: "tc",
		setting.NodeName:    "alpha",
		setting.NodeLogDir:  "%H/logs",
	}, Options{Substitutor: sub, Logger: zap.New(core)})
	require.NoError(t, err)

	n := c.Stripes[0].Nodes[0]
	assert.Equal(t, "alpha", n.Name)
	assert.Equal(t, "box1", n.Hostname)
	assert.Equal(t, "/home/x/logs", n.LogDir)
	// los defaults no eager no se sustituyen
	assert.Equal(t, "%H/terracotta/metadata", n.MetadataDir)
	assert.Equal(t, "tc", c.Name)

	// se registran sólo las sustituciones hechas: %H/logs y %h
	assert.Equal(t, 2, logs.FilterMessage("placeholder substituted").Len())
}
