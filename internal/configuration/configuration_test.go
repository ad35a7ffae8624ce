package configuration

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// valores válidos para cada setting (los que no tienen default usable)
var sampleValues = map[string]string{
	"cluster-name":                 "tc",
	"failover-priority":            "availability",
	"security-authc":               "file",
	"node-public-hostname":         "pub.example.com",
	"node-public-port":             "19410",
	"node-backup-dir":              "/backup",
	"security-dir":                 "/sec",
	"security-audit-log-dir":       "/audit",
	"security-log-dir":             "/seclog",
	"tc-properties":                "a.b:c",
	"logger-overrides":             "com.foo:INFO",
	"relay-source-hostname":        "relay1",
	"relay-source-port":            "9410",
	"relay-destination-hostname":   "relay2",
	"relay-destination-port":       "9410",
	"relay-destination-group-port": "9430",
}

func sampleValue(s *setting.Setting) string {
	if v, ok := sampleValues[s.Name()]; ok {
		return v
	}
	return s.DefaultValue()
}

func prefix(sc setting.Scope) string {
	switch sc {
	case setting.ScopeStripe:
		return "stripe.1."
	case setting.ScopeNode:
		return "stripe.1.node.1."
	}
	return ""
}

func allScopes() []setting.Scope {
	return []setting.Scope{setting.ScopeCluster, setting.ScopeStripe, setting.ScopeNode}
}

func TestValueOf_Shapes(t *testing.T) {
	c, err := ValueOf("stripe.2.node.3.node-hostname=localhost")
	require.NoError(t, err)
	assert.Equal(t, setting.NodeHostname, c.Setting())
	assert.Equal(t, setting.ScopeNode, c.Scope())
	assert.Equal(t, 2, c.StripeID())
	assert.Equal(t, 3, c.NodeID())
	v, ok := c.Value()
	assert.True(t, ok)
	assert.Equal(t, "localhost", v)

	c, err = ValueOf("stripe.1.stripe-name")
	require.NoError(t, err)
	assert.Equal(t, setting.ScopeStripe, c.Scope())
	assert.False(t, c.HasValue())

	c, err = ValueOf("cluster-name=")
	require.NoError(t, err)
	v, ok = c.Value()
	assert.True(t, ok)
	assert.Empty(t, v)

	c, err = ValueOf("offheap-resources.main=1GB")
	require.NoError(t, err)
	assert.Equal(t, "main", c.Key())
	assert.Equal(t, setting.ScopeCluster, c.Scope())
}

func TestValueOf_SeparatorsAreEquivalent(t *testing.T) {
	a := MustValueOf("stripe.1.node.1.node-port=9411")
	for _, in := range []string{
		"stripe:1:node:1:node-port=9411",
		"stripe.1:node.1.node-port=9411",
		"stripe:1.node:1:node-port=9411",
	} {
		b, err := ValueOf(in)
		require.NoError(t, err, in)
		assert.True(t, a.Equal(b), in)
	}
}

func TestValueOf_MapKeyIsVerbatim(t *testing.T) {
	c, err := ValueOf("stripe:1:node:1:logger-overrides.com.foo:Bar=DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "com.foo:Bar", c.Key())

	c, err = ValueOf("stripe.1.node.1.tc-properties:a.b=c")
	require.NoError(t, err)
	assert.Equal(t, "a.b", c.Key())
}

func TestValueOf_InvalidIDs(t *testing.T) {
	for _, s := range setting.All() {
		_, err := ValueOf("stripe.0.node.1." + s.Name())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe ID must be greater than 0", s.Name())

		_, err = ValueOf("stripe.1.node.0." + s.Name())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node ID must be greater than 0", s.Name())
	}

	_, err := ValueOf("stripe.-1.node-hostname")
	assert.Contains(t, err.Error(), "stripe ID must be greater than 0")

	_, err = ValueOf("stripe.x.node-hostname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected stripe ID to be a number")
	assert.NotContains(t, err.Error(), "greater than 0")
	assert.True(t, errors.Is(err, ErrMalformedAddress))
}

func TestValueOf_Errors(t *testing.T) {
	cases := map[string]string{
		"":                                  "Setting name is missing",
		"=x":                                "Setting name is missing",
		"stripe.1":                          "Setting name is missing after stripe ID",
		"node.1.node-hostname":              "Expected 'stripe.<id>' before 'node.<id>'",
		"foo=bar":                           "unknown setting: 'foo'",
		"offheap-resources.":                "Key of setting 'offheap-resources' is missing",
		"stripe.1.cluster-name=tc":          "Setting 'cluster-name' does not allow any operation at stripe level",
		"stripe.1.node.1.stripe-name=s":     "Setting 'stripe-name' does not allow any operation at node level",
		"stripe.1.node.1.node-hostname.a=b": "Setting 'node-hostname' is not a map and must not have a key",
		"stripe.1.node.1.node-port=99999":   "node-port is invalid",
		"offheap-resources.main=1":          "offheap-resources.main is invalid",
	}
	for in, want := range cases {
		_, err := ValueOf(in)
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), want, in)
		assert.True(t, strings.HasPrefix(err.Error(), "Invalid input: '"+in+"'. Reason: "), err.Error())
	}
}

func TestValueOf_KeyOnNonMapNeverAccepted(t *testing.T) {
	for _, s := range setting.All() {
		if s.IsMap() {
			continue
		}
		for _, sc := range allScopes() {
			_, err := ValueOf(prefix(sc) + s.Name() + ".extra")
			assert.Error(t, err, "%s at %s", s.Name(), sc)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range setting.All() {
		for _, sc := range allScopes() {
			if !s.AllowsAnyOperationAtScope(sc) {
				continue
			}
			stripeID, nodeID := 0, 0
			if sc >= setting.ScopeStripe {
				stripeID = 2
			}
			if sc == setting.ScopeNode {
				nodeID = 3
			}
			recs := []Configuration{
				New(s, stripeID, nodeID, ""),
				New(s, stripeID, nodeID, "").WithValue(""),
				New(s, stripeID, nodeID, "").WithValue(sampleValue(s)),
			}
			if s.IsMap() {
				recs = append(recs, New(s, stripeID, nodeID, "k.x"))
			}
			for _, c := range recs {
				back, err := ValueOf(c.String())
				require.NoError(t, err, c.String())
				assert.True(t, c.Equal(back), c.String())
				assert.Equal(t, c.String(), back.String())
			}
		}
	}
}

func TestRoundTrip_KeepsSurroundingSpaces(t *testing.T) {
	tc := setting.MustGet("tc-properties")
	for _, v := range []string{" v", "v ", " a b "} {
		c := New(tc, 1, 1, "k").WithValue(v)
		back, err := ValueOf(c.String())
		require.NoError(t, err, c.String())
		got, ok := back.Value()
		require.True(t, ok)
		assert.Equal(t, v, got)
		assert.True(t, c.Equal(back))
	}

	props, order, err := ParseProperties(strings.NewReader("stripe.1.node.1.tc-properties.k =  v  \n"))
	require.NoError(t, err)
	cs, err := FromProperties(props, order)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	got, _ := cs[0].Value()
	assert.Equal(t, "v", got)
}

func TestValidate_OperationMatrix(t *testing.T) {
	for _, s := range setting.All() {
		for _, sc := range allScopes() {
			if !s.AllowsAnyOperationAtScope(sc) {
				continue
			}
			addr := prefix(sc) + s.Name()
			c := MustValueOf(addr)

			assert.NoError(t, c.Validate(setting.OpGet), "get %s", addr)

			err := c.Validate(setting.OpUnset)
			if s.AllowsOperationAtScope(setting.OpUnset, sc) {
				assert.NoError(t, err, "unset %s", addr)
			} else {
				assert.ErrorIs(t, err, setting.ErrOperationNotPermitted, "unset %s", addr)
			}

			withValue := MustValueOf(addr + "=" + sampleValue(s))
			err = withValue.Validate(setting.OpSet)
			if s.AllowsOperationAtScope(setting.OpSet, sc) {
				assert.NoError(t, err, "set %s", addr)
			} else {
				assert.ErrorIs(t, err, setting.ErrOperationNotPermitted, "set %s", addr)
			}
		}
	}
}

func TestValidate_ValuePresence(t *testing.T) {
	err := MustValueOf("cluster-name=tc").Validate(setting.OpGet)
	assert.EqualError(t, err, "Invalid input: 'cluster-name=tc'. Reason: Operation get must not have a value")

	err = MustValueOf("cluster-name").Validate(setting.OpSet)
	assert.EqualError(t, err, "Invalid input: 'cluster-name'. Reason: Operation set requires a value")

	err = MustValueOf("cluster-name=").Validate(setting.OpSet)
	assert.Error(t, err)

	// sin default: vacío permitido en config
	assert.NoError(t, MustValueOf("cluster-name=").Validate(setting.OpConfig))
	// con default: vacío no permitido
	err = MustValueOf("stripe.1.node.1.node-port=").Validate(setting.OpConfig)
	assert.Error(t, err)

	err = MustValueOf("stripe.1.node.1.node-name").Validate(setting.OpSet)
	assert.EqualError(t, err, "Invalid input: 'stripe.1.node.1.node-name'. Reason: Setting 'node-name' does not allow operation 'set' at node level")
}

func TestDuplicates(t *testing.T) {
	a := MustValueOf("stripe.1.node.1.node-port=9410")
	b := MustValueOf("stripe.1.node.1.node-port=9411")
	dup, err := a.Duplicates(b)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.True(t, a.MatchConfigPropertyKey(b))
	assert.False(t, a.Equal(b))

	other := MustValueOf("stripe.1.node.2.node-port=9410")
	dup, err = a.Duplicates(other)
	require.NoError(t, err)
	assert.False(t, dup)

	whole := MustValueOf("offheap-resources=main:1GB")
	key := MustValueOf("offheap-resources.main=1GB")
	_, err = whole.Duplicates(key)
	require.ErrorIs(t, err, ErrIncompatibleConfigurations)
	assert.EqualError(t, err, "Incompatible or duplicate configurations: 'offheap-resources=main:1GB' and 'offheap-resources.main=1GB'")

	k2 := MustValueOf("offheap-resources.second=1GB")
	dup, err = key.Duplicates(k2)
	require.NoError(t, err)
	assert.False(t, dup)
}

func twoByTwo() *topology.Cluster {
	mk := func(h string) *topology.Node { return &topology.Node{Hostname: h, Port: 9410} }
	return topology.NewCluster(
		topology.NewStripe(mk("a"), mk("b")),
		topology.NewStripe(mk("c"), mk("d")),
	)
}

func TestApply(t *testing.T) {
	cl := twoByTwo()

	require.NoError(t, MustValueOf("node-log-dir=/logs").Apply(cl))
	for _, n := range cl.Nodes() {
		assert.Equal(t, "/logs", n.LogDir)
	}

	require.NoError(t, MustValueOf("stripe.2.node-log-dir=/logs2").Apply(cl))
	assert.Equal(t, "/logs", cl.Stripes[0].Nodes[1].LogDir)
	assert.Equal(t, "/logs2", cl.Stripes[1].Nodes[0].LogDir)
	assert.Equal(t, "/logs2", cl.Stripes[1].Nodes[1].LogDir)

	require.NoError(t, MustValueOf("stripe.1.node.2.node-port=9999").Apply(cl))
	assert.Equal(t, 9999, cl.Stripes[0].Nodes[1].Port)

	require.NoError(t, MustValueOf("stripe.1.node.1.data-dirs.extra=/x").Apply(cl))
	assert.Equal(t, "/x", cl.Stripes[0].Nodes[0].DataDirs["extra"])
	require.NoError(t, MustValueOf("stripe.1.node.1.data-dirs.extra").Apply(cl))
	assert.NotContains(t, cl.Stripes[0].Nodes[0].DataDirs, "extra")

	require.NoError(t, MustValueOf("cluster-name=tc").Apply(cl))
	assert.Equal(t, "tc", cl.Name)
	require.NoError(t, MustValueOf("cluster-name").Apply(cl))
	assert.Empty(t, cl.Name)
}

func TestApply_OutOfRange(t *testing.T) {
	cl := twoByTwo()
	err := MustValueOf("stripe.3.node-log-dir=/x").Apply(cl)
	assert.EqualError(t, err, "Invalid input: 'stripe.3.node-log-dir=/x'. Reason: Specified stripe ID: 3, but cluster contains: 2 stripe(s) only")

	err = MustValueOf("stripe.2.node.5.node-log-dir=/x").Apply(cl)
	assert.EqualError(t, err, "Invalid input: 'stripe.2.node.5.node-log-dir=/x'. Reason: Specified node ID: 5, but stripe ID: 2 contains: 2 node(s) only")
}

func TestGet(t *testing.T) {
	cl := twoByTwo()
	cl.Stripes[0].Nodes[0].DataDirs = map[string]string{"main": "/a", "x": "/b"}

	got, err := MustValueOf("stripe.1.node-hostname").Get(cl)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "stripe.1.node.1.node-hostname=a", got[0].String())
	assert.Equal(t, "stripe.1.node.2.node-hostname=b", got[1].String())

	got, err = MustValueOf("stripe.1.node.1.data-dirs").Get(cl)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stripe.1.node.1.data-dirs=main:/a,x:/b", got[0].String())

	got, err = MustValueOf("stripe.1.node.1.data-dirs.x").Get(cl)
	require.NoError(t, err)
	assert.Equal(t, "stripe.1.node.1.data-dirs.x=/b", got[0].String())

	got, err = MustValueOf("cluster-name").Get(cl)
	require.NoError(t, err)
	assert.Equal(t, "cluster-name=", got[0].String())
}

func TestExport(t *testing.T) {
	cl := twoByTwo()
	cl.Name = "tc"
	cl.Stripes[0].Name = "s1"
	cl.OffheapResources = map[string]topology.Measure{"main": topology.MustMeasure("1GB", topology.MemoryUnits)}

	var lines []string
	for _, c := range Export(cl) {
		lines = append(lines, c.String())
	}
	assert.Equal(t, []string{
		"cluster-name=tc",
		"offheap-resources.main=1GB",
		"stripe.1.stripe-name=s1",
		"stripe.1.node.1.node-hostname=a",
		"stripe.1.node.1.node-port=9410",
		"stripe.1.node.2.node-hostname=b",
		"stripe.1.node.2.node-port=9410",
		"stripe.2.node.1.node-hostname=c",
		"stripe.2.node.1.node-port=9410",
		"stripe.2.node.2.node-hostname=d",
		"stripe.2.node.2.node-port=9410",
	}, lines)
}

func TestParseProperties(t *testing.T) {
	in := `
# comentario
! otro
cluster-name = tc
stripe.1.node.1.node-hostname=h1
cluster-name=tc2
stripe.1.node.1.tc-properties.a=b=c
`
	props, order, err := ParseProperties(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"cluster-name", "stripe.1.node.1.node-hostname", "stripe.1.node.1.tc-properties.a"}, order)
	assert.Equal(t, "tc2", props["cluster-name"])
	assert.Equal(t, "b=c", props["stripe.1.node.1.tc-properties.a"])

	cs, err := FromProperties(props, order)
	require.NoError(t, err)
	assert.Len(t, cs, 3)

	_, _, err = ParseProperties(strings.NewReader("no-equals-here"))
	assert.Error(t, err)

	var b strings.Builder
	require.NoError(t, WriteProperties(&b, cs))
	assert.Equal(t, "cluster-name=tc2\nstripe.1.node.1.node-hostname=h1\nstripe.1.node.1.tc-properties.a=b=c\n", b.String())
}
