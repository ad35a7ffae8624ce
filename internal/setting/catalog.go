package setting

import (
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

var (
	reconnectUnits = []string{"s", "m", "h"}
	leaseUnits     = topology.TimeUnits
	loggerLevels   = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
)

// ─── Cluster ───

var (
	ClusterName = register(&Setting{
		name: "cluster-name", scope: ScopeCluster, hot: true,
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpUnset: clusterOnly,
			OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: identifier,
		scalar:   clusterString(func(c *topology.Cluster) *string { return &c.Name }),
	})

	ClusterUID = register(&Setting{
		name: "cluster-uid", scope: ScopeCluster,
		generate: func() string { return topology.NewUID().String() },
		perms:    permissions{OpGet: clusterOnly, OpImport: clusterOnly},
		validate: uid,
		scalar:   uidAccess(func(h Holder) *topology.UID { return &h.Cluster.UID }),
	})

	ClientReconnectWindow = register(&Setting{
		name: "client-reconnect-window", scope: ScopeCluster, hot: true,
		def: "120s",
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: measure(reconnectUnits),
		scalar: clusterMeasure(func(c *topology.Cluster) **topology.Measure {
			return &c.ClientReconnectWindow
		}, reconnectUnits),
	})

	ClientLeaseDuration = register(&Setting{
		name: "client-lease-duration", scope: ScopeCluster, hot: true,
		def: "150s",
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: measure(leaseUnits),
		scalar: clusterMeasure(func(c *topology.Cluster) **topology.Measure {
			return &c.ClientLeaseDuration
		}, leaseUnits),
	})

	FailoverPriority = register(&Setting{
		name: "failover-priority", scope: ScopeCluster,
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: failoverPriority,
		scalar:   failoverAccess(),
	})

	OffheapResources = register(&Setting{
		name: "offheap-resources", scope: ScopeCluster, isMap: true, hot: true,
		def: "main:512MB",
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate:    measure(topology.MemoryUnits),
		validateKey: identifier,
		mapped:      offheapAccess(),
	})

	SecurityAuthc = register(&Setting{
		name: "security-authc", scope: ScopeCluster,
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpUnset: clusterOnly,
			OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: oneOf("file", "ldap", "certificate"),
		scalar:   clusterString(func(c *topology.Cluster) *string { return &c.SecurityAuthc }),
	})

	SecuritySSLTLS = register(&Setting{
		name: "security-ssl-tls", scope: ScopeCluster,
		def: "false",
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: boolean,
		scalar:   clusterBool(func(c *topology.Cluster) **bool { return &c.SecuritySSLTLS }),
	})

	SecurityWhitelist = register(&Setting{
		name: "security-whitelist", scope: ScopeCluster,
		def: "false",
		perms: permissions{
			OpGet: clusterOnly, OpSet: clusterOnly, OpConfig: clusterOnly, OpImport: clusterOnly,
		},
		validate: boolean,
		scalar:   clusterBool(func(c *topology.Cluster) **bool { return &c.SecurityWhitelist }),
	})
)

// ─── Stripe ───

var (
	StripeName = register(&Setting{
		name: "stripe-name", scope: ScopeStripe, eager: true, hot: true,
		generate: func() string { return "stripe-" + topology.NewUID().String() },
		perms: permissions{
			OpGet: stripeOnly, OpSet: stripeOnly, OpConfig: stripeOnly, OpImport: stripeOnly,
		},
		validate: identifier,
		scalar:   stripeString(func(s *topology.Stripe) *string { return &s.Name }),
	})

	StripeUID = register(&Setting{
		name: "stripe-uid", scope: ScopeStripe,
		generate: func() string { return topology.NewUID().String() },
		perms:    permissions{OpGet: stripeOnly, OpImport: stripeOnly},
		validate: uid,
		scalar:   uidAccess(func(h Holder) *topology.UID { return &h.Stripe.UID }),
	})
)

// ─── Node ───

// Permisos comunes de los settings de nodo.
var (
	// identidad: sólo se lee desde arriba, se fija por nodo
	nodeIdentityPerms = permissions{
		OpGet: anyScope, OpSet: nodeOnly, OpConfig: nodeOnly, OpImport: nodeOnly,
	}
	// con default: se puede fijar en bloque pero no quitar
	nodeDefaultedPerms = permissions{
		OpGet: anyScope, OpSet: anyScope, OpConfig: anyScope, OpImport: nodeOnly,
	}
	// opcionales: se pueden fijar y quitar en bloque
	nodeOptionalPerms = permissions{
		OpGet: anyScope, OpSet: anyScope, OpUnset: anyScope, OpConfig: anyScope, OpImport: nodeOnly,
	}
	nodePublicPerms = permissions{
		OpGet: anyScope, OpSet: nodeOnly, OpUnset: nodeOnly, OpConfig: nodeOnly, OpImport: nodeOnly,
	}
)

var (
	NodeName = register(&Setting{
		name: "node-name", scope: ScopeNode, eager: true,
		generate: func() string { return "node-" + topology.NewUID().String() },
		perms:    permissions{OpGet: anyScope, OpConfig: nodeOnly, OpImport: nodeOnly},
		validate: identifier,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.Name }),
	})

	NodeUID = register(&Setting{
		name: "node-uid", scope: ScopeNode,
		generate: func() string { return topology.NewUID().String() },
		perms:    permissions{OpGet: anyScope, OpImport: nodeOnly},
		validate: uid,
		scalar:   uidAccess(func(h Holder) *topology.UID { return &h.Node.UID }),
	})

	NodeHostname = register(&Setting{
		name: "node-hostname", scope: ScopeNode, eager: true,
		def:      "%h",
		perms:    nodeIdentityPerms,
		validate: hostname,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.Hostname }),
	})

	NodePort = register(&Setting{
		name: "node-port", scope: ScopeNode, eager: true,
		def:      "9410",
		perms:    nodeIdentityPerms,
		validate: port,
		scalar:   nodeInt(func(n *topology.Node) *int { return &n.Port }),
	})

	NodeGroupPort = register(&Setting{
		name: "node-group-port", scope: ScopeNode,
		def:      "9430",
		perms:    nodeIdentityPerms,
		validate: port,
		scalar:   nodeInt(func(n *topology.Node) *int { return &n.GroupPort }),
	})

	NodeBindAddress = register(&Setting{
		name: "node-bind-address", scope: ScopeNode,
		def:      "0.0.0.0",
		perms:    nodeDefaultedPerms,
		validate: ipv4,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.BindAddress }),
	})

	NodeGroupBindAddress = register(&Setting{
		name: "node-group-bind-address", scope: ScopeNode,
		def:      "0.0.0.0",
		perms:    nodeDefaultedPerms,
		validate: ipv4,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.GroupBindAddress }),
	})

	NodePublicHostname = register(&Setting{
		name: "node-public-hostname", scope: ScopeNode, hot: true,
		perms:    nodePublicPerms,
		validate: hostname,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.PublicHostname }),
	})

	NodePublicPort = register(&Setting{
		name: "node-public-port", scope: ScopeNode, hot: true,
		perms:    nodePublicPerms,
		validate: port,
		scalar:   nodeInt(func(n *topology.Node) *int { return &n.PublicPort }),
	})

	NodeMetadataDir = register(&Setting{
		name: "node-metadata-dir", scope: ScopeNode,
		def:      "%H/terracotta/metadata",
		perms:    nodeDefaultedPerms,
		validate: path,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.MetadataDir }),
	})

	NodeLogDir = register(&Setting{
		name: "node-log-dir", scope: ScopeNode,
		def:      "%H/terracotta/logs",
		perms:    nodeDefaultedPerms,
		validate: path,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.LogDir }),
	})

	NodeBackupDir = register(&Setting{
		name: "node-backup-dir", scope: ScopeNode, hot: true,
		perms:    nodeOptionalPerms,
		validate: path,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.BackupDir }),
	})

	SecurityDir = register(&Setting{
		name: "security-dir", scope: ScopeNode,
		perms:    nodeOptionalPerms,
		validate: path,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.SecurityDir }),
	})

	SecurityAuditLogDir = register(&Setting{
		name: "security-audit-log-dir", scope: ScopeNode,
		perms:    nodeOptionalPerms,
		validate: path,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.SecurityAuditLogDir }),
	})

	SecurityLogDir = register(&Setting{
		name: "security-log-dir", scope: ScopeNode,
		perms:    nodeOptionalPerms,
		validate: path,
		scalar:   nodeString(func(n *topology.Node) *string { return &n.SecurityLogDir }),
	})

	DataDirs = register(&Setting{
		name: "data-dirs", scope: ScopeNode, isMap: true, hot: true,
		def:         "main:%H/terracotta/user-data/main",
		perms:       nodeDefaultedPerms,
		validate:    path,
		validateKey: identifier,
		mapped:      nodeMap(func(n *topology.Node) *map[string]string { return &n.DataDirs }),
	})

	TCProperties = register(&Setting{
		name: "tc-properties", scope: ScopeNode, isMap: true,
		perms:       nodeOptionalPerms,
		validate:    identifier,
		validateKey: identifier,
		mapped:      nodeMap(func(n *topology.Node) *map[string]string { return &n.TCProperties }),
	})

	LoggerOverrides = register(&Setting{
		name: "logger-overrides", scope: ScopeNode, isMap: true, hot: true,
		perms:       nodeOptionalPerms,
		validate:    oneOf(loggerLevels...),
		validateKey: identifier,
		mapped:      nodeMap(func(n *topology.Node) *map[string]string { return &n.LoggerOverrides }),
	})
)

// ─── Relay (replicación entre clusters) ───

var relayPerms = nodePublicPerms

var (
	RelaySourceHostname = register(&Setting{
		name: "relay-source-hostname", scope: ScopeNode, hot: true,
		perms: relayPerms, validate: hostname,
		scalar: nodeString(func(n *topology.Node) *string { return &n.RelaySourceHostname }),
	})
	RelaySourcePort = register(&Setting{
		name: "relay-source-port", scope: ScopeNode, hot: true,
		perms: relayPerms, validate: port,
		scalar: nodeInt(func(n *topology.Node) *int { return &n.RelaySourcePort }),
	})
	RelayDestinationHostname = register(&Setting{
		name: "relay-destination-hostname", scope: ScopeNode, hot: true,
		perms: relayPerms, validate: hostname,
		scalar: nodeString(func(n *topology.Node) *string { return &n.RelayDestinationHostname }),
	})
	RelayDestinationPort = register(&Setting{
		name: "relay-destination-port", scope: ScopeNode, hot: true,
		perms: relayPerms, validate: port,
		scalar: nodeInt(func(n *topology.Node) *int { return &n.RelayDestinationPort }),
	})
	RelayDestinationGroupPort = register(&Setting{
		name: "relay-destination-group-port", scope: ScopeNode, hot: true,
		perms: relayPerms, validate: port,
		scalar: nodeInt(func(n *topology.Node) *int { return &n.RelayDestinationGroupPort }),
	})
)
